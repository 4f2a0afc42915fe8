package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dropsight/sourcing-cli/internal/model"
	"github.com/dropsight/sourcing-cli/internal/store"
	"github.com/dropsight/sourcing-cli/pkg/marketsource"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/analyze", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			ProductID string                `json:"product_id"`
			Listing   *marketsource.Listing `json:"listing"`
			Save      bool                  `json:"save"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		var rec *model.AnalysisRecord
		var err error
		switch {
		case body.Listing != nil:
			rec, err = env.analyzeListing(req.Context(), body.Listing, body.Save)
		case body.ProductID != "":
			rec, err = env.fetchAndAnalyze(req.Context(), body.ProductID, body.Save)
		default:
			writeError(w, http.StatusBadRequest, "product_id or listing is required")
			return
		}
		if err != nil {
			zap.L().Error("analyze request failed", zap.Error(err))
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	r.Get("/analyses", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))

		records, err := env.store.ListAnalyses(req.Context(), store.AnalysisFilter{
			Verdict:   model.Verdict(q.Get("verdict")),
			ProductID: q.Get("product_id"),
			Limit:     limit,
			Offset:    offset,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, records)
	})

	r.Get("/analyses/{id}", func(w http.ResponseWriter, req *http.Request) {
		rec, err := env.store.GetAnalysis(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	r.Get("/stores", func(w http.ResponseWriter, req *http.Request) {
		stores, err := env.store.ListTrackedStores(req.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, stores)
	})

	r.Post("/stores", func(w http.ResponseWriter, req *http.Request) {
		var ts model.TrackedStore
		if err := json.NewDecoder(req.Body).Decode(&ts); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if ts.Domain == "" {
			writeError(w, http.StatusBadRequest, "domain is required")
			return
		}
		saved, err := env.store.TrackStore(req.Context(), ts)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	})

	r.Delete("/stores/{id}", func(w http.ResponseWriter, req *http.Request) {
		if err := env.store.UntrackStore(req.Context(), chi.URLParam(req, "id")); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

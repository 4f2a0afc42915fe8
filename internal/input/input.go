// Package input reads product ID lists for batch analysis from CSV, XLSX, or
// plain text files. The product ID is always taken from the first column.
package input

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Options configures list parsing.
type Options struct {
	SheetName string // XLSX only; default is the first sheet
	SkipRows  int    // number of header rows to skip
}

// ReadProductIDs reads product IDs from the given file, dispatching on
// extension. Blank rows are dropped and IDs are deduplicated preserving
// first-seen order.
func ReadProductIDs(path string, opts Options) ([]string, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSX(path, opts)
	case ".csv":
		rows, err = readCSV(path)
	case ".txt", "":
		rows, err = readLines(path)
	default:
		return nil, eris.Errorf("input: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	if opts.SkipRows > 0 {
		if opts.SkipRows >= len(rows) {
			rows = nil
		} else {
			rows = rows[opts.SkipRows:]
		}
	}

	seen := make(map[string]struct{}, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(row[0])
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func readXLSX(path string, opts Options) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "input: open xlsx")
	}

	sheet, err := getSheet(f, opts.SheetName)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("input: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("input: xlsx file has no sheets")
	}
	return f.Sheets[0], nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "input: open csv")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "input: read csv")
	}
	return rows, nil
}

func readLines(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "input: read file")
	}
	var rows [][]string
	for _, line := range strings.Split(string(data), "\n") {
		rows = append(rows, []string{strings.TrimSpace(line)})
	}
	return rows, nil
}

// Package tabular loads unit tables from CSV and Excel files. The core
// mandates no on-disk format; this adapter is the data-loading collaborator
// that turns column-named files into geo.Table snapshots.
package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"mlid/domain/core"
	"mlid/domain/geo"
)

// Schema names the columns to pull out of a file: the unit identifier, the
// count columns (group Y, group X, optionally totals), and the hierarchy key
// columns ordered base to top.
type Schema struct {
	IDCol     string
	CountCols []string
	KeyCols   []string
}

// DataReader handles reading Excel and CSV unit tables
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
}

// NewDataReader creates a reader that handles both Excel and CSV files
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType}
}

// ReadTable reads the file into an immutable unit table.
func (r *DataReader) ReadTable(schema Schema) (*geo.Table, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	switch r.fileType {
	case "csv":
		f, err := os.Open(r.filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open CSV file: %w", err)
		}
		defer f.Close()
		return FromCSV(f, schema)
	case "xlsx":
		return r.readExcel(schema)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

// FromCSV parses CSV content with a header row into a unit table.
func FromCSV(r io.Reader, schema Schema) (*geo.Table, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	return fromRows(rows, schema)
}

// readExcel reads the first sheet into a unit table.
func (r *DataReader) readExcel(schema Schema) (*geo.Table, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return fromRows(rows, schema)
}

// fromRows maps header-named columns onto the schema and builds the table.
func fromRows(rows [][]string, schema Schema) (*geo.Table, error) {
	if len(rows) < 2 {
		return nil, core.NewInvalidInputError("table", "need a header row and at least one data row")
	}

	header := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		header[strings.TrimSpace(name)] = i
	}

	col := func(name string) (int, error) {
		i, ok := header[name]
		if !ok {
			return 0, fmt.Errorf("%w: %q", core.ErrMissingColumn, name)
		}
		return i, nil
	}

	idIdx, err := col(schema.IDCol)
	if err != nil {
		return nil, err
	}

	data := rows[1:]
	ids := make([]string, len(data))
	for rowIdx, row := range data {
		if idIdx >= len(row) {
			return nil, core.NewInvalidInputError(schema.IDCol, fmt.Sprintf("row %d has no value", rowIdx+1))
		}
		ids[rowIdx] = strings.TrimSpace(row[idIdx])
	}

	counts := make(map[string][]float64, len(schema.CountCols))
	for _, name := range schema.CountCols {
		idx, err := col(name)
		if err != nil {
			return nil, err
		}
		values := make([]float64, len(data))
		for rowIdx, row := range data {
			if idx >= len(row) || strings.TrimSpace(row[idx]) == "" {
				return nil, core.NewInvalidInputError(name, fmt.Sprintf("row %d has no value", rowIdx+1))
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
			if err != nil {
				return nil, core.NewInvalidInputError(name, fmt.Sprintf("row %d: %q is not numeric", rowIdx+1, row[idx]))
			}
			values[rowIdx] = v
		}
		counts[name] = values
	}

	keys := make(map[string][]string, len(schema.KeyCols))
	for _, name := range schema.KeyCols {
		idx, err := col(name)
		if err != nil {
			return nil, err
		}
		values := make([]string, len(data))
		for rowIdx, row := range data {
			if idx >= len(row) {
				return nil, core.NewInvalidInputError(name, fmt.Sprintf("row %d has no value", rowIdx+1))
			}
			values[rowIdx] = strings.TrimSpace(row[idx])
		}
		keys[name] = values
	}

	return geo.NewTable(ids, counts, keys)
}

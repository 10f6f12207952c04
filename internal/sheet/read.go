// Package sheet reads input rows from CSV or XLSX files and writes row
// results as CSV, XLSX or JSON.
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tealeg/xlsx"

	"github.com/optimode/emailguess/types"
)

var (
	// ErrMissingColumn is returned when the header lacks first, last or domain.
	ErrMissingColumn = errors.New("sheet: missing required column")
	// ErrUnsupportedFormat is returned for file extensions other than
	// .csv, .xlsx and (for output only) .json.
	ErrUnsupportedFormat = errors.New("sheet: unsupported file format")
	// ErrEmpty is returned when the input has no header row.
	ErrEmpty = errors.New("sheet: no header row")
)

// Format is a file serialization.
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
	JSON Format = "json"
)

// RequiredColumns are the input header names, matched case-sensitively.
var RequiredColumns = []string{"first", "last", "domain"}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")); ext {
	case "csv":
		return CSV, nil
	case "xlsx":
		return XLSX, nil
	case "json":
		return JSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ReadFile reads people from a .csv or .xlsx file.
func ReadFile(path string) ([]types.Person, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sheet: open input: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Read(f, format)
}

// Read reads people from r. The first row is the header; extra columns are
// ignored and blank rows are skipped. A missing required column fails
// before any row is returned.
func Read(r io.Reader, format Format) ([]types.Person, error) {
	var (
		records [][]string
		err     error
	)
	switch format {
	case CSV:
		records, err = readCSV(r)
	case XLSX:
		records, err = readXLSX(r)
	default:
		return nil, fmt.Errorf("%w: cannot read %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	return people(records)
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("sheet: read csv: %w", err)
	}
	return records, nil
}

// readXLSX returns the cells of the first worksheet.
func readXLSX(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("sheet: read xlsx: %w", err)
	}
	book, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, fmt.Errorf("sheet: read xlsx: %w", err)
	}
	if len(book.Sheets) == 0 {
		return nil, nil
	}

	var records [][]string
	for _, row := range book.Sheets[0].Rows {
		if row == nil {
			records = append(records, nil)
			continue
		}
		record := make([]string, 0, len(row.Cells))
		for _, cell := range row.Cells {
			record = append(record, cell.String())
		}
		records = append(records, record)
	}
	return records, nil
}

func people(records [][]string) ([]types.Person, error) {
	if len(records) == 0 {
		return nil, ErrEmpty
	}

	index := map[string]int{}
	for i, col := range records[0] {
		name := strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, col)
		}
	}

	field := func(rec []string, col string) string {
		if i := index[col]; i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	out := make([]types.Person, 0, len(records)-1)
	for _, rec := range records[1:] {
		p := types.Person{
			First:  field(rec, "first"),
			Last:   field(rec, "last"),
			Domain: field(rec, "domain"),
		}
		if p == (types.Person{}) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

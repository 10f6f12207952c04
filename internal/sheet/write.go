package sheet

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/tealeg/xlsx"

	"github.com/optimode/emailguess"
)

// Header is the output column order.
var Header = []string{"Email", "Domain", "Domain Valid", "Email Valid"}

const sheetName = "Results"

// record is one output row as serialized to JSON.
type record struct {
	Email       string `json:"Email"`
	Domain      string `json:"Domain"`
	DomainValid bool   `json:"Domain Valid"`
	EmailValid  bool   `json:"Email Valid"`
}

// WriteFile writes rows to path in the format implied by its extension.
func WriteFile(path string, rows []emailguess.RowResult) (err error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sheet: create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("sheet: close output: %w", cerr)
		}
	}()

	w := bufio.NewWriter(f)
	if err := Write(w, format, rows); err != nil {
		return err
	}
	return w.Flush()
}

// Write serializes rows to w. Unmatched rows have an empty Email.
func Write(w io.Writer, format Format, rows []emailguess.RowResult) error {
	switch format {
	case CSV:
		return writeCSV(w, rows)
	case XLSX:
		return writeXLSX(w, rows)
	case JSON:
		return writeJSON(w, rows)
	default:
		return fmt.Errorf("%w: cannot write %s", ErrUnsupportedFormat, format)
	}
}

func writeCSV(w io.Writer, rows []emailguess.RowResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("sheet: write csv: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Email, r.Domain, formatBool(r.DomainValid), formatBool(r.EmailValid)}); err != nil {
			return fmt.Errorf("sheet: write csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("sheet: write csv: %w", err)
	}
	return nil
}

func writeXLSX(w io.Writer, rows []emailguess.RowResult) error {
	book := xlsx.NewFile()
	sh, err := book.AddSheet(sheetName)
	if err != nil {
		return fmt.Errorf("sheet: write xlsx: %w", err)
	}

	header := sh.AddRow()
	for _, col := range Header {
		header.AddCell().SetString(col)
	}
	for _, r := range rows {
		row := sh.AddRow()
		row.AddCell().SetString(r.Email)
		row.AddCell().SetString(r.Domain)
		row.AddCell().SetBool(r.DomainValid)
		row.AddCell().SetBool(r.EmailValid)
	}

	if err := book.Write(w); err != nil {
		return fmt.Errorf("sheet: write xlsx: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, rows []emailguess.RowResult) error {
	out := make([]record, len(rows))
	for i, r := range rows {
		out[i] = record{Email: r.Email, Domain: r.Domain, DomainValid: r.DomainValid, EmailValid: r.EmailValid}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("sheet: write json: %w", err)
	}
	return nil
}

// formatBool renders spreadsheet-style booleans ("True", "False").
func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/optimode/emailguess"
	"github.com/optimode/emailguess/candidate"
	"github.com/optimode/emailguess/internal/sheet"
)

func yesNo(ok bool) string {
	if ok {
		return color.GreenString("yes")
	}
	return color.RedString("no")
}

// render writes batch results to stdout in the requested format.
func render(w io.Writer, format string, rows []emailguess.RowResult) error {
	switch format {
	case "csv":
		return sheet.Write(w, sheet.CSV, rows)
	case "json":
		return sheet.Write(w, sheet.JSON, rows)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Email", "Domain", "Domain Valid", "Email Valid"})
	for i, r := range rows {
		t.AppendRow(table.Row{i + 1, r.Email, r.Domain, yesNo(r.DomainValid), yesNo(r.EmailValid)})
	}
	t.Render()
	return nil
}

// renderAttempts shows the row result followed by every candidate tried.
func renderAttempts(w io.Writer, row emailguess.RowResult) {
	if row.Found() {
		fmt.Fprintf(w, "%s %s\n", color.GreenString("found:"), row.Email)
	} else {
		fmt.Fprintf(w, "%s no candidate accepted for %s\n", color.RedString("not found:"), row.Domain)
	}
	if len(row.Attempts) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Candidate", "Result", "Level", "Reason", "MX", "Code", "Details"})
	for _, a := range row.Attempts {
		last := a.Checks[len(a.Checks)-1]
		code := ""
		if last.SMTPCode != 0 {
			code = strconv.Itoa(last.SMTPCode)
		}
		result := color.RedString("rejected")
		if a.Valid {
			result = color.GreenString("accepted")
		}
		t.AppendRow(table.Row{a.Email, result, last.Level, a.Reason(), last.MXHost, code, last.Details})
	}
	t.Render()
}

// renderCandidates lists the probe order without touching the network.
func renderCandidates(w io.Writer, first, last, domain string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Format", "Address"})
	for i, addr := range candidate.Generate(first, last, domain) {
		t.AppendRow(table.Row{i + 1, candidate.Formats[i].Name, addr})
	}
	t.Render()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

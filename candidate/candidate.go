// Package candidate generates the email addresses probed for a person.
//
// The order of Formats is the probe priority: the row validator stops at
// the first candidate the mail server accepts, so earlier formats win when
// several are deliverable (for example on catch-all domains).
package candidate

import "unicode/utf8"

// Format renders the local part of one address layout.
type Format struct {
	Name  string
	Local func(first, last string) string
}

// Formats lists the address layouts in probe order.
var Formats = []Format{
	{Name: "first.last", Local: func(f, l string) string { return f + "." + l }},
	{Name: "first_last", Local: func(f, l string) string { return f + "_" + l }},
	{Name: "flast", Local: func(f, l string) string { return initial(f) + l }},
	{Name: "first", Local: func(f, _ string) string { return f }},
	{Name: "last", Local: func(_, l string) string { return l }},
}

// Generate returns one address per format, in probe order.
// Names and domain are used exactly as given.
func Generate(first, last, domain string) []string {
	out := make([]string, 0, len(Formats))
	for _, f := range Formats {
		out = append(out, f.Local(first, last)+"@"+domain)
	}
	return out
}

// initial returns the first character of s, or "" for an empty name.
func initial(s string) string {
	_, size := utf8.DecodeRuneInString(s)
	return s[:size]
}

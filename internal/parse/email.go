package parse

import (
	"strings"

	"golang.org/x/net/idna"
)

// Email is the internal representation of a candidate address.
// The check/ packages receive this as parameter.
type Email struct {
	Raw           string // the candidate exactly as generated
	Local         string // the part before the first @
	Domain        string // the part after the first @, lower-case ASCII/Punycode (for DNS/SMTP)
	DomainUnicode string // the part after the first @, Unicode form (for display)
	Valid         bool   // false if Raw has no domain or the domain fails IDNA conversion
}

// Domain returns the substring after the first '@' of addr.
// ok is false when addr has no '@' or nothing follows it.
func Domain(addr string) (domain string, ok bool) {
	_, domain, found := strings.Cut(addr, "@")
	if !found || domain == "" {
		return "", false
	}
	return domain, true
}

// NewEmail splits a candidate address into its parts.
// If the address has no usable domain, Valid=false but Raw is always populated.
// The local part is never altered: candidates are probed as generated.
func NewEmail(raw string) Email {
	domain, ok := Domain(raw)
	if !ok {
		return Email{Raw: raw}
	}
	local, _, _ := strings.Cut(raw, "@")

	ascii, unicode, ok := convertDomain(strings.ToLower(domain))
	if !ok {
		return Email{Raw: raw, Local: local}
	}
	return Email{
		Raw:           raw,
		Local:         local,
		Domain:        ascii,
		DomainUnicode: unicode,
		Valid:         true,
	}
}

// Address returns the address to present in RCPT TO: the original local
// part joined with the ASCII form of the domain.
func (e Email) Address() string {
	if !e.Valid {
		return e.Raw
	}
	return e.Local + "@" + e.Domain
}

// convertDomain converts a domain to both ASCII/Punycode and Unicode forms.
// ok is false if the domain contains non-ASCII characters that fail
// IDNA2008 validation.
func convertDomain(domain string) (ascii, unicode string, ok bool) {
	hasNonASCII := false
	for _, r := range domain {
		if r > 127 {
			hasNonASCII = true
			break
		}
	}

	if hasNonASCII {
		a, err := idna.Lookup.ToASCII(domain)
		if err != nil {
			return "", "", false
		}
		return a, domain, true
	}

	// Existing Punycode is decoded for display only (xn--mnchen-3ya.de -> münchen.de).
	u, err := idna.Display.ToUnicode(domain)
	if err != nil {
		u = domain
	}
	return domain, u, true
}

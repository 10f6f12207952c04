package check

import (
	"context"
	"strings"
	"unicode"

	"github.com/optimode/emailguess/internal/parse"
	"github.com/optimode/emailguess/types"
)

const (
	maxAddressLen = 254
	maxLocalLen   = 64
	maxLabelLen   = 63
)

// SyntaxChecker rejects candidates that no mail server could accept, before
// any network traffic. Generated local parts come straight from the input
// row, so names with spaces or stray punctuation end up here.
//
// Unicode local parts are allowed (RFC 6531).
type SyntaxChecker struct{}

func NewSyntaxChecker() *SyntaxChecker {
	return &SyntaxChecker{}
}

func (c *SyntaxChecker) Check(_ context.Context, email parse.Email) types.CheckResult {
	level := types.LevelSyntax

	if !email.Valid {
		return types.CheckResult{Level: level, Passed: false, Reason: types.ReasonMalformed, Details: "skipped: no domain"}
	}

	fail := func(details string) types.CheckResult {
		return types.CheckResult{Level: level, Passed: false, Reason: types.ReasonInvalidSyntax, Details: details}
	}

	if len(email.Address()) > maxAddressLen {
		return fail("address exceeds 254 characters")
	}
	if msg := localProblem(email.Local); msg != "" {
		return fail(msg)
	}
	if msg := domainProblem(email.DomainUnicode); msg != "" {
		return fail(msg)
	}
	return types.CheckResult{Level: level, Passed: true, Details: "syntax ok"}
}

// localProblem returns a description of what is wrong with local, or "".
func localProblem(local string) string {
	switch {
	case local == "":
		return "local part is empty"
	case len(local) > maxLocalLen:
		return "local part exceeds 64 characters"
	case strings.HasPrefix(local, "."), strings.HasSuffix(local, "."):
		return "local part cannot start or end with a dot"
	case strings.Contains(local, ".."):
		return "local part cannot contain consecutive dots"
	}

	const special = "!#$%&'*+/=?^_`{|}~-."
	for _, ch := range local {
		if ch > unicode.MaxASCII {
			if unicode.IsControl(ch) || unicode.IsSpace(ch) {
				return "local part contains invalid character: " + string(ch)
			}
			continue
		}
		if isASCIIAlnum(ch) || strings.ContainsRune(special, ch) {
			continue
		}
		return "local part contains invalid character: " + string(ch)
	}
	return ""
}

// domainProblem checks the Unicode form of the domain label by label.
func domainProblem(domain string) string {
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return "domain must have at least two labels"
	}
	for _, label := range labels {
		switch {
		case label == "":
			return "domain contains empty label"
		case len(label) > maxLabelLen:
			return "domain label exceeds 63 characters"
		case strings.HasPrefix(label, "-"), strings.HasSuffix(label, "-"):
			return "domain label cannot start or end with a hyphen"
		}
		for _, ch := range label {
			if !unicode.IsLetter(ch) && !unicode.IsDigit(ch) && ch != '-' {
				return "domain label contains invalid character: " + string(ch)
			}
		}
	}

	tld := labels[len(labels)-1]
	if strings.IndexFunc(tld, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		return "TLD cannot be all digits"
	}
	return ""
}

func isASCIIAlnum(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}

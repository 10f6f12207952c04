package emailguess

import (
	"errors"

	"github.com/optimode/emailguess/internal/mx"
)

var (
	// ErrSMTPNotConfigured is returned when Find or FindAll is called
	// but WithSMTP was never called.
	ErrSMTPNotConfigured = errors.New("emailguess: SMTP probe not configured, call WithSMTP")

	// ErrInvalidSMTPOptions is returned when WithSMTP is called
	// with a missing or unusable MailFrom, a negative limit or a bad proxy URL.
	ErrInvalidSMTPOptions = errors.New("emailguess: invalid SMTPOptions")

	// ErrInvalidDNSOptions is returned for negative DNS timeouts or cache TTLs.
	ErrInvalidDNSOptions = errors.New("emailguess: invalid DNSOptions")
)

// A custom Resolver wraps these to classify its failures; any other error
// is reported as dns_failure.
var (
	ErrNoMXRecords = mx.ErrNoRecords
	ErrNXDomain    = mx.ErrNXDomain
	ErrDNSTimeout  = mx.ErrTimeout
)

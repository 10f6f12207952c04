// Package emailguess finds a person's work email address by trying the
// common address formats in order and asking the domain's mail exchanger
// whether it would accept each one.
//
// For every input row five candidates are generated (first.last,
// first_last, flast, first, last). Each candidate must pass an MX lookup
// for its domain and an SMTP RCPT TO probe answered with 250; the first
// candidate that passes both wins and the remaining ones are not tried.
//
// Basic usage:
//
//	row, err := emailguess.New().
//	    WithSMTP(emailguess.SMTPOptions{MailFrom: "verify@myapp.com"}).
//	    Find(ctx, emailguess.Person{First: "john", Last: "smith", Domain: "example.com"})
//
// A catch-all domain accepts every recipient, so the first generated format
// is reported as found whether or not that mailbox exists. A server that
// greylists or rejects unknown senders reports every candidate as missing.
// Results are a best guess, not proof of delivery.
package emailguess

import (
	"github.com/optimode/emailguess/internal/mx"
	"github.com/optimode/emailguess/types"
)

// Person is a re-export from the types package so that consumers
// don't need to import the types package directly.
type Person = types.Person

// CheckResult is a re-export.
type CheckResult = types.CheckResult

// CheckLevel is a re-export.
type CheckLevel = types.CheckLevel

// Reason is a re-export.
type Reason = types.Reason

// Resolver looks up MX records. Implementations must return records the
// caller may reorder freely.
type Resolver = mx.Resolver

// Level constants re-exported.
const (
	LevelSyntax = types.LevelSyntax
	LevelDNS    = types.LevelDNS
	LevelSMTP   = types.LevelSMTP
)

// Reason constants re-exported.
const (
	ReasonNone          = types.ReasonNone
	ReasonMalformed     = types.ReasonMalformed
	ReasonInvalidSyntax = types.ReasonInvalidSyntax
	ReasonNoMX          = types.ReasonNoMX
	ReasonNXDomain      = types.ReasonNXDomain
	ReasonDNSTimeout    = types.ReasonDNSTimeout
	ReasonDNSFailure    = types.ReasonDNSFailure
	ReasonConnect       = types.ReasonConnect
	ReasonSMTPTimeout   = types.ReasonSMTPTimeout
	ReasonRefused       = types.ReasonRefused
	ReasonProtocol      = types.ReasonProtocol
	ReasonRejected      = types.ReasonRejected
	ReasonCancelled     = types.ReasonCancelled
)

// Package types contains the shared types for emailguess.
// This package does not import anything from other emailguess packages
// to avoid circular imports.
package types

// Person is one input row: the name and employer domain to guess for.
type Person struct {
	First  string `json:"first"`
	Last   string `json:"last"`
	Domain string `json:"domain"`
}

// CheckLevel identifies the validation level.
type CheckLevel = string

const (
	LevelSyntax CheckLevel = "syntax"
	LevelDNS    CheckLevel = "dns"
	LevelSMTP   CheckLevel = "smtp"
)

// Reason names why a check failed. It is empty when the check passed.
type Reason = string

const (
	ReasonNone          Reason = ""
	ReasonMalformed     Reason = "malformed_address"
	ReasonInvalidSyntax Reason = "invalid_syntax"
	ReasonNoMX          Reason = "no_mx"
	ReasonNXDomain      Reason = "nxdomain"
	ReasonDNSTimeout    Reason = "dns_timeout"
	ReasonDNSFailure    Reason = "dns_failure"
	ReasonConnect       Reason = "connect_failed"
	ReasonSMTPTimeout   Reason = "smtp_timeout"
	ReasonRefused       Reason = "server_refused"
	ReasonProtocol      Reason = "protocol_error"
	ReasonRejected      Reason = "rcpt_rejected"
	ReasonCancelled     Reason = "cancelled"
)

// CheckResult is the outcome of a single validation level for one candidate.
type CheckResult struct {
	Level    CheckLevel `json:"level"`
	Passed   bool       `json:"passed"`
	Reason   Reason     `json:"reason,omitempty"`
	Details  string     `json:"details,omitempty"`
	MXHost   string     `json:"mxHost,omitempty"`
	SMTPCode int        `json:"smtpCode,omitempty"`
}

// Package check contains the validation levels applied to each candidate
// address: an optional syntax gate, the MX lookup (domain validator) and the
// SMTP RCPT TO probe (mailbox prober).
//
// Checks never return errors. Every DNS or SMTP failure is turned into a
// failed types.CheckResult whose Reason names the cause, so the pipeline
// fails closed while callers can still tell a timeout from a rejection.
// These types can be used directly, but the recommended approach is
// to use the fluent builder API from the github.com/optimode/emailguess package.
package check

package check

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/optimode/emailguess/internal/mx"
	"github.com/optimode/emailguess/internal/parse"
	"github.com/optimode/emailguess/internal/smtpprobe"
	"github.com/optimode/emailguess/types"
)

// SMTPConfig is the SMTP checker configuration.
type SMTPConfig struct {
	// MaxMXHosts is how many exchangers to try after transport failures.
	MaxMXHosts int
	// ResolverOrder probes the first MX record as returned by the resolver
	// instead of the one with the lowest preference value.
	ResolverOrder bool
	// Limiter paces SMTP sessions across all callers. Nil disables pacing.
	Limiter *rate.Limiter
}

// SMTPChecker performs SMTP RCPT TO probes to verify a mailbox exists.
// It resolves MX records itself; nothing is carried over from the DNS check.
type SMTPChecker struct {
	cfg      SMTPConfig
	resolver mx.Resolver
	prober   *smtpprobe.Prober
}

// NewSMTPChecker creates a mailbox prober.
func NewSMTPChecker(cfg SMTPConfig, r mx.Resolver, p *smtpprobe.Prober) *SMTPChecker {
	if cfg.MaxMXHosts <= 0 {
		cfg.MaxMXHosts = 1
	}
	return &SMTPChecker{cfg: cfg, resolver: r, prober: p}
}

func (c *SMTPChecker) Check(ctx context.Context, email parse.Email) types.CheckResult {
	level := types.LevelSMTP

	if !email.Valid {
		return types.CheckResult{Level: level, Passed: false, Reason: types.ReasonMalformed, Details: "skipped: no domain"}
	}

	records, err := c.resolver.LookupMX(ctx, email.Domain)
	if err != nil || len(records) == 0 {
		res := types.CheckResult{Level: level, Passed: false, Reason: types.ReasonNoMX, Details: "no MX records found"}
		if err != nil {
			res.Reason = lookupReason(err)
			res.Details = fmt.Sprintf("MX lookup failed: %v", err)
		}
		return res
	}

	if !c.cfg.ResolverOrder {
		mx.SortByPreference(records)
	}

	maxHosts := min(c.cfg.MaxMXHosts, len(records))

	var last types.CheckResult
	for i := 0; i < maxHosts; i++ {
		mxHost := mx.Host(records[i])

		if c.cfg.Limiter != nil {
			if err := c.cfg.Limiter.Wait(ctx); err != nil {
				return types.CheckResult{Level: level, Passed: false, Reason: types.ReasonCancelled, Details: err.Error(), MXHost: mxHost}
			}
		}

		reply, err := c.prober.Probe(ctx, mxHost, email.Address())
		if err != nil {
			last = types.CheckResult{
				Level:   level,
				Passed:  false,
				Reason:  probeReason(err),
				Details: fmt.Sprintf("SMTP probe failed: %v", err),
				MXHost:  mxHost,
			}
			// Only transport failures move on to the next exchanger; a server
			// that answered has decided.
			var re *smtpprobe.ReplyError
			if errors.As(err, &re) {
				last.SMTPCode = re.Code
				return last
			}
			if last.Reason == types.ReasonCancelled {
				return last
			}
			continue
		}

		if reply.Code != 250 {
			return types.CheckResult{
				Level:    level,
				Passed:   false,
				Reason:   types.ReasonRejected,
				Details:  fmt.Sprintf("RCPT TO not accepted: %s", reply.Message),
				MXHost:   mxHost,
				SMTPCode: reply.Code,
			}
		}
		return types.CheckResult{
			Level:    level,
			Passed:   true,
			Details:  "RCPT TO accepted",
			MXHost:   mxHost,
			SMTPCode: reply.Code,
		}
	}

	return last
}

// probeReason maps a session error to a failure reason.
func probeReason(err error) types.Reason {
	var se *smtpprobe.StageError
	var re *smtpprobe.ReplyError
	switch {
	case errors.Is(err, context.Canceled):
		return types.ReasonCancelled
	case smtpprobe.Timeout(err):
		return types.ReasonSMTPTimeout
	case errors.As(err, &se) && se.Stage == smtpprobe.StageConnect:
		return types.ReasonConnect
	case errors.As(err, &re):
		return types.ReasonRefused
	default:
		return types.ReasonProtocol
	}
}

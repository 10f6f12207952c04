package check

import (
	"context"
	"errors"
	"fmt"

	"github.com/optimode/emailguess/internal/mx"
	"github.com/optimode/emailguess/internal/parse"
	"github.com/optimode/emailguess/types"
)

// DNSChecker verifies that the candidate's domain publishes MX records.
type DNSChecker struct {
	resolver mx.Resolver
}

// NewDNSChecker creates a domain validator on top of r.
func NewDNSChecker(r mx.Resolver) *DNSChecker {
	return &DNSChecker{resolver: r}
}

func (c *DNSChecker) Check(ctx context.Context, email parse.Email) types.CheckResult {
	level := types.LevelDNS

	if !email.Valid {
		return types.CheckResult{Level: level, Passed: false, Reason: types.ReasonMalformed, Details: "skipped: no domain"}
	}

	records, err := c.resolver.LookupMX(ctx, email.Domain)
	if err != nil {
		return types.CheckResult{
			Level:   level,
			Passed:  false,
			Reason:  lookupReason(err),
			Details: fmt.Sprintf("MX lookup failed: %v", err),
		}
	}
	if len(records) == 0 {
		return types.CheckResult{Level: level, Passed: false, Reason: types.ReasonNoMX, Details: "no MX records found"}
	}

	mx.SortByPreference(records)
	return types.CheckResult{
		Level:   level,
		Passed:  true,
		Details: fmt.Sprintf("%d MX record(s) found", len(records)),
		MXHost:  mx.Host(records[0]),
	}
}

// lookupReason maps a resolver error to a failure reason.
func lookupReason(err error) types.Reason {
	switch {
	case errors.Is(err, context.Canceled):
		return types.ReasonCancelled
	case errors.Is(err, mx.ErrNoRecords):
		return types.ReasonNoMX
	case errors.Is(err, mx.ErrNXDomain):
		return types.ReasonNXDomain
	case errors.Is(err, mx.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return types.ReasonDNSTimeout
	default:
		return types.ReasonDNSFailure
	}
}

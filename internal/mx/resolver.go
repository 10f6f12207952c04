// Package mx resolves MX records and classifies lookup failures.
//
// Every Resolver in this package returns one of ErrNoRecords, ErrNXDomain
// or ErrTimeout (wrapped) for the failures callers need to tell apart, the
// caller's context error when the caller gave up, and any other error for
// remaining DNS faults.
package mx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"
)

var (
	// ErrNoRecords means the domain exists but publishes no MX record.
	ErrNoRecords = errors.New("mx: no MX records")
	// ErrNXDomain means the domain does not exist.
	ErrNXDomain = errors.New("mx: domain does not exist")
	// ErrTimeout means the lookup did not complete within its timeout.
	ErrTimeout = errors.New("mx: lookup timed out")
)

// Resolver looks up MX records for a domain.
type Resolver interface {
	LookupMX(ctx context.Context, domain string) ([]*net.MX, error)
}

// System resolves through the operating system's configured resolver.
type System struct {
	timeout  time.Duration
	resolver interface {
		LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	}
}

// NewSystem creates a resolver that bounds every lookup by timeout.
func NewSystem(timeout time.Duration) *System {
	return &System{timeout: timeout, resolver: &net.Resolver{}}
}

// NewSystemWithResolver creates a System backed by a custom resolver (for testing).
func NewSystemWithResolver(timeout time.Duration, r interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}) *System {
	s := NewSystem(timeout)
	s.resolver = r
	return s
}

// LookupMX implements Resolver.
//
// The standard library reports NXDOMAIN and "no MX answer" with the same
// not-found error, so both map to ErrNoRecords here. Use Client for an
// exact distinction.
func (s *System) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	records, err := s.resolver.LookupMX(lookupCtx, domain)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var dnsErr *net.DNSError
		switch {
		case errors.As(err, &dnsErr) && dnsErr.IsNotFound:
			return nil, fmt.Errorf("%w: %s", ErrNoRecords, domain)
		case errors.As(err, &dnsErr) && dnsErr.IsTimeout,
			errors.Is(lookupCtx.Err(), context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: %s", ErrTimeout, domain)
		}
		return nil, fmt.Errorf("mx: lookup %s: %w", domain, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRecords, domain)
	}
	return records, nil
}

// SortByPreference orders records lowest preference value first.
// Records with equal preference keep their resolver order.
func SortByPreference(records []*net.MX) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Pref < records[j].Pref
	})
}

// Host returns the exchange host name without its trailing dot.
func Host(record *net.MX) string {
	return strings.TrimSuffix(record.Host, ".")
}

package mx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// Client queries one nameserver directly, bypassing the system resolver.
// Unlike System it tells NXDOMAIN apart from a domain without MX records.
type Client struct {
	server  string
	timeout time.Duration
	client  *dns.Client
}

// NewClient creates a Client for server ("1.1.1.1" or "1.1.1.1:53").
func NewClient(server string, timeout time.Duration) *Client {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &Client{
		server:  server,
		timeout: timeout,
		client:  &dns.Client{Timeout: timeout},
	}
}

// LookupMX implements Resolver.
func (c *Client) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(domain), dns.TypeMX)

	in, _, err := c.client.ExchangeContext(lookupCtx, m, c.server)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, domain)
		}
		return nil, fmt.Errorf("mx: query %s at %s: %w", domain, c.server, err)
	}

	switch in.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, fmt.Errorf("%w: %s", ErrNXDomain, domain)
	default:
		return nil, fmt.Errorf("mx: query %s at %s: %s", domain, c.server, dns.RcodeToString[in.Rcode])
	}

	var records []*net.MX
	for _, rr := range in.Answer {
		if r, ok := rr.(*dns.MX); ok {
			records = append(records, &net.MX{Host: r.Mx, Pref: r.Preference})
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRecords, domain)
	}
	return records, nil
}

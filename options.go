package emailguess

import (
	"time"

	"github.com/optimode/emailguess/internal/smtpprobe"
)

// DNSOptions configures MX lookups for both the domain check and the probe.
type DNSOptions struct {
	// Timeout is the maximum time for one MX lookup. Default: 10s
	Timeout time.Duration
	// Nameserver queries this server directly ("1.1.1.1" or "1.1.1.1:53")
	// instead of the system resolver. Direct queries tell a missing domain
	// (nxdomain) apart from a domain without MX records (no_mx).
	Nameserver string
	// CacheTTL keeps MX answers for this long, shared by every candidate and
	// row. Default: 0 (every check queries DNS again)
	CacheTTL time.Duration
	// Resolver overrides the resolver entirely (for testing).
	Resolver Resolver
}

func defaultDNSOptions() DNSOptions {
	return DNSOptions{Timeout: 10 * time.Second}
}

// SMTPOptions configures the SMTP RCPT TO probe.
type SMTPOptions struct {
	// MailFrom is the address sent in the MAIL FROM command. Required, e.g. "verify@myapp.com"
	MailFrom string
	// HeloDomain is the domain sent in EHLO/HELO. Default: the MailFrom domain
	HeloDomain string
	// Port is the SMTP port. Default: 25
	Port string
	// Timeout bounds one whole SMTP session. Default: 10s
	Timeout time.Duration
	// MaxMXHosts is how many exchangers to try when connecting fails. Default: 1
	MaxMXHosts int
	// ResolverOrder probes the first MX record as returned by the resolver
	// instead of the most preferred one. Default: false
	ResolverOrder bool
	// ProxyURL tunnels SMTP connections through a SOCKS5 proxy,
	// e.g. "socks5://127.0.0.1:1080".
	ProxyURL string
	// ProbesPerSecond caps SMTP sessions started per second across all
	// workers. Default: 0 (unlimited)
	ProbesPerSecond float64
	// Dial is injectable for testing. Takes precedence over ProxyURL.
	Dial smtpprobe.DialFunc
}

func defaultSMTPOptions() SMTPOptions {
	return SMTPOptions{
		Port:       "25",
		Timeout:    10 * time.Second,
		MaxMXHosts: 1,
	}
}

// ConcurrencyOptions configures FindAll.
type ConcurrencyOptions struct {
	// Workers is the number of rows processed at once. Default: 1 (sequential)
	Workers int
	// OnRow is called after each row completes, with the row's input index.
	// Calls are serialized.
	OnRow func(index int, row RowResult)
}

package emailguess

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/optimode/emailguess/candidate"
	"github.com/optimode/emailguess/check"
	"github.com/optimode/emailguess/internal/mx"
	"github.com/optimode/emailguess/internal/parse"
	"github.com/optimode/emailguess/internal/smtpprobe"
	"github.com/optimode/emailguess/types"
)

// checker is the internal interface for all validation levels.
// Every check/ package type implements this.
type checker interface {
	Check(ctx context.Context, email parse.Email) types.CheckResult
}

// Finder is the main fluent builder struct.
// Instantiate with the New() function and configure the probe with WithSMTP.
type Finder struct {
	dnsOpts  DNSOptions
	smtpOpts *SMTPOptions
	syntax   bool
	log      logrus.FieldLogger
	err      error // configuration error, returned on Find()

	once     sync.Once
	buildErr error
	checkers []checker
}

// New creates a new Finder that checks MX records with the system resolver.
// WithSMTP must be called before Find.
func New() *Finder {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	return &Finder{
		dnsOpts: defaultDNSOptions(),
		log:     discard,
	}
}

// WithDNS overrides the default DNSOptions.
// The resolver is shared by the domain check and the SMTP probe.
func (f *Finder) WithDNS(opts DNSOptions) *Finder {
	if opts.Timeout < 0 || opts.CacheTTL < 0 {
		f.err = fmt.Errorf("%w: negative timeout or cache TTL", ErrInvalidDNSOptions)
		return f
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultDNSOptions().Timeout
	}
	f.dnsOpts = opts
	return f
}

// WithSMTP configures the RCPT TO probe. SMTPOptions.MailFrom is required.
func (f *Finder) WithSMTP(opts SMTPOptions) *Finder {
	mailDomain, ok := parse.Domain(opts.MailFrom)
	if !ok {
		f.err = fmt.Errorf("%w: MailFrom %q must be a full address", ErrInvalidSMTPOptions, opts.MailFrom)
		return f
	}
	if opts.Timeout < 0 || opts.MaxMXHosts < 0 || opts.ProbesPerSecond < 0 {
		f.err = fmt.Errorf("%w: negative timeout, MX host count or probe rate", ErrInvalidSMTPOptions)
		return f
	}

	// Apply defaults for unset values
	def := defaultSMTPOptions()
	if opts.HeloDomain == "" {
		opts.HeloDomain = mailDomain
	}
	if opts.Port == "" {
		opts.Port = def.Port
	}
	if opts.Timeout == 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxMXHosts == 0 {
		opts.MaxMXHosts = def.MaxMXHosts
	}
	f.smtpOpts = &opts
	return f
}

// WithSyntax rejects candidates with an unusable local part or domain
// before any network traffic (for example "mary ann@example.com").
func (f *Finder) WithSyntax() *Finder {
	f.syntax = true
	return f
}

// WithLogger sets the logger for per-candidate outcomes (debug) and
// matches (info). By default nothing is logged.
func (f *Finder) WithLogger(l logrus.FieldLogger) *Finder {
	if l != nil {
		f.log = l
	}
	return f
}

// Close releases resources held by the Finder.
// Every SMTP session is closed when its probe ends, so this is a no-op today.
// Safe to call multiple times.
func (f *Finder) Close() error {
	return nil
}

// build assembles the check pipeline on first use.
func (f *Finder) build() error {
	if f.err != nil {
		return f.err
	}
	f.once.Do(func() {
		f.checkers, f.buildErr = f.pipeline()
	})
	return f.buildErr
}

func (f *Finder) pipeline() ([]checker, error) {
	if f.smtpOpts == nil {
		return nil, ErrSMTPNotConfigured
	}
	opts := *f.smtpOpts

	resolver := f.dnsOpts.Resolver
	switch {
	case resolver != nil:
	case f.dnsOpts.Nameserver != "":
		resolver = mx.NewClient(f.dnsOpts.Nameserver, f.dnsOpts.Timeout)
	default:
		resolver = mx.NewSystem(f.dnsOpts.Timeout)
	}
	if f.dnsOpts.CacheTTL > 0 {
		resolver = mx.NewCache(resolver, f.dnsOpts.CacheTTL)
	}

	dial := opts.Dial
	if dial == nil && opts.ProxyURL != "" {
		d, err := smtpprobe.ProxyDialer(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSMTPOptions, err)
		}
		dial = d
	}
	prober := smtpprobe.New(smtpprobe.Config{
		HeloDomain: opts.HeloDomain,
		MailFrom:   opts.MailFrom,
		Port:       opts.Port,
		Timeout:    opts.Timeout,
		Dial:       dial,
	})

	var limiter *rate.Limiter
	if opts.ProbesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.ProbesPerSecond), 1)
	}

	var checkers []checker
	if f.syntax {
		checkers = append(checkers, check.NewSyntaxChecker())
	}
	checkers = append(checkers,
		check.NewDNSChecker(resolver),
		check.NewSMTPChecker(check.SMTPConfig{
			MaxMXHosts:    opts.MaxMXHosts,
			ResolverOrder: opts.ResolverOrder,
			Limiter:       limiter,
		}, resolver, prober),
	)
	return checkers, nil
}

// Find tries the candidate formats for p in order and returns the first one
// that passes every check. The pipeline short-circuits twice: a failed
// check skips the remaining checks for that candidate, and a match skips the
// remaining candidates.
//
// When no candidate matches, Email is empty and both DomainValid and
// EmailValid are false, even if the domain has MX records; Attempts tells
// the failures apart. The error is non-nil only for configuration errors or
// when ctx is done.
func (f *Finder) Find(ctx context.Context, p Person) (RowResult, error) {
	if err := f.build(); err != nil {
		return RowResult{}, err
	}

	row := RowResult{Domain: p.Domain}
	log := f.log.WithFields(logrus.Fields{"first": p.First, "last": p.Last, "domain": p.Domain})

	for _, addr := range candidate.Generate(p.First, p.Last, p.Domain) {
		if err := ctx.Err(); err != nil {
			return row, err
		}

		email := parse.NewEmail(addr)
		if !email.Valid {
			log.WithField("candidate", addr).Debug("skipped: no usable domain")
			continue
		}

		attempt := f.try(ctx, email, log)
		row.Attempts = append(row.Attempts, attempt)
		if attempt.Valid {
			row.Email = addr
			row.DomainValid = true
			row.EmailValid = true
			log.WithField("email", addr).Info("address found")
			return row, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return row, err
	}
	log.Debug("no candidate accepted")
	return row, nil
}

// try runs the check pipeline for one candidate.
func (f *Finder) try(ctx context.Context, email parse.Email, log logrus.FieldLogger) Attempt {
	attempt := Attempt{Email: email.Raw, Valid: true}
	for _, c := range f.checkers {
		cr := c.Check(ctx, email)
		attempt.Checks = append(attempt.Checks, cr)

		entry := log.WithFields(logrus.Fields{
			"candidate": email.Raw,
			"level":     cr.Level,
			"passed":    cr.Passed,
		})
		if cr.MXHost != "" {
			entry = entry.WithField("mx", cr.MXHost)
		}
		if cr.SMTPCode != 0 {
			entry = entry.WithField("code", cr.SMTPCode)
		}
		if !cr.Passed {
			entry.WithField("reason", cr.Reason).Debug(cr.Details)
			attempt.Valid = false
			return attempt
		}
		entry.Debug(cr.Details)
	}
	return attempt
}

// FindAll runs Find for every person. The result order matches the input
// slice order and matched addresses are lower-cased.
//
// Rows are processed one at a time unless ConcurrencyOptions.Workers is
// greater than one. Candidates within a row are always tried in order.
// If ctx is cancelled, FindAll stops starting new rows and returns the
// context error alongside the rows completed so far.
func (f *Finder) FindAll(ctx context.Context, people []Person, opts ...ConcurrencyOptions) ([]RowResult, error) {
	if err := f.build(); err != nil {
		return nil, err
	}

	o := ConcurrencyOptions{Workers: 1}
	if len(opts) > 0 {
		o = opts[0]
		if o.Workers <= 0 {
			o.Workers = 1
		}
	}

	results := make([]RowResult, len(people))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Workers)

	for i, p := range people {
		if gctx.Err() != nil {
			break
		}
		i, p := i, p
		g.Go(func() error {
			row, err := f.Find(gctx, p)
			if err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
			row.Email = strings.ToLower(row.Email)
			results[i] = row

			if o.OnRow != nil {
				mu.Lock()
				o.OnRow(i, row)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	// A cancellation that landed between rows never reached a worker.
	return results, ctx.Err()
}

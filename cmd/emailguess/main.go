// Command emailguess finds work email addresses for a list of people.
//
// Usage:
//
//	emailguess find --input people.csv --mail-from verify@myapp.com [--output out.xlsx]
//	emailguess guess --first john --last smith --domain example.com --mail-from verify@myapp.com
//	emailguess candidates --first john --last smith --domain example.com
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"github.com/optimode/emailguess"
	"github.com/optimode/emailguess/internal/config"
	"github.com/optimode/emailguess/internal/sheet"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}
	switch args[0] {
	case "find":
		return runFind(ctx, args[1:], stdout, stderr)
	case "guess":
		return runGuess(ctx, args[1:], stdout, stderr)
	case "candidates":
		return runCandidates(args[1:], stdout, stderr)
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "emailguess: unknown command %q\n\n", args[0])
		usage(stderr)
		return exitUsage
	}
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Usage: emailguess <command> [flags]

Commands:
  find        guess addresses for every row of a CSV or XLSX file
  guess       guess the address of one person and show every attempt
  candidates  list the addresses that would be probed, without network access
  help        show this help

Run "emailguess <command> -h" for the flags of a command.
Settings can also come from a YAML file (--config) or EMAILGUESS_* variables.
`)
}

// outputs collects repeated --output flags.
type outputs []string

func (o *outputs) String() string { return strings.Join(*o, ",") }

func (o *outputs) Set(v string) error {
	*o = append(*o, v)
	return nil
}

// settings binds the flags shared by find and guess. Only flags given on
// the command line override the loaded configuration.
type settings struct {
	fs         *flag.FlagSet
	configPath string
	flags      config.Config
}

func newSettings(fs *flag.FlagSet) *settings {
	s := &settings{fs: fs}
	def := config.Default()
	fs.StringVar(&s.configPath, "config", "", "YAML config file")
	fs.StringVar(&s.flags.MailFrom, "mail-from", "", "address sent in MAIL FROM (required)")
	fs.StringVar(&s.flags.HeloDomain, "helo", "", "domain sent in EHLO (default: mail-from domain)")
	fs.StringVar(&s.flags.SMTPPort, "port", def.SMTPPort, "SMTP port")
	fs.DurationVar(&s.flags.SMTPTimeout, "smtp-timeout", def.SMTPTimeout, "timeout for one SMTP session")
	fs.DurationVar(&s.flags.DNSTimeout, "dns-timeout", def.DNSTimeout, "timeout for one MX lookup")
	fs.StringVar(&s.flags.Nameserver, "nameserver", "", "query this DNS server directly, e.g. 1.1.1.1")
	fs.DurationVar(&s.flags.DNSCacheTTL, "dns-cache-ttl", 0, "cache MX answers for this long (0 disables)")
	fs.StringVar(&s.flags.ProxyURL, "proxy", "", "SOCKS5 proxy for SMTP, e.g. socks5://127.0.0.1:1080")
	fs.IntVar(&s.flags.MaxMXHosts, "max-mx", def.MaxMXHosts, "exchangers to try when connecting fails")
	fs.BoolVar(&s.flags.ResolverOrder, "resolver-order", false, "probe the first MX as returned instead of the most preferred")
	fs.Float64Var(&s.flags.ProbesPerSecond, "rate", 0, "max SMTP sessions per second (0 = unlimited)")
	fs.IntVar(&s.flags.Workers, "workers", def.Workers, "rows processed concurrently")
	fs.BoolVar(&s.flags.CheckSyntax, "syntax", false, "skip candidates with invalid syntax before probing")
	fs.StringVar(&s.flags.LogLevel, "log-level", def.LogLevel, "log level: debug|info|warn|error")
	fs.StringVar(&s.flags.LogFormat, "log-format", def.LogFormat, "log format: text|json")
	return s
}

// load returns the validated configuration with explicit flags applied.
func (s *settings) load() (config.Config, error) {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return cfg, err
	}
	s.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mail-from":
			cfg.MailFrom = s.flags.MailFrom
		case "helo":
			cfg.HeloDomain = s.flags.HeloDomain
		case "port":
			cfg.SMTPPort = s.flags.SMTPPort
		case "smtp-timeout":
			cfg.SMTPTimeout = s.flags.SMTPTimeout
		case "dns-timeout":
			cfg.DNSTimeout = s.flags.DNSTimeout
		case "nameserver":
			cfg.Nameserver = s.flags.Nameserver
		case "dns-cache-ttl":
			cfg.DNSCacheTTL = s.flags.DNSCacheTTL
		case "proxy":
			cfg.ProxyURL = s.flags.ProxyURL
		case "max-mx":
			cfg.MaxMXHosts = s.flags.MaxMXHosts
		case "resolver-order":
			cfg.ResolverOrder = s.flags.ResolverOrder
		case "rate":
			cfg.ProbesPerSecond = s.flags.ProbesPerSecond
		case "workers":
			cfg.Workers = s.flags.Workers
		case "syntax":
			cfg.CheckSyntax = s.flags.CheckSyntax
		case "log-level":
			cfg.LogLevel = s.flags.LogLevel
		case "log-format":
			cfg.LogFormat = s.flags.LogFormat
		}
	})
	return cfg, cfg.Validate()
}

// setup loads the configuration and builds the logger, printing any error.
func (s *settings) setup(stderr io.Writer) (config.Config, *logrus.Logger, bool) {
	cfg, err := s.load()
	if err != nil {
		fmt.Fprintf(stderr, "emailguess: %v\n", err)
		return cfg, nil, false
	}
	log, err := cfg.Logger()
	if err != nil {
		fmt.Fprintf(stderr, "emailguess: %v\n", err)
		return cfg, nil, false
	}
	log.SetOutput(stderr)
	return cfg, log, true
}

func runFind(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("find", flag.ContinueOnError)
	fs.SetOutput(stderr)
	s := newSettings(fs)
	input := fs.String("input", "", "CSV or XLSX file with first, last and domain columns (required)")
	format := fs.String("format", "table", "stdout format when no --output is given: table|csv|json")
	var outs outputs
	fs.Var(&outs, "output", "write results to this .csv, .xlsx or .json file (repeatable)")
	if code, ok := parse(fs, args); !ok {
		return code
	}

	if *input == "" {
		fmt.Fprintln(stderr, "emailguess find: --input is required")
		fs.Usage()
		return exitUsage
	}
	for _, o := range outs {
		if _, err := sheet.FormatFromPath(o); err != nil {
			fmt.Fprintf(stderr, "emailguess find: --output %s: %v\n", o, err)
			return exitUsage
		}
	}
	switch *format {
	case "table", "csv", "json":
	default:
		fmt.Fprintf(stderr, "emailguess find: unknown --format %q\n", *format)
		return exitUsage
	}

	cfg, log, ok := s.setup(stderr)
	if !ok {
		return exitUsage
	}

	people, err := sheet.ReadFile(*input)
	if err != nil {
		log.WithError(err).WithField("input", *input).Error("cannot read input")
		return exitFailure
	}
	log.WithField("rows", len(people)).Info("input loaded")

	finder := cfg.Finder(log)
	defer func() { _ = finder.Close() }()

	// Progress bar writes to stderr so stdout stays clean.
	bar := progressbar.NewOptions(len(people),
		progressbar.OptionSetWriter(stderr),
		progressbar.OptionSetDescription("probing"),
		progressbar.OptionShowCount(),
	)
	start := time.Now()
	results, err := finder.FindAll(ctx, people, emailguess.ConcurrencyOptions{
		Workers: cfg.Workers,
		OnRow:   func(int, emailguess.RowResult) { _ = bar.Add(1) },
	})
	fmt.Fprintln(stderr)
	if err != nil {
		log.WithError(err).Error("run aborted")
		if isConfigError(err) {
			return exitUsage
		}
		return exitFailure
	}

	found := 0
	for _, r := range results {
		if r.Found() {
			found++
		}
	}
	log.WithFields(logrus.Fields{
		"rows":     len(results),
		"found":    found,
		"duration": time.Since(start).Round(time.Millisecond).String(),
	}).Info("run complete")

	if len(outs) == 0 {
		if err := render(stdout, *format, results); err != nil {
			log.WithError(err).Error("cannot write results")
			return exitFailure
		}
		return exitOK
	}
	for _, o := range outs {
		if err := sheet.WriteFile(o, results); err != nil {
			log.WithError(err).WithField("output", o).Error("cannot write results")
			return exitFailure
		}
		log.WithField("output", o).Info("results written")
	}
	fmt.Fprintf(stderr, "%d of %d addresses found\n", found, len(results))
	return exitOK
}

func runGuess(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("guess", flag.ContinueOnError)
	fs.SetOutput(stderr)
	s := newSettings(fs)
	var p emailguess.Person
	fs.StringVar(&p.First, "first", "", "first name")
	fs.StringVar(&p.Last, "last", "", "last name")
	fs.StringVar(&p.Domain, "domain", "", "company domain (required)")
	format := fs.String("format", "table", "output format: table|json")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	if p.Domain == "" {
		fmt.Fprintln(stderr, "emailguess guess: --domain is required")
		fs.Usage()
		return exitUsage
	}
	if *format != "table" && *format != "json" {
		fmt.Fprintf(stderr, "emailguess guess: unknown --format %q\n", *format)
		return exitUsage
	}

	cfg, log, ok := s.setup(stderr)
	if !ok {
		return exitUsage
	}
	finder := cfg.Finder(log)
	defer func() { _ = finder.Close() }()

	row, err := finder.Find(ctx, p)
	if err != nil {
		log.WithError(err).Error("guess aborted")
		if isConfigError(err) {
			return exitUsage
		}
		return exitFailure
	}

	if *format == "json" {
		if err := writeJSON(stdout, row); err != nil {
			log.WithError(err).Error("cannot write result")
			return exitFailure
		}
		return exitOK
	}
	renderAttempts(stdout, row)
	return exitOK
}

func runCandidates(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("candidates", flag.ContinueOnError)
	fs.SetOutput(stderr)
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	domain := fs.String("domain", "", "company domain (required)")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	if *domain == "" {
		fmt.Fprintln(stderr, "emailguess candidates: --domain is required")
		fs.Usage()
		return exitUsage
	}
	renderCandidates(stdout, *first, *last, *domain)
	return exitOK
}

// parse parses args; ok is false when the command should exit with code.
func parse(fs *flag.FlagSet, args []string) (code int, ok bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK, false
		}
		return exitUsage, false
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(fs.Output(), "emailguess %s: unexpected argument %q\n", fs.Name(), fs.Arg(0))
		return exitUsage, false
	}
	return exitOK, true
}

func isConfigError(err error) bool {
	return errors.Is(err, emailguess.ErrSMTPNotConfigured) ||
		errors.Is(err, emailguess.ErrInvalidSMTPOptions) ||
		errors.Is(err, emailguess.ErrInvalidDNSOptions)
}

// Package config loads CLI settings from defaults, an optional YAML file,
// the environment (EMAILGUESS_*, with .env support) and finally flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/optimode/emailguess"
)

// EnvPrefix prefixes every environment variable, e.g. EMAILGUESS_MAIL_FROM.
const EnvPrefix = "EMAILGUESS_"

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid")

// Config holds every setting. YAML keys and environment names are the
// snake_case field names.
type Config struct {
	MailFrom        string        `yaml:"mail_from"`
	HeloDomain      string        `yaml:"helo_domain"`
	SMTPPort        string        `yaml:"smtp_port"`
	SMTPTimeout     time.Duration `yaml:"smtp_timeout"`
	DNSTimeout      time.Duration `yaml:"dns_timeout"`
	Nameserver      string        `yaml:"nameserver"`
	DNSCacheTTL     time.Duration `yaml:"dns_cache_ttl"`
	ProxyURL        string        `yaml:"proxy_url"`
	MaxMXHosts      int           `yaml:"max_mx_hosts"`
	ResolverOrder   bool          `yaml:"resolver_order"`
	ProbesPerSecond float64       `yaml:"probes_per_second"`
	Workers         int           `yaml:"workers"`
	CheckSyntax     bool          `yaml:"check_syntax"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
}

// Default returns the built-in settings. MailFrom has no default.
func Default() Config {
	return Config{
		SMTPPort:    "25",
		SMTPTimeout: 10 * time.Second,
		DNSTimeout:  10 * time.Second,
		MaxMXHosts:  1,
		Workers:     1,
		LogLevel:    "warn",
		LogFormat:   "text",
	}
}

// Load layers the YAML file at path (skipped when empty) and the
// environment over the defaults. Variables in envFiles (default ".env")
// are loaded first; missing env files are ignored. The result is not
// validated so flags can still be applied.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := cfg.decodeYAML(data); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := loadEnvFiles(envFiles...); err != nil {
		return cfg, err
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) decodeYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func loadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return nil
}

// applyEnv overrides fields from EMAILGUESS_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		return strings.TrimSpace(v), ok
	}
	str := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := get(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s%s: %v", ErrInvalid, EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s%s: %v", ErrInvalid, EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := get(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s%s: %v", ErrInvalid, EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	str("MAIL_FROM", &c.MailFrom)
	str("HELO_DOMAIN", &c.HeloDomain)
	str("SMTP_PORT", &c.SMTPPort)
	dur("SMTP_TIMEOUT", &c.SMTPTimeout)
	dur("DNS_TIMEOUT", &c.DNSTimeout)
	str("NAMESERVER", &c.Nameserver)
	dur("DNS_CACHE_TTL", &c.DNSCacheTTL)
	str("PROXY_URL", &c.ProxyURL)
	integer("MAX_MX_HOSTS", &c.MaxMXHosts)
	boolean("RESOLVER_ORDER", &c.ResolverOrder)
	if v, ok := get("PROBES_PER_SECOND"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %sPROBES_PER_SECOND: %v", ErrInvalid, EnvPrefix, err))
		} else {
			c.ProbesPerSecond = f
		}
	}
	integer("WORKERS", &c.Workers)
	boolean("CHECK_SYNTAX", &c.CheckSyntax)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)

	return errors.Join(errs...)
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.MailFrom == "" {
		fail("mail_from is required")
	} else if local, domain, ok := strings.Cut(c.MailFrom, "@"); !ok || local == "" || domain == "" {
		fail("mail_from %q is not an address", c.MailFrom)
	}
	if c.SMTPPort != "" {
		if p, err := strconv.Atoi(c.SMTPPort); err != nil || p < 1 || p > 65535 {
			fail("smtp_port %q is not a port number", c.SMTPPort)
		}
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"smtp_timeout", c.SMTPTimeout},
		{"dns_timeout", c.DNSTimeout},
		{"dns_cache_ttl", c.DNSCacheTTL},
	} {
		if d.value < 0 {
			fail("%s must not be negative", d.name)
		}
	}
	if c.MaxMXHosts < 0 {
		fail("max_mx_hosts must not be negative")
	}
	if c.ProbesPerSecond < 0 {
		fail("probes_per_second must not be negative")
	}
	if c.Workers < 0 {
		fail("workers must not be negative")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		fail("log_level: %v", err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		fail("log_format must be text or json, got %q", c.LogFormat)
	}
	return errors.Join(errs...)
}

// DNSOptions maps the settings onto the library options.
func (c Config) DNSOptions() emailguess.DNSOptions {
	return emailguess.DNSOptions{
		Timeout:    c.DNSTimeout,
		Nameserver: c.Nameserver,
		CacheTTL:   c.DNSCacheTTL,
	}
}

// SMTPOptions maps the settings onto the library options.
func (c Config) SMTPOptions() emailguess.SMTPOptions {
	return emailguess.SMTPOptions{
		MailFrom:        c.MailFrom,
		HeloDomain:      c.HeloDomain,
		Port:            c.SMTPPort,
		Timeout:         c.SMTPTimeout,
		MaxMXHosts:      c.MaxMXHosts,
		ResolverOrder:   c.ResolverOrder,
		ProxyURL:        c.ProxyURL,
		ProbesPerSecond: c.ProbesPerSecond,
	}
}

// Logger builds a logrus logger writing to stderr.
func (c Config) Logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: log_level: %v", ErrInvalid, err)
	}
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(level)
	if c.LogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l, nil
}

// Finder builds a Finder from the settings.
func (c Config) Finder(log logrus.FieldLogger) *emailguess.Finder {
	f := emailguess.New().
		WithDNS(c.DNSOptions()).
		WithSMTP(c.SMTPOptions()).
		WithLogger(log)
	if c.CheckSyntax {
		f = f.WithSyntax()
	}
	return f
}

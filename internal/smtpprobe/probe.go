// Package smtpprobe runs a single short-lived SMTP session that asks a mail
// exchanger whether it would accept a recipient, without sending a message.
//
// Each probe dials its own connection and closes it on every exit path,
// including cancellation of the caller's context.
package smtpprobe

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DialFunc opens the TCP connection to a mail exchanger.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Config configures the prober.
type Config struct {
	HeloDomain string
	MailFrom   string
	Port       string
	// Timeout bounds the whole session: connect, greeting and every command.
	Timeout time.Duration
	// Dial is injectable for testing. Defaults to a net.Dialer.
	Dial DialFunc
}

// Stage names the step of the session an error happened in.
type Stage string

const (
	StageConnect  Stage = "connect"
	StageGreeting Stage = "greeting"
	StageHello    Stage = "hello"
	StageMailFrom Stage = "mail from"
	StageRcptTo   Stage = "rcpt to"
)

// StageError records which step of the session failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return string(e.Stage) + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

// ReplyError is a well-formed reply whose code ended the session early.
type ReplyError struct {
	Code    int
	Message string
}

func (e *ReplyError) Error() string { return fmt.Sprintf("server replied %d %s", e.Code, e.Message) }

// ErrMalformedReply is returned for replies that do not follow RFC 5321 framing.
var ErrMalformedReply = errors.New("smtpprobe: malformed reply")

// Reply is the server's answer to RCPT TO.
type Reply struct {
	Code    int
	Message string
}

// Prober runs RCPT TO probes.
type Prober struct {
	cfg Config
}

// New creates a prober. Zero-valued fields get defaults: port 25, 10s timeout.
func New(cfg Config) *Prober {
	if cfg.Port == "" {
		cfg.Port = "25"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Dial == nil {
		cfg.Dial = (&net.Dialer{}).DialContext
	}
	return &Prober{cfg: cfg}
}

// Probe performs Banner → EHLO (or HELO) → MAIL FROM → RCPT TO → QUIT against
// mxHost and returns the RCPT TO reply. An error means the session ended
// before the server answered RCPT TO; it is always a *StageError.
func (p *Prober) Probe(ctx context.Context, mxHost, rcpt string) (Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	address := net.JoinHostPort(mxHost, p.cfg.Port)
	nc, err := p.cfg.Dial(ctx, "tcp", address)
	if err != nil {
		return Reply{}, withContext(ctx, &StageError{StageConnect, errors.Wrapf(err, "dial %s", address)})
	}
	defer func() { _ = nc.Close() }()

	// Unblock reads and writes as soon as the caller gives up.
	stop := context.AfterFunc(ctx, func() { _ = nc.SetDeadline(time.Now()) })
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		if err := nc.SetDeadline(deadline); err != nil {
			return Reply{}, &StageError{StageConnect, errors.Wrap(err, "set deadline")}
		}
	}

	s := &session{
		reader: bufio.NewReader(nc),
		writer: bufio.NewWriter(nc),
	}
	reply, err := s.run(p.cfg, rcpt)
	if err != nil {
		return Reply{}, withContext(ctx, err)
	}

	s.quit()
	return reply, nil
}

// withContext makes the context's error the cause of a failed stage once the
// context is done, so callers can tell cancellation from a slow server.
func withContext(ctx context.Context, err error) error {
	var se *StageError
	if ctx.Err() == nil || !errors.As(err, &se) {
		return err
	}
	return &StageError{se.Stage, errors.WithMessage(ctx.Err(), se.Err.Error())}
}

type session struct {
	reader *bufio.Reader
	writer *bufio.Writer
}

func (s *session) run(cfg Config, rcpt string) (Reply, error) {
	code, msg, err := readReply(s.reader)
	if err != nil {
		return Reply{}, &StageError{StageGreeting, errors.Wrap(err, "read banner")}
	}
	if code/100 != 2 {
		return Reply{}, &StageError{StageGreeting, &ReplyError{code, msg}}
	}

	code, msg, err = s.command("EHLO " + cfg.HeloDomain)
	if err == nil && code/100 == 5 {
		// Servers predating ESMTP reject EHLO; retry with plain HELO.
		code, msg, err = s.command("HELO " + cfg.HeloDomain)
	}
	if err != nil {
		return Reply{}, &StageError{StageHello, err}
	}
	if code/100 != 2 {
		return Reply{}, &StageError{StageHello, &ReplyError{code, msg}}
	}

	code, msg, err = s.command("MAIL FROM:<" + cfg.MailFrom + ">")
	if err != nil {
		return Reply{}, &StageError{StageMailFrom, err}
	}
	if code/100 != 2 {
		return Reply{}, &StageError{StageMailFrom, &ReplyError{code, msg}}
	}

	code, msg, err = s.command("RCPT TO:<" + rcpt + ">")
	if err != nil {
		return Reply{}, &StageError{StageRcptTo, err}
	}
	return Reply{Code: code, Message: msg}, nil
}

// command sends an SMTP command and reads the response.
func (s *session) command(line string) (int, string, error) {
	if _, err := s.writer.WriteString(line + "\r\n"); err != nil {
		return 0, "", errors.Wrapf(err, "write %s", verb(line))
	}
	if err := s.writer.Flush(); err != nil {
		return 0, "", errors.Wrapf(err, "write %s", verb(line))
	}
	code, msg, err := readReply(s.reader)
	if err != nil {
		return 0, "", errors.Wrapf(err, "read %s reply", verb(line))
	}
	return code, msg, nil
}

// quit sends QUIT within the remaining session budget (best-effort, ignores errors).
func (s *session) quit() {
	_, _, _ = s.command("QUIT")
}

func verb(line string) string {
	v, _, _ := strings.Cut(line, " ")
	if strings.HasPrefix(line, "MAIL FROM") || strings.HasPrefix(line, "RCPT TO") {
		v, _, _ = strings.Cut(line, ":")
	}
	return v
}

// readReply reads a (possibly multi-line) SMTP reply.
func readReply(r *bufio.Reader) (code int, full string, err error) {
	var lines []string
	for {
		line, readErr := r.ReadString('\n')
		if readErr != nil {
			return 0, "", errors.Wrap(readErr, "read SMTP reply")
		}
		line = strings.TrimRight(line, "\r\n")
		if len(line) < 3 {
			return 0, "", errors.Wrapf(ErrMalformedReply, "line too short: %q", line)
		}
		lines = append(lines, line)
		// If the 4th character is not '-', this is the last line
		if len(line) < 4 || line[3] != '-' {
			break
		}
	}

	last := lines[len(lines)-1]
	code, convErr := strconv.Atoi(last[:3])
	if convErr != nil || code < 200 || code > 599 {
		return 0, "", errors.Wrapf(ErrMalformedReply, "invalid code %q", last[:3])
	}
	return code, strings.Join(lines, " | "), nil
}

// Timeout reports whether err was caused by a deadline.
func Timeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

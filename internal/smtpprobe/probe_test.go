package smtpprobe_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimode/emailguess/internal/smtpprobe"
)

// fakeServer simulates an SMTP server on a net.Pipe connection and records
// the commands it received.
type fakeServer struct {
	banner    string
	responses map[string]string
	silent    bool // never send the banner

	mu       sync.Mutex
	commands []string
	closed   chan struct{}
}

func newFakeServer(responses map[string]string) *fakeServer {
	return &fakeServer{
		banner:    "220 mock.smtp ESMTP",
		responses: responses,
		closed:    make(chan struct{}),
	}
}

func (f *fakeServer) serve(server net.Conn) {
	defer close(f.closed)
	defer func() { _ = server.Close() }()

	if !f.silent {
		_, _ = fmt.Fprintf(server, "%s\r\n", f.banner)
	}

	buf := make([]byte, 4096)
	for {
		n, err := server.Read(buf)
		if err != nil {
			return
		}
		cmd := strings.TrimRight(string(buf[:n]), "\r\n")
		f.mu.Lock()
		f.commands = append(f.commands, cmd)
		f.mu.Unlock()

		if strings.HasPrefix(cmd, "QUIT") {
			_, _ = fmt.Fprintf(server, "221 Bye\r\n")
			return
		}
		for prefix, resp := range f.responses {
			if strings.HasPrefix(cmd, prefix) {
				_, _ = fmt.Fprintf(server, "%s\r\n", resp)
				break
			}
		}
	}
}

func (f *fakeServer) dial(_ context.Context, _, _ string) (net.Conn, error) {
	client, server := net.Pipe()
	go f.serve(server)
	return client, nil
}

func (f *fakeServer) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

func newProber(dial smtpprobe.DialFunc, timeout time.Duration) *smtpprobe.Prober {
	return smtpprobe.New(smtpprobe.Config{
		HeloDomain: "probe.test",
		MailFrom:   "verify@probe.test",
		Timeout:    timeout,
		Dial:       dial,
	})
}

var okResponses = map[string]string{
	"EHLO": "250-mock.smtp\r\n250 PIPELINING", "HELO": "250 OK",
	"MAIL FROM": "250 OK", "RCPT TO": "250 Accepted",
}

func TestProbe_Accepted(t *testing.T) {
	srv := newFakeServer(okResponses)
	p := newProber(srv.dial, 5*time.Second)

	reply, err := p.Probe(context.Background(), "mx.example.com", "john.smith@example.com")
	require.NoError(t, err)
	assert.Equal(t, 250, reply.Code)
	assert.Contains(t, reply.Message, "Accepted")

	<-srv.closed
	assert.Equal(t, []string{
		"EHLO probe.test",
		"MAIL FROM:<verify@probe.test>",
		"RCPT TO:<john.smith@example.com>",
		"QUIT",
	}, srv.received())
}

func TestProbe_RcptRejected(t *testing.T) {
	srv := newFakeServer(map[string]string{
		"EHLO": "250 OK", "MAIL FROM": "250 OK",
		"RCPT TO": "550 5.1.1 User unknown",
	})
	p := newProber(srv.dial, 5*time.Second)

	reply, err := p.Probe(context.Background(), "mx.example.com", "nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, 550, reply.Code)
}

func TestProbe_HeloFallback(t *testing.T) {
	srv := newFakeServer(map[string]string{
		"EHLO": "502 Command not implemented", "HELO": "250 OK",
		"MAIL FROM": "250 OK", "RCPT TO": "250 OK",
	})
	p := newProber(srv.dial, 5*time.Second)

	reply, err := p.Probe(context.Background(), "mx.example.com", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 250, reply.Code)

	<-srv.closed
	assert.Equal(t, "HELO probe.test", srv.received()[1])
}

func TestProbe_MailFromRefused(t *testing.T) {
	srv := newFakeServer(map[string]string{
		"EHLO": "250 OK", "MAIL FROM": "554 Sender blocked",
	})
	p := newProber(srv.dial, 5*time.Second)

	_, err := p.Probe(context.Background(), "mx.example.com", "a@example.com")
	var se *smtpprobe.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, smtpprobe.StageMailFrom, se.Stage)

	var re *smtpprobe.ReplyError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 554, re.Code)
}

func TestProbe_BannerRefused(t *testing.T) {
	srv := newFakeServer(nil)
	srv.banner = "554 No SMTP service here"
	p := newProber(srv.dial, 5*time.Second)

	_, err := p.Probe(context.Background(), "mx.example.com", "a@example.com")
	var se *smtpprobe.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, smtpprobe.StageGreeting, se.Stage)
}

func TestProbe_MalformedReply(t *testing.T) {
	srv := newFakeServer(map[string]string{"EHLO": "hello there"})
	p := newProber(srv.dial, 5*time.Second)

	_, err := p.Probe(context.Background(), "mx.example.com", "a@example.com")
	assert.ErrorIs(t, err, smtpprobe.ErrMalformedReply)
	assert.False(t, smtpprobe.Timeout(err))
}

func TestProbe_ConnectError(t *testing.T) {
	p := newProber(func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}, 5*time.Second)

	_, err := p.Probe(context.Background(), "mx.example.com", "a@example.com")
	var se *smtpprobe.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, smtpprobe.StageConnect, se.Stage)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestProbe_DialAddress(t *testing.T) {
	var got string
	p := smtpprobe.New(smtpprobe.Config{
		HeloDomain: "probe.test",
		MailFrom:   "verify@probe.test",
		Dial: func(_ context.Context, _, address string) (net.Conn, error) {
			got = address
			return nil, errors.New("stop")
		},
	})
	_, _ = p.Probe(context.Background(), "mx.example.com", "a@example.com")
	assert.Equal(t, "mx.example.com:25", got)
}

func TestProbe_SessionTimeout(t *testing.T) {
	srv := newFakeServer(nil)
	srv.silent = true
	p := newProber(srv.dial, 50*time.Millisecond)

	start := time.Now()
	_, err := p.Probe(context.Background(), "mx.example.com", "a@example.com")
	require.Error(t, err)
	assert.True(t, smtpprobe.Timeout(err), "got %v", err)
	assert.Less(t, time.Since(start), 2*time.Second)
	<-srv.closed // the client side was closed
}

func TestProbe_CallerCancellation(t *testing.T) {
	srv := newFakeServer(nil)
	srv.silent = true
	p := newProber(srv.dial, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := p.Probe(ctx, "mx.example.com", "a@example.com")
	assert.ErrorIs(t, err, context.Canceled)
	<-srv.closed
}

func TestProbe_QuitFailureKeepsResult(t *testing.T) {
	// The server hangs up right after answering RCPT TO.
	dial := func(context.Context, string, string) (net.Conn, error) {
		client, server := net.Pipe()
		go func() {
			defer func() { _ = server.Close() }()
			_, _ = fmt.Fprintf(server, "220 ready\r\n")
			buf := make([]byte, 512)
			for _, resp := range []string{"250 OK", "250 OK", "250 OK"} {
				if _, err := server.Read(buf); err != nil {
					return
				}
				_, _ = fmt.Fprintf(server, "%s\r\n", resp)
			}
		}()
		return client, nil
	}
	p := newProber(dial, 5*time.Second)

	reply, err := p.Probe(context.Background(), "mx.example.com", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 250, reply.Code)
}

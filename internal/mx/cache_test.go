package mx_test

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/optimode/emailguess/internal/mx"
)

// countingResolver tracks how many times LookupMX was called.
type countingResolver struct {
	records []*net.MX
	err     error
	delay   time.Duration
	calls   atomic.Int64
}

func (m *countingResolver) LookupMX(ctx context.Context, _ string) ([]*net.MX, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.records, m.err
}

func TestCache_BasicCaching(t *testing.T) {
	r := &countingResolver{records: []*net.MX{{Host: "mx.example.com.", Pref: 10}}}
	c := mx.NewCache(r, time.Minute)
	ctx := context.Background()

	recs, err := c.LookupMX(ctx, "example.com")
	assert.NoError(t, err)
	assert.Len(t, recs, 1)

	recs, err = c.LookupMX(ctx, "example.com")
	assert.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, int64(1), r.calls.Load())
}

func TestCache_DifferentDomains(t *testing.T) {
	r := &countingResolver{records: []*net.MX{{Host: "mx.test.", Pref: 10}}}
	c := mx.NewCache(r, time.Minute)

	_, _ = c.LookupMX(context.Background(), "a.com")
	_, _ = c.LookupMX(context.Background(), "b.com")
	assert.Equal(t, int64(2), r.calls.Load())
	assert.Equal(t, 2, c.Len())
}

func TestCache_TTLExpiry(t *testing.T) {
	r := &countingResolver{records: []*net.MX{{Host: "mx.test.", Pref: 10}}}
	c := mx.NewCache(r, 50*time.Millisecond)

	_, _ = c.LookupMX(context.Background(), "example.com")
	time.Sleep(100 * time.Millisecond)
	_, _ = c.LookupMX(context.Background(), "example.com")
	assert.Equal(t, int64(2), r.calls.Load())
}

func TestCache_Singleflight(t *testing.T) {
	r := &countingResolver{
		records: []*net.MX{{Host: "mx.test.", Pref: 10}},
		delay:   20 * time.Millisecond,
	}
	c := mx.NewCache(r, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recs, err := c.LookupMX(context.Background(), "example.com")
			assert.NoError(t, err)
			assert.Len(t, recs, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), r.calls.Load())
}

func TestCache_CachesAnswers(t *testing.T) {
	r := &countingResolver{err: mx.ErrNXDomain}
	c := mx.NewCache(r, time.Minute)

	_, err := c.LookupMX(context.Background(), "bad.com")
	assert.ErrorIs(t, err, mx.ErrNXDomain)
	_, err = c.LookupMX(context.Background(), "bad.com")
	assert.ErrorIs(t, err, mx.ErrNXDomain)
	assert.Equal(t, int64(1), r.calls.Load())
}

func TestCache_DoesNotKeepCancelledLookups(t *testing.T) {
	r := &countingResolver{
		records: []*net.MX{{Host: "mx.test.", Pref: 10}},
		delay:   time.Second,
	}
	c := mx.NewCache(r, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.LookupMX(ctx, "example.com")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, c.Len())
}

func TestCache_ReturnsCopy(t *testing.T) {
	r := &countingResolver{records: []*net.MX{{Host: "mx2.", Pref: 20}, {Host: "mx1.", Pref: 10}}}
	c := mx.NewCache(r, time.Minute)

	recs1, _ := c.LookupMX(context.Background(), "example.com")
	recs2, _ := c.LookupMX(context.Background(), "example.com")

	mx.SortByPreference(recs1)
	assert.Equal(t, "mx2.", recs2[0].Host)
	assert.Equal(t, "mx1.", recs1[0].Host)
}

func TestCache_DoesNotKeepTimeouts(t *testing.T) {
	r := &countingResolver{err: fmt.Errorf("%w: example.com", mx.ErrTimeout)}
	c := mx.NewCache(r, time.Minute)

	_, err := c.LookupMX(context.Background(), "example.com")
	assert.ErrorIs(t, err, mx.ErrTimeout)
	assert.Equal(t, 0, c.Len())

	r.err = nil
	r.records = []*net.MX{{Host: "mx.test.", Pref: 10}}
	recs, err := c.LookupMX(context.Background(), "example.com")
	assert.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, int64(2), r.calls.Load())
}

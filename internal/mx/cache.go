package mx

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"
)

// Cache wraps a Resolver with a TTL cache shared by all callers.
// Concurrent lookups for the same domain are deduplicated:
// only one actual DNS query is performed, and all waiters receive the result.
// Definitive failures (no records, NXDOMAIN) are cached too. Timeouts and
// lookups abandoned by their caller are not kept.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	ttl      time.Duration
	resolver Resolver
}

type entry struct {
	records []*net.MX
	err     error
	expires time.Time
	done    chan struct{} // closed when lookup is complete
}

// NewCache creates a cache in front of r that keeps answers for ttl.
func NewCache(r Resolver, ttl time.Duration) *Cache {
	return &Cache{
		entries:  make(map[string]*entry),
		ttl:      ttl,
		resolver: r,
	}
}

// LookupMX implements Resolver.
func (c *Cache) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	for {
		c.mu.Lock()
		e, ok := c.entries[domain]
		if ok {
			select {
			case <-e.done:
				if time.Now().Before(e.expires) {
					c.mu.Unlock()
					return copyMX(e.records), e.err
				}
				// Expired, fall through to refresh
			default:
				// Lookup in progress - wait for it
				c.mu.Unlock()
				select {
				case <-e.done:
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				if isAbandoned(e.err) {
					continue
				}
				return copyMX(e.records), e.err
			}
		}

		e = &entry{done: make(chan struct{})}
		c.entries[domain] = e
		c.mu.Unlock()

		e.records, e.err = c.resolver.LookupMX(ctx, domain)
		e.expires = time.Now().Add(c.ttl)
		if !keep(e.err) {
			c.mu.Lock()
			if c.entries[domain] == e {
				delete(c.entries, domain)
			}
			c.mu.Unlock()
		}
		close(e.done)

		return copyMX(e.records), e.err
	}
}

// Len returns the number of entries in the cache (for diagnostics).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// keep reports whether a lookup result may be served from the cache.
func keep(err error) bool {
	return !isAbandoned(err) && !errors.Is(err, ErrTimeout)
}

// isAbandoned reports whether err is a caller's context error rather than
// an answer worth keeping.
func isAbandoned(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// copyMX returns a deep copy of MX records so callers can sort them freely.
func copyMX(records []*net.MX) []*net.MX {
	if records == nil {
		return nil
	}
	out := make([]*net.MX, len(records))
	for i, r := range records {
		cp := *r
		out[i] = &cp
	}
	return out
}

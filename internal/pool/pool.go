// Package pool implements a bounded connection pool over a serverset.ServerSet:
// check-out/release with release-time and idle health checks, background
// idle eviction, and per-state statistics.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/oba-ldap/oba/internal/conn"
	"github.com/oba-ldap/oba/internal/ldaperr"
	"github.com/oba-ldap/oba/internal/serverset"
)

// Stats accumulates counts for every state transition a connection in the
// pool can go through, for caller observability.
type Stats struct {
	TotalCreated        int64
	FailedToCreate      int64
	SuccessfulCheckouts int64
	FailedCheckouts     int64
	ReleasedAsDefunct   int64
	ClosedDefunct       int64
	ClosedExpired       int64
}

// Config bounds and tunes a Pool.
type Config struct {
	InitialSize  int
	MaxSize      int
	IdleInterval time.Duration
}

const defaultIdleInterval = 30 * time.Second

// Pool is a bounded set of connections obtained from a ServerSet. Safe for
// concurrent use by many borrowers.
type Pool struct {
	set     serverset.ServerSet
	opts    conn.Options
	hc      *serverset.HealthCheck
	initial int
	max     int

	mu        sync.Mutex
	available []*conn.Conn
	total     int
	closed    bool
	notifyCh  chan struct{}
	stats     Stats

	stopIdle chan struct{}
	idleDone chan struct{}
}

// New creates a Pool and synchronously fills it to Config.InitialSize.
// Fill errors are recorded in Stats but do not fail New; a caller that
// wants a hard failure should inspect Stats().FailedToCreate afterward.
func New(ctx context.Context, set serverset.ServerSet, opts conn.Options, hc *serverset.HealthCheck, cfg Config) *Pool {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1
	}
	if cfg.InitialSize > cfg.MaxSize {
		cfg.InitialSize = cfg.MaxSize
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = defaultIdleInterval
	}

	p := &Pool{
		set:      set,
		opts:     opts,
		hc:       hc,
		initial:  cfg.InitialSize,
		max:      cfg.MaxSize,
		notifyCh: make(chan struct{}),
		stopIdle: make(chan struct{}),
		idleDone: make(chan struct{}),
	}

	for i := 0; i < cfg.InitialSize; i++ {
		c, err := set.GetConnection(ctx, opts, hc)
		if err != nil {
			p.stats.FailedToCreate++
			continue
		}
		p.stats.TotalCreated++
		p.total++
		p.available = append(p.available, c)
	}

	go p.runIdleChecks(cfg.IdleInterval)

	return p
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Checkout returns an available connection, creating one if the pool is
// below max, or blocks until one is released or ctx is done.
func (p *Pool) Checkout(ctx context.Context) (*conn.Conn, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ldaperr.LocalError("pool is closed", nil)
		}

		if n := len(p.available); n > 0 {
			c := p.available[n-1]
			p.available = p.available[:n-1]
			p.mu.Unlock()

			if err := p.hc.RunCheckoutCheck(c); err != nil {
				_ = c.Close()
				p.mu.Lock()
				p.total--
				p.stats.ReleasedAsDefunct++
				p.stats.ClosedDefunct++
				p.replenishLocked()
				p.notifyLocked()
				p.mu.Unlock()
				continue
			}

			p.mu.Lock()
			p.stats.SuccessfulCheckouts++
			p.mu.Unlock()
			return c, nil
		}

		if p.total < p.max {
			p.total++
			p.mu.Unlock()

			c, err := p.set.GetConnection(ctx, p.opts, p.hc)
			if err != nil {
				p.mu.Lock()
				p.total--
				p.stats.FailedToCreate++
				p.stats.FailedCheckouts++
				p.mu.Unlock()
				return nil, err
			}

			p.mu.Lock()
			p.stats.TotalCreated++
			p.stats.SuccessfulCheckouts++
			p.mu.Unlock()
			return c, nil
		}

		waitCh := p.notifyCh
		p.mu.Unlock()

		select {
		case <-waitCh:
			continue
		case <-ctx.Done():
			p.mu.Lock()
			p.stats.FailedCheckouts++
			p.mu.Unlock()
			return nil, ldaperr.TimeoutError("pool checkout timed out")
		}
	}
}

// Release returns c to the pool after running the release-time health
// check. A failing check destroys c and, if the pool has fallen below
// its initial size, triggers an asynchronous replacement.
func (p *Pool) Release(c *conn.Conn) {
	err := p.hc.RunReleaseCheck(c)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		_ = c.Close()
		p.total--
		p.stats.ReleasedAsDefunct++
		p.stats.ClosedDefunct++
		p.replenishLocked()
		p.notifyLocked()
		return
	}

	p.available = append(p.available, c)
	p.notifyLocked()
}

// Close stops the idle-check goroutine and closes every available
// connection. Outstanding checked-out connections are the caller's
// responsibility to release or close directly.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	toClose := p.available
	p.available = nil
	p.notifyLocked()
	p.mu.Unlock()

	close(p.stopIdle)
	<-p.idleDone

	for _, c := range toClose {
		_ = c.Close()
	}
}

// notifyLocked wakes every Checkout waiter. Must be called with mu held.
func (p *Pool) notifyLocked() {
	close(p.notifyCh)
	p.notifyCh = make(chan struct{})
}

// replenishLocked starts an asynchronous dial if the pool has fallen
// below InitialSize. Must be called with mu held.
func (p *Pool) replenishLocked() {
	if p.total >= p.initial || p.closed {
		return
	}
	p.total++

	go func() {
		c, err := p.set.GetConnection(context.Background(), p.opts, p.hc)

		p.mu.Lock()
		defer p.mu.Unlock()
		if err != nil {
			p.total--
			p.stats.FailedToCreate++
			p.notifyLocked()
			return
		}
		p.stats.TotalCreated++
		p.available = append(p.available, c)
		p.notifyLocked()
	}()
}

func (p *Pool) runIdleChecks(interval time.Duration) {
	defer close(p.idleDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopIdle:
			return
		case <-ticker.C:
			p.checkIdleOnce()
		}
	}
}

func (p *Pool) checkIdleOnce() {
	p.mu.Lock()
	snapshot := append([]*conn.Conn(nil), p.available...)
	p.mu.Unlock()

	for _, c := range snapshot {
		if err := p.hc.RunContinuedUseCheck(c); err == nil {
			continue
		}

		p.mu.Lock()
		for i, a := range p.available {
			if a == c {
				p.available = append(p.available[:i], p.available[i+1:]...)
				break
			}
		}
		p.total--
		p.stats.ClosedExpired++
		p.replenishLocked()
		p.notifyLocked()
		p.mu.Unlock()

		_ = c.Close()
	}
}

// Package serverset implements the three address-selection strategies a
// client chooses a connection target from: single, round-robin, and
// failover.
package serverset

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"

	"github.com/oba-ldap/oba/internal/conn"
	"github.com/oba-ldap/oba/internal/ldaperr"
)

// Address is one candidate LDAP server.
type Address struct {
	Host string
	Port int
}

func (a Address) String() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// HealthCheck is run at the points spec.md §4.5 names: a fresh dial, a
// pool checkout, a pool release, and continued use of an idle
// connection. Any hook returning an error causes the caller to discard
// and replace the connection. PostConnect runs once, immediately after a
// successful dial, for setup that must happen before any caller sees the
// connection (for example, a StartTLS extended operation before bind).
type HealthCheck struct {
	PostConnect                func(c *conn.Conn) error
	EnsureNewConnectionValid   func(c *conn.Conn) error
	EnsureValidForCheckout     func(c *conn.Conn) error
	EnsureValidForRelease      func(c *conn.Conn) error
	EnsureValidForContinuedUse func(c *conn.Conn) error
}

func (h *HealthCheck) runPostConnect(c *conn.Conn) error {
	if h == nil || h.PostConnect == nil {
		return nil
	}
	return h.PostConnect(c)
}

func (h *HealthCheck) runNewConnectionCheck(c *conn.Conn) error {
	if h == nil || h.EnsureNewConnectionValid == nil {
		return nil
	}
	return h.EnsureNewConnectionValid(c)
}

// RunCheckoutCheck runs the checkout-time health hook, if configured.
func (h *HealthCheck) RunCheckoutCheck(c *conn.Conn) error {
	if h == nil || h.EnsureValidForCheckout == nil {
		return nil
	}
	return h.EnsureValidForCheckout(c)
}

// RunReleaseCheck runs the release-time health hook, if configured.
func (h *HealthCheck) RunReleaseCheck(c *conn.Conn) error {
	if h == nil || h.EnsureValidForRelease == nil {
		return nil
	}
	return h.EnsureValidForRelease(c)
}

// RunContinuedUseCheck runs the idle health hook, if configured.
func (h *HealthCheck) RunContinuedUseCheck(c *conn.Conn) error {
	if h == nil || h.EnsureValidForContinuedUse == nil {
		return nil
	}
	return h.EnsureValidForContinuedUse(c)
}

// StartTLSPostConnect returns a PostConnect hook that upgrades each new
// plaintext connection with the StartTLS extended operation before any
// caller (or bind) sees it.
func StartTLSPostConnect(tlsConfig *tls.Config) func(c *conn.Conn) error {
	return func(c *conn.Conn) error {
		return c.StartTLS(context.Background(), tlsConfig)
	}
}

// ServerSet is a polymorphic source of connections: get-connection with an
// optional health check, returning a fresh Connection or an error.
type ServerSet interface {
	GetConnection(ctx context.Context, opts conn.Options, hc *HealthCheck) (*conn.Conn, error)
}

func dialAndCheck(ctx context.Context, addr Address, opts conn.Options, hc *HealthCheck) (*conn.Conn, error) {
	c, err := conn.Dial(ctx, "tcp", addr.String(), opts)
	if err != nil {
		return nil, err
	}
	if err := hc.runPostConnect(c); err != nil {
		_ = c.Close()
		return nil, err
	}
	if err := hc.runNewConnectionCheck(c); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Single always dials the one configured address.
type Single struct {
	Address Address
}

// GetConnection implements ServerSet.
func (s *Single) GetConnection(ctx context.Context, opts conn.Options, hc *HealthCheck) (*conn.Conn, error) {
	return dialAndCheck(ctx, s.Address, opts, hc)
}

// RoundRobin cycles through an ordered list of addresses. One mutex
// serializes the whole of GetConnection — cursor read, advance, and the
// server-selection dial attempts — so concurrent callers see a strict
// rotation and weaker cursor-only atomicity never arises. Serializing
// across the dials trades throughput for the strict guarantee; callers
// that need parallel dials put a pool in front of the set.
type RoundRobin struct {
	Addresses []Address

	mu     sync.Mutex
	cursor int
}

// GetConnection implements ServerSet. It advances the cursor modulo the
// list size, attempts that server, and on failure scans forward over the
// remaining slots once before returning the last observed error.
func (r *RoundRobin) GetConnection(ctx context.Context, opts conn.Options, hc *HealthCheck) (*conn.Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.Addresses) == 0 {
		return nil, ldaperr.LocalError("round-robin server set has no addresses", nil)
	}
	start := r.cursor
	r.cursor = (r.cursor + 1) % len(r.Addresses)

	var lastErr error
	for i := 0; i < len(r.Addresses); i++ {
		addr := r.Addresses[(start+i)%len(r.Addresses)]
		c, err := dialAndCheck(ctx, addr, opts, hc)
		if err == nil {
			return c, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// Failover always starts at the head of the list and walks forward until
// one address succeeds or all have been tried.
type Failover struct {
	Addresses []Address
}

// GetConnection implements ServerSet.
func (f *Failover) GetConnection(ctx context.Context, opts conn.Options, hc *HealthCheck) (*conn.Conn, error) {
	if len(f.Addresses) == 0 {
		return nil, ldaperr.LocalError("failover server set has no addresses", nil)
	}

	var lastErr error
	for _, addr := range f.Addresses {
		c, err := dialAndCheck(ctx, addr, opts, hc)
		if err == nil {
			return c, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

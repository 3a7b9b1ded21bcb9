package pool

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oba-ldap/oba/internal/conn"
	"github.com/oba-ldap/oba/internal/serverset"
)

// stubSet dials a single fixed in-process listener on every GetConnection
// call, so a pool under test can create as many connections as it likes
// without touching the network beyond loopback.
type stubSet struct {
	addr   string
	dialed int64
	mu     sync.Mutex
}

func newStubSet(t *testing.T) *stubSet {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				buf := make([]byte, 1)
				for {
					if _, err := c.Read(buf); err != nil {
						c.Close()
						return
					}
				}
			}(c)
		}
	}()

	return &stubSet{addr: ln.Addr().String()}
}

func (s *stubSet) GetConnection(ctx context.Context, opts conn.Options, hc *serverset.HealthCheck) (*conn.Conn, error) {
	s.mu.Lock()
	s.dialed++
	s.mu.Unlock()
	return conn.Dial(ctx, "tcp", s.addr, opts)
}

func testOpts() conn.Options {
	o := conn.DefaultOptions()
	o.ConnectTimeout = 500 * time.Millisecond
	return o
}

func TestPoolFillsToInitialSize(t *testing.T) {
	set := newStubSet(t)
	p := New(context.Background(), set, testOpts(), nil, Config{InitialSize: 2, MaxSize: 4})
	defer p.Close()

	stats := p.Stats()
	require.Equal(t, int64(2), stats.TotalCreated)
}

func TestPoolCheckoutReleaseReusesConnection(t *testing.T) {
	set := newStubSet(t)
	p := New(context.Background(), set, testOpts(), nil, Config{InitialSize: 1, MaxSize: 2})
	defer p.Close()

	c, err := p.Checkout(context.Background())
	require.NoError(t, err)
	p.Release(c)

	c2, err := p.Checkout(context.Background())
	require.NoError(t, err)
	require.Same(t, c, c2)
	p.Release(c2)

	require.Equal(t, int64(1), set.dialed)
}

func TestPoolCheckoutBlocksUntilRelease(t *testing.T) {
	set := newStubSet(t)
	p := New(context.Background(), set, testOpts(), nil, Config{InitialSize: 0, MaxSize: 1})
	defer p.Close()

	c1, err := p.Checkout(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = p.Checkout(ctx)
	require.Error(t, err, "checkout should time out while the only connection is held")

	p.Release(c1)

	c2, err := p.Checkout(context.Background())
	require.NoError(t, err)
	p.Release(c2)
}

func TestPoolReleaseDiscardsOnFailedHealthCheck(t *testing.T) {
	set := newStubSet(t)
	hc := &serverset.HealthCheck{
		EnsureValidForRelease: func(c *conn.Conn) error {
			return errors.New("connection defunct")
		},
	}
	p := New(context.Background(), set, testOpts(), hc, Config{InitialSize: 1, MaxSize: 1})
	defer p.Close()

	c, err := p.Checkout(context.Background())
	require.NoError(t, err)
	p.Release(c)

	// Replenishment happens asynchronously; give it a moment.
	require.Eventually(t, func() bool {
		return p.Stats().ClosedDefunct >= 1
	}, time.Second, 10*time.Millisecond)
}

func TestStatsTracksFailedCheckouts(t *testing.T) {
	set := newStubSet(t)
	p := New(context.Background(), set, testOpts(), nil, Config{InitialSize: 0, MaxSize: 1})
	defer p.Close()

	c1, err := p.Checkout(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Checkout(ctx)
	require.Error(t, err)

	require.Equal(t, int64(1), p.Stats().FailedCheckouts)
	p.Release(c1)
}

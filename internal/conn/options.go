package conn

import (
	"context"
	"net"
	"time"
)

// defaults per the external interface's option table.
const (
	DefaultConnectTimeout   = 60 * time.Second
	DefaultResponseTimeout  = 300 * time.Second
	DefaultMaxMessageSize   = 20 * 1024 * 1024
	DefaultReferralHopLimit = 5
	DefaultLingerTimeout    = 5 * time.Second
)

// Options configures a single connection's socket behavior, timeouts, and
// operating mode. Options are immutable for the lifetime of a Conn;
// UseSynchronousMode in particular must be set before Dial. Start from
// DefaultOptions to get the documented defaults; a zero Options leaves
// every boolean toggle off, and Dial fills in only the timeouts and
// limits whose zero value is unusable.
type Options struct {
	// AutoReconnect transparently reopens the socket before the next
	// outbound request after an unexpected close. It never resumes a
	// request that was in flight when the connection dropped.
	AutoReconnect bool

	// FollowReferrals rebuilds and retries a request against a referral
	// URL when a result carries the referral result code.
	FollowReferrals bool

	// ReferralHopLimit caps how many referral hops a single logical
	// request may follow before surfacing a referral error.
	ReferralHopLimit int

	// UseKeepAlive sets SO_KEEPALIVE on new sockets.
	UseKeepAlive bool

	// UseTCPNoDelay disables Nagle's algorithm on new sockets.
	UseTCPNoDelay bool

	// UseReuseAddress sets SO_REUSEADDR on the outbound socket before
	// connecting, letting a client rebind a local port still in
	// TIME_WAIT from a previous connection to the same server.
	UseReuseAddress bool

	// UseLinger enables SO_LINGER with LingerTimeout on close.
	UseLinger     bool
	LingerTimeout time.Duration

	// ConnectTimeout caps TCP connection establishment only.
	ConnectTimeout time.Duration

	// ResponseTimeout is the default per-operation response wait, used
	// when a request is issued without an explicit deadline.
	ResponseTimeout time.Duration

	// MaxMessageSize caps an inbound frame's declared length. A frame
	// exceeding this terminates the connection with a decode error.
	MaxMessageSize int

	// UseSynchronousMode collapses the reader and sender onto the
	// caller's goroutine: only one outstanding operation is allowed at a
	// time, and a second concurrent attempt fails with a local error.
	// Must be set before Dial.
	UseSynchronousMode bool

	// BindDNRequiresPassword rejects simple binds that carry a non-empty
	// DN with an empty password, guarding against unintended anonymous
	// binds that succeed as the named identity on some servers.
	BindDNRequiresPassword bool

	// DialContext, if set, replaces the default *net.Dialer for TCP
	// establishment. A server-set connector that must traverse a SOCKS
	// or HTTP proxy (golang.org/x/net/proxy) supplies one here instead
	// of dialing the directory server directly; ConnectTimeout still
	// bounds the call via ctx.
	DialContext func(ctx context.Context, network, address string) (net.Conn, error)
}

// DefaultOptions returns the option set used when a caller supplies none,
// matching the external interface's documented defaults.
func DefaultOptions() Options {
	return Options{
		AutoReconnect:          false,
		FollowReferrals:        false,
		ReferralHopLimit:       DefaultReferralHopLimit,
		UseKeepAlive:           true,
		UseTCPNoDelay:          true,
		UseReuseAddress:        true,
		UseLinger:              true,
		LingerTimeout:          DefaultLingerTimeout,
		ConnectTimeout:         DefaultConnectTimeout,
		ResponseTimeout:        DefaultResponseTimeout,
		MaxMessageSize:         DefaultMaxMessageSize,
		UseSynchronousMode:     false,
		BindDNRequiresPassword: true,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ReferralHopLimit == 0 {
		o.ReferralHopLimit = d.ReferralHopLimit
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = d.ConnectTimeout
	}
	if o.ResponseTimeout == 0 {
		o.ResponseTimeout = d.ResponseTimeout
	}
	if o.MaxMessageSize == 0 {
		o.MaxMessageSize = d.MaxMessageSize
	}
	if o.LingerTimeout == 0 {
		o.LingerTimeout = d.LingerTimeout
	}
	return o
}

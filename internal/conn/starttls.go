package conn

import (
	"context"
	"crypto/tls"

	"github.com/oba-ldap/oba/internal/ldap"
	"github.com/oba-ldap/oba/internal/ldaperr"
)

// StartTLS issues the StartTLS extended operation and, on success, wraps
// the socket in TLS. It must be called with no other operations in
// flight — typically immediately after connect, before any bind — since
// the reader is quiesced across the socket upgrade. After an
// auto-reconnect the new socket is plaintext again; redoing StartTLS
// (for example from a server set's post-connect hook) is the caller's
// responsibility, like rebinding.
func (c *Conn) StartTLS(ctx context.Context, tlsConfig *tls.Config) error {
	if tlsConfig == nil {
		return ldaperr.LocalError("StartTLS requires a TLS config", nil)
	}

	c.mu.Lock()
	if c.state != StateOpen {
		reason, cause := c.reason, c.reasonErr
		c.mu.Unlock()
		return ldaperr.ServerDownError(reason.String(), cause)
	}
	if _, ok := c.netConn.(*tls.Conn); ok {
		c.mu.Unlock()
		return ldaperr.LocalError("connection is already TLS", nil)
	}
	c.tlsPending = true
	readerDone := c.readerDone
	c.mu.Unlock()

	_, opErr := c.Extended(ctx, &ldap.ExtendedRequest{Name: ldap.OIDStartTLS})

	// The reader exits after dispatching the extended response, success
	// or refusal, so the TLS handshake bytes that follow a success are
	// never consumed as LDAP framing. Wait for it before touching the
	// socket.
	if !c.opts.UseSynchronousMode {
		waitCtx := ctx
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			waitCtx, cancel = context.WithTimeout(ctx, c.opts.ResponseTimeout)
			defer cancel()
		}
		select {
		case <-readerDone:
		case <-waitCtx.Done():
			c.clearTLSPending()
			c.fail(ReasonLocalProblem, waitCtx.Err())
			return ldaperr.TimeoutError("StartTLS reader quiesce timeout")
		}
	}

	if opErr != nil {
		// Refused (or the connection died): resume plaintext reading if
		// the connection is still open.
		c.mu.Lock()
		c.tlsPending = false
		nc, open := c.netConn, c.state == StateOpen
		c.mu.Unlock()
		if open && !c.opts.UseSynchronousMode {
			c.startReader(nc)
		}
		return opErr
	}

	c.mu.Lock()
	tlsConn := tls.Client(c.netConn, tlsConfig)
	c.netConn = tlsConn
	c.tlsPending = false
	c.mu.Unlock()

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		c.failConn(tlsConn, ReasonIOError, err)
		return ldaperr.IOError("TLS handshake", err)
	}

	if !c.opts.UseSynchronousMode {
		c.startReader(tlsConn)
	}
	return nil
}

func (c *Conn) clearTLSPending() {
	c.mu.Lock()
	c.tlsPending = false
	c.mu.Unlock()
}

// tlsQuiesce reports whether the reader should exit after the extended
// response it just dispatched, because a StartTLS upgrade is waiting for
// exclusive socket access.
func (c *Conn) tlsQuiesce() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tlsPending
}

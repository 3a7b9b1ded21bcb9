// Package conn implements the client's per-socket connection runtime: one
// reader goroutine framing and dispatching inbound messages, many callers
// allocating message ids and writing requests under a short send lock.
package conn

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/oba-ldap/oba/internal/ber"
	"github.com/oba-ldap/oba/internal/ldap"
	"github.com/oba-ldap/oba/internal/ldaperr"
	"github.com/oba-ldap/oba/internal/logging"
)

// NotificationHandler is invoked when an unsolicited notification
// (an ExtendedResponse with message id 0) arrives.
type NotificationHandler func(resp *ldap.ExtendedResponse)

// DisconnectHandler is invoked once, exactly when a Conn leaves
// StateOpen, with the reason it closed.
type DisconnectHandler func(reason DisconnectReason, err error)

// Conn is a single LDAP socket: one dedicated reader, any number of
// concurrent writers (unless UseSynchronousMode is set).
type Conn struct {
	id     uuid.UUID
	opts   Options
	logger logging.Logger

	// dial parameters, kept for AutoReconnect redials.
	network   string
	address   string
	tlsConfig *tls.Config

	nextMessageID int64 // atomic; allocated starting at 1

	mu         sync.Mutex // guards netConn, state, reason, acceptors
	netConn    net.Conn
	state      State
	reason     DisconnectReason
	reasonErr  error
	acceptors  map[int]acceptor
	tlsPending bool          // a StartTLS upgrade is waiting for the reader to quiesce
	readerDone chan struct{} // closed when the current reader goroutine exits

	sendMu sync.Mutex // short critical section: encode + write only

	onNotification    NotificationHandler
	onDisconnect      DisconnectHandler
	referralConnector ReferralConnector

	syncMu sync.Mutex // held for the duration of one op in synchronous mode

	reconnectMu sync.Mutex // serializes AutoReconnect redials
}

// Dial opens a plain TCP connection and starts the reader goroutine.
// ctx bounds connection establishment only; it has no effect once Dial
// returns.
func Dial(ctx context.Context, network, address string, opts Options) (*Conn, error) {
	return dial(ctx, network, address, opts, nil)
}

// DialTLS opens a TLS connection and starts the reader goroutine.
func DialTLS(ctx context.Context, network, address string, opts Options, tlsConfig *tls.Config) (*Conn, error) {
	return dial(ctx, network, address, opts, tlsConfig)
}

func dial(ctx context.Context, network, address string, opts Options, tlsConfig *tls.Config) (*Conn, error) {
	opts = opts.withDefaults()

	netConn, err := dialSocket(ctx, network, address, opts, tlsConfig)
	if err != nil {
		return nil, err
	}

	c := &Conn{
		id:            uuid.New(),
		opts:          opts,
		logger:        logging.NewNop(),
		network:       network,
		address:       address,
		tlsConfig:     tlsConfig,
		netConn:       netConn,
		nextMessageID: 0,
		state:         StateOpen,
		acceptors:     make(map[int]acceptor),
	}

	if !opts.UseSynchronousMode {
		c.startReader(netConn)
	}

	return c, nil
}

// startReader launches a reader goroutine bound to nc and records a
// channel that closes when it exits, which StartTLS uses to wait for
// exclusive socket access.
func (c *Conn) startReader(nc net.Conn) {
	done := make(chan struct{})
	c.mu.Lock()
	c.readerDone = done
	c.mu.Unlock()
	go func() {
		defer close(done)
		c.readLoop(nc)
	}()
}

// dialSocket establishes one socket with the configured socket options,
// optionally wrapped for TLS, bounded by opts.ConnectTimeout.
func dialSocket(ctx context.Context, network, address string, opts Options, tlsConfig *tls.Config) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	dialFn := opts.DialContext
	if dialFn == nil {
		dialer := &net.Dialer{Timeout: opts.ConnectTimeout}
		if opts.UseReuseAddress {
			dialer.Control = controlReuseAddress
		}
		dialFn = dialer.DialContext
	}
	raw, err := dialFn(dialCtx, network, address)
	if err != nil {
		return nil, ldaperr.IOError("dial failed", err)
	}

	if tc, ok := raw.(*net.TCPConn); ok {
		if opts.UseKeepAlive {
			_ = tc.SetKeepAlive(true)
		}
		if opts.UseTCPNoDelay {
			_ = tc.SetNoDelay(true)
		}
		if opts.UseLinger {
			_ = tc.SetLinger(int(opts.LingerTimeout / time.Second))
		}
	}

	if tlsConfig != nil {
		return tls.Client(raw, tlsConfig), nil
	}
	return raw, nil
}

// ID returns the connection's identity, used for log correlation.
func (c *Conn) ID() uuid.UUID { return c.id }

// SetLogger replaces the connection's logger. Not safe to call
// concurrently with request traffic.
func (c *Conn) SetLogger(l logging.Logger) {
	if l == nil {
		l = logging.NewNop()
	}
	c.logger = l.WithRequestID(c.id.String())
}

// OnNotification registers the handler invoked for unsolicited
// notifications (message id 0).
func (c *Conn) OnNotification(h NotificationHandler) { c.onNotification = h }

// OnDisconnect registers the handler invoked once when the connection
// leaves StateOpen.
func (c *Conn) OnDisconnect(h DisconnectHandler) { c.onDisconnect = h }

// State returns the connection's current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// DisconnectReason returns the reason the connection left StateOpen, or
// ReasonNone if it is still open.
func (c *Conn) DisconnectReason() (DisconnectReason, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason, c.reasonErr
}

// currentConn returns the socket current at the time of the call.
func (c *Conn) currentConn() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.netConn
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.currentConn().RemoteAddr() }

// LocalAddr returns the local socket address.
func (c *Conn) LocalAddr() net.Addr { return c.currentConn().LocalAddr() }

func (c *Conn) nextID() int {
	return int(atomic.AddInt64(&c.nextMessageID, 1))
}

func (c *Conn) register(id int, a acceptor) (net.Conn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return nil, false
	}
	c.acceptors[id] = a
	return c.netConn, true
}

func (c *Conn) deregister(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.acceptors, id)
}

// ensureOpen redials a closed connection when AutoReconnect is set and
// the close was not caller-initiated. Without AutoReconnect a closed
// connection fails immediately with server-down.
func (c *Conn) ensureOpen(ctx context.Context) error {
	c.mu.Lock()
	state, reason, cause := c.state, c.reason, c.reasonErr
	c.mu.Unlock()

	if state == StateOpen {
		return nil
	}
	if !c.opts.AutoReconnect || reason == ReasonUnbindRequested || reason == ReasonLocalProblem {
		return ldaperr.ServerDownError(reason.String(), cause)
	}
	return c.reconnect(ctx)
}

// reconnect dials a fresh socket and swaps it in, restarting the reader.
// It never resumes requests that were in flight when the previous socket
// dropped; their acceptors were already failed.
func (c *Conn) reconnect(ctx context.Context) error {
	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()

	// Another caller may have reconnected while this one waited.
	c.mu.Lock()
	if c.state == StateOpen {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	netConn, err := dialSocket(ctx, c.network, c.address, c.opts, c.tlsConfig)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.netConn = netConn
	c.state = StateOpen
	c.reason = ReasonNone
	c.reasonErr = nil
	c.acceptors = make(map[int]acceptor)
	c.mu.Unlock()

	c.logger.Info("reconnected", "address", c.address)

	if !c.opts.UseSynchronousMode {
		c.startReader(netConn)
	}
	return nil
}

// send allocates a message id, registers a, and writes op under the send
// lock. Registration happens before the write so a response racing the
// write's completion can never arrive unaccepted.
func (c *Conn) send(ctx context.Context, tag int, body []byte, controls []ldap.Control, a acceptor) (int, error) {
	if err := c.ensureOpen(ctx); err != nil {
		return 0, err
	}

	id := c.nextID()
	nc, ok := c.register(id, a)
	if !ok {
		reason, cause := c.DisconnectReason()
		return id, ldaperr.ServerDownError(reason.String(), cause)
	}

	msg := &ldap.LDAPMessage{
		MessageID: id,
		Operation: &ldap.RawOperation{Tag: tag, Data: body},
		Controls:  controls,
	}
	encoded, err := msg.Encode()
	if err != nil {
		c.deregister(id)
		return id, ldaperr.LocalError("encode request", err)
	}

	c.sendMu.Lock()
	_, writeErr := nc.Write(encoded)
	c.sendMu.Unlock()

	if writeErr != nil {
		c.deregister(id)
		c.failConn(nc, ReasonIOError, writeErr)
		return id, ldaperr.IOError("write request", writeErr)
	}

	return id, nil
}

// abandonLocal removes an acceptor without sending a protocol Abandon;
// used when a caller gives up on a response without wanting the
// underlying operation to continue. Sending the wire AbandonRequest is
// the caller's responsibility (see the client-facing Abandon operation).
func (c *Conn) abandonLocal(id int) {
	c.deregister(id)
}

// readLoop is the connection's single reader over nc. It frames inbound
// messages, dispatches by message id, and on any fatal condition fails
// every registered acceptor exactly once before exiting. It is bound to
// the socket it was started for: after an AutoReconnect swap a stale
// loop's failure is ignored by fail's socket identity check.
func (c *Conn) readLoop(nc net.Conn) {
	for {
		data, err := c.readFrame(nc)
		if err != nil {
			c.handleReadError(nc, err)
			return
		}

		msg, perr := ldap.ParseLDAPMessage(data)
		if perr != nil {
			c.failConn(nc, ReasonDecodeError, perr)
			return
		}

		c.dispatch(nc, msg)

		// A StartTLS upgrade needs the socket to itself the moment its
		// extended response has been handed over.
		if msg.MessageID != 0 && msg.OperationType() == ldap.ApplicationExtendedResponse && c.tlsQuiesce() {
			return
		}
	}
}

// readFrame reads one BER TLV (tag + length + content) from nc, capped by
// MaxMessageSize.
func (c *Conn) readFrame(nc net.Conn) ([]byte, error) {
	header := make([]byte, 1)
	if _, err := io.ReadFull(nc, header); err != nil {
		return nil, err
	}
	if header[0] != (ber.ClassUniversal | ber.TypeConstructed | ber.TagSequence) {
		return nil, ldaperr.Decodef(0, "expected SEQUENCE tag for LDAPMessage", nil)
	}

	length, lengthBytes, err := c.readLength(nc)
	if err != nil {
		return nil, err
	}
	if length > c.opts.MaxMessageSize {
		return nil, ldaperr.Decodef(0, "message exceeds max-message-size", nil)
	}

	content := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(nc, content); err != nil {
			return nil, err
		}
	}

	full := make([]byte, 0, 1+len(lengthBytes)+length)
	full = append(full, header[0])
	full = append(full, lengthBytes...)
	full = append(full, content...)
	return full, nil
}

// readLength reads a BER length field: short form (single byte, high bit
// clear) or long form (high bit set, low 7 bits give the byte count of a
// big-endian length that follows). Indefinite length is rejected; LDAP
// never uses it.
func (c *Conn) readLength(nc net.Conn) (int, []byte, error) {
	first := make([]byte, 1)
	if _, err := io.ReadFull(nc, first); err != nil {
		return 0, nil, err
	}

	if first[0]&0x80 == 0 {
		return int(first[0]), first, nil
	}

	numBytes := int(first[0] &^ 0x80)
	if numBytes == 0 {
		return 0, nil, ldaperr.Decodef(0, "indefinite length not supported", nil)
	}

	rest := make([]byte, numBytes)
	if _, err := io.ReadFull(nc, rest); err != nil {
		return 0, nil, err
	}

	length := 0
	for _, b := range rest {
		length = (length << 8) | int(b)
	}

	return length, append(first, rest...), nil
}

func (c *Conn) dispatch(nc net.Conn, msg *ldap.LDAPMessage) {
	if msg.MessageID == 0 {
		c.handleNotification(nc, msg)
		return
	}

	c.mu.Lock()
	a, ok := c.acceptors[msg.MessageID]
	c.mu.Unlock()
	if !ok {
		return
	}

	retire := a.deliver(message{msg: msg})
	if retire {
		c.deregister(msg.MessageID)
	}
}

// handleNotification routes an unsolicited notification to the
// connection-level handler. A notice of disconnection additionally
// transitions the connection to Closed: its arrival means the server is
// about to drop the stream, RFC 4511 §4.4.1.
func (c *Conn) handleNotification(nc net.Conn, msg *ldap.LDAPMessage) {
	if msg.OperationType() != ldap.ApplicationExtendedResponse {
		return
	}
	resp, err := ldap.ParseExtendedResponse(msg.Operation.Data)
	if err != nil {
		return
	}
	if c.onNotification != nil {
		c.onNotification(resp)
	}
	if resp.Name == ldap.OIDNoticeOfDisconnection {
		c.failConn(nc, ReasonServerClosedConnection, nil)
	}
}

func (c *Conn) handleReadError(nc net.Conn, err error) {
	if err == io.EOF {
		c.failConn(nc, ReasonServerClosedWithoutNotice, err)
		return
	}
	var lerr *ldaperr.Error
	if errors.As(err, &lerr) && lerr.Kind == ldaperr.KindDecode {
		c.failConn(nc, ReasonDecodeError, err)
		return
	}
	c.failConn(nc, ReasonIOError, err)
}

// fail transitions the connection to StateClosed (a no-op if already
// closed), closes the socket, fails every registered acceptor with a
// server-down error, and notifies the disconnect handler. It reports
// whether this call performed the transition.
func (c *Conn) fail(reason DisconnectReason, cause error) bool {
	return c.failConn(c.currentConn(), reason, cause)
}

// failConn is fail bound to a specific socket: a stale reader whose
// socket has already been replaced by an AutoReconnect swap must not
// tear down the replacement.
func (c *Conn) failConn(nc net.Conn, reason DisconnectReason, cause error) bool {
	c.mu.Lock()
	if c.state == StateClosed || c.netConn != nc {
		c.mu.Unlock()
		return false
	}
	c.state = StateClosed
	c.reason = reason
	c.reasonErr = cause
	acceptors := c.acceptors
	c.acceptors = make(map[int]acceptor)
	c.mu.Unlock()

	_ = nc.Close()

	downErr := ldaperr.ServerDownError(reason.String(), cause)
	for _, a := range acceptors {
		a.deliver(message{err: downErr})
	}

	if c.onDisconnect != nil {
		c.onDisconnect(reason, cause)
	}
	return true
}

// Close closes the socket and fails every outstanding acceptor with
// ReasonLocalProblem. Safe to call more than once.
func (c *Conn) Close() error {
	c.fail(ReasonLocalProblem, nil)
	return nil
}

// Unbind sends an UnbindRequest, the one operation with no response, then
// closes the socket locally with ReasonUnbindRequested.
func (c *Conn) Unbind() error {
	req := &ldap.UnbindRequest{}
	body, err := req.Encode()
	if err != nil {
		return ldaperr.LocalError("encode unbind", err)
	}

	id := c.nextID()
	msg := &ldap.LDAPMessage{MessageID: id, Operation: &ldap.RawOperation{Tag: ldap.ApplicationUnbindRequest, Data: body}}
	encoded, err := msg.Encode()
	if err != nil {
		return ldaperr.LocalError("encode unbind", err)
	}

	nc := c.currentConn()
	c.sendMu.Lock()
	_, writeErr := nc.Write(encoded)
	c.sendMu.Unlock()

	c.failConn(nc, ReasonUnbindRequested, writeErr)
	return nil
}

package conn

import "github.com/oba-ldap/oba/internal/ldap"

// message carries one parsed response envelope to an acceptor, or a
// terminal error in place of a message (timeout, server-down, decode
// failure on the connection as a whole).
type message struct {
	msg *ldap.LDAPMessage
	err error
}

// acceptor receives every response the reader dispatches for a given
// message id, in arrival order, and reports whether it should be
// deregistered after this delivery. A search holds its acceptor open
// across many SearchResultEntry/SearchResultReference deliveries; every
// other operation retires after its single response. deliver must not
// block the reader goroutine for long; acceptors buffer internally.
type acceptor interface {
	deliver(m message) (retire bool)
}

// chanAcceptor is the acceptor used by synchronous request/response calls:
// a single buffered channel the caller reads from after sending.
type chanAcceptor struct {
	ch chan message
}

func newChanAcceptor() *chanAcceptor {
	return &chanAcceptor{ch: make(chan message, 1)}
}

func (a *chanAcceptor) deliver(m message) bool {
	select {
	case a.ch <- m:
	default:
		// Replace a stale buffered message rather than block the reader;
		// a chanAcceptor only ever expects exactly one delivery.
		select {
		case <-a.ch:
		default:
		}
		a.ch <- m
	}
	return true
}

// searchAcceptor streams SearchResultEntry and SearchResultReference
// deliveries to a channel, retiring only on SearchResultDone or a
// connection-level error.
type searchAcceptor struct {
	ch chan message
}

func newSearchAcceptor(buffer int) *searchAcceptor {
	if buffer <= 0 {
		buffer = 16
	}
	return &searchAcceptor{ch: make(chan message, buffer)}
}

func (a *searchAcceptor) deliver(m message) bool {
	a.ch <- m
	if m.err != nil {
		return true
	}
	return m.msg.OperationType() == ldap.ApplicationSearchResultDone
}

// listenerAcceptor hands every delivery to a callback instead of a
// channel, for callers that drive their own event loop instead of
// blocking on a channel receive. The callback's return value becomes
// deliver's retire value.
type listenerAcceptor struct {
	onMessage func(message) (retire bool)
}

func (a *listenerAcceptor) deliver(m message) bool {
	return a.onMessage(m)
}

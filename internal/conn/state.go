package conn

import "fmt"

// State is the connection's lifecycle state.
type State int

const (
	// StateUnconnected is the state before Dial has been called.
	StateUnconnected State = iota
	// StateConnecting names socket establishment. Dial returns a Conn
	// only once its socket is up, already in StateOpen, so a Conn never
	// reports this state.
	StateConnecting
	// StateOpen accepts outbound requests and routes inbound responses.
	StateOpen
	// StateClosed no longer accepts outbound requests; every acceptor has
	// been failed exactly once.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown-state(%d)", int(s))
	}
}

// DisconnectReason classifies why a Conn left StateOpen.
type DisconnectReason int

const (
	// ReasonNone is the zero value; never reported on an actual Conn.
	ReasonNone DisconnectReason = iota
	// ReasonUnbindRequested is reported after a caller-initiated Unbind.
	ReasonUnbindRequested
	// ReasonServerClosedConnection is reported when the server sent an
	// unsolicited notification of disconnection before closing.
	ReasonServerClosedConnection
	// ReasonServerClosedWithoutNotice is reported on a bare EOF with no
	// preceding notification.
	ReasonServerClosedWithoutNotice
	// ReasonIOError is reported on a socket read/write failure.
	ReasonIOError
	// ReasonDecodeError is reported when the reader could not frame or
	// parse an inbound message; also terminal, since the byte stream can
	// no longer be trusted to resynchronize.
	ReasonDecodeError
	// ReasonLocalProblem is reported when the caller closed the
	// connection directly, or a local invariant was violated.
	ReasonLocalProblem
	// ReasonReferral classifies a connection torn down to follow a
	// referral. The connection runtime never reports it itself: referral
	// hop connections are closed with Close and report ReasonLocalProblem.
	ReasonReferral
	// ReasonOther covers any condition not otherwise classified.
	ReasonOther
)

func (r DisconnectReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonUnbindRequested:
		return "unbind-requested"
	case ReasonServerClosedConnection:
		return "server-closed-connection"
	case ReasonServerClosedWithoutNotice:
		return "server-closed-without-notice"
	case ReasonIOError:
		return "io-error"
	case ReasonDecodeError:
		return "decode-error"
	case ReasonLocalProblem:
		return "local-problem"
	case ReasonReferral:
		return "referral"
	case ReasonOther:
		return "other"
	default:
		return fmt.Sprintf("unknown-reason(%d)", int(r))
	}
}

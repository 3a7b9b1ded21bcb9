// Package sasl defines the client-side SASL contract that conn's
// SASLBind step drives: given a mechanism name and the server's latest
// challenge, produce the next client response or report that
// authentication is already complete on the client side.
package sasl

import "fmt"

// Mechanism is one SASL authentication mechanism, driven by repeated
// calls as the server returns intermediate challenges.
type Mechanism interface {
	// Name is the IANA SASL mechanism name, e.g. "PLAIN" or "EXTERNAL".
	Name() string

	// Step computes the next response to send given the server's most
	// recent challenge (nil on the first call). done reports whether
	// this mechanism has nothing further to send after this step; the
	// bind still isn't complete until the server's result says so.
	Step(challenge []byte) (response []byte, done bool, err error)
}

// Plain implements the PLAIN mechanism (RFC 4616): a single message,
// no further challenges expected.
type Plain struct {
	AuthzID  string
	Username string
	Password string

	stepped bool
}

func (p *Plain) Name() string { return "PLAIN" }

func (p *Plain) Step(challenge []byte) ([]byte, bool, error) {
	if p.stepped {
		return nil, false, fmt.Errorf("sasl: PLAIN does not accept a second challenge")
	}
	p.stepped = true
	msg := make([]byte, 0, len(p.AuthzID)+len(p.Username)+len(p.Password)+2)
	msg = append(msg, p.AuthzID...)
	msg = append(msg, 0)
	msg = append(msg, p.Username...)
	msg = append(msg, 0)
	msg = append(msg, p.Password...)
	return msg, true, nil
}

// External implements the EXTERNAL mechanism (RFC 4422 appendix A):
// the client's identity is established out of band (typically a TLS
// client certificate); the initial response carries an optional
// authorization identity and nothing further.
type External struct {
	AuthzID string

	stepped bool
}

func (e *External) Name() string { return "EXTERNAL" }

func (e *External) Step(challenge []byte) ([]byte, bool, error) {
	if e.stepped {
		return nil, false, fmt.Errorf("sasl: EXTERNAL does not accept a second challenge")
	}
	e.stepped = true
	if e.AuthzID == "" {
		return []byte{}, true, nil
	}
	return []byte(e.AuthzID), true, nil
}

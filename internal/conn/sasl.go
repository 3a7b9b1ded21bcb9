package conn

import (
	"context"

	"github.com/oba-ldap/oba/internal/ldaperr"
	"github.com/oba-ldap/oba/internal/sasl"
)

// BindSASL drives mech to completion against dn, feeding each server
// challenge back into mech.Step until both mech and the server report
// the exchange done.
func (c *Conn) BindSASL(ctx context.Context, dn string, mech sasl.Mechanism) error {
	var challenge []byte
	for {
		response, clientDone, err := mech.Step(challenge)
		if err != nil {
			return ldaperr.LocalError("SASL mechanism step failed", err)
		}

		serverCreds, inProgress, err := c.SASLBind(ctx, dn, mech.Name(), response)
		if err != nil {
			return err
		}

		if !inProgress {
			return nil
		}
		if clientDone {
			return ldaperr.LocalError("server requested another SASL step after client completed", nil)
		}
		challenge = serverCreds
	}
}

package conn

import (
	"context"

	"github.com/oba-ldap/oba/internal/ldap"
	"github.com/oba-ldap/oba/internal/ldaperr"
)

// Bind performs a simple bind. An empty password is rejected when both DN
// is non-empty and BindDNRequiresPassword is set, guarding against an
// unintended anonymous-equivalent bind succeeding as the named identity.
// Bind never follows referrals: authenticating against a referred server
// is the referral connector's responsibility.
func (c *Conn) Bind(ctx context.Context, dn, password string) error {
	if c.opts.BindDNRequiresPassword && dn != "" && password == "" {
		return ldaperr.LocalError("simple bind with non-empty DN requires a non-empty password", nil)
	}

	req := &ldap.BindRequest{
		Version:        3,
		Name:           dn,
		AuthMethod:     ldap.AuthMethodSimple,
		SimplePassword: []byte(password),
	}
	body, err := req.Encode()
	if err != nil {
		return ldaperr.LocalError("encode bind request", err)
	}

	msg, err := c.doRequest(ctx, ldap.ApplicationBindRequest, body, nil)
	if err != nil {
		return err
	}

	resp, err := ldap.ParseBindResponse(msg.Operation.Data)
	if err != nil {
		return ldaperr.Decodef(0, "decode bind response", err)
	}
	if rerr := ldaperr.FromResult(resp.LDAPResult); rerr != nil {
		return rerr
	}
	return nil
}

// SASLBind drives one step of a SASL exchange: sends mechanism and
// credentials, returns the server's challenge/final credentials and
// whether the exchange is still in progress.
func (c *Conn) SASLBind(ctx context.Context, dn, mechanism string, credentials []byte) (serverCreds []byte, inProgress bool, err error) {
	req := &ldap.BindRequest{
		Version:    3,
		Name:       dn,
		AuthMethod: ldap.AuthMethodSASL,
		SASLCredentials: &ldap.SASLCredentials{
			Mechanism:   mechanism,
			Credentials: credentials,
		},
	}
	body, encErr := req.Encode()
	if encErr != nil {
		return nil, false, ldaperr.LocalError("encode SASL bind request", encErr)
	}

	msg, sendErr := c.doRequest(ctx, ldap.ApplicationBindRequest, body, nil)
	if sendErr != nil {
		return nil, false, sendErr
	}

	resp, decErr := ldap.ParseBindResponse(msg.Operation.Data)
	if decErr != nil {
		return nil, false, ldaperr.Decodef(0, "decode SASL bind response", decErr)
	}

	if resp.ResultCode == ldap.ResultSASLBindInProgress {
		return resp.ServerSASLCreds, true, nil
	}
	if rerr := ldaperr.FromResult(resp.LDAPResult); rerr != nil {
		return resp.ServerSASLCreds, false, rerr
	}
	return resp.ServerSASLCreds, false, nil
}

// Add sends an AddRequest.
func (c *Conn) Add(ctx context.Context, req *ldap.AddRequest) error {
	err := c.addOnce(ctx, req)
	return c.followIfReferral(ctx, err, func(rc *Conn, baseDN string) error {
		hop := *req
		hop.Entry = referralTarget(req.Entry, baseDN)
		return rc.addOnce(ctx, &hop)
	})
}

func (c *Conn) addOnce(ctx context.Context, req *ldap.AddRequest) error {
	body, err := req.Encode()
	if err != nil {
		return ldaperr.LocalError("encode add request", err)
	}
	msg, err := c.doRequest(ctx, ldap.ApplicationAddRequest, body, nil)
	if err != nil {
		return err
	}
	resp, err := ldap.ParseAddResponse(msg.Operation.Data)
	if err != nil {
		return ldaperr.Decodef(0, "decode add response", err)
	}
	if rerr := ldaperr.FromResult(resp.LDAPResult); rerr != nil {
		return rerr
	}
	return nil
}

// Delete sends a DelRequest for dn.
func (c *Conn) Delete(ctx context.Context, dn string) error {
	err := c.deleteOnce(ctx, dn)
	return c.followIfReferral(ctx, err, func(rc *Conn, baseDN string) error {
		return rc.deleteOnce(ctx, referralTarget(dn, baseDN))
	})
}

func (c *Conn) deleteOnce(ctx context.Context, dn string) error {
	req := &ldap.DeleteRequest{DN: dn}
	body, err := req.Encode()
	if err != nil {
		return ldaperr.LocalError("encode delete request", err)
	}
	msg, err := c.doRequest(ctx, ldap.ApplicationDelRequest, body, nil)
	if err != nil {
		return err
	}
	resp, err := ldap.ParseDeleteResponse(msg.Operation.Data)
	if err != nil {
		return ldaperr.Decodef(0, "decode delete response", err)
	}
	if rerr := ldaperr.FromResult(resp.LDAPResult); rerr != nil {
		return rerr
	}
	return nil
}

// Modify sends a ModifyRequest.
func (c *Conn) Modify(ctx context.Context, req *ldap.ModifyRequest) error {
	if err := req.Validate(); err != nil {
		return ldaperr.LocalError("invalid modify request", err)
	}
	err := c.modifyOnce(ctx, req)
	return c.followIfReferral(ctx, err, func(rc *Conn, baseDN string) error {
		hop := *req
		hop.Object = referralTarget(req.Object, baseDN)
		return rc.modifyOnce(ctx, &hop)
	})
}

func (c *Conn) modifyOnce(ctx context.Context, req *ldap.ModifyRequest) error {
	body, err := req.Encode()
	if err != nil {
		return ldaperr.LocalError("encode modify request", err)
	}
	msg, err := c.doRequest(ctx, ldap.ApplicationModifyRequest, body, nil)
	if err != nil {
		return err
	}
	resp, err := ldap.ParseModifyResponse(msg.Operation.Data)
	if err != nil {
		return ldaperr.Decodef(0, "decode modify response", err)
	}
	if rerr := ldaperr.FromResult(resp.LDAPResult); rerr != nil {
		return rerr
	}
	return nil
}

// ModifyDN sends a ModifyDNRequest.
func (c *Conn) ModifyDN(ctx context.Context, req *ldap.ModifyDNRequest) error {
	if err := req.Validate(); err != nil {
		return ldaperr.LocalError("invalid modify-dn request", err)
	}
	err := c.modifyDNOnce(ctx, req)
	return c.followIfReferral(ctx, err, func(rc *Conn, baseDN string) error {
		hop := *req
		hop.Entry = referralTarget(req.Entry, baseDN)
		return rc.modifyDNOnce(ctx, &hop)
	})
}

func (c *Conn) modifyDNOnce(ctx context.Context, req *ldap.ModifyDNRequest) error {
	body, err := req.Encode()
	if err != nil {
		return ldaperr.LocalError("encode modify-dn request", err)
	}
	msg, err := c.doRequest(ctx, ldap.ApplicationModifyDNRequest, body, nil)
	if err != nil {
		return err
	}
	resp, err := ldap.ParseModifyDNResponse(msg.Operation.Data)
	if err != nil {
		return ldaperr.Decodef(0, "decode modify-dn response", err)
	}
	if rerr := ldaperr.FromResult(resp.LDAPResult); rerr != nil {
		return rerr
	}
	return nil
}

// Compare sends a CompareRequest, returning true for ResultCompareTrue,
// false for ResultCompareFalse, and an error for anything else.
func (c *Conn) Compare(ctx context.Context, req *ldap.CompareRequest) (bool, error) {
	if err := req.Validate(); err != nil {
		return false, ldaperr.LocalError("invalid compare request", err)
	}
	match, err := c.compareOnce(ctx, req)
	err = c.followIfReferral(ctx, err, func(rc *Conn, baseDN string) error {
		hop := *req
		hop.DN = referralTarget(req.DN, baseDN)
		var herr error
		match, herr = rc.compareOnce(ctx, &hop)
		return herr
	})
	return match, err
}

func (c *Conn) compareOnce(ctx context.Context, req *ldap.CompareRequest) (bool, error) {
	body, err := req.Encode()
	if err != nil {
		return false, ldaperr.LocalError("encode compare request", err)
	}
	msg, err := c.doRequest(ctx, ldap.ApplicationCompareRequest, body, nil)
	if err != nil {
		return false, err
	}
	resp, err := ldap.ParseCompareResponse(msg.Operation.Data)
	if err != nil {
		return false, ldaperr.Decodef(0, "decode compare response", err)
	}
	switch resp.ResultCode {
	case ldap.ResultCompareTrue:
		return true, nil
	case ldap.ResultCompareFalse:
		return false, nil
	default:
		return false, ldaperr.FromResult(resp.LDAPResult)
	}
}

// Extended sends an ExtendedRequest and returns its ExtendedResponse.
func (c *Conn) Extended(ctx context.Context, req *ldap.ExtendedRequest) (*ldap.ExtendedResponse, error) {
	body, err := req.Encode()
	if err != nil {
		return nil, ldaperr.LocalError("encode extended request", err)
	}
	msg, err := c.doRequest(ctx, ldap.ApplicationExtendedRequest, body, nil)
	if err != nil {
		return nil, err
	}
	resp, err := ldap.ParseExtendedResponse(msg.Operation.Data)
	if err != nil {
		return nil, ldaperr.Decodef(0, "decode extended response", err)
	}
	if rerr := ldaperr.FromResult(resp.LDAPResult); rerr != nil {
		return resp, rerr
	}
	return resp, nil
}

// Abandon sends an AbandonRequest for messageID and releases the local
// acceptor, if any, without waiting for a response (Abandon has none).
func (c *Conn) Abandon(messageID int) error {
	req := &ldap.AbandonRequest{MessageID: messageID}
	body, err := req.Encode()
	if err != nil {
		return ldaperr.LocalError("encode abandon request", err)
	}
	c.abandonLocal(messageID)

	id := c.nextID()
	msg := &ldap.LDAPMessage{MessageID: id, Operation: &ldap.RawOperation{Tag: ldap.ApplicationAbandonRequest, Data: body}}
	encoded, err := msg.Encode()
	if err != nil {
		return ldaperr.LocalError("encode abandon envelope", err)
	}

	nc := c.currentConn()
	c.sendMu.Lock()
	_, writeErr := nc.Write(encoded)
	c.sendMu.Unlock()
	if writeErr != nil {
		c.failConn(nc, ReasonIOError, writeErr)
		return ldaperr.IOError("write abandon request", writeErr)
	}
	return nil
}

// doRequest sends one request and waits for its single response,
// respecting ctx's deadline or, absent one, the connection's default
// response timeout. A timeout deregisters the acceptor but leaves the
// connection open; the caller may Abandon the operation.
func (c *Conn) doRequest(ctx context.Context, tag int, body []byte, controls []ldap.Control) (*ldap.LDAPMessage, error) {
	if c.opts.UseSynchronousMode {
		return c.doRequestSync(ctx, tag, body, controls)
	}

	a := newChanAcceptor()
	id, err := c.send(ctx, tag, body, controls, a)
	if err != nil {
		return nil, err
	}

	waitCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.opts.ResponseTimeout)
		defer cancel()
	}

	select {
	case m := <-a.ch:
		if m.err != nil {
			return nil, m.err
		}
		return m.msg, nil
	case <-waitCtx.Done():
		c.deregister(id)
		return nil, ldaperr.TimeoutError("response timeout")
	}
}

func (c *Conn) doRequestSync(ctx context.Context, tag int, body []byte, controls []ldap.Control) (*ldap.LDAPMessage, error) {
	var result *ldap.LDAPMessage
	err := c.doSync(ctx, tag, body, controls, func(msg *ldap.LDAPMessage) bool {
		result = msg
		return true
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// doSync drives one request/response exchange (possibly many responses,
// for search) on the caller's own goroutine, collapsing reader and
// sender as UseSynchronousMode requires. Only one doSync may run at a
// time per connection; a concurrent attempt fails with a local error
// instead of blocking, per the external interface's synchronous-mode
// contract.
func (c *Conn) doSync(ctx context.Context, tag int, body []byte, controls []ldap.Control, collect func(*ldap.LDAPMessage) (retire bool)) error {
	if !c.syncMu.TryLock() {
		return ldaperr.LocalError("concurrent operation on synchronous connection", nil)
	}
	defer c.syncMu.Unlock()

	if err := c.ensureOpen(ctx); err != nil {
		return err
	}
	nc := c.currentConn()

	id := c.nextID()
	msg := &ldap.LDAPMessage{MessageID: id, Operation: &ldap.RawOperation{Tag: tag, Data: body}, Controls: controls}
	encoded, err := msg.Encode()
	if err != nil {
		return ldaperr.LocalError("encode request", err)
	}
	if _, err := nc.Write(encoded); err != nil {
		c.failConn(nc, ReasonIOError, err)
		return ldaperr.IOError("write request", err)
	}

	for {
		data, rerr := c.readFrame(nc)
		if rerr != nil {
			c.handleReadError(nc, rerr)
			reason, _ := c.DisconnectReason()
			return ldaperr.ServerDownError(reason.String(), rerr)
		}

		resp, perr := ldap.ParseLDAPMessage(data)
		if perr != nil {
			c.failConn(nc, ReasonDecodeError, perr)
			return ldaperr.Decodef(0, "decode response", perr)
		}

		if resp.MessageID == 0 {
			c.handleNotification(nc, resp)
			if c.State() == StateClosed {
				reason, cause := c.DisconnectReason()
				return ldaperr.ServerDownError(reason.String(), cause)
			}
			continue
		}

		if resp.MessageID != id {
			continue
		}

		if collect(resp) {
			return nil
		}
	}
}

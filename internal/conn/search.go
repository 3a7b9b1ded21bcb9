package conn

import (
	"context"

	"github.com/oba-ldap/oba/internal/ldap"
	"github.com/oba-ldap/oba/internal/ldaperr"
)

// SearchResult is one entry or referral streamed back from a Search.
type SearchResult struct {
	Entry     *ldap.SearchResultEntry
	Reference *ldap.SearchResultReference
}

// Search issues a SearchRequest and streams results to the returned
// channel; the channel closes after SearchResultDone or a connection
// error, and the final error (nil on success) is delivered via the error
// channel. When the done result is a referral and FollowReferrals is
// set, the request is reissued against the referral URL with its base DN
// substituted, streaming the hop's results into the same channel.
// In UseSynchronousMode the entire result set is collected before the
// channel is populated, since no background reader exists to stream it.
func (c *Conn) Search(ctx context.Context, req *ldap.SearchRequest) (<-chan SearchResult, <-chan error) {
	results := make(chan SearchResult, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(results)

		err := c.runSearch(ctx, req, results)
		err = c.followIfReferral(ctx, err, func(rc *Conn, baseDN string) error {
			hop := *req
			hop.BaseObject = referralTarget(req.BaseObject, baseDN)
			return rc.runSearch(ctx, &hop, results)
		})
		errCh <- err
	}()

	return results, errCh
}

// runSearch drives one search exchange on this connection, streaming
// entries and references into results, and returns the final outcome.
func (c *Conn) runSearch(ctx context.Context, req *ldap.SearchRequest, results chan<- SearchResult) error {
	body, err := req.Encode()
	if err != nil {
		return ldaperr.LocalError("encode search request", err)
	}

	if c.opts.UseSynchronousMode {
		return c.searchSync(ctx, body, results)
	}
	return c.searchAsync(ctx, body, results)
}

func (c *Conn) searchAsync(ctx context.Context, body []byte, results chan<- SearchResult) error {
	a := newSearchAcceptor(16)
	id, err := c.send(ctx, ldap.ApplicationSearchRequest, body, nil, a)
	if err != nil {
		return err
	}

	waitCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.opts.ResponseTimeout)
		defer cancel()
	}

	for {
		select {
		case m := <-a.ch:
			done, stop := c.deliverSearchMessage(m, results)
			if stop {
				return done
			}
		case <-waitCtx.Done():
			c.deregister(id)
			return ldaperr.TimeoutError("search response timeout")
		}
	}
}

func (c *Conn) searchSync(ctx context.Context, body []byte, results chan<- SearchResult) error {
	var finalErr error
	err := c.doSync(ctx, ldap.ApplicationSearchRequest, body, nil, func(msg *ldap.LDAPMessage) bool {
		doneErr, stop := c.deliverSearchMessage(message{msg: msg}, results)
		if stop {
			finalErr = doneErr
		}
		return stop
	})
	if err != nil {
		return err
	}
	return finalErr
}

// deliverSearchMessage decodes one response belonging to a search and
// writes it to results if it is an entry or reference. It returns
// (err, true) once the search has concluded (SearchResultDone or a
// connection-level error), and (nil, false) otherwise.
func (c *Conn) deliverSearchMessage(m message, results chan<- SearchResult) (error, bool) {
	if m.err != nil {
		return m.err, true
	}

	switch m.msg.OperationType() {
	case ldap.ApplicationSearchResultEntry:
		entry, err := ldap.ParseSearchResultEntry(m.msg.Operation.Data)
		if err != nil {
			return ldaperr.Decodef(0, "decode search result entry", err), true
		}
		results <- SearchResult{Entry: entry}
		return nil, false

	case ldap.ApplicationSearchResultReference:
		ref, err := ldap.ParseSearchResultReference(m.msg.Operation.Data)
		if err != nil {
			return ldaperr.Decodef(0, "decode search result reference", err), true
		}
		results <- SearchResult{Reference: ref}
		return nil, false

	case ldap.ApplicationSearchResultDone:
		done, err := ldap.ParseSearchResultDone(m.msg.Operation.Data)
		if err != nil {
			return ldaperr.Decodef(0, "decode search result done", err), true
		}
		if rerr := ldaperr.FromResult(done.LDAPResult); rerr != nil {
			return rerr, true
		}
		return nil, true

	default:
		return ldaperr.LocalError("unexpected response to search request", nil), true
	}
}

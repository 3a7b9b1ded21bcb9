package conn

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/oba-ldap/oba/internal/ldap"
	"github.com/oba-ldap/oba/internal/ldaperr"
)

// ReferralConnector dials a new connection to the host named in a
// referral URL. The application supplies this, since only it knows how
// to authenticate and which options apply to referral hops.
type ReferralConnector func(ctx context.Context, ldapURL string) (*Conn, error)

// ParsedReferral holds the pieces of an RFC 4516 LDAP URL a referral
// follower needs: scope, filter, and attribute selection are ignored,
// since a referral only redirects the naming context and the original
// request is reissued unchanged against the new base.
type ParsedReferral struct {
	Host   string
	BaseDN string
}

// ParseReferralURL extracts host:port and base DN from an LDAP URL.
func ParseReferralURL(raw string) (ParsedReferral, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return ParsedReferral{}, ldaperr.LocalError("parse referral URL", err)
	}
	if u.Scheme != "ldap" && u.Scheme != "ldaps" {
		return ParsedReferral{}, ldaperr.LocalError(fmt.Sprintf("unsupported referral scheme %q", u.Scheme), nil)
	}
	return ParsedReferral{Host: u.Host, BaseDN: strings.TrimPrefix(u.Path, "/")}, nil
}

// FollowReferral reissues a request, through connector, against each
// candidate referral URL in turn until one succeeds or hopsRemaining is
// exhausted. op receives a fresh connection and the referral's base DN;
// it returns the next hop's referral URLs (non-empty only if the retried
// request itself received another referral) and its error.
func FollowReferral(ctx context.Context, urls []string, hopsRemaining int, connector ReferralConnector, op func(c *Conn, baseDN string) (nextURLs []string, err error)) error {
	if hopsRemaining <= 0 {
		return ldaperr.ReferralError(ldap.ResultReferralLimitExceeded, "referral hop limit exceeded", urls)
	}
	if connector == nil {
		return ldaperr.LocalError("referral following enabled with no connector configured", nil)
	}

	var lastErr error
	for _, raw := range urls {
		parsed, perr := ParseReferralURL(raw)
		if perr != nil {
			lastErr = perr
			continue
		}

		newConn, derr := connector(ctx, raw)
		if derr != nil {
			lastErr = derr
			continue
		}

		nextURLs, err := op(newConn, parsed.BaseDN)
		if err == nil {
			return nil
		}
		if len(nextURLs) > 0 {
			if ferr := FollowReferral(ctx, nextURLs, hopsRemaining-1, connector, op); ferr == nil {
				return nil
			} else {
				lastErr = ferr
				continue
			}
		}
		lastErr = err
	}
	return lastErr
}

// SetReferralConnector installs the dialer used when FollowReferrals is
// enabled. Not safe to call concurrently with request traffic.
func (c *Conn) SetReferralConnector(connector ReferralConnector) {
	c.referralConnector = connector
}

// followIfReferral retries reissue across referral hops when following is
// enabled and err carries referral URLs; otherwise err passes through
// unchanged. reissue receives the hop's connection and the referral URL's
// base DN ("" when the URL names no base), and the hop connection is
// closed after the retry.
func (c *Conn) followIfReferral(ctx context.Context, err error, reissue func(rc *Conn, baseDN string) error) error {
	if err == nil || !c.opts.FollowReferrals {
		return err
	}
	urls := ldaperr.ReferralURLs(err)
	if len(urls) == 0 {
		return err
	}
	return FollowReferral(ctx, urls, c.opts.ReferralHopLimit, c.referralConnector, func(rc *Conn, baseDN string) ([]string, error) {
		defer rc.Close()
		rerr := reissue(rc, baseDN)
		return ldaperr.ReferralURLs(rerr), rerr
	})
}

// referralTarget substitutes the referral URL's base DN for the original
// request target when the URL names one.
func referralTarget(original, baseDN string) string {
	if baseDN != "" {
		return baseDN
	}
	return original
}

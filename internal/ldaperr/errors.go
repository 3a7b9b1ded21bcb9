// Package ldaperr provides a single tagged-variant error type used across
// the client: codec failures, I/O failures, timeouts, server-down
// conditions, referrals, protocol-level result codes, and local/programmer
// errors all surface as *Error, classified by Kind.
package ldaperr

import (
	"errors"
	"fmt"

	"github.com/oba-ldap/oba/internal/ldap"
)

// Kind classifies an Error for caller dispatch, per the error kinds a
// connection can surface.
type Kind int

const (
	// KindDecode marks malformed BER or unexpected structure.
	KindDecode Kind = iota
	// KindIO marks a socket failure.
	KindIO
	// KindTimeout marks a per-operation wait that exceeded its deadline.
	KindTimeout
	// KindServerDown marks a connection observed closed or never opened.
	KindServerDown
	// KindReferral marks a referral result surfaced to the caller
	// (follower logic declined to handle it, or followed and ran out of hops).
	KindReferral
	// KindResult marks a protocol-level non-success result code.
	KindResult
	// KindLocal marks a programmer or resource error.
	KindLocal
)

// String returns a short label for the error kind.
func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode-error"
	case KindIO:
		return "io-error"
	case KindTimeout:
		return "timeout"
	case KindServerDown:
		return "server-down"
	case KindReferral:
		return "referral"
	case KindResult:
		return "result"
	case KindLocal:
		return "local-error"
	default:
		return fmt.Sprintf("unknown-kind(%d)", int(k))
	}
}

// Error is the single error shape returned across the client's API
// boundary. It never panics and always carries enough context for the
// caller to decide whether to retry, abandon, or surface to its own user.
type Error struct {
	Kind Kind
	// ResultCode is meaningful when Kind is KindResult or KindReferral.
	ResultCode ldap.ResultCode
	// Referrals holds the referral URLs a KindReferral error carries, so a
	// follower can reissue the request against them.
	Referrals []string
	// Offset is meaningful when Kind is KindDecode, mirroring ldap.ParseError.
	Offset  int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Kind == KindDecode:
		return fmt.Sprintf("ldaperr: %s at offset %d: %s", e.Kind, e.Offset, e.msg())
	case e.Kind == KindResult || e.Kind == KindReferral:
		return fmt.Sprintf("ldaperr: %s (result=%s): %s", e.Kind, e.ResultCode, e.msg())
	default:
		return fmt.Sprintf("ldaperr: %s: %s", e.Kind, e.msg())
	}
}

func (e *Error) msg() string {
	if e.Err != nil {
		if e.Message != "" {
			return fmt.Sprintf("%s: %v", e.Message, e.Err)
		}
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Kind, letting
// callers write errors.Is(err, ldaperr.Timeout) style sentinels below.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// Sentinels for errors.Is comparisons against a bare Kind, one per Kind.
var (
	Timeout    = &Error{Kind: KindTimeout}
	ServerDown = &Error{Kind: KindServerDown}
	Decode     = &Error{Kind: KindDecode}
	IO         = &Error{Kind: KindIO}
	Referral   = &Error{Kind: KindReferral}
	Result     = &Error{Kind: KindResult}
	Local      = &Error{Kind: KindLocal}
)

// Decodef builds a KindDecode error with byte-offset context, mirroring
// ldap.NewParseError.
func Decodef(offset int, message string, err error) *Error {
	return &Error{Kind: KindDecode, Offset: offset, Message: message, Err: err}
}

// IOError wraps a socket failure.
func IOError(message string, err error) *Error {
	return &Error{Kind: KindIO, Message: message, Err: err}
}

// TimeoutError builds a non-fatal per-operation timeout error.
func TimeoutError(message string) *Error {
	return &Error{Kind: KindTimeout, Message: message}
}

// ServerDownError builds a fatal connection-closed error carrying the
// disconnect reason as Message.
func ServerDownError(reason string, err error) *Error {
	return &Error{Kind: KindServerDown, Message: reason, Err: err}
}

// ReferralError surfaces a referral result the caller must handle itself
// (following disabled, or hop limit reached). urls carries the referral
// URLs from the result, if any.
func ReferralError(code ldap.ResultCode, message string, urls []string) *Error {
	return &Error{Kind: KindReferral, ResultCode: code, Message: message, Referrals: urls}
}

// ReferralURLs extracts the referral URLs from err, or nil when err is not
// a KindReferral *Error.
func ReferralURLs(err error) []string {
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindReferral {
		return nil
	}
	return e.Referrals
}

// ResultError wraps a non-success protocol result code.
func ResultError(code ldap.ResultCode, matchedDN, message string) *Error {
	msg := message
	if matchedDN != "" {
		msg = fmt.Sprintf("%s (matched %q)", message, matchedDN)
	}
	return &Error{Kind: KindResult, ResultCode: code, Message: msg}
}

// LocalError wraps a programmer or resource error (nil argument, invalid
// filter string, interrupted wait).
func LocalError(message string, err error) *Error {
	return &Error{Kind: KindLocal, Message: message, Err: err}
}

// FromResult converts an ldap.LDAPResult into an *Error, or nil on success.
// Referral results become KindReferral; every other non-success code
// becomes KindResult.
func FromResult(result ldap.LDAPResult) *Error {
	if result.ResultCode == ldap.ResultReferral {
		return ReferralError(result.ResultCode, result.DiagnosticMessage, result.Referral)
	}
	if result.ResultCode.IsSuccess() || !result.ResultCode.IsError() {
		return nil
	}
	return ResultError(result.ResultCode, result.MatchedDN, result.DiagnosticMessage)
}

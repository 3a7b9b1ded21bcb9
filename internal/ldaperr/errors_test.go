package ldaperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/oba-ldap/oba/internal/ldap"
)

func TestFromResultSuccessIsNil(t *testing.T) {
	if err := FromResult(ldap.LDAPResult{ResultCode: ldap.ResultSuccess}); err != nil {
		t.Fatalf("FromResult(success) = %v, want nil", err)
	}
	if err := FromResult(ldap.LDAPResult{ResultCode: ldap.ResultCompareTrue}); err != nil {
		t.Fatalf("FromResult(compareTrue) = %v, want nil", err)
	}
}

func TestFromResultReferralCarriesURLs(t *testing.T) {
	urls := []string{"ldap://a.example.com/dc=a", "ldap://b.example.com/dc=b"}
	err := FromResult(ldap.LDAPResult{
		ResultCode:        ldap.ResultReferral,
		DiagnosticMessage: "elsewhere",
		Referral:          urls,
	})
	if err == nil {
		t.Fatal("FromResult(referral) = nil, want error")
	}
	if err.Kind != KindReferral {
		t.Errorf("Kind = %v, want KindReferral", err.Kind)
	}
	if got := ReferralURLs(err); len(got) != 2 || got[0] != urls[0] {
		t.Errorf("ReferralURLs = %v, want %v", got, urls)
	}
}

func TestFromResultProtocolError(t *testing.T) {
	err := FromResult(ldap.LDAPResult{
		ResultCode:        ldap.ResultNoSuchObject,
		MatchedDN:         "dc=example,dc=com",
		DiagnosticMessage: "no such object",
	})
	if err == nil || err.Kind != KindResult {
		t.Fatalf("FromResult(noSuchObject) = %v, want KindResult error", err)
	}
	if err.ResultCode != ldap.ResultNoSuchObject {
		t.Errorf("ResultCode = %v, want noSuchObject", err.ResultCode)
	}
}

func TestSentinelMatching(t *testing.T) {
	cases := []struct {
		err      error
		sentinel *Error
	}{
		{TimeoutError("slow"), Timeout},
		{IOError("broken pipe", nil), IO},
		{ServerDownError("io-error", nil), ServerDown},
		{Decodef(12, "bad tag", nil), Decode},
		{LocalError("nil argument", nil), Local},
		{ReferralError(ldap.ResultReferral, "go away", nil), Referral},
	}

	for _, tc := range cases {
		if !errors.Is(tc.err, tc.sentinel) {
			t.Errorf("errors.Is(%v, %v) = false, want true", tc.err, tc.sentinel)
		}
	}

	if errors.Is(TimeoutError("slow"), ServerDown) {
		t.Error("timeout matched server-down sentinel")
	}
}

func TestSentinelMatchingThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("checkout failed: %w", TimeoutError("pool wait"))
	if !errors.Is(wrapped, Timeout) {
		t.Error("wrapped timeout did not match sentinel")
	}
}

func TestReferralURLsOnNonReferral(t *testing.T) {
	if got := ReferralURLs(TimeoutError("slow")); got != nil {
		t.Errorf("ReferralURLs(timeout) = %v, want nil", got)
	}
	if got := ReferralURLs(nil); got != nil {
		t.Errorf("ReferralURLs(nil) = %v, want nil", got)
	}
}

func TestDecodeErrorMessageIncludesOffset(t *testing.T) {
	err := Decodef(42, "unexpected tag", nil)
	want := "ldaperr: decode-error at offset 42: unexpected tag"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

package ldaptest

import (
	"bytes"
	"strings"

	"github.com/oba-ldap/oba/internal/ldap"
)

// matchFilter evaluates f against e's attributes. It implements the
// subset of RFC 4511 matching the in-memory directory needs: every
// comparison is case-insensitive (this server has no schema, so every
// attribute is treated as directoryString). Approximate match is plain
// equality, ordering compares case-folded bytes, and substrings are
// matched in order against the case-folded value.
func matchFilter(f *ldap.SearchFilter, e *Entry) bool {
	switch f.Type {
	case ldap.FilterTagAnd:
		for _, child := range f.Children {
			if !matchFilter(child, e) {
				return false
			}
		}
		return true

	case ldap.FilterTagOr:
		for _, child := range f.Children {
			if matchFilter(child, e) {
				return true
			}
		}
		return false

	case ldap.FilterTagNot:
		return f.Child != nil && !matchFilter(f.Child, e)

	case ldap.FilterTagPresent:
		return len(attrValues(e, f.Attribute)) > 0

	case ldap.FilterTagEquality:
		return anyValueFold(attrValues(e, f.Attribute), f.Value)

	case ldap.FilterTagApproxMatch:
		return anyValueFold(attrValues(e, f.Attribute), f.Value)

	case ldap.FilterTagGreaterOrEqual:
		return anyValueCompare(attrValues(e, f.Attribute), f.Value, func(c int) bool { return c >= 0 })

	case ldap.FilterTagLessOrEqual:
		return anyValueCompare(attrValues(e, f.Attribute), f.Value, func(c int) bool { return c <= 0 })

	case ldap.FilterTagSubstrings:
		if f.Substrings == nil {
			return false
		}
		for _, v := range attrValues(e, f.Attribute) {
			if matchSubstring([]byte(v), f.Substrings) {
				return true
			}
		}
		return false

	case ldap.FilterTagExtensibleMatch:
		if f.ExtensibleMatch == nil || f.ExtensibleMatch.Type == "" {
			return false
		}
		return anyValueFold(attrValues(e, f.ExtensibleMatch.Type), f.ExtensibleMatch.MatchValue)

	default:
		return false
	}
}

func anyValueFold(values []string, want []byte) bool {
	for _, v := range values {
		if bytes.EqualFold([]byte(v), want) {
			return true
		}
	}
	return false
}

func anyValueCompare(values []string, want []byte, ok func(cmp int) bool) bool {
	for _, v := range values {
		c := bytes.Compare(bytes.ToLower([]byte(v)), bytes.ToLower(want))
		if ok(c) {
			return true
		}
	}
	return false
}

func matchSubstring(value []byte, sub *ldap.SubstringComponents) bool {
	lower := strings.ToLower(string(value))
	pos := 0

	if len(sub.Initial) > 0 {
		initial := strings.ToLower(string(sub.Initial))
		if !strings.HasPrefix(lower, initial) {
			return false
		}
		pos = len(initial)
	}

	for _, any := range sub.Any {
		needle := strings.ToLower(string(any))
		if needle == "" {
			continue
		}
		idx := strings.Index(lower[pos:], needle)
		if idx < 0 {
			return false
		}
		pos += idx + len(needle)
	}

	if len(sub.Final) > 0 {
		final := strings.ToLower(string(sub.Final))
		if !strings.HasSuffix(lower[pos:], final) {
			return false
		}
	}

	return true
}

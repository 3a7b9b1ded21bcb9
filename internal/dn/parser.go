package dn

import (
	"encoding/hex"
	"strings"

	"github.com/oba-ldap/oba/internal/ldaperr"
)

// Parse parses an RFC 4514 distinguished name string.
func Parse(s string) (DN, error) {
	if s == "" {
		return DN{}, nil
	}

	var rdns DN
	rdnStrs, err := splitUnescaped(s, ',', ';')
	if err != nil {
		return nil, err
	}

	for _, rdnStr := range rdnStrs {
		rdn, err := parseRDN(rdnStr)
		if err != nil {
			return nil, err
		}
		rdns = append(rdns, rdn)
	}

	return rdns, nil
}

func parseRDN(s string) (RDN, error) {
	avaStrs, err := splitUnescaped(s, '+')
	if err != nil {
		return nil, err
	}
	if len(avaStrs) == 0 {
		return nil, ldaperr.Decodef(0, "empty RDN", nil)
	}

	rdn := make(RDN, 0, len(avaStrs))
	for _, avaStr := range avaStrs {
		ava, err := parseAVA(avaStr)
		if err != nil {
			return nil, err
		}
		rdn = append(rdn, ava)
	}
	return rdn, nil
}

func parseAVA(s string) (AttributeTypeAndValue, error) {
	eq, err := indexUnescaped(s, '=')
	if err != nil {
		return AttributeTypeAndValue{}, err
	}
	if eq < 0 {
		return AttributeTypeAndValue{}, ldaperr.Decodef(0, "attribute/value pair missing '='", nil)
	}

	typ := strings.TrimSpace(s[:eq])
	if typ == "" {
		return AttributeTypeAndValue{}, ldaperr.Decodef(0, "empty attribute type", nil)
	}

	rawValue := trimTrailingUnescapedSpaces(strings.TrimLeft(s[eq+1:], " "))
	var value string
	if strings.HasPrefix(rawValue, "#") {
		decoded, err := hex.DecodeString(rawValue[1:])
		if err != nil {
			return AttributeTypeAndValue{}, ldaperr.Decodef(0, "invalid hex-encoded attribute value", err)
		}
		value = string(decoded)
	} else {
		unescaped, err := unescapeValue(rawValue)
		if err != nil {
			return AttributeTypeAndValue{}, err
		}
		value = unescaped
	}

	return AttributeTypeAndValue{Type: typ, Value: value}, nil
}

// splitUnescaped splits s on any of seps, ignoring separators that are
// backslash-escaped or inside a quoted run.
func splitUnescaped(s string, seps ...rune) ([]string, error) {
	var parts []string
	var cur strings.Builder
	escaped := false
	quoted := false

	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			cur.WriteRune(r)
			escaped = true
		case r == '"':
			cur.WriteRune(r)
			quoted = !quoted
		case !quoted && containsRune(seps, r):
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if escaped {
		return nil, ldaperr.Decodef(0, "trailing unterminated escape", nil)
	}
	if quoted {
		return nil, ldaperr.Decodef(0, "unterminated quoted value", nil)
	}
	parts = append(parts, cur.String())
	return parts, nil
}

func indexUnescaped(s string, target rune) (int, error) {
	escaped := false
	for i, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == target:
			return i, nil
		}
	}
	if escaped {
		return -1, ldaperr.Decodef(0, "trailing unterminated escape", nil)
	}
	return -1, nil
}

func containsRune(rs []rune, target rune) bool {
	for _, r := range rs {
		if r == target {
			return true
		}
	}
	return false
}

// unescapeValue resolves RFC 4514 backslash escapes: \XX hex pairs and
// \<special char> literal escapes, and strips one layer of surrounding
// quotes (RFC 2253 compatibility).
func unescapeValue(s string) (string, error) {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	var out strings.Builder
	i := 0
	for i < len(s) {
		if s[i] != '\\' {
			out.WriteByte(s[i])
			i++
			continue
		}

		if i+1 >= len(s) {
			return "", ldaperr.Decodef(i, "trailing unterminated escape", nil)
		}

		if isHexDigit(s[i+1]) {
			if i+2 >= len(s) || !isHexDigit(s[i+2]) {
				return "", ldaperr.Decodef(i, "incomplete hex escape", nil)
			}
			b, err := hex.DecodeString(s[i+1 : i+3])
			if err != nil {
				return "", ldaperr.Decodef(i, "invalid hex escape", err)
			}
			out.Write(b)
			i += 3
			continue
		}

		out.WriteByte(s[i+1])
		i += 2
	}
	return out.String(), nil
}

// trimTrailingUnescapedSpaces drops optional whitespace after a value,
// leaving backslash-escaped trailing spaces intact.
func trimTrailingUnescapedSpaces(s string) string {
	for len(s) > 0 && s[len(s)-1] == ' ' {
		backslashes := 0
		for i := len(s) - 2; i >= 0 && s[i] == '\\'; i-- {
			backslashes++
		}
		if backslashes%2 == 1 {
			break
		}
		s = s[:len(s)-1]
	}
	return s
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

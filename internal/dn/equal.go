package dn

import "strings"

// Equal compares two DNs per RFC 4514's schema-unaware equality: same
// number of RDNs, each RDN holding the same attribute/value pairs
// (order-independent within a multivalued RDN), attribute type compared
// case-insensitively and value compared case-insensitively after
// trimming — the same trimmed-case-fold rule used for filter equality
// matching, absent a full per-syntax schema.
func Equal(a, b DN) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !rdnEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func rdnEqual(a, b RDN) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, avaA := range a {
		matched := false
		for j, avaB := range b {
			if used[j] {
				continue
			}
			if avaEqual(avaA, avaB) {
				used[j] = true
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func avaEqual(a, b AttributeTypeAndValue) bool {
	return strings.EqualFold(a.Type, b.Type) &&
		strings.EqualFold(strings.TrimSpace(a.Value), strings.TrimSpace(b.Value))
}

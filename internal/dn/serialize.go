package dn

import "strings"

// String renders dn back to RFC 4514 text, escaping special characters
// and a leading/trailing space or leading '#' in each value.
func (d DN) String() string {
	rdnStrs := make([]string, len(d))
	for i, rdn := range d {
		rdnStrs[i] = rdn.String()
	}
	return strings.Join(rdnStrs, ",")
}

// String renders one RDN, joining multivalued attribute pairs with '+'.
func (r RDN) String() string {
	avaStrs := make([]string, len(r))
	for i, ava := range r {
		avaStrs[i] = ava.Type + "=" + escapeValue(ava.Value)
	}
	return strings.Join(avaStrs, "+")
}

var valueSpecialChars = map[byte]bool{
	',': true, '+': true, '"': true, '\\': true,
	'<': true, '>': true, ';': true,
}

// escapeValue escapes an attribute value per RFC 4514 section 2.4: a
// leading space or '#', a trailing space, and the characters
// ,+"\<>; are backslash-escaped; NUL is escaped as \00.
func escapeValue(v string) string {
	var out strings.Builder
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c == 0:
			out.WriteString(`\00`)
		case valueSpecialChars[c]:
			out.WriteByte('\\')
			out.WriteByte(c)
		case c == ' ' && (i == 0 || i == len(v)-1):
			out.WriteByte('\\')
			out.WriteByte(c)
		case c == '#' && i == 0:
			out.WriteByte('\\')
			out.WriteByte(c)
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}

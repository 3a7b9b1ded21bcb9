package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// String renders the filter in its canonical RFC 4515 form. Special
// characters in assertion values ('*', '(', ')', '\', NUL) are escaped as
// "\NN" hex sequences, so Parse(f.String()) reproduces an equivalent tree.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}

	var b strings.Builder
	f.writeTo(&b)
	return b.String()
}

func (f *Filter) writeTo(b *strings.Builder) {
	b.WriteByte('(')
	switch f.Type {
	case FilterAnd:
		b.WriteByte('&')
		for _, child := range f.Children {
			child.writeTo(b)
		}

	case FilterOr:
		b.WriteByte('|')
		for _, child := range f.Children {
			child.writeTo(b)
		}

	case FilterNot:
		b.WriteByte('!')
		if f.Child != nil {
			f.Child.writeTo(b)
		}

	case FilterEquality:
		b.WriteString(f.Attribute)
		b.WriteByte('=')
		b.WriteString(escapeFilterValue(f.Value))

	case FilterGreaterOrEqual:
		b.WriteString(f.Attribute)
		b.WriteString(">=")
		b.WriteString(escapeFilterValue(f.Value))

	case FilterLessOrEqual:
		b.WriteString(f.Attribute)
		b.WriteString("<=")
		b.WriteString(escapeFilterValue(f.Value))

	case FilterApproxMatch:
		b.WriteString(f.Attribute)
		b.WriteString("~=")
		b.WriteString(escapeFilterValue(f.Value))

	case FilterPresent:
		b.WriteString(f.Attribute)
		b.WriteString("=*")

	case FilterSubstring:
		b.WriteString(f.Attribute)
		b.WriteByte('=')
		if f.Substring != nil {
			if len(f.Substring.Initial) > 0 {
				b.WriteString(escapeFilterValue(f.Substring.Initial))
			}
			b.WriteByte('*')
			for _, any := range f.Substring.Any {
				b.WriteString(escapeFilterValue(any))
				b.WriteByte('*')
			}
			if len(f.Substring.Final) > 0 {
				b.WriteString(escapeFilterValue(f.Substring.Final))
			}
		}

	case FilterExtensibleMatch:
		em := f.ExtensibleMatch
		if em != nil {
			if em.Attribute != "" {
				b.WriteString(em.Attribute)
			}
			if em.DNAttributes {
				b.WriteString(":dn")
			}
			if em.MatchingRule != "" {
				b.WriteByte(':')
				b.WriteString(em.MatchingRule)
			}
			b.WriteString(":=")
			b.WriteString(escapeFilterValue(em.Value))
		}

	default:
		b.WriteString("unknown(")
		b.WriteString(strconv.Itoa(int(f.Type)))
		b.WriteByte(')')
	}
	b.WriteByte(')')
}

// escapeFilterValue escapes '*', '(', ')', '\' and NUL per RFC 4515.
func escapeFilterValue(value []byte) string {
	var b strings.Builder
	for _, c := range value {
		switch c {
		case '*', '(', ')', '\\', 0x00:
			fmt.Fprintf(&b, "\\%02X", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

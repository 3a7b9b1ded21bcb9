// Package filter implements LDAP search filter parsing, in-memory
// representation, and serialization as defined in RFC 4511 and RFC 4515.
//
// # Overview
//
// The filter package turns an RFC 4515 filter string into a Filter tree
// that the ldap package can encode onto the wire, and can render a Filter
// back into its canonical string form. It supports all standard filter
// types:
//
//   - AND (&): Logical conjunction of filters
//   - OR (|): Logical disjunction of filters
//   - NOT (!): Logical negation of a filter
//   - Equality (=): Exact attribute value match
//   - Substring (*): Pattern matching with wildcards
//   - Greater-or-Equal (>=): Comparison filter
//   - Less-or-Equal (<=): Comparison filter
//   - Present (=*): Attribute existence check
//   - Approximate (~=): Fuzzy matching
//   - Extensible match (:=): Matching-rule-qualified comparison
//
// # Filter Construction
//
// Filters can be constructed programmatically:
//
//	// Simple equality filter: (uid=alice)
//	f := filter.NewEqualityFilter("uid", []byte("alice"))
//
//	// Presence filter: (mail=*)
//	f := filter.NewPresentFilter("mail")
//
//	// AND filter: (&(objectClass=person)(uid=alice))
//	f := filter.NewAndFilter(
//	    filter.NewEqualityFilter("objectClass", []byte("person")),
//	    filter.NewEqualityFilter("uid", []byte("alice")),
//	)
//
//	// NOT filter: (!(status=disabled))
//	f := filter.NewNotFilter(
//	    filter.NewEqualityFilter("status", []byte("disabled")),
//	)
//
// or parsed from a filter string:
//
//	f, err := filter.Parse("(&(objectClass=person)(uid=alice))")
//
// # Substring Filters
//
// Substring filters support initial, any, and final components:
//
//	// (cn=John*)
//	sf := &filter.SubstringFilter{
//	    Attribute: "cn",
//	    Initial:   []byte("John"),
//	}
//	f := filter.NewSubstringFilter(sf)
//
// # Round-tripping
//
// String() renders a Filter back to its RFC 4515 form, escaping
// '*', '(', ')', '\' and NUL per the standard, so that
// filter.Parse(f.String()) reproduces an equivalent tree.
package filter

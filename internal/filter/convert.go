package filter

import (
	"github.com/oba-ldap/oba/internal/ldap"
)

// ToLDAPFilter converts a parsed Filter into the ldap.SearchFilter shape the
// protocol encoder expects, recursing into children.
func (f *Filter) ToLDAPFilter() (*ldap.SearchFilter, error) {
	if f == nil {
		return nil, ErrEmptyFilter
	}

	switch f.Type {
	case FilterAnd, FilterOr:
		children := make([]*ldap.SearchFilter, 0, len(f.Children))
		for _, child := range f.Children {
			lf, err := child.ToLDAPFilter()
			if err != nil {
				return nil, err
			}
			children = append(children, lf)
		}
		tag := ldap.FilterTagAnd
		if f.Type == FilterOr {
			tag = ldap.FilterTagOr
		}
		return &ldap.SearchFilter{Type: tag, Children: children}, nil

	case FilterNot:
		child, err := f.Child.ToLDAPFilter()
		if err != nil {
			return nil, err
		}
		return &ldap.SearchFilter{Type: ldap.FilterTagNot, Child: child}, nil

	case FilterEquality:
		return &ldap.SearchFilter{Type: ldap.FilterTagEquality, Attribute: f.Attribute, Value: f.Value}, nil

	case FilterGreaterOrEqual:
		return &ldap.SearchFilter{Type: ldap.FilterTagGreaterOrEqual, Attribute: f.Attribute, Value: f.Value}, nil

	case FilterLessOrEqual:
		return &ldap.SearchFilter{Type: ldap.FilterTagLessOrEqual, Attribute: f.Attribute, Value: f.Value}, nil

	case FilterApproxMatch:
		return &ldap.SearchFilter{Type: ldap.FilterTagApproxMatch, Attribute: f.Attribute, Value: f.Value}, nil

	case FilterPresent:
		return &ldap.SearchFilter{Type: ldap.FilterTagPresent, Attribute: f.Attribute}, nil

	case FilterSubstring:
		if f.Substring == nil {
			return nil, ErrInvalidFilter
		}
		return &ldap.SearchFilter{
			Type:      ldap.FilterTagSubstrings,
			Attribute: f.Substring.Attribute,
			Substrings: &ldap.SubstringComponents{
				Initial: f.Substring.Initial,
				Any:     f.Substring.Any,
				Final:   f.Substring.Final,
			},
		}, nil

	case FilterExtensibleMatch:
		if f.ExtensibleMatch == nil {
			return nil, ErrInvalidFilter
		}
		em := f.ExtensibleMatch
		return &ldap.SearchFilter{
			Type: ldap.FilterTagExtensibleMatch,
			ExtensibleMatch: &ldap.ExtensibleMatchComponents{
				MatchingRule: em.MatchingRule,
				Type:         em.Attribute,
				MatchValue:   em.Value,
				DNAttributes: em.DNAttributes,
			},
		}, nil

	default:
		return nil, ErrInvalidFilter
	}
}

// FromLDAPFilter converts a decoded ldap.SearchFilter back into the
// package's Filter representation, recursing into children. Used when a
// server sends back a filter (e.g. in a persistent search notification)
// that the caller wants to inspect or re-render as a string.
func FromLDAPFilter(lf *ldap.SearchFilter) (*Filter, error) {
	if lf == nil {
		return nil, ErrEmptyFilter
	}

	switch lf.Type {
	case ldap.FilterTagAnd, ldap.FilterTagOr:
		children := make([]*Filter, 0, len(lf.Children))
		for _, child := range lf.Children {
			f, err := FromLDAPFilter(child)
			if err != nil {
				return nil, err
			}
			children = append(children, f)
		}
		if lf.Type == ldap.FilterTagAnd {
			return NewAndFilter(children...), nil
		}
		return NewOrFilter(children...), nil

	case ldap.FilterTagNot:
		child, err := FromLDAPFilter(lf.Child)
		if err != nil {
			return nil, err
		}
		return NewNotFilter(child), nil

	case ldap.FilterTagEquality:
		return NewEqualityFilter(lf.Attribute, lf.Value), nil

	case ldap.FilterTagGreaterOrEqual:
		return NewGreaterOrEqualFilter(lf.Attribute, lf.Value), nil

	case ldap.FilterTagLessOrEqual:
		return NewLessOrEqualFilter(lf.Attribute, lf.Value), nil

	case ldap.FilterTagApproxMatch:
		return NewApproxMatchFilter(lf.Attribute, lf.Value), nil

	case ldap.FilterTagPresent:
		return NewPresentFilter(lf.Attribute), nil

	case ldap.FilterTagSubstrings:
		if lf.Substrings == nil {
			return nil, ErrInvalidFilter
		}
		return NewSubstringFilter(&SubstringFilter{
			Attribute: lf.Attribute,
			Initial:   lf.Substrings.Initial,
			Any:       lf.Substrings.Any,
			Final:     lf.Substrings.Final,
		}), nil

	case ldap.FilterTagExtensibleMatch:
		if lf.ExtensibleMatch == nil {
			return nil, ErrInvalidFilter
		}
		em := lf.ExtensibleMatch
		return NewExtensibleMatchFilter(&ExtensibleMatchFilter{
			MatchingRule: em.MatchingRule,
			Attribute:    em.Type,
			Value:        em.MatchValue,
			DNAttributes: em.DNAttributes,
		}), nil

	default:
		return nil, ErrInvalidFilter
	}
}

package selector

import (
	"errors"
	"fmt"
)

// ErrIncompatible is returned by Merge for selectors that cannot be merged.
var ErrIncompatible = errors.New("selector: selectors are not merge-compatible")

// IsMergeCompatible reports whether s and o describe the same instances, so
// that their attribute lists and nested selectors can be unioned.
func (s *Selector) IsMergeCompatible(o *Selector) bool {
	if s.typ != o.typ || s.prefix != o.prefix || s.key != o.key || s.keyName != o.keyName {
		return false
	}
	if s.queryType != o.queryType || s.noFields != o.noFields {
		return false
	}
	for _, a := range s.stringValues {
		if contains(o.values, a.Name) {
			return false
		}
		for _, b := range o.stringValues {
			if a.Name == b.Name && !equalStrings(a.Allowed, b.Allowed) {
				return false
			}
		}
	}
	for _, b := range o.stringValues {
		if contains(s.values, b.Name) {
			return false
		}
	}
	for _, c := range s.children {
		if oc, ok := o.Child(c.Name); ok && !c.Selector.IsMergeCompatible(oc) {
			return false
		}
	}
	return true
}

// Merge returns a new selector holding the union of s and o. Neither input is
// modified. Merging incompatible selectors returns ErrIncompatible.
func (s *Selector) Merge(o *Selector) (*Selector, error) {
	if !s.IsMergeCompatible(o) {
		return nil, fmt.Errorf("%w (type %q/%q, prefix %q/%q, key %q/%q)",
			ErrIncompatible, s.typ, o.typ, s.prefix, o.prefix, s.key, o.key)
	}

	m := &Selector{
		typ:       s.typ,
		prefix:    s.prefix,
		key:       s.key,
		keyName:   s.keyName,
		queryType: s.queryType,
		noFields:  s.noFields,
		values:    union(s.values, o.values),
	}

	m.stringValues = append([]StringValues(nil), s.stringValues...)
	for _, b := range o.stringValues {
		if !hasStringValues(m.stringValues, b.Name) {
			m.stringValues = append(m.stringValues, b)
		}
	}

	// A nil allow-list selects every instance and absorbs the other list.
	if s.selectedKeys != nil && o.selectedKeys != nil {
		m.selectedKeys = union(s.selectedKeys, o.selectedKeys)
	}

	for _, c := range s.children {
		child := c.Selector
		if oc, ok := o.Child(c.Name); ok {
			merged, err := child.Merge(oc)
			if err != nil {
				return nil, err
			}
			child = merged
		}
		m.children = append(m.children, Child{Name: c.Name, Selector: child})
	}
	for _, c := range o.children {
		if _, ok := s.Child(c.Name); !ok {
			m.children = append(m.children, c)
		}
	}
	return m, nil
}

func union(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := append([]string(nil), a...)
	for _, v := range b {
		if !contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func hasStringValues(list []StringValues, name string) bool {
	for _, sv := range list {
		if sv.Name == name {
			return true
		}
	}
	return false
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

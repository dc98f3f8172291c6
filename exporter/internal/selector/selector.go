package selector

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Recognised selector keys. Any other key names a nested selector.
const (
	keyType         = "type"
	keyPrefix       = "prefix"
	keyKey          = "key"
	keyKeyName      = "keyName"
	keyValues       = "values"
	keyStringValues = "stringValues"
	keySelectedKeys = "selectedKeys"
)

// TypeField is the attribute in which the backend reports an instance's type.
const TypeField = "type"

// Error is a configuration error found while building a selector.
type Error struct {
	// Field is the dotted path of the offending entry, e.g. "groups.values".
	Field string
	Msg   string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

// StringValues maps an attribute to its allowed string values. The metric
// value emitted for the attribute is the ordinal of the observed string.
type StringValues struct {
	Name    string
	Allowed []string
}

// Index returns the position of observed in Allowed, ignoring case, or -1.
func (sv StringValues) Index(observed string) int {
	for i, v := range sv.Allowed {
		if strings.EqualFold(v, observed) {
			return i
		}
	}
	return -1
}

// Child is a named nested selector.
type Child struct {
	Name     string
	Selector *Selector
}

// Selector is one node of a selector tree. The zero value selects every field
// of a singleton and is valid.
type Selector struct {
	typ          string
	prefix       string
	key          string
	keyName      string
	values       []string
	stringValues []StringValues
	selectedKeys []string
	children     []Child
	queryType    QueryType

	// noFields marks a synthetic wrapper that requests no attributes of its own.
	noFields bool
}

// Type returns the runtime type filter, or "".
func (s *Selector) Type() string { return s.typ }

// Prefix returns the prefix prepended to emitted metric names.
func (s *Selector) Prefix() string { return s.prefix }

// Key returns the attribute whose value labels each instance, or "".
func (s *Selector) Key() string { return s.key }

// KeyName returns the label name used for Key. It defaults to Key.
func (s *Selector) KeyName() string {
	if s.keyName != "" {
		return s.keyName
	}
	return s.key
}

// Values returns the numeric attributes to fetch.
func (s *Selector) Values() []string { return s.values }

// StringValues returns the enumerated string attributes to fetch.
func (s *Selector) StringValues() []StringValues { return s.stringValues }

// SelectedKeys returns the allow-list of key values, or nil for all instances.
func (s *Selector) SelectedKeys() []string { return s.selectedKeys }

// Children returns the nested selectors in configuration order.
func (s *Selector) Children() []Child { return s.children }

// QueryType returns the kind of query this tree belongs to.
func (s *Selector) QueryType() QueryType { return s.queryType }

// Child returns the nested selector registered under name.
func (s *Selector) Child(name string) (*Selector, bool) {
	for _, c := range s.children {
		if c.Name == name {
			return c.Selector, true
		}
	}
	return nil, false
}

// UsesAllValues reports whether the selector lists no attributes, in which
// case every scalar attribute of a matching instance is eligible.
func (s *Selector) UsesAllValues() bool {
	return !s.noFields && len(s.values) == 0 && len(s.stringValues) == 0
}

// IsSelected reports whether an instance with the given key value is scraped.
func (s *Selector) IsSelected(keyValue string) bool {
	if s.selectedKeys == nil {
		return true
	}
	for _, k := range s.selectedKeys {
		if k == keyValue {
			return true
		}
	}
	return false
}

// Build constructs a selector tree from a YAML mapping node. Every key other
// than the recognised selector fields becomes a nested selector, built the
// same way. qt is applied to the whole tree.
func Build(node *yaml.Node, qt QueryType) (*Selector, error) {
	return build(node, "", qt)
}

// FromMap builds a selector from a generic nested map. Map iteration order is
// not preserved: nested selectors come out sorted by name.
func FromMap(m map[string]any, qt QueryType) (*Selector, error) {
	var node yaml.Node
	if err := node.Encode(m); err != nil {
		return nil, fmt.Errorf("selector: encode map: %w", err)
	}
	return Build(&node, qt)
}

func build(node *yaml.Node, path string, qt QueryType) (*Selector, error) {
	node = resolve(node)
	s := &Selector{queryType: qt}
	if node == nil || isNull(node) {
		return s, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, &Error{Field: path, Msg: "expected a mapping"}
	}

	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		val := node.Content[i+1]
		field := join(path, name)
		if seen[name] {
			return nil, &Error{Field: field, Msg: "duplicate entry"}
		}
		seen[name] = true

		var err error
		switch name {
		case keyType:
			s.typ, err = scalar(val, field)
		case keyPrefix:
			s.prefix, err = scalar(val, field)
		case keyKey:
			s.key, err = scalar(val, field)
		case keyKeyName:
			s.keyName, err = scalar(val, field)
		case keyValues:
			s.values, err = stringList(val, field)
		case keyStringValues:
			s.stringValues, err = stringValuesMap(val, field)
		case keySelectedKeys:
			s.selectedKeys, err = stringList(val, field)
		default:
			var child *Selector
			child, err = build(val, field, qt)
			if err == nil {
				s.children = append(s.children, Child{Name: name, Selector: child})
			}
		}
		if err != nil {
			return nil, err
		}
	}

	if s.selectedKeys != nil && s.key == "" {
		return nil, &Error{Field: join(path, keySelectedKeys), Msg: "selectedKeys requires a key"}
	}
	for _, sv := range s.stringValues {
		if contains(s.values, sv.Name) {
			return nil, &Error{
				Field: join(path, keyStringValues),
				Msg:   fmt.Sprintf("%q is listed in both values and stringValues", sv.Name),
			}
		}
	}
	return s, nil
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil {
		switch n.Kind {
		case yaml.DocumentNode:
			if len(n.Content) == 0 {
				return nil
			}
			n = n.Content[0]
		case yaml.AliasNode:
			n = n.Alias
		default:
			return n
		}
	}
	return nil
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

func scalar(n *yaml.Node, field string) (string, error) {
	n = resolve(n)
	if n == nil || n.Kind != yaml.ScalarNode || isNull(n) {
		return "", &Error{Field: field, Msg: "expected a string"}
	}
	return n.Value, nil
}

// stringList accepts a sequence of strings or a single scalar.
func stringList(n *yaml.Node, field string) ([]string, error) {
	n = resolve(n)
	if n == nil || isNull(n) {
		return nil, &Error{Field: field, Msg: "must not be empty"}
	}
	if n.Kind == yaml.ScalarNode {
		return []string{n.Value}, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, &Error{Field: field, Msg: "expected a list of strings"}
	}
	if len(n.Content) == 0 {
		return nil, &Error{Field: field, Msg: "must not be empty"}
	}
	out := make([]string, 0, len(n.Content))
	for _, item := range n.Content {
		v, err := scalar(item, field)
		if err != nil {
			return nil, err
		}
		if contains(out, v) {
			return nil, &Error{Field: field, Msg: fmt.Sprintf("duplicate value %q", v)}
		}
		out = append(out, v)
	}
	return out, nil
}

func stringValuesMap(n *yaml.Node, field string) ([]StringValues, error) {
	n = resolve(n)
	if n == nil || isNull(n) {
		return nil, &Error{Field: field, Msg: "must not be empty"}
	}
	if n.Kind != yaml.MappingNode {
		return nil, &Error{Field: field, Msg: "expected a mapping of attribute to allowed values"}
	}
	if len(n.Content) == 0 {
		return nil, &Error{Field: field, Msg: "must not be empty"}
	}
	out := make([]StringValues, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		name := n.Content[i].Value
		for _, sv := range out {
			if sv.Name == name {
				return nil, &Error{Field: field, Msg: fmt.Sprintf("duplicate attribute %q", name)}
			}
		}
		allowed, err := stringList(n.Content[i+1], join(field, name))
		if err != nil {
			return nil, err
		}
		out = append(out, StringValues{Name: name, Allowed: allowed})
	}
	return out, nil
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

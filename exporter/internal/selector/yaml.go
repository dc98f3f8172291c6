package selector

import "gopkg.in/yaml.v3"

// Node renders the selector as a YAML mapping that Build accepts.
func (s *Selector) Node() *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	put := func(k string, v *yaml.Node) {
		m.Content = append(m.Content, str(k), v)
	}
	if s.typ != "" {
		put(keyType, str(s.typ))
	}
	if s.prefix != "" {
		put(keyPrefix, str(s.prefix))
	}
	if s.key != "" {
		put(keyKey, str(s.key))
	}
	if s.keyName != "" {
		put(keyKeyName, str(s.keyName))
	}
	if len(s.selectedKeys) > 0 {
		put(keySelectedKeys, flowList(s.selectedKeys))
	}
	if len(s.values) > 0 {
		put(keyValues, flowList(s.values))
	}
	if len(s.stringValues) > 0 {
		sv := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, v := range s.stringValues {
			sv.Content = append(sv.Content, str(v.Name), flowList(v.Allowed))
		}
		put(keyStringValues, sv)
	}
	for _, c := range s.children {
		put(c.Name, c.Selector.Node())
	}
	return m
}

func str(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func flowList(vs []string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
	for _, v := range vs {
		n.Content = append(n.Content, str(v))
	}
	return n
}

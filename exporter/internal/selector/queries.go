package selector

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Query is a named top-level selector.
type Query struct {
	Name     string
	Selector *Selector
}

// Queries is the ordered list of top-level queries of a configuration.
type Queries []Query

// BuildQueries builds the queries from a YAML sequence of mappings. Each
// mapping may name several queries; they keep document order. A zero, null or
// missing node yields no queries.
func BuildQueries(node *yaml.Node, qt QueryType) (Queries, error) {
	node = resolve(node)
	if node == nil || node.Kind == 0 || isNull(node) {
		return nil, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, &Error{Field: "queries", Msg: "expected a list"}
	}
	var out Queries
	for i, item := range node.Content {
		item = resolve(item)
		if item == nil || item.Kind != yaml.MappingNode {
			return nil, &Error{Field: fmt.Sprintf("queries[%d]", i), Msg: "expected a mapping"}
		}
		for j := 0; j+1 < len(item.Content); j += 2 {
			name := item.Content[j].Value
			sel, err := build(item.Content[j+1], name, qt)
			if err != nil {
				return nil, err
			}
			out = append(out, Query{Name: name, Selector: sel})
		}
	}
	return out, nil
}

// Append returns qs with more added. A query whose name matches an existing,
// merge-compatible query is merged into it; any other query is added after
// the existing ones. qs is not modified.
func (qs Queries) Append(more Queries) (Queries, error) {
	out := append(Queries(nil), qs...)
	for _, q := range more {
		idx := -1
		for i, existing := range out {
			if existing.Name == q.Name && existing.Selector.IsMergeCompatible(q.Selector) {
				idx = i
				break
			}
		}
		if idx < 0 {
			out = append(out, q)
			continue
		}
		merged, err := out[idx].Selector.Merge(q.Selector)
		if err != nil {
			return nil, err
		}
		out[idx] = Query{Name: q.Name, Selector: merged}
	}
	return out, nil
}

// Node renders the queries as a YAML sequence of single-entry mappings.
func (qs Queries) Node() *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, q := range qs {
		seq.Content = append(seq.Content, &yaml.Node{
			Kind:    yaml.MappingNode,
			Tag:     "!!map",
			Content: []*yaml.Node{str(q.Name), q.Selector.Node()},
		})
	}
	return seq
}

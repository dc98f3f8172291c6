package selector

import "encoding/json"

// QuerySpec is the JSON body of a search request.
type QuerySpec struct {
	Links    []string
	Fields   []string
	Names    []string
	Children map[string]*QuerySpec

	// AllFields omits "fields" so that the backend returns every attribute.
	AllFields bool
}

type wireQuerySpec struct {
	Links    []string              `json:"links"`
	Fields   *[]string             `json:"fields,omitempty"`
	Names    []string              `json:"names,omitempty"`
	Children map[string]*QuerySpec `json:"children,omitempty"`
}

// MarshalJSON renders links first and always as an array; fields is omitted
// only for AllFields specs.
func (q *QuerySpec) MarshalJSON() ([]byte, error) {
	w := wireQuerySpec{
		Links:    q.Links,
		Names:    q.Names,
		Children: q.Children,
	}
	if w.Links == nil {
		w.Links = []string{}
	}
	if !q.AllFields {
		fields := q.Fields
		if fields == nil {
			fields = []string{}
		}
		w.Fields = &fields
	}
	return json.Marshal(w)
}

// ToQuerySpec renders the selector tree as a search request body.
func (s *Selector) ToQuerySpec() *QuerySpec {
	q := &QuerySpec{Links: []string{}}

	switch {
	case s.noFields:
		q.Fields = []string{}
	case s.UsesAllValues():
		q.AllFields = true
	default:
		q.Fields = s.fields()
	}
	if s.selectedKeys != nil {
		q.Names = append([]string(nil), s.selectedKeys...)
	}
	if len(s.children) > 0 {
		q.Children = make(map[string]*QuerySpec, len(s.children))
		for _, c := range s.children {
			q.Children[c.Name] = c.Selector.ToQuerySpec()
		}
	}
	return q
}

// fields lists the key, values, string value names and the type field, each
// at most once.
func (s *Selector) fields() []string {
	var out []string
	add := func(f string) {
		if f != "" && !contains(out, f) {
			out = append(out, f)
		}
	}
	add(s.key)
	for _, v := range s.values {
		add(v)
	}
	for _, sv := range s.stringValues {
		add(sv.Name)
	}
	if s.typ != "" {
		add(TypeField)
	}
	return out
}

// Wrap returns the request root for a named top-level query: it fetches no
// attributes itself and has q as its only child.
func Wrap(q Query) *Selector {
	return &Selector{
		queryType: q.Selector.queryType,
		children:  []Child{{Name: q.Name, Selector: q.Selector}},
		noFields:  true,
	}
}

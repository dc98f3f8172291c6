package scraper

import (
	"errors"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/restexporter/restexporter/exporter/internal/selector"
)

// itemsField is the attribute holding the instances of a collection.
const itemsField = "items"

// Options controls how samples are named and labelled.
type Options struct {
	// SnakeCase converts metric and label names to snake_case.
	SnakeCase bool

	// Labels are prepended to the labels of every sample, e.g. the domain.
	Labels []Label
}

// Scrape parses body as JSON and scrapes it with sel.
func Scrape(sel *selector.Selector, body []byte, opts Options) (*Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("scraper: reply is not valid JSON")
	}
	return ScrapeJSON(sel, gjson.ParseBytes(body), opts), nil
}

// ScrapeJSON scrapes an already parsed reply. An absent or null reply yields
// an empty result.
func ScrapeJSON(sel *selector.Selector, reply gjson.Result, opts Options) *Result {
	s := &scrape{
		opts:           opts,
		acceptsStrings: sel.QueryType().AcceptsStrings(),
		res:            &Result{},
	}
	s.node(sel, reply, opts.Labels)
	return s.res
}

type scrape struct {
	opts           Options
	acceptsStrings bool
	res            *Result
}

func (s *scrape) node(sel *selector.Selector, v gjson.Result, labels []Label) {
	switch {
	case !v.Exists() || v.Type == gjson.Null:
		return
	case v.IsArray():
		for _, item := range v.Array() {
			s.instance(sel, item, labels)
		}
	case v.IsObject():
		if items, ok := fieldsOf(v).get(itemsField); ok && items.IsArray() {
			for _, item := range items.Array() {
				s.instance(sel, item, labels)
			}
			return
		}
		s.instance(sel, v, labels)
	}
}

func (s *scrape) instance(sel *selector.Selector, obj gjson.Result, inherited []Label) {
	if !obj.IsObject() {
		return
	}
	fields := fieldsOf(obj)

	if t := sel.Type(); t != "" {
		if v, ok := fields.get(selector.TypeField); !ok || v.String() != t {
			return
		}
	}

	labels := inherited
	if key := sel.Key(); key != "" {
		kv, ok := fields.get(key)
		switch {
		case ok && kv.Type != gjson.Null:
			if !sel.IsSelected(kv.String()) {
				return
			}
			labels = s.withLabel(inherited, sel.KeyName(), kv.String())
		case sel.SelectedKeys() != nil:
			return
		}
	}

	s.values(sel, fields, labels)

	for _, c := range sel.Children() {
		child, _ := fields.get(c.Name)
		s.node(c.Selector, child, labels)
	}
}

func (s *scrape) values(sel *selector.Selector, fields *fieldList, labels []Label) {
	if sel.UsesAllValues() {
		for _, f := range fields.list {
			if f.name == sel.Key() || (sel.Type() != "" && f.name == selector.TypeField) {
				continue
			}
			if _, nested := sel.Child(f.name); nested {
				continue
			}
			s.scalar(sel, f.name, f.value, labels)
		}
	} else {
		for _, name := range sel.Values() {
			if name == sel.Key() {
				continue
			}
			if v, ok := fields.get(name); ok {
				s.scalar(sel, name, v, labels)
			}
		}
	}

	for _, sv := range sel.StringValues() {
		idx := -1
		if v, ok := fields.get(sv.Name); ok && v.Type == gjson.String {
			idx = sv.Index(v.Str)
		}
		s.emit(Sample{Name: s.metricName(sel, sv.Name), Labels: labels, Value: float64(idx)})
	}
}

func (s *scrape) scalar(sel *selector.Selector, field string, v gjson.Result, labels []Label) {
	switch v.Type {
	case gjson.Number:
		s.emit(Sample{Name: s.metricName(sel, field), Labels: labels, Value: v.Num})
	case gjson.String:
		if s.acceptsStrings {
			s.emit(Sample{Name: s.metricName(sel, field), Labels: labels, Text: v.Str, IsText: true})
		}
	}
}

func (s *scrape) emit(sample Sample) {
	s.res.Samples = append(s.res.Samples, sample)
}

func (s *scrape) metricName(sel *selector.Selector, field string) string {
	return s.convert(sel.Prefix() + field)
}

func (s *scrape) convert(name string) string {
	if s.opts.SnakeCase {
		return SnakeCase(name)
	}
	return name
}

// withLabel returns a new label list with name=value appended. A name already
// used higher up the tree gets the suffix "2".
func (s *scrape) withLabel(inherited []Label, name, value string) []Label {
	name = s.convert(name)
	if hasLabel(inherited, name) {
		renamed := name + "2"
		if hasLabel(inherited, renamed) {
			// TODO: pick a numbering scheme for three or more equal label names in one chain.
			slog.Warn("scraper: label name collides more than once", "label", name)
		}
		name = renamed
	}
	out := make([]Label, 0, len(inherited)+1)
	out = append(out, inherited...)
	return append(out, Label{Name: name, Value: value})
}

func hasLabel(labels []Label, name string) bool {
	for _, l := range labels {
		if l.Name == name {
			return true
		}
	}
	return false
}

type field struct {
	name  string
	value gjson.Result
}

// fieldList keeps an object's attributes in document order. Lookups go
// through the list rather than gjson paths so that names containing path
// syntax (dots, wildcards) are matched literally.
type fieldList struct {
	list  []field
	index map[string]int
}

func fieldsOf(obj gjson.Result) *fieldList {
	fl := &fieldList{index: make(map[string]int)}
	obj.ForEach(func(k, v gjson.Result) bool {
		name := k.String()
		if _, dup := fl.index[name]; !dup {
			fl.index[name] = len(fl.list)
			fl.list = append(fl.list, field{name: name, value: v})
		}
		return true
	})
	return fl
}

func (fl *fieldList) get(name string) (gjson.Result, bool) {
	i, ok := fl.index[name]
	if !ok {
		return gjson.Result{}, false
	}
	return fl.list[i].value, true
}

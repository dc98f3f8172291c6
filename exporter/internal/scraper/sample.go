package scraper

import "strings"

// Label is one metric label.
type Label struct {
	Name  string
	Value string
}

// Sample is one scraped metric value.
type Sample struct {
	Name   string
	Labels []Label

	// Value is the numeric value. It is unused when IsText is set.
	Value float64

	// Text holds a string attribute read by a configuration query.
	Text   string
	IsText bool
}

// Line renders the metric line of s: name{label1="v1",label2="v2"}.
func (s Sample) Line() string {
	if len(s.Labels) == 0 {
		return s.Name
	}
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteByte('{')
	for i, l := range s.Labels {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(l.Name)
		b.WriteString(`="`)
		b.WriteString(labelValueEscaper.Replace(l.Value))
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

// Any returns the sample value as a float64 or, for text samples, a string.
func (s Sample) Any() any {
	if s.IsText {
		return s.Text
	}
	return s.Value
}

var labelValueEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, `"`, `\"`)

// Result is the outcome of scraping one reply.
type Result struct {
	// Samples are in emission order.
	Samples []Sample
}

// Map returns the samples keyed by metric line. A later duplicate line wins.
func (r *Result) Map() map[string]any {
	m := make(map[string]any, len(r.Samples))
	for _, s := range r.Samples {
		m[s.Line()] = s.Any()
	}
	return m
}

// Numeric returns the non-text samples.
func (r *Result) Numeric() []Sample {
	out := make([]Sample, 0, len(r.Samples))
	for _, s := range r.Samples {
		if !s.IsText {
			out = append(out, s)
		}
	}
	return out
}

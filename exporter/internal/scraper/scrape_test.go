package scraper

import (
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/restexporter/restexporter/exporter/internal/selector"
)

func sel(t *testing.T, doc string, qt selector.QueryType) *selector.Selector {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(doc), &node); err != nil {
		t.Fatalf("parse yaml: %v", err)
	}
	s, err := selector.Build(&node, qt)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return s
}

func scrapeMap(t *testing.T, s *selector.Selector, body string, opts Options) map[string]any {
	t.Helper()
	res, err := Scrape(s, []byte(body), opts)
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	return res.Map()
}

func assertMetrics(t *testing.T, got, want map[string]any) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("metrics:\n got %v\nwant %v", got, want)
	}
}

const groupsSelector = `
groups:
  prefix: groupValue_
  key: name
  values: [testSample1, testSample2]
`

func TestScrape_Collection(t *testing.T) {
	got := scrapeMap(t, sel(t, groupsSelector, selector.Runtime),
		`{"groups":{"items":[{"name":"first","testSample1":12,"testSample2":12.3}]}}`, Options{})
	assertMetrics(t, got, map[string]any{
		`groupValue_testSample1{name="first"}`: 12.0,
		`groupValue_testSample2{name="first"}`: 12.3,
	})
}

func TestScrape_MultipleItems(t *testing.T) {
	got := scrapeMap(t, sel(t, groupsSelector, selector.Runtime), `{"groups":{"items":[
		{"name":"first","testSample1":1},
		{"name":"second","testSample1":2,"testSample2":3}
	]}}`, Options{})
	assertMetrics(t, got, map[string]any{
		`groupValue_testSample1{name="first"}`:  1.0,
		`groupValue_testSample1{name="second"}`: 2.0,
		`groupValue_testSample2{name="second"}`: 3.0,
	})
}

func TestScrape_KeyListedAsValueIsNotEmitted(t *testing.T) {
	s := sel(t, "groups:\n  key: id\n  values: [id, size]\n", selector.Runtime)
	got := scrapeMap(t, s, `{"groups":{"items":[{"id":7,"size":3}]}}`, Options{})
	assertMetrics(t, got, map[string]any{`size{id="7"}`: 3.0})
}

func TestScrape_AbsentOrNullReply(t *testing.T) {
	s := sel(t, groupsSelector, selector.Runtime)
	for _, body := range []string{`{}`, `{"groups":null}`, `null`} {
		if got := scrapeMap(t, s, body, Options{}); len(got) != 0 {
			t.Errorf("body %s: got %v, want no metrics", body, got)
		}
	}
}

func TestScrape_InvalidJSON(t *testing.T) {
	if _, err := Scrape(sel(t, groupsSelector, selector.Runtime), []byte(`{"groups":`), Options{}); err == nil {
		t.Error("expected error for truncated JSON")
	}
}

func TestScrape_NonNumericSkipped(t *testing.T) {
	s := sel(t, "values: [a, b, c, d, e]\n", selector.Runtime)
	got := scrapeMap(t, s, `{"a":1,"b":"text","c":true,"d":null,"e":{"x":1}}`, Options{})
	assertMetrics(t, got, map[string]any{"a": 1.0})
}

func TestScrape_AllValuesWhenNoneListed(t *testing.T) {
	s := sel(t, "jvm:\n  prefix: jvm_\n  key: name\n", selector.Runtime)
	got := scrapeMap(t, s, `{"jvm":{"name":"server1","heapFree":10,"heapSize":20,"vendor":"x"}}`, Options{})
	assertMetrics(t, got, map[string]any{
		`jvm_heapFree{name="server1"}`: 10.0,
		`jvm_heapSize{name="server1"}`: 20.0,
	})
}

func TestScrape_StringValues(t *testing.T) {
	s := sel(t, `
apps:
  key: name
  stringValues:
    state: [NEW, RUNNING, FAILED]
`, selector.Runtime)
	got := scrapeMap(t, s, `{"apps":{"items":[
		{"name":"a","state":"running"},
		{"name":"b","state":"gone"},
		{"name":"c"}
	]}}`, Options{})
	assertMetrics(t, got, map[string]any{
		`state{name="a"}`: 1.0,
		`state{name="b"}`: -1.0,
		`state{name="c"}`: -1.0,
	})
}

func TestScrape_TypeFilter(t *testing.T) {
	s := sel(t, `
components:
  type: WebAppComponentRuntime
  key: name
  values: [sessions]
`, selector.Runtime)
	got := scrapeMap(t, s, `{"components":{"items":[
		{"name":"web","type":"WebAppComponentRuntime","sessions":4},
		{"name":"ejb","type":"EJBComponentRuntime","sessions":9}
	]}}`, Options{})
	assertMetrics(t, got, map[string]any{`sessions{name="web"}`: 4.0})
}

func TestScrape_SelectedKeys(t *testing.T) {
	s := sel(t, "apps:\n  key: name\n  selectedKeys: [keep]\n  values: [v]\n", selector.Runtime)
	got := scrapeMap(t, s, `{"apps":{"items":[{"name":"keep","v":1},{"name":"drop","v":2},{"v":3}]}}`, Options{})
	assertMetrics(t, got, map[string]any{`v{name="keep"}`: 1.0})
}

func TestScrape_NestedLabelsAccumulate(t *testing.T) {
	s := sel(t, `
applicationRuntimes:
  key: name
  keyName: app
  componentRuntimes:
    prefix: webapp_
    key: name
    values: [openSessions]
    servlets:
      prefix: servlet_
      key: servletName
      values: [invocations]
`, selector.Runtime)
	got := scrapeMap(t, s, `{"applicationRuntimes":{"items":[{"name":"shop",
		"componentRuntimes":{"items":[{"name":"shop-web","openSessions":3,
			"servlets":{"items":[{"servletName":"Cart","invocations":42}]}}]}}]}}`, Options{})
	assertMetrics(t, got, map[string]any{
		`webapp_openSessions{app="shop",name="shop-web"}`:                     3.0,
		`servlet_invocations{app="shop",name="shop-web",servletName="Cart"}`: 42.0,
	})
}

func TestScrape_CollidingLabelGetsSuffix(t *testing.T) {
	s := sel(t, `
outer:
  key: name
  inner:
    key: name
    values: [v]
`, selector.Runtime)
	got := scrapeMap(t, s, `{"outer":{"items":[{"name":"a","inner":{"items":[{"name":"b","v":1}]}}]}}`, Options{})
	assertMetrics(t, got, map[string]any{`v{name="a",name2="b"}`: 1.0})
}

func TestScrape_InheritedLabels(t *testing.T) {
	got := scrapeMap(t, sel(t, groupsSelector, selector.Runtime),
		`{"groups":{"items":[{"name":"first","testSample1":1}]}}`,
		Options{Labels: []Label{{Name: "domain", Value: "base"}}})
	assertMetrics(t, got, map[string]any{`groupValue_testSample1{domain="base",name="first"}`: 1.0})
}

func TestScrape_SnakeCase(t *testing.T) {
	s := sel(t, "groups:\n  prefix: groupValue_\n  key: groupName\n  values: [testSample1]\n", selector.Runtime)
	got := scrapeMap(t, s, `{"groups":{"items":[{"groupName":"first","testSample1":1}]}}`, Options{SnakeCase: true})
	assertMetrics(t, got, map[string]any{`group_value_test_sample_1{group_name="first"}`: 1.0})
}

func TestScrape_ConfigurationAcceptsStrings(t *testing.T) {
	got := scrapeMap(t, selector.DomainNameQuery(), `{"name":"mydomain","other":"x"}`, Options{})
	assertMetrics(t, got, map[string]any{"name": "mydomain"})

	rt := sel(t, "values: [name]\n", selector.Runtime)
	if got := scrapeMap(t, rt, `{"name":"mydomain"}`, Options{}); len(got) != 0 {
		t.Errorf("runtime query emitted string value: %v", got)
	}
}

func TestScrape_WrappedQuery(t *testing.T) {
	root := sel(t, groupsSelector, selector.Runtime)
	groups, _ := root.Child("groups")
	wrapped := selector.Wrap(selector.Query{Name: "groups", Selector: groups})
	got := scrapeMap(t, wrapped, `{"serverName":"ms1","groups":{"items":[{"name":"first","testSample1":5}]}}`, Options{})
	assertMetrics(t, got, map[string]any{`groupValue_testSample1{name="first"}`: 5.0})
}

func TestSample_LineEscapesValues(t *testing.T) {
	s := Sample{Name: "m", Labels: []Label{{Name: "l", Value: "a\"b\\c\nd"}}}
	if got, want := s.Line(), `m{l="a\"b\\c\nd"}`; got != want {
		t.Errorf("Line: got %s, want %s", got, want)
	}
}

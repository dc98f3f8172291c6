package selector

import (
	"errors"
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestIsMergeCompatible(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical headers", "key: name\nvalues: [a]", "key: name\nvalues: [b]", true},
		{"both empty", "values: [a]", "values: [b]", true},
		{"different key", "key: name\nvalues: [a]", "key: id\nvalues: [a]", false},
		{"key vs no key", "key: name\nvalues: [a]", "values: [a]", false},
		{"different prefix", "prefix: x_\nvalues: [a]", "prefix: y_\nvalues: [a]", false},
		{"different type", "type: A\nvalues: [a]", "type: B\nvalues: [a]", false},
		{"different keyName", "key: k\nkeyName: a\nvalues: [a]", "key: k\nkeyName: b\nvalues: [a]", false},
		{"same string values", "stringValues:\n  s: [x, y]", "stringValues:\n  s: [x, y]", true},
		{"conflicting string values", "stringValues:\n  s: [x, y]", "stringValues:\n  s: [y, x]", false},
		{"value vs string value", "values: [s]", "stringValues:\n  s: [x]", false},
		{"disjoint children", "one:\n  values: [a]", "two:\n  key: k", true},
		{"incompatible child", "one:\n  key: a", "one:\n  key: b", false},
		{"incompatible grandchild", "one:\n  deep:\n    prefix: a", "one:\n  deep:\n    prefix: b", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a, b := mustBuild(t, tc.a), mustBuild(t, tc.b)
			if got := a.IsMergeCompatible(b); got != tc.want {
				t.Errorf("a.IsMergeCompatible(b) = %v, want %v", got, tc.want)
			}
			if got := b.IsMergeCompatible(a); got != tc.want {
				t.Errorf("b.IsMergeCompatible(a) = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMerge_UnionsValues(t *testing.T) {
	a := mustBuild(t, "key: name\nvalues: [a, b]\nstringValues:\n  s: [x]")
	b := mustBuild(t, "key: name\nvalues: [b, c]\nstringValues:\n  s: [x]\n  t: [y]")
	m, err := a.Merge(b)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(m.Values(), want) {
		t.Errorf("Values: got %v, want %v", m.Values(), want)
	}
	if len(m.StringValues()) != 2 {
		t.Errorf("StringValues: got %+v", m.StringValues())
	}
	if want := []string{"a", "b"}; !reflect.DeepEqual(a.Values(), want) {
		t.Errorf("Merge modified its receiver: %v", a.Values())
	}
}

func TestMerge_DisjointChildren(t *testing.T) {
	a := mustBuild(t, "servlets:\n  key: servletName\n  values: [invocationTotalCount]")
	b := mustBuild(t, "workManagers:\n  key: name\n  values: [pendingRequests]")
	m, err := a.Merge(b)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	children := m.Children()
	if len(children) != 2 || children[0].Name != "servlets" || children[1].Name != "workManagers" {
		t.Errorf("Children: got %+v", children)
	}
}

func TestMerge_RecursesIntoSharedChildren(t *testing.T) {
	a := mustBuild(t, "apps:\n  key: name\n  values: [a]")
	b := mustBuild(t, "apps:\n  key: name\n  values: [b]")
	m, err := a.Merge(b)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	apps, _ := m.Child("apps")
	if want := []string{"a", "b"}; !reflect.DeepEqual(apps.Values(), want) {
		t.Errorf("apps values: got %v, want %v", apps.Values(), want)
	}
}

func TestMerge_SelectedKeys(t *testing.T) {
	a := mustBuild(t, "key: name\nselectedKeys: [x]\nvalues: [v]")
	b := mustBuild(t, "key: name\nselectedKeys: [y]\nvalues: [v]")
	all := mustBuild(t, "key: name\nvalues: [v]")

	m, err := a.Merge(b)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if want := []string{"x", "y"}; !reflect.DeepEqual(m.SelectedKeys(), want) {
		t.Errorf("SelectedKeys: got %v, want %v", m.SelectedKeys(), want)
	}

	m, err = a.Merge(all)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if m.SelectedKeys() != nil {
		t.Errorf("merge with unrestricted selector: got %v, want nil", m.SelectedKeys())
	}
}

func TestMerge_Incompatible(t *testing.T) {
	a := mustBuild(t, "key: name\nvalues: [a]")
	b := mustBuild(t, "key: id\nvalues: [a]")
	if _, err := a.Merge(b); !errors.Is(err, ErrIncompatible) {
		t.Errorf("Merge() error = %v, want ErrIncompatible", err)
	}
}

func TestMerge_Associative(t *testing.T) {
	a := mustBuild(t, "key: k\nvalues: [a]\none:\n  values: [x]")
	b := mustBuild(t, "key: k\nvalues: [b]\ntwo:\n  values: [y]")
	c := mustBuild(t, "key: k\nvalues: [c]\none:\n  values: [z]")

	ab, _ := a.Merge(b)
	left, err := ab.Merge(c)
	if err != nil {
		t.Fatalf("(a+b)+c: %v", err)
	}
	bc, _ := b.Merge(c)
	right, err := a.Merge(bc)
	if err != nil {
		t.Fatalf("a+(b+c): %v", err)
	}
	if l, r := querySpecJSON(t, left), querySpecJSON(t, right); l != r {
		t.Errorf("merge not associative:\n(a+b)+c = %s\na+(b+c) = %s", l, r)
	}
}

func TestQueries_Append(t *testing.T) {
	existing := buildQueries(t, `
- groups:
    key: name
    values: [testSample1]
`)
	added := buildQueries(t, `
- people:
    key: name
    values: [age, sex]
- groups:
    key: name
    values: [testSample2]
`)
	out, err := existing.Append(added)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if len(out) != 2 || out[0].Name != "groups" || out[1].Name != "people" {
		t.Fatalf("Append order: got %+v", out)
	}
	if want := []string{"testSample1", "testSample2"}; !reflect.DeepEqual(out[0].Selector.Values(), want) {
		t.Errorf("merged groups values: got %v, want %v", out[0].Selector.Values(), want)
	}
	if len(existing) != 1 || len(existing[0].Selector.Values()) != 1 {
		t.Error("Append modified the existing queries")
	}
}

func TestQueries_AppendIncompatibleSameName(t *testing.T) {
	existing := buildQueries(t, "- groups:\n    key: name\n")
	added := buildQueries(t, "- groups:\n    key: id\n")
	out, err := existing.Append(added)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if len(out) != 2 {
		t.Errorf("incompatible query should be added as a sibling, got %d queries", len(out))
	}
}

func TestQueries_NodeRoundTrip(t *testing.T) {
	qs := buildQueries(t, "- a:\n    values: [x]\n  b:\n    key: k\n- c:\n    prefix: c_\n")
	out, err := yaml.Marshal(qs.Node())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	again := buildQueries(t, string(out))
	if len(again) != 3 || again[0].Name != "a" || again[1].Name != "b" || again[2].Name != "c" {
		t.Errorf("round trip: got %+v\n%s", again, out)
	}
}

func buildQueries(t *testing.T, doc string) Queries {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(doc), &node); err != nil {
		t.Fatalf("parse yaml: %v", err)
	}
	qs, err := BuildQueries(&node, Runtime)
	if err != nil {
		t.Fatalf("BuildQueries() error = %v", err)
	}
	return qs
}

package selector

// QueryType selects where a query is sent and how its reply is interpreted.
type QueryType uint8

const (
	// Runtime queries read live runtime attributes; non-numeric fields are ignored.
	Runtime QueryType = iota
	// Configuration queries read the domain configuration tree; string fields
	// are accepted as metric values.
	Configuration
)

// DomainRecorder receives the domain name discovered by a configuration query.
type DomainRecorder interface {
	SetDomainName(name string)
}

type queryTypeInfo struct {
	name           string
	urlPattern     string
	acceptsStrings bool
	postProcess    func(metrics map[string]any, r DomainRecorder)
}

var queryTypes = [...]queryTypeInfo{
	Runtime: {
		name:       "runtime",
		urlPattern: "%s://%s:%d/management/weblogic/latest/serverRuntime/search",
		postProcess: func(map[string]any, DomainRecorder) {},
	},
	Configuration: {
		name:           "configuration",
		urlPattern:     "%s://%s:%d/management/weblogic/latest/domainConfig/search",
		acceptsStrings: true,
		postProcess:    recordDomainName,
	},
}

func (t QueryType) info() queryTypeInfo {
	if int(t) < len(queryTypes) {
		return queryTypes[t]
	}
	return queryTypes[Runtime]
}

func (t QueryType) String() string { return t.info().name }

// URLPattern returns the fmt pattern of the search URL, taking the protocol,
// host and port in that order.
func (t QueryType) URLPattern() string { return t.info().urlPattern }

// AcceptsStrings reports whether string attributes become metric values.
func (t QueryType) AcceptsStrings() bool { return t.info().acceptsStrings }

// PostProcess runs the per-type hook over a scrape result keyed by metric line.
func (t QueryType) PostProcess(metrics map[string]any, r DomainRecorder) {
	t.info().postProcess(metrics, r)
}

// domainNameAttribute is the configuration attribute holding the domain name.
const domainNameAttribute = "name"

func recordDomainName(metrics map[string]any, r DomainRecorder) {
	if name, ok := metrics[domainNameAttribute].(string); ok && name != "" {
		r.SetDomainName(name)
	}
}

// DomainNameQuery returns the bootstrap selector that reads the domain name.
func DomainNameQuery() *Selector {
	return &Selector{
		values:    []string{domainNameAttribute},
		queryType: Configuration,
	}
}

// Package selector holds the declarative description of what to read from the
// management REST API.
//
// A Selector is one level of a hierarchical query: an optional runtime type
// filter, a metric name prefix, the attribute used as the per-instance label,
// the numeric and enumerated string attributes to fetch, and named nested
// selectors. Selectors are immutable once built; Merge returns a new tree.
//
// Build walks a YAML mapping node (so child order follows the document),
// ToQuerySpec renders the JSON query body sent to the backend, and Node renders
// the selector back to YAML for serialization of the live configuration.
//
// Queries is the ordered list of named top-level selectors a configuration
// carries; Append implements the "append configuration" operation.
package selector

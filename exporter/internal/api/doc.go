// Package api is the exporter's HTTP surface.
//
// Routes:
//   - GET  /metrics        scrape the management REST API, Prometheus text format
//   - GET  /               the live configuration as YAML
//   - PUT  /configuration  apply YAML; ?action=replace (default) or ?action=append
//   - POST /configuration  same as PUT
//   - GET  /-/metrics      the exporter's own metrics
//
// /metrics forwards the caller's Authorization header to the backend. A 401
// from the backend is returned with its WWW-Authenticate header, a 403 as is
// and a 5xx as a 500 whose body describes the failure in comment lines. When
// no port can be reached the response is a 200 made of comment lines only.
package api

// Package orchestrator performs one authenticated, possibly retried,
// possibly multi-query scrape of the management REST API.
package orchestrator

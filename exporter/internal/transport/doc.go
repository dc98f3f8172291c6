// Package transport performs the HTTP calls to the management REST API and
// classifies their failures into a closed set of kinds the orchestrator
// switches on.
package transport

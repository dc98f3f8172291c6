// Package telemetry holds the exporter's own metrics, served separately from
// the metrics it scrapes.
package telemetry

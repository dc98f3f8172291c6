// Package types defines the wire types shared by the exporter and the
// coordinator.
package types

// Package store holds the latest shared exporter configuration.
package store

// Package exposition writes scrape results in the Prometheus text format.
package exposition

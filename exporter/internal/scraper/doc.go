// Package scraper turns a search reply of the management REST API into metric
// samples, following the selector tree that produced the query.
//
// Scrape walks the reply recursively. Collections ({"items": [...]}) are
// iterated, each instance contributing its key label; the labels accumulate
// down the tree. Numeric attributes become samples named prefix+attribute,
// enumerated string attributes become their ordinal, and configuration
// queries additionally keep string attributes as text samples.
//
// Names are optionally converted to snake_case (SnakeCase, IsCompliant).
package scraper

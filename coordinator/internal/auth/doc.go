// Package auth enforces API key authentication on the coordinator's HTTP
// routes.
package auth

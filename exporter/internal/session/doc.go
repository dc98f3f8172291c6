// Package session caches backend session cookies per caller credential.
package session

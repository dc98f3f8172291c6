// Package api serves the coordinator REST routes:
//
//   - GET /api/v1/configuration  the latest shared configuration
//   - PUT /api/v1/configuration  submit a configuration; 409 when older than the stored one
//   - GET /api/v1/health         liveness and sync state
package api

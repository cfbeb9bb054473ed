// Package api implements the HTTP REST API and the device socket endpoint
// for the garage core.
//
// This package provides:
//   - REST endpoints for login, password changes and admin user creation
//   - POST /command for immediate door commands (rate limited per user)
//   - Execution log and schedule endpoints scoped to the caller
//   - GET /device/ws where the door controller dials in
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - TLS support for production deployments
//
// # Security
//
// Every route except health, metrics, login and the device socket requires
// a bearer JWT. The device socket authenticates with the shared device key
// in its identify frame instead.
//
// # Graceful Degradation
//
// The server runs while the door controller is offline. Commands then fail
// with 503 device_unavailable and nothing is logged.
package api

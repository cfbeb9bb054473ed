// Package config loads and validates garage core configuration.
//
// Values come from three layers, later layers winning:
//   - hardcoded defaults
//   - the YAML file (configs/config.yaml unless GARAGE_CONFIG is set)
//   - GARAGE_* environment variables
//
// Secrets (JWT secret, device key, bootstrap admin password, broker
// credentials) are expected to arrive through the environment rather than
// the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	loc, _ := cfg.Location()
package config

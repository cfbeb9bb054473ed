// Package logging provides structured logging for the garage core.
//
// It wraps log/slog so every entry carries the service name and build
// version, and offers an adapter that lets the cron scheduler log through
// the same handler.
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log secrets, tokens, passwords or device keys.
package logging

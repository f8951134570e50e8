// Package httpserver wraps net/http's Server with graceful shutdown on
// context cancellation or SIGINT/SIGTERM, env-tagged configuration, and a
// health check handler for probes.
package httpserver

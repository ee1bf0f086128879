// Package middleware provides HTTP middleware for the source-seeker server.
//
// It includes:
//   - Request logging in W3C Extended Log Format, with scan state polling
//     and health checks optionally filtered out
//   - Prometheus request metrics with a bounded path label set
//   - gzip compression of large JSON responses
package middleware

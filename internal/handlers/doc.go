// Package handlers provides the HTTP API of the scan server.
//
// It includes handlers for:
//   - Starting, cancelling and polling a similarity scan
//   - Listing and removing cached folder groups
//   - Cache statistics
//   - Health checks, version information and Prometheus metrics
//
// Scan progress is polled: GET /api/scan returns the events and matches
// logged since the offsets the client passes back from its previous poll.
package handlers

// Package api provides the HTTP REST API and WebSocket server for
// Hearth Core.
//
// It exposes the schedule listings, manual overrides, sun times, the
// aggregated device state, and the action log to user interfaces. A
// WebSocket endpoint streams fired actions and device state changes.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Authentication is a shared API key checked on every route except
// the health endpoint. An empty configured key disables the check,
// which is the expected setup on a trusted LAN.
package api

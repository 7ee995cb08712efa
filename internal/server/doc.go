// Package server provides the HTTP server for the fenetre dashboard and API.
//
// This package handles all HTTP concerns:
//
//   - Dashboard serving: the embedded HTML/CSS/JS dashboard at "/"
//   - REST API: course snapshot, account summary and lockbox settings under "/api"
//   - Server-Sent Events: live course snapshots at "/api/sse"
//
// Routing uses gorilla/mux. The server supports graceful shutdown via context
// cancellation, with a 5-second timeout for in-flight requests.
package server

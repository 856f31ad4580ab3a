// Package web serves the observation table in connected mode.
//
// Routes:
//
//	GET /            HTML table of observed access points
//	GET /api/table   the same table as JSON, strongest signal first
//	GET /api/status  mode, link state and address as JSON
//	GET /ws          websocket pushing the status every push period
//
// Start returns a Handle that Stop takes back; only one server runs at a
// time. While running, the server can announce itself over mDNS through
// package discovery.
package web

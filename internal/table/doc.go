// Package table keeps the access points observed in scan mode.
//
// Entries are keyed by BSSID and accumulate first/last sighting times and a
// sighting count. The table is stored as YAML and written atomically, so a
// crash mid-save leaves the previous file intact. Connected mode reloads it
// from disk and serves it read-only.
package table

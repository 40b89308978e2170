// Package stores persists plugin profiles in SQLite.
//
// A profile is the host-side view of a plugin list: the state and priority of every
// known plugin, the load order last read from plugins.txt and an append-only history of
// committed plugin list writes. The schema is managed by embedded golang-migrate
// migrations.
package stores

/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Package trackmigrate provides the connection configuration and the external
// SQL client used by the track-based migration engine (see the migrate
// subpackage).
//
// The target database is never reached through database/sql. All reads and
// writes go through a command-line PostgreSQL client (psql by default),
// spawned with the connection parameters injected via its documented
// environment variables. Scripts are always executed with ON_ERROR_STOP
// enabled so that a failure anywhere aborts the whole invocation.
package trackmigrate

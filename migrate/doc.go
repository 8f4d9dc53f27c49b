/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Package migrate implements a track-based migration orchestration engine on
// top of an external SQL client.
//
// Migrations are plain files named {14-digit-timestamp}_{track}_{description}.sql,
// one directory per track, optionally paired with an executable .validation
// artifact sharing the same base name. A track is an independently versioned
// lineage with its own bookkeeping relation (schema_migrations_<track>).
//
// One invocation runs a fixed pipeline: discovery of the directory, planning
// against the applied-state relation, a pre-flight validation gate, and a
// single atomic batch execution. The batch is one combined script — every
// pending unit's SQL followed by its bookkeeping insert, wrapped in one
// transaction — dispatched through the client with abort-on-first-error
// enabled, so either all pending units apply and are recorded, or none are.
//
// The engine never retries: after a failure the operator fixes the cause and
// re-invokes, which is safe because rolled-back units are still pending.
//
// Basic usage:
//
//	cfg := trackmigrate.NewDefaultConfig()
//	// ... load cfg ...
//	client, err := trackmigrate.NewPsqlClient(cfg)
//	if err != nil {
//	    return err
//	}
//	mgr, err := migrate.NewManager(client, logger)
//	if err != nil {
//	    return err
//	}
//	report, err := mgr.Migrate(ctx, "migrations/core", "core")
package migrate

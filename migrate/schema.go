/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package migrate

import (
	"fmt"
	"hash/fnv"
	"regexp"

	"github.com/doug-martin/goqu/v9"
	// Registers the postgres dialect used for rendering bookkeeping statements.
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
)

// DefaultTablePrefix is the fixed prefix of per-track bookkeeping relations.
// The relation for track "core" is schema_migrations_core.
const DefaultTablePrefix = "schema_migrations_"

// maxTrackLen keeps prefix+track well under the 63-byte identifier limit.
const maxTrackLen = 40

var trackNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// sqlDialect renders statements destined for the combined script. Literals
// are inlined (non-prepared) because the script is shipped to an external
// client process, not a parameterized driver API.
var sqlDialect = goqu.Dialect("postgres")

// ValidateTrack checks that a track name is safe to embed in a relation name.
func ValidateTrack(track string) error {
	if track == "" {
		return fmt.Errorf("track cannot be empty")
	}
	if len(track) > maxTrackLen {
		return fmt.Errorf("track %q is longer than %d symbols", track, maxTrackLen)
	}
	if !trackNameRe.MatchString(track) {
		return fmt.Errorf("track %q must match %s", track, trackNameRe)
	}
	return nil
}

func tableName(prefix, track string) string {
	return prefix + track
}

// createTableSQL returns the idempotent DDL for a per-track bookkeeping
// relation. The uniqueness constraint on migration_name is the engine's only
// safety net against concurrent invocations of the same track.
func createTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	migration_name VARCHAR(255) NOT NULL UNIQUE,
	migration_hash VARCHAR(64) NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT now(),
	execution_time_ms BIGINT
)`, table)
}

// recordInsertSQL renders the bookkeeping insert for one applied unit.
// The insert rides inside the same transaction as the unit's payload and is
// never issued as a standalone write.
func recordInsertSQL(table, name, hash string) (string, error) {
	sql, _, err := sqlDialect.Insert(table).
		Cols("migration_name", "migration_hash").
		Vals(goqu.Vals{name, hash}).
		ToSQL()
	if err != nil {
		return "", fmt.Errorf("render bookkeeping insert for %s: %w", name, err)
	}
	return sql, nil
}

func appliedNamesSQL(table string) (string, error) {
	sql, _, err := sqlDialect.From(table).
		Select("migration_name").
		Order(goqu.C("migration_name").Asc()).
		ToSQL()
	if err != nil {
		return "", fmt.Errorf("render applied names query: %w", err)
	}
	return sql, nil
}

func historySQL(table string) (string, error) {
	sql, _, err := sqlDialect.From(table).
		Select("migration_name", "migration_hash", "applied_at", "execution_time_ms").
		Order(goqu.C("id").Asc()).
		ToSQL()
	if err != nil {
		return "", fmt.Errorf("render history query: %w", err)
	}
	return sql, nil
}

// tableExistsSQL probes relation existence so that reads against a track with
// no bookkeeping relation yet come back as an empty set, not an error.
func tableExistsSQL(table string) string {
	return fmt.Sprintf("SELECT to_regclass('%s') IS NOT NULL", table)
}

// lockKey derives the 64-bit advisory lock key for a track. Deterministic so
// that every invocation against the same track contends on the same lock.
func lockKey(prefix, track string) int64 {
	h := fnv.New64a()
	h.Write([]byte(tableName(prefix, track))) //nolint: errcheck
	return int64(h.Sum64())
}

// lockSQL renders the advisory lock statement emitted at the head of every
// combined script. The transaction-scoped lock serializes concurrent
// invocations of the same track and is released automatically on commit or
// rollback.
func lockSQL(prefix, track string) string {
	return fmt.Sprintf("SELECT pg_advisory_xact_lock(%d)", lockKey(prefix, track))
}

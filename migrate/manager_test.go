/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package migrate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	trackmigrate "github.com/acronis/go-trackmigrate"
)

func writeMigration(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// newCoreDir lays out a two-unit track directory used across the tests below.
func newCoreDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeMigration(t, dir, "20240101000000_core_a.sql", "CREATE TABLE a (id INT);\n")
	writeMigration(t, dir, "20240101000100_core_b.sql", "CREATE TABLE b (id INT);\n")
	return dir
}

func TestManager_Migrate_AppliesAllThenNoop(t *testing.T) {
	dir := newCoreDir(t)
	db := newFakeDB()
	mgr, err := NewManager(db, newTestLogger(t))
	require.NoError(t, err)

	ctx := context.Background()
	report, err := mgr.Migrate(ctx, dir, "core")
	require.NoError(t, err)
	require.NotEmpty(t, report.RunID)
	require.Equal(t, "core", report.Track)
	require.Equal(t, []string{
		"20240101000000_core_a.sql",
		"20240101000100_core_b.sql",
	}, report.Applied)

	rows := db.tables["schema_migrations_core"]
	require.Len(t, rows, 2)
	assert.Equal(t, "20240101000000_core_a.sql", rows[0].name)
	assert.Equal(t, ContentHash("CREATE TABLE a (id INT);\n"), rows[0].hash)

	// A second run over the same directory finds nothing pending.
	again, err := mgr.Migrate(ctx, dir, "core")
	require.NoError(t, err)
	require.Empty(t, again.Applied)
	require.NotEqual(t, report.RunID, again.RunID, "every run gets its own identifier")
	require.Len(t, db.tables["schema_migrations_core"], 2)
}

func TestManager_Migrate_CombinedScript(t *testing.T) {
	dir := newCoreDir(t)
	db := newFakeDB()
	mgr, err := NewManager(db, newTestLogger(t))
	require.NoError(t, err)

	_, err = mgr.Migrate(context.Background(), dir, "core")
	require.NoError(t, err)

	script := db.scripts[len(db.scripts)-1]
	require.True(t, strings.HasPrefix(script, "BEGIN;\n"))
	require.True(t, strings.HasSuffix(script, "COMMIT;\n"))
	assert.Contains(t, script, "pg_advisory_xact_lock")

	// Payloads appear in plan order, each followed by its bookkeeping insert.
	posA := strings.Index(script, "CREATE TABLE a (id INT);")
	posInsA := strings.Index(script, "'20240101000000_core_a.sql'")
	posB := strings.Index(script, "CREATE TABLE b (id INT);")
	posInsB := strings.Index(script, "'20240101000100_core_b.sql'")
	require.True(t, posA >= 0 && posInsA >= 0 && posB >= 0 && posInsB >= 0)
	assert.Less(t, posA, posInsA)
	assert.Less(t, posInsA, posB)
	assert.Less(t, posB, posInsB)

	assert.Contains(t, script, ContentHash("CREATE TABLE a (id INT);\n"))
	assert.Contains(t, script, ContentHash("CREATE TABLE b (id INT);\n"))
}

func TestManager_Migrate_WithoutTrackLock(t *testing.T) {
	dir := newCoreDir(t)
	db := newFakeDB()
	mgr, err := NewManager(db, newTestLogger(t), WithoutTrackLock())
	require.NoError(t, err)

	_, err = mgr.Migrate(context.Background(), dir, "core")
	require.NoError(t, err)
	require.NotContains(t, db.scripts[len(db.scripts)-1], "pg_advisory_xact_lock")
}

func TestManager_Migrate_ValidationFailureBlocksBatch(t *testing.T) {
	dir := newCoreDir(t)
	writeMigration(t, dir, "20240101000000_core_a.validation", "#!/bin/sh\nexit 1")

	db := newFakeDB()
	runner := &fakeValidationRunner{failOn: "20240101000000_core_a.validation"}
	mgr, err := NewManager(db, newTestLogger(t), WithValidationRunner(runner))
	require.NoError(t, err)

	_, err = mgr.Migrate(context.Background(), dir, "core")
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "20240101000000_core_a.sql", validationErr.Filename)

	// The gate veto keeps the whole batch off the wire.
	for _, script := range db.scripts {
		require.NotContains(t, script, "BEGIN;")
	}
	require.Empty(t, db.tables["schema_migrations_core"])
}

func TestManager_Migrate_BatchFailureAppliesNothing(t *testing.T) {
	dir := newCoreDir(t)
	db := newFakeDB()
	db.failOn = "CREATE TABLE b (id INT);"
	db.failStderr = `ERROR: syntax error at or near "TABLE"`
	mgr, err := NewManager(db, newTestLogger(t))
	require.NoError(t, err)

	_, err = mgr.Migrate(context.Background(), dir, "core")
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "core", execErr.Track)
	assert.Contains(t, execErr.Stderr, "syntax error")

	// The first unit's success is rolled back together with the failure.
	require.Empty(t, db.tables["schema_migrations_core"])
}

func TestManager_Migrate_LostRaceIsAlreadyApplied(t *testing.T) {
	dir := newCoreDir(t)
	db := newFakeDB()
	// A concurrent invocation recorded unit a between this run's planning
	// read and its batch execution.
	db.tables["schema_migrations_core"] = []fakeRow{}
	planned := false
	db.queryFn = func(query string) ([][]string, error) {
		defer func() {
			if strings.Contains(query, `"migration_name"`) && !planned {
				planned = true
				db.tables["schema_migrations_core"] = append(
					db.tables["schema_migrations_core"],
					fakeRow{name: "20240101000000_core_a.sql", hash: "h"},
				)
			}
		}()
		return db.query(query)
	}

	mgr, err := NewManager(db, newTestLogger(t))
	require.NoError(t, err)

	_, err = mgr.Migrate(context.Background(), dir, "core")
	require.ErrorIs(t, err, ErrAlreadyApplied)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)

	// The loser's batch applied nothing beyond the winner's record.
	require.Len(t, db.tables["schema_migrations_core"], 1)
}

func TestManager_Migrate_PingFailure(t *testing.T) {
	db := newFakeDB()
	db.pingErr = &trackmigrate.ConnectionError{Reason: "database is unreachable", Err: errors.New("exit status 2")}
	mgr, err := NewManager(db, newTestLogger(t))
	require.NoError(t, err)

	_, err = mgr.Migrate(context.Background(), newCoreDir(t), "core")
	var connErr *trackmigrate.ConnectionError
	require.ErrorAs(t, err, &connErr)
	require.Empty(t, db.scripts, "no script reaches the client when the database is unreachable")
}

func TestManager_MigrateAll_CoreFirst(t *testing.T) {
	coreDir := t.TempDir()
	writeMigration(t, coreDir, "20250101000000_core_base.sql", "CREATE TABLE base (id INT);")
	implDir := t.TempDir()
	// Older than the core unit; track order still puts it second.
	writeMigration(t, implDir, "20230101000000_impl_ext.sql", "CREATE TABLE ext (id INT);")

	db := newFakeDB()
	mgr, err := NewManager(db, newTestLogger(t))
	require.NoError(t, err)

	reports, err := mgr.MigrateAll(context.Background(), map[string]string{
		"impl": implDir,
		"core": coreDir,
	})
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "core", reports[0].Track)
	assert.Equal(t, "impl", reports[1].Track)

	var batches []string
	for _, script := range db.scripts {
		if strings.HasPrefix(script, "BEGIN;") {
			batches = append(batches, script)
		}
	}
	require.Len(t, batches, 2)
	assert.Contains(t, batches[0], "CREATE TABLE base")
	assert.Contains(t, batches[1], "CREATE TABLE ext")
}

func TestManager_MigrateAll_FirstFailureAborts(t *testing.T) {
	coreDir := t.TempDir()
	writeMigration(t, coreDir, "20250101000000_core_base.sql", "CREATE TABLE base (id INT);")

	db := newFakeDB()
	mgr, err := NewManager(db, newTestLogger(t))
	require.NoError(t, err)

	reports, err := mgr.MigrateAll(context.Background(), map[string]string{
		"core": coreDir,
		"impl": filepath.Join(t.TempDir(), "missing"),
	})
	var notFoundErr *DirectoryNotFoundError
	require.ErrorAs(t, err, &notFoundErr)
	// The core batch had already committed before impl failed.
	require.Len(t, reports, 1)
	require.Len(t, db.tables["schema_migrations_core"], 1)
}

func TestManager_Status(t *testing.T) {
	dir := newCoreDir(t)
	db := newFakeDB()
	db.tables["schema_migrations_core"] = []fakeRow{
		{name: "20240101000000_core_a.sql", hash: "h1"},
	}
	mgr, err := NewManager(db, newTestLogger(t))
	require.NoError(t, err)

	records, err := mgr.Status(context.Background(), dir, "core")
	require.NoError(t, err)
	require.Equal(t, []StatusRecord{
		{Filename: "20240101000000_core_a.sql", Track: "core", Description: "a", Status: StatusApplied},
		{Filename: "20240101000100_core_b.sql", Track: "core", Description: "b", Status: StatusPending},
	}, records)
	require.Empty(t, db.scripts, "status must not create or mutate anything")
}

func TestManager_Status_BeforeFirstRun(t *testing.T) {
	mgr, err := NewManager(newFakeDB(), newTestLogger(t))
	require.NoError(t, err)

	records, err := mgr.Status(context.Background(), newCoreDir(t), "core")
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, StatusPending, rec.Status)
	}
}

func TestManager_History(t *testing.T) {
	dir := newCoreDir(t)
	db := newFakeDB()
	mgr, err := NewManager(db, newTestLogger(t))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = mgr.Migrate(ctx, dir, "core")
	require.NoError(t, err)

	records, err := mgr.History(ctx, "core")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "20240101000000_core_a.sql", records[0].Name)
	assert.Equal(t, ContentHash("CREATE TABLE a (id INT);\n"), records[0].Hash)
}

func TestManager_WithTablePrefix(t *testing.T) {
	dir := newCoreDir(t)
	db := newFakeDB()
	mgr, err := NewManager(db, newTestLogger(t), WithTablePrefix("migrations_meta_"))
	require.NoError(t, err)

	_, err = mgr.Migrate(context.Background(), dir, "core")
	require.NoError(t, err)
	require.Len(t, db.tables["migrations_meta_core"], 2)
	require.NotContains(t, db.tables, "schema_migrations_core")
}

func TestNewManager_RequiredArguments(t *testing.T) {
	_, err := NewManager(nil, newTestLogger(t))
	require.EqualError(t, err, "client cannot be nil")

	_, err = NewManager(newFakeDB(), nil)
	require.EqualError(t, err, "logger cannot be nil")
}

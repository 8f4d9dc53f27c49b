/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package migrate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/acronis/go-appkit/log"
	"github.com/google/uuid"

	trackmigrate "github.com/acronis/go-trackmigrate"
)

// Manager orchestrates the migration pipeline for track directories:
// discovery, planning, the validation gate, and atomic batch execution.
//
// One Migrate call is a single-threaded, synchronous pipeline with no
// resumable mid-state; every run starts fresh from discovery.
type Manager struct {
	client      trackmigrate.SQLClient
	logger      log.FieldLogger
	store       *Store
	gate        *Gate
	metrics     *MetricsCollector
	tablePrefix string
	trackLock   bool
}

// ManagerOption is a functional option for Manager configuration.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	tablePrefix      string
	validationRunner ValidationRunner
	metrics          *MetricsCollector
	trackLock        bool
}

// WithTablePrefix sets a custom prefix for the per-track bookkeeping
// relations.
func WithTablePrefix(prefix string) ManagerOption {
	return func(o *managerOptions) {
		o.tablePrefix = prefix
	}
}

// WithValidationRunner replaces the default external-process runner for
// pre-flight artifacts.
func WithValidationRunner(runner ValidationRunner) ManagerOption {
	return func(o *managerOptions) {
		o.validationRunner = runner
	}
}

// WithMetricsCollector sets the metrics collector. The collector is observed
// only; registering it is the caller's responsibility.
func WithMetricsCollector(mc *MetricsCollector) ManagerOption {
	return func(o *managerOptions) {
		o.metrics = mc
	}
}

// WithoutTrackLock disables the advisory transaction lock emitted at the head
// of every combined script. Without it, concurrent invocations of one track
// race and the loser fails with ErrAlreadyApplied on the uniqueness
// constraint.
func WithoutTrackLock() ManagerOption {
	return func(o *managerOptions) {
		o.trackLock = false
	}
}

// NewManager creates a new migration manager.
func NewManager(client trackmigrate.SQLClient, logger log.FieldLogger, opts ...ManagerOption) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	options := managerOptions{tablePrefix: DefaultTablePrefix, trackLock: true}
	for _, opt := range opts {
		opt(&options)
	}
	if options.metrics == nil {
		options.metrics = NewMetricsCollector()
	}

	return &Manager{
		client:      client,
		logger:      logger,
		store:       NewStore(client, options.tablePrefix),
		gate:        NewGate(options.validationRunner, logger),
		metrics:     options.metrics,
		tablePrefix: options.tablePrefix,
		trackLock:   options.trackLock,
	}, nil
}

// Migrate runs the full pipeline for one track directory and returns a report
// of the applied units. An up-to-date track yields an empty report, not an
// error.
func (m *Manager) Migrate(ctx context.Context, dir, track string) (*ExecutionReport, error) {
	runID := uuid.NewString()
	logger := m.logger.With(log.String("run_id", runID), log.String("track", track))

	if err := m.client.Ping(ctx); err != nil {
		m.metrics.observeFailure(track, PhaseConnection)
		return nil, err
	}

	catalog, err := Discover(dir, track)
	if err != nil {
		m.metrics.observeFailure(track, PhaseDiscovery)
		return nil, err
	}

	pending, err := m.planTrack(ctx, catalog)
	if err != nil {
		m.metrics.observeFailure(track, PhaseDiscovery)
		return nil, err
	}
	if len(pending) == 0 {
		logger.Info(fmt.Sprintf("track %q is up to date, nothing to apply", track))
		return &ExecutionReport{RunID: runID, Track: track}, nil
	}

	logger.Info(fmt.Sprintf("applying %d migration(s)", len(pending)))

	if err = m.gate.Check(ctx, pending, m.client.Env()); err != nil {
		m.metrics.observeFailure(track, PhaseValidation)
		return nil, err
	}

	return m.executeBatch(ctx, logger, runID, track, pending)
}

// MigrateAll runs the pipeline for several tracks, one directory per track,
// in track order (CoreTrack first, the rest alphabetically). Each track is
// its own atomic batch; tracks are never interleaved inside one script. The
// first failing track aborts the remaining ones.
func (m *Manager) MigrateAll(ctx context.Context, dirs map[string]string) ([]*ExecutionReport, error) {
	tracks := make([]string, 0, len(dirs))
	for track := range dirs {
		tracks = append(tracks, track)
	}
	SortTracks(tracks)

	reports := make([]*ExecutionReport, 0, len(tracks))
	for _, track := range tracks {
		report, err := m.Migrate(ctx, dirs[track], track)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// Status reports every unit of a track directory as applied or pending.
// Read-only: it neither creates the bookkeeping relation nor mutates state.
func (m *Manager) Status(ctx context.Context, dir, track string) ([]StatusRecord, error) {
	catalog, err := Discover(dir, track)
	if err != nil {
		return nil, err
	}
	applied, err := m.store.AppliedNames(ctx, track)
	if err != nil {
		return nil, err
	}

	records := make([]StatusRecord, 0, len(catalog.Migrations))
	for _, mig := range catalog.Migrations {
		status := StatusPending
		if _, ok := applied[mig.Filename]; ok {
			status = StatusApplied
		}
		records = append(records, StatusRecord{
			Filename:    mig.Filename,
			Track:       mig.Track,
			Description: mig.Description,
			Status:      status,
		})
	}
	return records, nil
}

// History returns the applied records of a track in application order.
// Read-only; a track with no bookkeeping relation yields an empty history.
func (m *Manager) History(ctx context.Context, track string) ([]AppliedRecord, error) {
	return m.store.History(ctx, track)
}

// planTrack ensures the bookkeeping relation exists and diffs the catalog
// against it. A unit whose filename is recorded counts as applied regardless
// of its current on-disk content.
func (m *Manager) planTrack(ctx context.Context, catalog *Catalog) ([]Migration, error) {
	if err := m.store.EnsureTrackTable(ctx, catalog.Track); err != nil {
		return nil, err
	}
	applied, err := m.store.AppliedNames(ctx, catalog.Track)
	if err != nil {
		return nil, err
	}
	return Plan(catalog.Migrations, applied), nil
}

// executeBatch dispatches the combined script as a single client invocation.
// A statement failure anywhere aborts the enclosing transaction, so either
// every pending unit applies and is recorded, or none are. The engine never
// retries a failed batch.
func (m *Manager) executeBatch(
	ctx context.Context, logger log.FieldLogger, runID, track string, pending []Migration,
) (*ExecutionReport, error) {
	script, err := m.buildScript(track, pending)
	if err != nil {
		m.metrics.observeFailure(track, PhaseExecution)
		return nil, err
	}

	start := time.Now()
	res, runErr := m.client.ExecScript(ctx, script)
	elapsed := time.Since(start)
	if runErr != nil {
		m.metrics.observeFailure(track, PhaseExecution)
		execErr := classifyExecError(track, res.Stderr, runErr)
		logger.Error(fmt.Sprintf("batch rolled back after %s: %s", elapsed, execErr))
		return nil, execErr
	}

	report := &ExecutionReport{
		RunID:    runID,
		Track:    track,
		Applied:  make([]string, 0, len(pending)),
		Duration: elapsed,
	}
	for _, mig := range pending {
		report.Applied = append(report.Applied, mig.Filename)
		logger.Info(fmt.Sprintf("applied migration: %s", mig.Filename))
	}
	m.metrics.observeBatch(track, len(pending), elapsed)
	logger.Info(fmt.Sprintf("committed %d migration(s) in %s", len(pending), elapsed))

	return report, nil
}

// buildScript renders the combined script for one track batch: one
// transaction containing, per pending unit in plan order, the literal SQL
// payload followed by its bookkeeping insert.
func (m *Manager) buildScript(track string, pending []Migration) (string, error) {
	table := tableName(m.tablePrefix, track)

	var b strings.Builder
	b.WriteString("BEGIN;\n")
	if m.trackLock {
		b.WriteString(lockSQL(m.tablePrefix, track) + ";\n")
	}
	for _, mig := range pending {
		insert, err := recordInsertSQL(table, mig.Filename, ContentHash(mig.SQL))
		if err != nil {
			return "", err
		}
		b.WriteString("-- " + mig.Filename + "\n")
		b.WriteString(strings.TrimRight(mig.SQL, "\n"))
		b.WriteString("\n")
		b.WriteString(insert + ";\n")
	}
	b.WriteString("COMMIT;\n")
	return b.String(), nil
}

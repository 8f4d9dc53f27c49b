/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package migrate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	trackmigrate "github.com/acronis/go-trackmigrate"
)

// appliedAtLayout matches psql's unaligned timestamp output; the fractional
// part is optional.
const appliedAtLayout = "2006-01-02 15:04:05.999999"

// Store reads and maintains the per-track applied-state relations through the
// external SQL client.
type Store struct {
	client trackmigrate.SQLClient
	prefix string
}

// NewStore creates a Store using the given bookkeeping relation prefix.
func NewStore(client trackmigrate.SQLClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultTablePrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) table(track string) string {
	return tableName(s.prefix, track)
}

// EnsureTrackTable idempotently creates the track's bookkeeping relation.
// Safe to call repeatedly; concurrent safety comes from the database's
// IF NOT EXISTS semantics.
func (s *Store) EnsureTrackTable(ctx context.Context, track string) error {
	if err := ValidateTrack(track); err != nil {
		return err
	}
	if _, err := s.client.ExecScript(ctx, createTableSQL(s.table(track))+";\n"); err != nil {
		return fmt.Errorf("ensure bookkeeping relation for track %q: %w", track, err)
	}
	return nil
}

// AppliedNames returns the set of unit filenames recorded for the track.
// A track whose relation does not exist yet yields an empty set, not an
// error.
func (s *Store) AppliedNames(ctx context.Context, track string) (map[string]struct{}, error) {
	if err := ValidateTrack(track); err != nil {
		return nil, err
	}
	exists, err := s.tableExists(ctx, track)
	if err != nil {
		return nil, err
	}
	applied := make(map[string]struct{})
	if !exists {
		return applied, nil
	}

	query, err := appliedNamesSQL(s.table(track))
	if err != nil {
		return nil, err
	}
	rows, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query applied names for track %q: %w", track, err)
	}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		applied[row[0]] = struct{}{}
	}
	return applied, nil
}

// History returns every applied record for the track in application order.
// Read-only; a missing relation yields an empty history.
func (s *Store) History(ctx context.Context, track string) ([]AppliedRecord, error) {
	if err := ValidateTrack(track); err != nil {
		return nil, err
	}
	exists, err := s.tableExists(ctx, track)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	query, err := historySQL(s.table(track))
	if err != nil {
		return nil, err
	}
	rows, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query history for track %q: %w", track, err)
	}

	records := make([]AppliedRecord, 0, len(rows))
	for _, row := range rows {
		if len(row) < 4 {
			return nil, fmt.Errorf("history row for track %q has %d fields, want 4", track, len(row))
		}
		appliedAt, parseErr := time.Parse(appliedAtLayout, row[2])
		if parseErr != nil {
			return nil, fmt.Errorf("parse applied_at for %s: %w", row[0], parseErr)
		}
		rec := AppliedRecord{Name: row[0], Hash: row[1], AppliedAt: appliedAt}
		if row[3] != "" {
			ms, parseMsErr := strconv.ParseInt(row[3], 10, 64)
			if parseMsErr != nil {
				return nil, fmt.Errorf("parse execution_time_ms for %s: %w", row[0], parseMsErr)
			}
			rec.ExecutionTimeMS = &ms
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Store) tableExists(ctx context.Context, track string) (bool, error) {
	rows, err := s.client.Query(ctx, tableExistsSQL(s.table(track)))
	if err != nil {
		return false, fmt.Errorf("probe bookkeeping relation for track %q: %w", track, err)
	}
	return len(rows) > 0 && len(rows[0]) > 0 && rows[0][0] == "t", nil
}

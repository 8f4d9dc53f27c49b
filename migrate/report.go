/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package migrate

import (
	"time"
)

// Status of a migration unit relative to its track's applied state.
type Status string

// Unit statuses.
const (
	StatusApplied Status = "applied"
	StatusPending Status = "pending"
)

// StatusRecord is one row of the read-only status surface. The tags support
// rendering the records as YAML or JSON for operators.
type StatusRecord struct {
	Filename    string `yaml:"filename" json:"filename"`
	Track       string `yaml:"track" json:"track"`
	Description string `yaml:"description" json:"description"`
	Status      Status `yaml:"status" json:"status"`
}

// AppliedRecord is durable proof that a unit ran, read back from the
// per-track bookkeeping relation. Rows are inserted exactly once, inside the
// same transaction as the unit's payload, and never updated or deleted.
type AppliedRecord struct {
	Name            string    `yaml:"migrationName" json:"migrationName"`
	Hash            string    `yaml:"migrationHash" json:"migrationHash"`
	AppliedAt       time.Time `yaml:"appliedAt" json:"appliedAt"`
	ExecutionTimeMS *int64    `yaml:"executionTimeMs" json:"executionTimeMs"`
}

// ExecutionReport summarizes one committed batch.
type ExecutionReport struct {
	// RunID correlates the report with the invocation's log records.
	RunID string
	Track string
	// Applied lists every unit filename applied by the batch, in order.
	Applied  []string
	Duration time.Duration
}

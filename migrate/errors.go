/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package migrate

import (
	"errors"
	"fmt"
	"strings"
)

// Phase identifies the pipeline stage an error originated from. Every engine
// error names its phase so the operator can localize the fix without
// inspecting internals.
type Phase string

// Pipeline phases.
const (
	PhaseConnection Phase = "connection"
	PhaseDiscovery  Phase = "discovery"
	PhaseValidation Phase = "validation"
	PhaseExecution  Phase = "execution"
)

// ErrAlreadyApplied signals a unique-constraint violation on the bookkeeping
// relation. It means another invocation applied an overlapping pending set
// concurrently (or the planner is broken) and must never be swallowed.
var ErrAlreadyApplied = errors.New("migration already applied")

// MalformedNameError indicates a filename that does not follow the
// {timestamp}_{track}_{description}.{ext} convention.
type MalformedNameError struct {
	Filename string
	Reason   string
}

func (e *MalformedNameError) Error() string {
	return fmt.Sprintf("malformed migration name %q: %s", e.Filename, e.Reason)
}

// DirectoryNotFoundError indicates that a track directory does not exist.
type DirectoryNotFoundError struct {
	Dir string
}

func (e *DirectoryNotFoundError) Error() string {
	return fmt.Sprintf("migration directory %q not found", e.Dir)
}

// DiscoveryError aborts the whole invocation: the migration source is
// misconfigured or corrupt and is never partially tolerated.
type DiscoveryError struct {
	Dir string
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery failed in %q: %s", e.Dir, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// ValidationError indicates that a pre-flight artifact signaled failure.
// It vetoes the entire batch before any database mutation.
type ValidationError struct {
	Filename string
	Artifact string
	Output   string
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s (artifact %s): %s", e.Filename, e.Artifact, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ExecutionError indicates that the combined script aborted. The enclosing
// transaction rolled back, so no unit from the batch was applied or recorded.
type ExecutionError struct {
	Track  string
	Stderr string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed for track %q: %s", e.Track, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// uniqueViolationMarker is the diagnostic psql emits for SQLSTATE 23505.
const uniqueViolationMarker = "duplicate key value violates unique constraint"

// classifyExecError wraps a failed script run into an ExecutionError,
// upgrading a unique-constraint violation on the bookkeeping relation to
// ErrAlreadyApplied (a lost race between concurrent invocations).
func classifyExecError(track, stderr string, err error) error {
	if strings.Contains(stderr, uniqueViolationMarker) {
		err = fmt.Errorf("%w: %s", ErrAlreadyApplied, err)
	}
	return &ExecutionError{Track: track, Stderr: stderr, Err: err}
}

/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package trackmigrate

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// columnSeparator separates fields in machine-readable query output.
const columnSeparator = "\t"

// ConnectionError indicates that the target database cannot be reached:
// either required connection parameters are missing or the liveness probe
// failed.
type ConnectionError struct {
	Reason string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connection invalid: %s: %s", e.Reason, e.Err)
	}
	return "connection invalid: " + e.Reason
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ClientResult carries the raw output of one client invocation.
type ClientResult struct {
	Stdout string
	Stderr string
}

// SQLClient executes SQL against the target database through an external
// command-line client process. It is the only path to the database; the
// engine never opens an in-process connection.
type SQLClient interface {
	// ExecScript runs a multi-statement script in a single client invocation
	// with abort-on-first-error behavior enabled. A non-nil error means the
	// client reported failure; the result still carries its diagnostics.
	ExecScript(ctx context.Context, script string) (ClientResult, error)

	// Query runs a single read-only statement and returns the result rows as
	// raw string fields.
	Query(ctx context.Context, query string) ([][]string, error)

	// Ping probes database liveness. A failure is a ConnectionError.
	Ping(ctx context.Context) error

	// Env returns the connection environment passed to spawned processes.
	Env() []string
}

// PsqlClient is the SQLClient implementation backed by the psql binary.
type PsqlClient struct {
	cfg *Config
}

var _ SQLClient = (*PsqlClient)(nil)

// NewPsqlClient creates a new PsqlClient for the given connection
// configuration. The configuration is validated eagerly so that a
// misconfigured invocation fails before any migration phase starts.
func NewPsqlClient(cfg *Config) (*PsqlClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PsqlClient{cfg: cfg}, nil
}

// Env returns the connection environment derived from the configuration.
func (c *PsqlClient) Env() []string {
	return ClientEnv(c.cfg)
}

// ExecScript runs the script through a single psql invocation.
// ON_ERROR_STOP must stay enabled for every script run: it is what turns a
// statement failure inside the combined script into an abort of the whole
// enclosing transaction.
func (c *PsqlClient) ExecScript(ctx context.Context, script string) (ClientResult, error) {
	return c.run(ctx, strings.NewReader(script), "-X", "-q", "-w", "-v", "ON_ERROR_STOP=1")
}

// Query runs a single statement and parses the unaligned tuples-only output.
func (c *PsqlClient) Query(ctx context.Context, query string) ([][]string, error) {
	res, err := c.run(ctx, nil, "-X", "-q", "-w", "-v", "ON_ERROR_STOP=1",
		"-t", "-A", "-F", columnSeparator, "-c", query)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line == "" {
			continue
		}
		rows = append(rows, strings.Split(line, columnSeparator))
	}
	return rows, nil
}

// Ping probes liveness with a trivial query.
func (c *PsqlClient) Ping(ctx context.Context) error {
	if _, err := c.Query(ctx, "SELECT 1"); err != nil {
		return &ConnectionError{Reason: "liveness probe failed", Err: err}
	}
	return nil
}

func (c *PsqlClient) run(ctx context.Context, stdin *strings.Reader, args ...string) (ClientResult, error) {
	cmd := exec.CommandContext(ctx, c.cfg.ClientBin, args...)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	// The connection parameters come from the explicit Config only; the rest
	// of the process environment is kept so that the client binary resolves
	// its own runtime needs (PATH, locale).
	cmd.Env = append(os.Environ(), c.Env()...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := ClientResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		return res, fmt.Errorf("run %s: %w", c.cfg.ClientBin, err)
	}
	return res, nil
}

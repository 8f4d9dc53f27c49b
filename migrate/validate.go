/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package migrate

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/acronis/go-appkit/log"
)

// ValidationRunner executes one pre-flight artifact. The artifact's exit
// status communicates pass/fail; its textual output is advisory only.
type ValidationRunner interface {
	Run(ctx context.Context, artifactPath string, env []string) (output string, err error)
}

// execValidationRunner runs the artifact as its own process with the client
// connection environment injected. No transactional protection wraps the
// run; artifacts are read-only by convention only.
type execValidationRunner struct{}

func (execValidationRunner) Run(ctx context.Context, artifactPath string, env []string) (string, error) {
	abs, err := filepath.Abs(artifactPath)
	if err != nil {
		return "", fmt.Errorf("resolve artifact path: %w", err)
	}
	cmd := exec.CommandContext(ctx, abs)
	cmd.Env = append(os.Environ(), env...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("run artifact %s: %w", artifactPath, err)
	}
	return string(out), nil
}

// Gate runs every paired validation artifact of a pending set before any
// mutation. The first failure vetoes the entire batch, including units whose
// own artifacts already passed. A unit without an artifact passes
// automatically.
type Gate struct {
	runner ValidationRunner
	logger log.FieldLogger
}

// NewGate creates a validation gate. A nil runner falls back to executing
// artifacts as external processes.
func NewGate(runner ValidationRunner, logger log.FieldLogger) *Gate {
	if runner == nil {
		runner = execValidationRunner{}
	}
	return &Gate{runner: runner, logger: logger}
}

// Check runs the gate for the exact pending set about to be executed.
func (g *Gate) Check(ctx context.Context, pending []Migration, env []string) error {
	for _, m := range pending {
		if m.ValidationPath == "" {
			continue
		}
		output, err := g.runner.Run(ctx, m.ValidationPath, env)
		if err != nil {
			return &ValidationError{
				Filename: m.Filename,
				Artifact: m.ValidationPath,
				Output:   output,
				Err:      err,
			}
		}
		g.logger.Info(fmt.Sprintf("validation passed: %s", m.Filename))
	}
	return nil
}

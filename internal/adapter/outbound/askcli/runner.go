// Package askcli runs the Alexa Skills Kit command-line tool.
package askcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/webcomputing/assistant-alexa/internal/port/outbound"
)

// DefaultCommandTimeout bounds a single ask invocation.
const DefaultCommandTimeout = 60 * time.Second

// Runner executes commands with os/exec.
type Runner struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewRunner creates a Runner. A zero timeout uses DefaultCommandTimeout.
func NewRunner(timeout time.Duration, logger *slog.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{timeout: timeout, logger: logger}
}

// Run implements outbound.CommandRunner.
func (r *Runner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r.logger.Debug("command finished",
		"command", name,
		"args", strings.Join(args, " "),
		"duration", time.Since(start),
		"error", err,
	)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), fmt.Errorf("%s %s: exit status %d: %s",
				name, firstArg(args), exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return stdout.Bytes(), fmt.Errorf("%s %s: %w", name, firstArg(args), err)
	}
	return stdout.Bytes(), nil
}

// LookPath implements outbound.CommandRunner.
func (r *Runner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// Compile-time interface check.
var _ outbound.CommandRunner = (*Runner)(nil)

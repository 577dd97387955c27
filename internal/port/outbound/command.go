package outbound

import "context"

// CommandRunner runs an external command-line tool.
// Adapters implement this with os/exec; tests use scripted fakes.
type CommandRunner interface {
	// Run executes name with args and returns its standard output.
	// A non-zero exit status is returned as an error that includes stderr.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// LookPath reports whether name resolves to an executable.
	LookPath(name string) (string, error)
}

package util

import (
	"context"
	"os/exec"
)

// Runner executes an external program and waits for it to exit. A non-zero
// exit status is reported as *exec.ExitError.
type Runner func(ctx context.Context, name string, args ...string) error

// Exec runs the program with stdout and stderr discarded.
func Exec(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

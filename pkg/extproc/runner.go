// Package extproc runs external command-line tools with captured stderr and
// context-aware cancellation.
package extproc

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/supporttools/JellyGuard/pkg/dberrors"
)

// Run executes the named tool with the given arguments, blocking until it
// exits. Standard error is captured in memory. Extra environment entries are
// appended to the current environment so credentials can be injected without
// ever appearing in argv.
//
// When ctx is cancelled the child process is killed and the context error is
// returned. A non-zero exit surfaces as *dberrors.ExternalToolFailure
// carrying the exit code and stderr text.
func Run(ctx context.Context, name string, args []string, extraEnv []string) error {
	cmd := exec.Command(name, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(), extraEnv...)

	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "failed to start %s", name)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		// Reap the child so it does not linger as a zombie
		<-done
		return ctx.Err()
	case err := <-done:
		if err == nil {
			return nil
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &dberrors.ExternalToolFailure{
				Tool:     filepath.Base(name),
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderr.String(),
			}
		}

		return errors.Wrapf(err, "%s failed", name)
	}
}

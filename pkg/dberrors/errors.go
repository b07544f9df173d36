// Package dberrors defines the error taxonomy for database provider operations.
package dberrors

import (
	"fmt"
	"strings"
)

// ExternalToolFailure indicates an external dump or restore tool exited
// with a non-zero code. It carries the exit code and captured stderr.
type ExternalToolFailure struct {
	Tool     string
	ExitCode int
	Stderr   string
}

func (e *ExternalToolFailure) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s exited with code %d: %s", e.Tool, e.ExitCode, strings.TrimSpace(e.Stderr))
	}
	return fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
}

// UnsupportedOperation indicates a feature is not available for a backend.
// Callers use it to distinguish "not implemented for this backend" from
// "succeeded".
type UnsupportedOperation struct {
	Op      string
	Backend string
}

func (e *UnsupportedOperation) Error() string {
	return fmt.Sprintf("operation %s is not supported by the %s backend", e.Op, e.Backend)
}

// QueryExecutionError indicates the database engine rejected a statement batch.
type QueryExecutionError struct {
	Batch string
	Err   error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("failed to execute statement batch: %v", e.Err)
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

// FileSystemError indicates an unexpected filesystem failure, such as a
// denied deletion of a backup artifact.
type FileSystemError struct {
	Path string
	Err  error
}

func (e *FileSystemError) Error() string {
	return fmt.Sprintf("filesystem operation on %s failed: %v", e.Path, e.Err)
}

func (e *FileSystemError) Unwrap() error {
	return e.Err
}

package dberrors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExternalToolFailureMessage(t *testing.T) {
	err := &ExternalToolFailure{Tool: "pg_dump", ExitCode: 1, Stderr: "connection refused\n"}
	assert.Equal(t, "pg_dump exited with code 1: connection refused", err.Error())

	noStderr := &ExternalToolFailure{Tool: "pg_restore", ExitCode: 2}
	assert.Equal(t, "pg_restore exited with code 2", noStderr.Error())
}

func TestUnsupportedOperationMessage(t *testing.T) {
	err := &UnsupportedOperation{Op: "CreateBackup", Backend: "embedded"}
	assert.Equal(t, "operation CreateBackup is not supported by the embedded backend", err.Error())
}

func TestQueryExecutionErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("relation does not exist")
	err := &QueryExecutionError{Batch: "TRUNCATE TABLE \"a\" CASCADE;", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "relation does not exist")
}

func TestFileSystemErrorUnwrap(t *testing.T) {
	err := &FileSystemError{Path: "/data/backups/x.dump", Err: fs.ErrPermission}

	assert.ErrorIs(t, err, fs.ErrPermission)

	var fsErr *FileSystemError
	assert.True(t, errors.As(err, &fsErr))
	assert.Equal(t, "/data/backups/x.dump", fsErr.Path)
}

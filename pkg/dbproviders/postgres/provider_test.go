package postgres

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supporttools/JellyGuard/pkg/config"
	"github.com/supporttools/JellyGuard/pkg/dberrors"
	"github.com/supporttools/JellyGuard/pkg/dbproviders/options"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	return &config.AppConfig{DataDirectory: t.TempDir()}
}

func TestInitialiseDefaults(t *testing.T) {
	p := New()
	require.NoError(t, p.Initialise(nil, testConfig(t)))

	conn := p.ConnectionInfo()
	assert.Equal(t, "localhost", conn.Host)
	assert.Equal(t, 5432, conn.Port)
	assert.Equal(t, "jellyfin", conn.Database)
	assert.Equal(t, "jellyfin", conn.Username)
	assert.Equal(t, "jellyfin", conn.Password)
}

func TestInitialiseMixedCaseKeys(t *testing.T) {
	bag := options.Bag{
		{Key: "HOST", Value: "db.media.lan"},
		{Key: "Port", Value: "5433"},
		{Key: "DataBase", Value: "media"},
		{Key: "USERNAME", Value: "svc"},
		{Key: "pAsSwOrD", Value: "s3cret"},
	}

	p := New()
	require.NoError(t, p.Initialise(bag, testConfig(t)))

	conn := p.ConnectionInfo()
	assert.Equal(t, "db.media.lan", conn.Host)
	assert.Equal(t, 5433, conn.Port)
	assert.Equal(t, "media", conn.Database)
	assert.Equal(t, "svc", conn.Username)
	assert.Equal(t, "s3cret", conn.Password)
}

func TestConnectionStringRedaction(t *testing.T) {
	conn := ConnectionInfo{Host: "h", Port: 5432, Database: "d", Username: "u", Password: "topsecret"}

	assert.Contains(t, conn.DSN(), "password=topsecret")
	assert.NotContains(t, conn.Redacted(), "topsecret")
	assert.Contains(t, conn.Redacted(), "host=h")
	assert.Contains(t, conn.Redacted(), "dbname=d")
}

func TestBackupIdentifierFormat(t *testing.T) {
	now := time.Date(2024, 6, 1, 22, 30, 45, 0, time.UTC)
	assert.Equal(t, "20240601223045", newBackupIdentifier(now))

	// Identifiers are always derived from UTC
	loc := time.FixedZone("UTC+2", 2*60*60)
	assert.Equal(t, "20240601223045", newBackupIdentifier(now.In(loc)))
}

func TestBackupIdentifierSameSecondCollision(t *testing.T) {
	// One-second resolution means two backups in the same second collide.
	// This is inherited behavior, reproduced here on purpose.
	now := time.Now()
	assert.Equal(t, newBackupIdentifier(now), newBackupIdentifier(now.Add(500*time.Millisecond)))
}

func TestDumpArgsOmitPassword(t *testing.T) {
	p := New()
	bag := options.Bag{{Key: "password", Value: "supersecret"}}
	require.NoError(t, p.Initialise(bag, testConfig(t)))

	args := p.dumpArgs("/tmp/out.dump")
	for _, arg := range args {
		assert.NotContains(t, arg, "supersecret")
	}

	assert.Equal(t, []string{
		"--host", "localhost",
		"--port", "5432",
		"--username", "jellyfin",
		"--format", "custom",
		"--blobs",
		"--verbose",
		"--file", "/tmp/out.dump",
		"jellyfin",
	}, args)
}

func TestRestoreArgsOmitPassword(t *testing.T) {
	p := New()
	bag := options.Bag{{Key: "password", Value: "supersecret"}}
	require.NoError(t, p.Initialise(bag, testConfig(t)))

	args := p.restoreArgs("/tmp/in.dump")
	for _, arg := range args {
		assert.NotContains(t, arg, "supersecret")
	}

	assert.Equal(t, []string{
		"--host", "localhost",
		"--port", "5432",
		"--username", "jellyfin",
		"--dbname", "jellyfin",
		"--clean",
		"--verbose",
		"/tmp/in.dump",
	}, args)
}

// writeFakeTool creates an executable script standing in for pg_dump or
// pg_restore. It records argv and PGPASSWORD, then exits with the given code.
func writeFakeTool(t *testing.T, dir, name string, exitCode int) (toolPath, argsFile, envFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tool fixtures require a POSIX shell")
	}

	toolPath = filepath.Join(dir, name)
	argsFile = filepath.Join(dir, name+".args")
	envFile = filepath.Join(dir, name+".env")

	script := "#!/bin/sh\n" +
		`printf '%s\n' "$@" > "` + argsFile + `"` + "\n" +
		`printf '%s' "$PGPASSWORD" > "` + envFile + `"` + "\n"
	if exitCode != 0 {
		script += "echo \"simulated tool failure\" >&2\n"
	}
	script += "exit " + strconv.Itoa(exitCode) + "\n"

	require.NoError(t, os.WriteFile(toolPath, []byte(script), 0755))
	return toolPath, argsFile, envFile
}

func TestCreateBackup(t *testing.T) {
	cfg := testConfig(t)
	toolDir := t.TempDir()

	p := New()
	bag := options.Bag{{Key: "password", Value: "hunter2"}}
	require.NoError(t, p.Initialise(bag, cfg))

	tool, argsFile, envFile := writeFakeTool(t, toolDir, "pg_dump", 0)
	p.DumpTool = tool

	identifier, err := p.CreateBackup(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{14}$`), identifier)

	// The backups directory must exist after a backup
	_, err = os.Stat(filepath.Join(cfg.DataDirectory, "backups"))
	assert.NoError(t, err)

	// argv carries connection flags and the target path, never the password
	argsData, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	argv := strings.Split(strings.TrimSpace(string(argsData)), "\n")
	assert.Contains(t, argv, "--format")
	assert.Contains(t, argv, filepath.Join(cfg.DataDirectory, "backups", identifier+"_jellyfin.dump"))
	for _, arg := range argv {
		assert.NotContains(t, arg, "hunter2")
	}

	// The password travels via the child environment
	envData, err := os.ReadFile(envFile)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(envData))
}

func TestCreateBackupToolFailure(t *testing.T) {
	cfg := testConfig(t)

	p := New()
	require.NoError(t, p.Initialise(nil, cfg))

	tool, _, _ := writeFakeTool(t, t.TempDir(), "pg_dump", 2)
	p.DumpTool = tool

	_, err := p.CreateBackup(context.Background())
	require.Error(t, err)

	var toolErr *dberrors.ExternalToolFailure
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, 2, toolErr.ExitCode)
	assert.Contains(t, toolErr.Stderr, "simulated tool failure")
}

func TestRestoreBackupMissingFileIsNoOp(t *testing.T) {
	p := New()
	require.NoError(t, p.Initialise(nil, testConfig(t)))

	err := p.RestoreBackup(context.Background(), "19700101000000")
	assert.NoError(t, err)
}

func TestRestoreBackup(t *testing.T) {
	cfg := testConfig(t)

	p := New()
	require.NoError(t, p.Initialise(nil, cfg))

	// Place an artifact where the provider expects it
	backupDir := filepath.Join(cfg.DataDirectory, "backups")
	require.NoError(t, os.MkdirAll(backupDir, 0755))
	identifier := "20240601223045"
	artifact := filepath.Join(backupDir, identifier+"_jellyfin.dump")
	require.NoError(t, os.WriteFile(artifact, []byte("dump data"), 0644))

	tool, argsFile, _ := writeFakeTool(t, t.TempDir(), "pg_restore", 0)
	p.RestoreTool = tool

	require.NoError(t, p.RestoreBackup(context.Background(), identifier))

	argsData, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	argv := strings.Split(strings.TrimSpace(string(argsData)), "\n")
	assert.Contains(t, argv, "--clean")
	assert.Contains(t, argv, artifact)
}

func TestRestoreBackupToolFailure(t *testing.T) {
	cfg := testConfig(t)

	p := New()
	require.NoError(t, p.Initialise(nil, cfg))

	backupDir := filepath.Join(cfg.DataDirectory, "backups")
	require.NoError(t, os.MkdirAll(backupDir, 0755))
	identifier := "20240601223045"
	require.NoError(t, os.WriteFile(
		filepath.Join(backupDir, identifier+"_jellyfin.dump"), []byte("dump data"), 0644))

	tool, _, _ := writeFakeTool(t, t.TempDir(), "pg_restore", 1)
	p.RestoreTool = tool

	err := p.RestoreBackup(context.Background(), identifier)
	require.Error(t, err)

	var toolErr *dberrors.ExternalToolFailure
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, 1, toolErr.ExitCode)
	assert.Contains(t, toolErr.Stderr, "simulated tool failure")
}

func TestDeleteBackupMissingFileIsNoOp(t *testing.T) {
	p := New()
	require.NoError(t, p.Initialise(nil, testConfig(t)))

	err := p.DeleteBackup(context.Background(), "19700101000000")
	assert.NoError(t, err)
}

func TestDeleteBackup(t *testing.T) {
	cfg := testConfig(t)

	p := New()
	require.NoError(t, p.Initialise(nil, cfg))

	backupDir := filepath.Join(cfg.DataDirectory, "backups")
	require.NoError(t, os.MkdirAll(backupDir, 0755))
	identifier := "20240601223045"
	artifact := filepath.Join(backupDir, identifier+"_jellyfin.dump")
	require.NoError(t, os.WriteFile(artifact, []byte("dump data"), 0644))

	require.NoError(t, p.DeleteBackup(context.Background(), identifier))

	_, err := os.Stat(artifact)
	assert.True(t, os.IsNotExist(err))
}

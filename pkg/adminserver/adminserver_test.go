package adminserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supporttools/JellyGuard/pkg/backup"
	"github.com/supporttools/JellyGuard/pkg/config"
	"github.com/supporttools/JellyGuard/pkg/dbproviders/common"
	"github.com/supporttools/JellyGuard/pkg/dbproviders/postgres"
	"github.com/supporttools/JellyGuard/pkg/dbproviders/stub"
	"github.com/supporttools/JellyGuard/pkg/scheduler"
)

func testServer(t *testing.T, provider common.Provider) (*Server, *config.AppConfig) {
	t.Helper()

	cfg := &config.AppConfig{
		DataDirectory: t.TempDir(),
		Local:         config.LocalConfig{Enabled: true},
		Backup: config.BackupConfig{
			Retention: config.RetentionRule{Duration: "168h"},
		},
		Admin: config.AdminConfig{Enabled: true, Port: "0"},
	}

	require.NoError(t, provider.Initialise(nil, cfg))

	manager, err := backup.NewManager(cfg, provider, nil)
	require.NoError(t, err)

	sched, err := scheduler.NewScheduler(cfg, manager)
	require.NoError(t, err)

	return NewServer(cfg, manager, sched), cfg
}

func TestHealthCheck(t *testing.T) {
	server, _ := testServer(t, &stub.Provider{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	server.healthCheckHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestListBackups(t *testing.T) {
	server, cfg := testServer(t, &stub.Provider{})

	backupDir := filepath.Join(cfg.DataDirectory, "backups")
	require.NoError(t, os.MkdirAll(backupDir, 0755))
	require.NoError(t, os.WriteFile(
		filepath.Join(backupDir, "20240601223045_jellyfin.dump"), []byte("dump data"), 0644))

	req := httptest.NewRequest(http.MethodGet, "/api/backups", nil)
	rr := httptest.NewRecorder()
	server.listBackupsHandler(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var response []backupResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	require.Len(t, response, 1)
	assert.Equal(t, "20240601223045", response[0].Identifier)
	assert.Equal(t, int64(len("dump data")), response[0].SizeBytes)
	assert.NotEmpty(t, response[0].Size)
}

func TestListBackupsRejectsPost(t *testing.T) {
	server, _ := testServer(t, &stub.Provider{})

	req := httptest.NewRequest(http.MethodPost, "/api/backups", nil)
	rr := httptest.NewRecorder()
	server.listBackupsHandler(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRunBackupUnsupportedBackend(t *testing.T) {
	server, _ := testServer(t, &stub.Provider{})

	req := httptest.NewRequest(http.MethodPost, "/api/backups/run", nil)
	rr := httptest.NewRecorder()
	server.runBackupHandler(rr, req)

	assert.Equal(t, http.StatusNotImplemented, rr.Code)
	assert.Contains(t, rr.Body.String(), "not supported")
}

func TestRestoreBackupMissingIdentifier(t *testing.T) {
	server, _ := testServer(t, &stub.Provider{})

	req := httptest.NewRequest(http.MethodPost, "/api/backups/restore", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	server.restoreBackupHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRestoreBackupMissingArtifactSucceeds(t *testing.T) {
	// A missing artifact is a logged no-op in the provider, so the API
	// reports success
	server, _ := testServer(t, postgres.New())

	body := strings.NewReader(`{"identifier": "19700101000000"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/backups/restore", body)
	rr := httptest.NewRecorder()
	server.restoreBackupHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "success", response["status"])
}

func TestDeleteBackup(t *testing.T) {
	server, cfg := testServer(t, postgres.New())

	backupDir := filepath.Join(cfg.DataDirectory, "backups")
	require.NoError(t, os.MkdirAll(backupDir, 0755))
	artifact := filepath.Join(backupDir, "20240601223045_jellyfin.dump")
	require.NoError(t, os.WriteFile(artifact, []byte("dump data"), 0644))

	body := strings.NewReader(`{"identifier": "20240601223045"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/backups/delete", body)
	rr := httptest.NewRecorder()
	server.deleteBackupHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	_, err := os.Stat(artifact)
	assert.True(t, os.IsNotExist(err))
}

func TestUpdateSchedule(t *testing.T) {
	server, _ := testServer(t, &stub.Provider{})

	body := strings.NewReader(`{"expression": "0 2 * * *"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/schedule", body)
	rr := httptest.NewRecorder()
	server.updateScheduleHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUpdateScheduleInvalidExpression(t *testing.T) {
	server, _ := testServer(t, &stub.Provider{})

	body := strings.NewReader(`{"expression": "not a cron line"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/schedule", body)
	rr := httptest.NewRecorder()
	server.updateScheduleHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// Package backup orchestrates provider backup operations with storage,
// metrics and history recording.
package backup

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/supporttools/JellyGuard/pkg/config"
	"github.com/supporttools/JellyGuard/pkg/dbproviders/common"
	"github.com/supporttools/JellyGuard/pkg/history"
	"github.com/supporttools/JellyGuard/pkg/metrics"
	"github.com/supporttools/JellyGuard/pkg/storage/local"
	"github.com/supporttools/JellyGuard/pkg/storage/s3"
)

// Manager handles backup operations
type Manager struct {
	cfg        *config.AppConfig
	provider   common.Provider
	localStore *local.Client
	s3Store    *s3.Client
	history    *history.Store
}

// NewManager creates a new backup manager around an initialised provider
func NewManager(cfg *config.AppConfig, provider common.Provider, hist *history.Store) (*Manager, error) {
	if provider == nil {
		return nil, fmt.Errorf("backup manager requires a database provider")
	}

	manager := &Manager{
		cfg:      cfg,
		provider: provider,
		history:  hist,
	}

	// Initialize local storage client if enabled
	if cfg.Local.Enabled {
		localClient, err := local.NewClient(cfg)
		if err != nil {
			log.Printf("Warning: Failed to initialize local storage: %v", err)
		} else {
			manager.localStore = localClient
		}
	}

	// Initialize S3 storage client if enabled
	if cfg.S3.Enabled {
		s3Client, err := s3.NewClient(cfg)
		if err != nil {
			log.Printf("Warning: Failed to initialize S3 storage: %v", err)
		} else {
			manager.s3Store = s3Client
		}
	}

	return manager, nil
}

// RunBackup executes a backup through the provider, records metrics and
// history, and uploads the artifact offsite when configured
func (m *Manager) RunBackup(ctx context.Context) (string, error) {
	startTime := time.Now()
	providerName := m.provider.Name()

	var record *history.BackupRecord
	if m.history != nil {
		rec, err := m.history.Record("")
		if err != nil {
			log.Printf("Warning: Failed to create history record: %v", err)
		} else {
			record = rec
		}
	}

	identifier, err := m.provider.CreateBackup(ctx)
	if err != nil {
		metrics.BackupCount.WithLabelValues(providerName, "error").Inc()
		if record != nil {
			if histErr := m.history.MarkError(record.ID, err.Error()); histErr != nil {
				log.Printf("Warning: Failed to update history record: %v", histErr)
			}
		}
		return "", err
	}

	metrics.BackupCount.WithLabelValues(providerName, "success").Inc()
	metrics.BackupDuration.WithLabelValues(providerName).Observe(time.Since(startTime).Seconds())
	metrics.LastBackupTimestamp.WithLabelValues(providerName).Set(float64(time.Now().Unix()))

	var artifactPath string
	var sizeBytes int64
	if m.localStore != nil {
		artifactPath = m.localStore.ArtifactPath(identifier)
		if fileInfo, statErr := os.Stat(artifactPath); statErr == nil {
			sizeBytes = fileInfo.Size()
		}

		if err := m.localStore.RecordBackupMetrics(artifactPath, providerName); err != nil {
			log.Printf("Warning: Failed to record local backup metrics: %v", err)
		}
	}

	if sizeBytes > 0 {
		log.Printf("Successfully created backup %s (%s)", identifier, humanize.Bytes(uint64(sizeBytes)))
	} else {
		log.Printf("Successfully created backup %s (size unknown)", identifier)
	}

	if record != nil {
		if histErr := m.history.MarkSuccess(record.ID, identifier, sizeBytes); histErr != nil {
			log.Printf("Warning: Failed to update history record: %v", histErr)
		}
	}

	// Upload to S3 if enabled
	if m.s3Store != nil && artifactPath != "" {
		if err := m.s3Store.UploadBackup(ctx, artifactPath, identifier); err != nil {
			log.Printf("Failed to upload backup %s to S3: %v", identifier, err)
		}
	}

	return identifier, nil
}

// RunRestore restores the backup named by identifier through the provider
func (m *Manager) RunRestore(ctx context.Context, identifier string) error {
	providerName := m.provider.Name()

	if err := m.provider.RestoreBackup(ctx, identifier); err != nil {
		metrics.RestoreCount.WithLabelValues(providerName, "error").Inc()
		return err
	}

	metrics.RestoreCount.WithLabelValues(providerName, "success").Inc()
	return nil
}

// DeleteBackup removes the backup named by identifier locally and, when
// configured, its offsite copy
func (m *Manager) DeleteBackup(ctx context.Context, identifier string) error {
	if err := m.provider.DeleteBackup(ctx, identifier); err != nil {
		return err
	}

	if m.s3Store != nil {
		if err := m.s3Store.DeleteBackup(ctx, identifier); err != nil {
			log.Printf("Warning: Failed to delete offsite copy of %s: %v", identifier, err)
		}
	}

	return nil
}

// ListBackups returns the backup artifacts currently on disk
func (m *Manager) ListBackups() ([]local.ArtifactInfo, error) {
	if m.localStore == nil {
		return nil, fmt.Errorf("local storage is not available")
	}
	return m.localStore.ListArtifacts()
}

// EnforceRetentionPolicies enforces retention across all storage types
func (m *Manager) EnforceRetentionPolicies(ctx context.Context) {
	log.Println("Enforcing retention policies...")

	if m.localStore != nil {
		if err := m.localStore.EnforceRetention(); err != nil {
			log.Printf("Error enforcing local retention policies: %v", err)
		}
	}

	if m.s3Store != nil {
		if err := m.s3Store.EnforceRetention(ctx); err != nil {
			log.Printf("Error enforcing S3 retention policies: %v", err)
		}
	}
}

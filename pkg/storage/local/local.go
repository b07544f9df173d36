// Package local handles local filesystem storage of backup artifacts.
package local

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/supporttools/JellyGuard/pkg/config"
	"github.com/supporttools/JellyGuard/pkg/metrics"
)

const (
	backupDirName = "backups"
	backupSuffix  = "_jellyfin.dump"
)

// ArtifactInfo describes a single backup artifact on disk
type ArtifactInfo struct {
	Identifier string    `json:"identifier"`
	Path       string    `json:"path"`
	SizeBytes  int64     `json:"sizeBytes"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Client represents a local filesystem client
type Client struct {
	cfg *config.AppConfig
}

// NewClient creates a new local storage client
func NewClient(cfg *config.AppConfig) (*Client, error) {
	if !cfg.Local.Enabled {
		return nil, fmt.Errorf("local storage is not enabled in configuration")
	}
	if cfg.DataDirectory == "" {
		return nil, fmt.Errorf("data directory is not configured")
	}

	return &Client{cfg: cfg}, nil
}

// EnsureBackupPath ensures the backup directory exists
func (c *Client) EnsureBackupPath() (string, error) {
	backupDir := filepath.Join(c.cfg.DataDirectory, backupDirName)

	// Ensure the directory exists
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory %s: %w", backupDir, err)
	}

	return backupDir, nil
}

// ArtifactPath returns the full path for a backup identifier
func (c *Client) ArtifactPath(identifier string) string {
	return filepath.Join(c.cfg.DataDirectory, backupDirName, identifier+backupSuffix)
}

// ListArtifacts returns all backup artifacts found on disk, derived purely
// from the filesystem. No catalog is consulted.
func (c *Client) ListArtifacts() ([]ArtifactInfo, error) {
	pattern := filepath.Join(c.cfg.DataDirectory, backupDirName, "*"+backupSuffix)
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list backup artifacts: %w", err)
	}

	artifacts := make([]ArtifactInfo, 0, len(files))
	for _, file := range files {
		fileInfo, err := os.Stat(file)
		if err != nil {
			continue
		}

		identifier := strings.TrimSuffix(filepath.Base(file), backupSuffix)
		artifacts = append(artifacts, ArtifactInfo{
			Identifier: identifier,
			Path:       file,
			SizeBytes:  fileInfo.Size(),
			CreatedAt:  fileInfo.ModTime(),
		})
	}

	return artifacts, nil
}

// RecordBackupMetrics records size metrics for a backup artifact
func (c *Client) RecordBackupMetrics(backupPath, provider string) error {
	fileInfo, err := os.Stat(backupPath)
	if err != nil {
		return fmt.Errorf("failed to stat backup file: %w", err)
	}

	metrics.BackupSize.WithLabelValues(provider, "local").Set(float64(fileInfo.Size()))

	return nil
}

// EnforceRetention removes backup artifacts older than the configured
// retention duration
func (c *Client) EnforceRetention() error {
	if c.cfg.Backup.Retention.Forever {
		if c.cfg.Debug {
			log.Println("Local backups set to keep forever, skipping retention enforcement")
		}
		return nil
	}

	duration, err := time.ParseDuration(c.cfg.Backup.Retention.Duration)
	if err != nil {
		return fmt.Errorf("invalid retention duration %q: %w", c.cfg.Backup.Retention.Duration, err)
	}

	artifacts, err := c.ListArtifacts()
	if err != nil {
		return err
	}

	for _, artifact := range artifacts {
		if time.Since(artifact.CreatedAt) <= duration {
			continue
		}

		if err := os.Remove(artifact.Path); err != nil {
			log.Printf("Failed to remove expired backup %s: %v", artifact.Path, err)
			continue
		}

		log.Printf("Removed expired local backup: %s", artifact.Path)
		metrics.BackupRetentionDeletes.WithLabelValues("postgresql", "local").Inc()
	}

	return nil
}

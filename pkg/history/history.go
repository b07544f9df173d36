// Package history provides an optional record of backup operations. The
// record is observational only: restore and delete always consult the
// filesystem, never this table.
package history

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Backup statuses
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusError   = "error"
)

// BackupRecord represents a single backup operation
type BackupRecord struct {
	ID           string     `gorm:"primaryKey;type:varchar(36)"`
	Identifier   string     `gorm:"type:varchar(14);index"`
	Status       string     `gorm:"type:varchar(20);not null"`
	SizeBytes    int64      `gorm:"not null;default:0"`
	ErrorMessage string     `gorm:"type:text"`
	CreatedAt    time.Time  `gorm:"not null"`
	CompletedAt  *time.Time `gorm:""`
}

// TableName specifies the table name for the BackupRecord model
func (BackupRecord) TableName() string {
	return "backup_records"
}

// Store persists backup records through a gorm connection
type Store struct {
	db *gorm.DB
}

// NewStore wraps an existing gorm connection, used mainly by tests
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Open connects to the given PostgreSQL DSN and migrates the history table
func Open(dsn string, debug bool) (*Store, error) {
	logLevel := logger.Silent
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	if err := db.AutoMigrate(&BackupRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Record creates a pending record for a backup that is about to run
func (s *Store) Record(identifier string) (*BackupRecord, error) {
	record := &BackupRecord{
		ID:         uuid.New().String(),
		Identifier: identifier,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}

	if err := s.db.Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to create backup record: %w", err)
	}

	return record, nil
}

// MarkSuccess finalizes a record for a completed backup
func (s *Store) MarkSuccess(id, identifier string, sizeBytes int64) error {
	now := time.Now()
	updates := map[string]interface{}{
		"identifier":   identifier,
		"status":       StatusSuccess,
		"size_bytes":   sizeBytes,
		"completed_at": &now,
	}

	if err := s.db.Model(&BackupRecord{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update backup record: %w", err)
	}

	return nil
}

// MarkError finalizes a record for a failed backup
func (s *Store) MarkError(id, message string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":        StatusError,
		"error_message": message,
		"completed_at":  &now,
	}

	if err := s.db.Model(&BackupRecord{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update backup record: %w", err)
	}

	return nil
}

// Recent returns the most recent backup records, newest first
func (s *Store) Recent(limit int) ([]BackupRecord, error) {
	var records []BackupRecord
	err := s.db.Order("created_at DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query backup records: %w", err)
	}

	return records, nil
}

// Package scheduler manages scheduled backup and retention operations.
package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/supporttools/JellyGuard/pkg/backup"
	"github.com/supporttools/JellyGuard/pkg/config"
)

const retentionSchedule = "0 3 * * *"

// Scheduler handles cron scheduling for backups and retention
type Scheduler struct {
	cronScheduler *cron.Cron
	backupManager *backup.Manager
	cfg           *config.AppConfig
	jobIDs        map[string]cron.EntryID // Track job IDs for dynamic updates
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg *config.AppConfig, backupManager *backup.Manager) (*Scheduler, error) {
	return &Scheduler{
		cronScheduler: cron.New(),
		backupManager: backupManager,
		cfg:           cfg,
		jobIDs:        make(map[string]cron.EntryID),
	}, nil
}

// SetupJobs configures all scheduled jobs
func (s *Scheduler) SetupJobs() error {
	if s.cfg.Backup.Schedule == "" {
		log.Println("No backup schedule configured, skipping scheduled backups")
	} else {
		jobID, err := s.cronScheduler.AddFunc(s.cfg.Backup.Schedule, func() {
			log.Println("Starting scheduled backup...")
			if _, err := s.backupManager.RunBackup(context.Background()); err != nil {
				log.Printf("Error performing scheduled backup: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule backup with cron expression %q: %w",
				s.cfg.Backup.Schedule, err)
		}
		s.jobIDs["backup"] = jobID
		log.Printf("Scheduled backups with cron expression: %s", s.cfg.Backup.Schedule)
	}

	// Retention enforcement runs nightly
	jobID, err := s.cronScheduler.AddFunc(retentionSchedule, func() {
		s.backupManager.EnforceRetentionPolicies(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retention enforcement: %w", err)
	}
	s.jobIDs["retention"] = jobID

	return nil
}

// UpdateBackupSchedule replaces the backup job with a new cron expression
func (s *Scheduler) UpdateBackupSchedule(expression string) error {
	if jobID, ok := s.jobIDs["backup"]; ok {
		s.cronScheduler.Remove(jobID)
		delete(s.jobIDs, "backup")
	}

	if expression == "" {
		log.Println("Backup schedule cleared")
		return nil
	}

	jobID, err := s.cronScheduler.AddFunc(expression, func() {
		log.Println("Starting scheduled backup...")
		if _, err := s.backupManager.RunBackup(context.Background()); err != nil {
			log.Printf("Error performing scheduled backup: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule backup with cron expression %q: %w", expression, err)
	}

	s.jobIDs["backup"] = jobID
	log.Printf("Backup schedule updated to: %s", expression)
	return nil
}

// JobCount returns the number of scheduled jobs
func (s *Scheduler) JobCount() int {
	return len(s.cronScheduler.Entries())
}

// Start begins running the scheduler
func (s *Scheduler) Start() {
	s.cronScheduler.Start()
	log.Println("Scheduler started")
}

// Stop halts the scheduler, waiting for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cronScheduler.Stop()
	<-ctx.Done()
	log.Println("Scheduler stopped")
}

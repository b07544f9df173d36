// Package metrics provides Prometheus metrics for database backup operations.
package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metrics
var (
	// BackupCount tracks the total number of database backups performed
	BackupCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jellyfin_db_backup_total",
		Help: "The total number of database backups performed",
	}, []string{"provider", "status"})

	// BackupDuration measures time taken to perform a database backup
	BackupDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jellyfin_db_backup_duration_seconds",
		Help:    "Time taken to perform a database backup",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	// BackupSize tracks size of the backup artifact in bytes
	BackupSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "jellyfin_db_backup_size_bytes",
		Help: "Size of the backup artifact in bytes",
	}, []string{"provider", "storage"})

	// RestoreCount tracks the total number of restores performed
	RestoreCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jellyfin_db_restore_total",
		Help: "The total number of database restores performed",
	}, []string{"provider", "status"})

	// BackupRetentionDeletes counts backups deleted by retention policy
	BackupRetentionDeletes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jellyfin_db_backup_deletions_total",
		Help: "The total number of backups deleted by retention policy",
	}, []string{"provider", "storage"})

	// LastBackupTimestamp records timestamp of the last successful backup
	LastBackupTimestamp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "jellyfin_db_backup_last_timestamp",
		Help: "Timestamp of the last successful backup",
	}, []string{"provider"})

	// S3UploadCount tracks the total number of S3 uploads performed
	S3UploadCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jellyfin_db_backup_s3_upload_total",
		Help: "The total number of S3 uploads performed",
	}, []string{"provider", "status"})

	// S3UploadDuration measures time taken to upload a backup to S3
	S3UploadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jellyfin_db_backup_s3_upload_duration_seconds",
		Help:    "Time taken to upload a backup to S3",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})
)

// StartMetricsServer starts the HTTP server for metrics and health check endpoints
func StartMetricsServer(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Starting metrics server on port %s", port)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Failed to start metrics server: %v", err)
	}
}

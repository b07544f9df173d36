package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/supporttools/JellyGuard/pkg/adminserver"
	"github.com/supporttools/JellyGuard/pkg/backup"
	"github.com/supporttools/JellyGuard/pkg/config"
	"github.com/supporttools/JellyGuard/pkg/dbproviders/common"
	"github.com/supporttools/JellyGuard/pkg/dbproviders/postgres"
	_ "github.com/supporttools/JellyGuard/pkg/dbproviders/stub"
	"github.com/supporttools/JellyGuard/pkg/history"
	"github.com/supporttools/JellyGuard/pkg/metrics"
	"github.com/supporttools/JellyGuard/pkg/scheduler"
	"github.com/supporttools/JellyGuard/pkg/version"
)

func main() {
	log.Printf("Starting JellyGuard %s...", version.Version)

	// Load and validate configuration
	config.LoadConfiguration()
	if err := config.ValidateConfig(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	if config.CFG.Debug {
		config.DisplayConfiguration()
	}

	// Create and initialise the PostgreSQL provider
	provider, err := common.GetProvider("postgresql")
	if err != nil {
		log.Fatalf("Failed to create database provider: %v", err)
	}

	if err := provider.Initialise(config.DatabaseOptions(), &config.CFG); err != nil {
		log.Fatalf("Failed to initialise database provider: %v", err)
	}

	// Verify the database is reachable before accepting work
	pgProvider, ok := provider.(*postgres.Provider)
	if ok {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := pgProvider.Connect(ctx); err != nil {
			log.Printf("Warning: PostgreSQL connectivity check failed: %v", err)
		}
		cancel()
	}

	// Initialize the optional backup history store
	var hist *history.Store
	if config.CFG.History.Enabled && ok {
		hist, err = history.Open(pgProvider.ConnectionInfo().DSN(), config.CFG.Debug)
		if err != nil {
			log.Printf("Warning: Failed to initialize backup history: %v", err)
			hist = nil
		}
	}

	// Initialize backup manager
	backupManager, err := backup.NewManager(&config.CFG, provider, hist)
	if err != nil {
		log.Fatalf("Failed to initialize backup manager: %v", err)
	}

	// Initialize scheduler
	sched, err := scheduler.NewScheduler(&config.CFG, backupManager)
	if err != nil {
		log.Fatalf("Failed to initialize scheduler: %v", err)
	}

	// Setup scheduled jobs
	if err := sched.SetupJobs(); err != nil {
		log.Fatalf("Failed to setup scheduled jobs: %v", err)
	}

	// Start the scheduler
	sched.Start()

	// Start the metrics server
	go metrics.StartMetricsServer(config.CFG.Metrics.Port)

	// Start the admin server
	var httpServer *http.Server
	if config.CFG.Admin.Enabled {
		adminSrv := adminserver.NewServer(&config.CFG, backupManager, sched)
		httpServer = adminSrv.Start()
	}

	// Setup signal handling for graceful shutdown
	setupSignalHandling(provider, sched, httpServer)
}

// setupSignalHandling blocks until SIGINT/SIGTERM, then shuts down cleanly
func setupSignalHandling(provider common.Provider, sched *scheduler.Scheduler, httpServer *http.Server) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	sig := <-signals
	log.Printf("Received signal %v, shutting down...", sig)

	sched.Stop()

	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down admin server: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := provider.RunShutdownTask(ctx); err != nil {
		log.Printf("Error running provider shutdown task: %v", err)
	}

	log.Println("Shutdown complete")
}

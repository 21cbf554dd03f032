package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rmia46/roam-mc-server-manager/internal/api"
	"github.com/rmia46/roam-mc-server-manager/internal/backup"
	"github.com/rmia46/roam-mc-server-manager/internal/config"
	"github.com/rmia46/roam-mc-server-manager/internal/console"
	"github.com/rmia46/roam-mc-server-manager/internal/database"
	"github.com/rmia46/roam-mc-server-manager/internal/logging"
	"github.com/rmia46/roam-mc-server-manager/internal/metrics"
	"github.com/rmia46/roam-mc-server-manager/internal/server"
	"github.com/rmia46/roam-mc-server-manager/internal/websocket"
)

const activityRetention = 30 * 24 * time.Hour

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	configPath := config.GetConfigPath()

	// Set up logging
	if err := setupLogging(cfg); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logging.Close()

	// Check if running migrations
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrations(cfg, os.Args[2:])
		return
	}

	// Initialize database
	db, err := database.NewDB(cfg.Database.Path, cfg.Database.MaxConnections)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run migrations automatically
	log.Println("Running database migrations...")
	if err := db.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations completed successfully")

	// Initialize activity logger
	logDir := filepath.Join(cfg.Storage.DataDir, "logs", "activity")
	activityLogger, err := logging.NewActivityLogger(db.DB, logDir)
	if err != nil {
		log.Fatalf("Failed to initialize activity logger: %v", err)
	}
	defer activityLogger.Close()
	if err := activityLogger.CleanupOldActivities(activityRetention); err != nil {
		log.Printf("Failed to clean up old activity: %v", err)
	}

	// Initialize supervisor
	supervisor := server.NewSupervisor(server.Options{
		Table:            server.NewSystemProcessTable(cfg.Supervisor.RuntimeName),
		NewCommand:       server.JavaCommand(cfg.Supervisor.JavaPath),
		StopPollInterval: cfg.Supervisor.PollInterval(),
		StopPollAttempts: cfg.Supervisor.StopPollAttempts,
	})

	configStore := server.NewConfigStore(db.DB)
	if saved, err := configStore.Load(); err != nil {
		log.Printf("Failed to load saved server configuration: %v", err)
	} else if saved != nil {
		if err := supervisor.SetConfig(*saved); err != nil {
			log.Printf("Ignoring saved server configuration: %v", err)
		}
	}

	// Initialize WebSocket hub
	log.Println("Initializing WebSocket hub...")
	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	consoleLog, err := console.NewLogWriter(console.LogWriterConfig{
		Path:       filepath.Join(cfg.Storage.DataDir, "logs", "console.log"),
		MaxSizeMB:  cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		log.Fatalf("Failed to initialize console log: %v", err)
	}
	defer consoleLog.Close()

	supervisor.Subscribe(websocket.NewHubSink(hub))
	supervisor.Subscribe(consoleLog)
	supervisor.Subscribe(server.NewStatusHistorySink(activityLogger, supervisor.ServerName))
	supervisor.Subscribe(server.EventSinkFunc(func(e server.Event) {
		if e.Type == server.EventStatusUpdate {
			logging.L().Info("server_status", "server", supervisor.ServerName(), "status", e.Status.String())
		}
	}))

	// Start metrics collector
	metricsCollector := metrics.NewCollector(cfg.Metrics, supervisor, hub, db)
	var exporter *metrics.Exporter
	if cfg.Metrics.Prometheus {
		exporter = metrics.NewExporter()
		metricsCollector.SetExporter(exporter)
		supervisor.Subscribe(exporter)
	}
	metricsCollector.Start()
	defer metricsCollector.Stop()

	// Start backup schedule runner
	backupManager := backup.NewBackupManager(db.DB, backup.ManagerOptions{
		StagingDirName: cfg.Storage.BackupDirName,
		Destination:    backup.DestinationFromConfig(cfg.Backups.Destination, cfg.Security.SSH),
		Compression:    backup.CompressionConfig{Type: "deflate"},
	})
	backupScheduler := backup.NewScheduleRunner(cfg.Backups, supervisor, backupManager, activityLogger)
	if err := backupScheduler.Start(); err != nil {
		log.Printf("Backup schedule disabled: %v", err)
	}
	defer backupScheduler.Stop()

	log.Println("All server components initialized successfully")

	// Set up HTTP server
	router := api.SetupRouter(cfg, configPath, api.Services{
		Supervisor:     supervisor,
		ConfigStore:    configStore,
		ActivityLogger: activityLogger,
		Collector:      metricsCollector,
		BackupManager:  backupManager,
		Scheduler:      backupScheduler,
		Hub:            hub,
		Console:        consoleLog,
		Exporter:       exporter,
	})

	httpServer := &http.Server{
		Addr:        cfg.Server.Address(),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Start and backup requests run to completion before replying.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if cfg.Supervisor.KillOnShutdown {
		supervisor.Shutdown()
	} else if supervisor.OwnsProcess() {
		log.Println("Leaving Minecraft server running; it will be adopted as an orphan on next start")
	}

	cancel()
	log.Println("Server exited")
}

func setupLogging(cfg *config.Config) error {
	if cfg != nil && strings.TrimSpace(cfg.Logging.File) == "" {
		dataDir := cfg.Storage.DataDir
		if dataDir == "" {
			dataDir = "./data"
		}
		cfg.Logging.File = filepath.Join(dataDir, "logs", "server.log")
	}
	if cfg != nil && strings.TrimSpace(cfg.Logging.File) != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	_, err := logging.Init(cfg.Logging)
	return err
}

// runMigrations applies pending migrations. "migrate down [n]" reverts the
// last n applied migrations instead (default 1).
func runMigrations(cfg *config.Config, args []string) {
	db, err := database.NewDB(cfg.Database.Path, cfg.Database.MaxConnections)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if len(args) > 0 && args[0] == "down" {
		steps := 1
		if len(args) > 1 {
			steps, err = strconv.Atoi(args[1])
			if err != nil || steps < 1 {
				log.Fatalf("Invalid migration step count %q", args[1])
			}
		}
		log.Printf("Reverting %d migration(s)...", steps)
		for i := 0; i < steps; i++ {
			if err := db.MigrateDown(); err != nil {
				log.Fatalf("Revert failed: %v", err)
			}
		}
		log.Println("Revert completed successfully")
		return
	}

	log.Println("Running database migrations...")
	if err := db.Migrate(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migrations completed successfully")
}

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/rmia46/roam-mc-server-manager/internal/api/handlers"
	"github.com/rmia46/roam-mc-server-manager/internal/api/middleware"
	"github.com/rmia46/roam-mc-server-manager/internal/backup"
	"github.com/rmia46/roam-mc-server-manager/internal/config"
	"github.com/rmia46/roam-mc-server-manager/internal/console"
	"github.com/rmia46/roam-mc-server-manager/internal/logging"
	"github.com/rmia46/roam-mc-server-manager/internal/metrics"
	"github.com/rmia46/roam-mc-server-manager/internal/server"
	"github.com/rmia46/roam-mc-server-manager/internal/websocket"
)

// Services bundles what the router needs from the daemon
type Services struct {
	Supervisor     *server.Supervisor
	ConfigStore    *server.ConfigStore
	ActivityLogger *logging.ActivityLogger
	Collector      *metrics.Collector
	BackupManager  *backup.BackupManager
	Scheduler      *backup.ScheduleRunner
	Hub            *websocket.Hub
	Console        *console.LogWriter
	// Exporter is optional; /metrics is served only when set.
	Exporter *metrics.Exporter
}

// SetupRouter configures and returns the HTTP router
func SetupRouter(cfg *config.Config, configPath string, svc Services) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.Security.CORS))
	router.Use(middleware.RateLimit(cfg.Security.RateLimit.Enabled, cfg.Security.RateLimit.RequestsPerMinute))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.ContentSecurityPolicy(cfg.Logging.Level == "debug"))

	serverHandler := handlers.NewServerHandler(svc.Supervisor, svc.ConfigStore, svc.ActivityLogger, svc.Collector)
	filesHandler := handlers.NewFilesHandler(svc.Supervisor, svc.ActivityLogger)
	backupHandler := handlers.NewBackupHandler(svc.Supervisor, svc.BackupManager, svc.Scheduler, svc.ActivityLogger)
	eventsHandler := handlers.NewEventsHandler(svc.Hub, svc.Supervisor, cfg.Security.CORS.AllowedOrigins)
	settingsHandler := handlers.NewSettingsHandler(cfg, configPath)
	consoleHandler := handlers.NewConsoleHandler(svc.Console)

	v1 := router.Group("/api/v1")
	{
		srv := v1.Group("/server")
		{
			srv.GET("/config", serverHandler.GetConfig)
			srv.PUT("/config", serverHandler.UpdateConfig)
			srv.POST("/start", serverHandler.StartServer)
			srv.POST("/stop", serverHandler.StopServer)
			srv.GET("/stats", serverHandler.GetStats)
			srv.GET("/stats/history", serverHandler.GetStatsHistory)
			srv.POST("/command", serverHandler.ExecuteCommand)
			srv.GET("/console", consoleHandler.GetRecentOutput)

			srv.GET("/properties", filesHandler.GetProperties)
			srv.PUT("/properties", filesHandler.UpdateProperties)
			srv.GET("/initialized", filesHandler.IsInitialized)
			srv.GET("/worlds", filesHandler.ListWorlds)
			srv.DELETE("/worlds/:name", filesHandler.DeleteWorld)
			srv.GET("/players", filesHandler.ListPlayers)

			srv.GET("/backups", backupHandler.ListBackups)
			srv.POST("/backups", backupHandler.CreateBackup)
			srv.DELETE("/backups/:id", backupHandler.DeleteBackup)
		}

		v1.GET("/activity", serverHandler.GetActivity)
		v1.GET("/events", eventsHandler.Stream)

		v1.GET("/settings", settingsHandler.GetSettings)
		v1.PUT("/settings", settingsHandler.UpdateSettings)
	}

	if svc.Exporter != nil {
		router.GET("/metrics", gin.WrapH(svc.Exporter.Handler()))
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "server": svc.Supervisor.Status()})
	})

	return router
}

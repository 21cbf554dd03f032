package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rmia46/roam-mc-server-manager/internal/logging"
	"github.com/rmia46/roam-mc-server-manager/internal/metrics"
	"github.com/rmia46/roam-mc-server-manager/internal/models"
	"github.com/rmia46/roam-mc-server-manager/internal/server"
)

// ServerHandler handles lifecycle requests for the managed server
type ServerHandler struct {
	supervisor     *server.Supervisor
	store          *server.ConfigStore
	activityLogger *logging.ActivityLogger
	collector      *metrics.Collector
}

// NewServerHandler creates a new server handler
func NewServerHandler(supervisor *server.Supervisor, store *server.ConfigStore, activityLogger *logging.ActivityLogger, collector *metrics.Collector) *ServerHandler {
	return &ServerHandler{
		supervisor:     supervisor,
		store:          store,
		activityLogger: activityLogger,
		collector:      collector,
	}
}

// GetConfig returns the launch descriptor, or null when none is set
func (h *ServerHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"config": h.supervisor.Config()})
}

// UpdateConfig replaces and persists the launch descriptor
func (h *ServerHandler) UpdateConfig(c *gin.Context) {
	var req server.ServerConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.supervisor.SetConfig(req); err != nil {
		respondError(c, err)
		return
	}
	cfg := h.supervisor.Config()

	if h.store != nil {
		if err := h.store.Save(*cfg); err != nil {
			log.Printf("[API] Failed to persist server configuration: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save configuration", "details": err.Error()})
			return
		}
	}

	h.activityLogger.LogEvent(cfg.DisplayName(), logging.ActivityConfigUpdate,
		"Server configuration updated", map[string]interface{}{
			"path":     cfg.Path,
			"jar_name": cfg.JarName,
			"min_ram":  cfg.MinRAM,
			"max_ram":  cfg.MaxRAM,
		}, nil)

	c.JSON(http.StatusOK, gin.H{"config": cfg})
}

// StartServer launches the configured server and returns once it is spawned
func (h *ServerHandler) StartServer(c *gin.Context) {
	err := h.supervisor.Start()
	h.activityLogger.LogServerStart(h.supervisor.ServerName(), err)
	if err != nil {
		log.Printf("[API] Failed to start server: %v", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Server start initiated", "status": h.supervisor.Status()})
}

// StopServer kills the owned or orphaned server process
func (h *ServerHandler) StopServer(c *gin.Context) {
	stopped, err := h.supervisor.Stop()
	h.activityLogger.LogServerStop(h.supervisor.ServerName(), stopped, err)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.StopResponse{Stopped: stopped})
}

// GetStats returns a fresh stats snapshot
func (h *ServerHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.supervisor.Stats())
}

// GetStatsHistory returns recent collector samples
func (h *ServerHandler) GetStatsHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "720"))

	history, err := h.collector.History(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"samples": history})
}

// ExecuteCommand writes a console command to the owned server
func (h *ServerHandler) ExecuteCommand(c *gin.Context) {
	var req models.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.supervisor.SendCommand(req.Command)
	if !errors.Is(err, server.ErrNoOwnedProcess) {
		h.activityLogger.LogCommandExecute(h.supervisor.ServerName(), req.Command, err)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Command sent"})
}

// GetActivity returns recent activity entries
func (h *ServerHandler) GetActivity(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	activities, err := h.activityLogger.GetRecentActivities(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": activities})
}

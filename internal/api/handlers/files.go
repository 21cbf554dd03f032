package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rmia46/roam-mc-server-manager/internal/logging"
	"github.com/rmia46/roam-mc-server-manager/internal/properties"
	"github.com/rmia46/roam-mc-server-manager/internal/server"
	"github.com/rmia46/roam-mc-server-manager/internal/worlds"
)

// FilesHandler serves the server directory: properties, worlds and player stats
type FilesHandler struct {
	supervisor     *server.Supervisor
	activityLogger *logging.ActivityLogger
}

func NewFilesHandler(supervisor *server.Supervisor, activityLogger *logging.ActivityLogger) *FilesHandler {
	return &FilesHandler{supervisor: supervisor, activityLogger: activityLogger}
}

// GetProperties returns server.properties as a flat map
func (h *FilesHandler) GetProperties(c *gin.Context) {
	cfg, ok := requireConfig(c, h.supervisor)
	if !ok {
		return
	}

	props, err := properties.Read(cfg.Path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"properties": props})
}

// UpdateProperties rewrites server.properties. The server reads it on start.
func (h *FilesHandler) UpdateProperties(c *gin.Context) {
	cfg, ok := requireConfig(c, h.supervisor)
	if !ok {
		return
	}

	var props map[string]string
	if err := c.ShouldBindJSON(&props); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := properties.Write(cfg.Path, props); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.activityLogger.LogEvent(cfg.DisplayName(), logging.ActivityPropertiesUpdate,
		"server.properties updated", map[string]interface{}{"keys": len(props)}, nil)

	c.JSON(http.StatusOK, gin.H{"properties": props, "requires_restart": h.supervisor.Status() != server.StatusOffline})
}

// IsInitialized reports whether server.properties exists
func (h *FilesHandler) IsInitialized(c *gin.Context) {
	cfg, ok := requireConfig(c, h.supervisor)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"initialized": properties.IsInitialized(cfg.Path)})
}

// ListWorlds lists world directories with their size
func (h *FilesHandler) ListWorlds(c *gin.Context) {
	cfg, ok := requireConfig(c, h.supervisor)
	if !ok {
		return
	}

	list, err := worlds.List(cfg.Path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"worlds": list, "level_name": properties.LevelName(cfg.Path)})
}

// DeleteWorld removes a world directory. The server must be offline.
func (h *FilesHandler) DeleteWorld(c *gin.Context) {
	cfg, ok := requireConfig(c, h.supervisor)
	if !ok {
		return
	}

	if h.supervisor.Stats().Status != server.StatusOffline {
		c.JSON(http.StatusConflict, gin.H{"error": "Stop the server before deleting a world"})
		return
	}

	name := c.Param("name")
	err := worlds.Delete(cfg.Path, name)
	h.activityLogger.LogEvent(cfg.DisplayName(), logging.ActivityWorldDelete,
		"Deleted world "+name, map[string]interface{}{"world": name}, err)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "World deleted", "world": name})
}

// ListPlayers returns per-player statistics for the active world
func (h *FilesHandler) ListPlayers(c *gin.Context) {
	cfg, ok := requireConfig(c, h.supervisor)
	if !ok {
		return
	}

	players, err := worlds.Players(cfg.Path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"players": players})
}

package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rmia46/roam-mc-server-manager/internal/backup"
	"github.com/rmia46/roam-mc-server-manager/internal/logging"
	"github.com/rmia46/roam-mc-server-manager/internal/models"
	"github.com/rmia46/roam-mc-server-manager/internal/server"
)

// BackupHandler handles backup-related HTTP requests
type BackupHandler struct {
	supervisor     *server.Supervisor
	backupManager  *backup.BackupManager
	scheduler      *backup.ScheduleRunner
	activityLogger *logging.ActivityLogger
}

// NewBackupHandler creates a new backup handler
func NewBackupHandler(supervisor *server.Supervisor, backupManager *backup.BackupManager, scheduler *backup.ScheduleRunner, activityLogger *logging.ActivityLogger) *BackupHandler {
	return &BackupHandler{
		supervisor:     supervisor,
		backupManager:  backupManager,
		scheduler:      scheduler,
		activityLogger: activityLogger,
	}
}

// ListBackups lists backups of the configured server, newest first
func (h *BackupHandler) ListBackups(c *gin.Context) {
	cfg, ok := requireConfig(c, h.supervisor)
	if !ok {
		return
	}

	records, err := h.backupManager.ListBackups(cfg.Path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	backups := make([]models.Backup, 0, len(records))
	for _, record := range records {
		backups = append(backups, record.Model())
	}

	response := gin.H{"backups": backups}
	if h.scheduler != nil {
		if next := h.scheduler.NextRun(); !next.IsZero() {
			response["next_scheduled"] = next
		}
	}
	c.JSON(http.StatusOK, response)
}

// CreateBackup archives one world
func (h *BackupHandler) CreateBackup(c *gin.Context) {
	cfg, ok := requireConfig(c, h.supervisor)
	if !ok {
		return
	}

	var req models.CreateBackupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.backupManager.CreateBackup(&backup.BackupRequest{
		ServerPath: cfg.Path,
		World:      req.World,
		Origin:     backup.OriginManual,
	})

	metadata := map[string]interface{}{"world": req.World, "origin": backup.OriginManual}
	if record != nil {
		metadata["backup_id"] = record.ID
		metadata["filename"] = record.Filename
	}
	h.activityLogger.LogEvent(cfg.DisplayName(), logging.ActivityBackupCreate, "Backup of "+req.World, metadata, err)

	if err != nil {
		log.Printf("[API] Backup of %s failed: %v", req.World, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record.Model())
}

// DeleteBackup removes a backup and its archive
func (h *BackupHandler) DeleteBackup(c *gin.Context) {
	backupID := c.Param("id")

	err := h.backupManager.DeleteBackup(backupID)
	h.activityLogger.LogEvent(h.supervisor.ServerName(), logging.ActivityBackupDelete,
		"Deleted backup "+backupID, map[string]interface{}{"backup_id": backupID}, err)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Backup deleted"})
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rmia46/roam-mc-server-manager/internal/config"
)

type SettingsHandler struct {
	cfg        *config.Config
	configPath string
}

type SettingsPayload struct {
	Logging config.LoggingConfig `json:"logging"`
	Metrics config.MetricsConfig `json:"metrics"`
	Backups config.BackupsConfig `json:"backups"`
	CORS    config.CORSConfig    `json:"cors"`
}

type SettingsResponse struct {
	Logging         config.LoggingConfig `json:"logging"`
	Metrics         config.MetricsConfig `json:"metrics"`
	Backups         config.BackupsConfig `json:"backups"`
	CORS            config.CORSConfig    `json:"cors"`
	RequiresRestart bool                 `json:"requires_restart"`
}

func NewSettingsHandler(cfg *config.Config, configPath string) *SettingsHandler {
	return &SettingsHandler{
		cfg:        cfg,
		configPath: configPath,
	}
}

func (h *SettingsHandler) response() SettingsResponse {
	return SettingsResponse{
		Logging:         h.cfg.Logging,
		Metrics:         h.cfg.Metrics,
		Backups:         h.cfg.Backups,
		CORS:            h.cfg.Security.CORS,
		RequiresRestart: true,
	}
}

func (h *SettingsHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.response())
}

// UpdateSettings validates and saves the editable sections. Changes apply on
// the next daemon start.
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var payload SettingsPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload.CORS.AllowedOrigins = normalizeList(payload.CORS.AllowedOrigins)
	payload.CORS.AllowedMethods = normalizeList(payload.CORS.AllowedMethods)
	payload.Backups.Worlds = normalizeList(payload.Backups.Worlds)

	// secrets are never sent to clients; keep the stored ones
	current := h.cfg.Backups.Destination
	dest := &payload.Backups.Destination
	if dest.SFTPPassword == "" {
		dest.SFTPPassword = current.SFTPPassword
	}
	if dest.S3AccessKey == "" {
		dest.S3AccessKey = current.S3AccessKey
	}
	if dest.S3SecretKey == "" {
		dest.S3SecretKey = current.S3SecretKey
	}

	updated := *h.cfg
	updated.Logging = payload.Logging
	updated.Metrics = payload.Metrics
	updated.Backups = payload.Backups
	updated.Security.CORS = payload.CORS

	if err := updated.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := config.Save(&updated, h.configPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save settings", "details": err.Error()})
		return
	}

	h.cfg.Logging = updated.Logging
	h.cfg.Metrics = updated.Metrics
	h.cfg.Backups = updated.Backups
	h.cfg.Security.CORS = updated.Security.CORS

	c.JSON(http.StatusOK, h.response())
}

func normalizeList(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rmia46/roam-mc-server-manager/internal/backup"
	"github.com/rmia46/roam-mc-server-manager/internal/server"
	"github.com/rmia46/roam-mc-server-manager/internal/worlds"
)

// statusFor maps an operation error to an HTTP status code.
func statusFor(err error) int {
	var invalid *server.InvalidConfigError
	switch {
	case errors.As(err, &invalid), errors.Is(err, worlds.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, backup.ErrBackupInProgress):
		return http.StatusConflict
	case errors.Is(err, worlds.ErrNotAWorld), errors.Is(err, backup.ErrBackupNotFound):
		return http.StatusNotFound
	}

	switch server.KindOf(err) {
	case server.KindConfiguration:
		return http.StatusPreconditionFailed
	case server.KindConflict:
		return http.StatusConflict
	case server.KindNotSupported:
		return http.StatusUnprocessableEntity
	case server.KindIO:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError attaches err to the request for the access log and writes it.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// requireConfig returns the current launch descriptor or writes a 412.
func requireConfig(c *gin.Context, supervisor *server.Supervisor) (*server.ServerConfig, bool) {
	cfg := supervisor.Config()
	if cfg == nil {
		respondError(c, server.ErrConfigurationMissing)
		return nil, false
	}
	return cfg, true
}

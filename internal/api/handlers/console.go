package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rmia46/roam-mc-server-manager/internal/console"
)

type ConsoleHandler struct {
	logWriter *console.LogWriter
}

func NewConsoleHandler(logWriter *console.LogWriter) *ConsoleHandler {
	return &ConsoleHandler{logWriter: logWriter}
}

// GetRecentOutput returns the latest console lines, optionally filtered.
// Query: lines, filter (none|errors|search|regex), q, case.
func (h *ConsoleHandler) GetRecentOutput(c *gin.Context) {
	lines, _ := strconv.Atoi(c.DefaultQuery("lines", "200"))
	if lines <= 0 || lines > console.DefaultHistoryLines {
		lines = 200
	}
	caseSensitive, _ := strconv.ParseBool(c.DefaultQuery("case", "false"))

	filter, err := console.NewOutputFilter(c.DefaultQuery("filter", console.FilterNone), c.Query("q"), caseSensitive)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// filter over the whole history, then keep the tail
	output := filter.FilterLines(h.logWriter.Recent(0))
	if len(output) > lines {
		output = output[len(output)-lines:]
	}
	c.JSON(http.StatusOK, gin.H{"lines": output})
}

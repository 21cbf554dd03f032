package console

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rmia46/roam-mc-server-manager/internal/server"
)

// DefaultHistoryLines is how many recent lines are kept in memory.
const DefaultHistoryLines = 1000

// LogWriter persists the server's console output to a rotating file and
// keeps the most recent lines for clients that connect late.
type LogWriter struct {
	mu      sync.Mutex
	out     *lumberjack.Logger
	history []string
	next    int
	full    bool
}

// LogWriterConfig contains configuration for log writer
type LogWriterConfig struct {
	Path         string
	MaxSizeMB    int
	MaxBackups   int
	MaxAgeDays   int
	Compress     bool
	HistoryLines int
}

// NewLogWriter creates a new log writer
func NewLogWriter(cfg LogWriterConfig) (*LogWriter, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("console log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create console log directory: %w", err)
	}
	if cfg.HistoryLines <= 0 {
		cfg.HistoryLines = DefaultHistoryLines
	}

	log.Printf("[Console] Writing server output to %s", cfg.Path)
	return &LogWriter{
		out: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		},
		history: make([]string, cfg.HistoryLines),
	}, nil
}

// HandleEvent records log-line events and marks status changes in the file.
func (lw *LogWriter) HandleEvent(e server.Event) {
	switch e.Type {
	case server.EventLogLine:
		lw.WriteLine(e.Time, e.Line)
	case server.EventStatusUpdate:
		lw.writeFile(e.Time, fmt.Sprintf("--- server %s ---", e.Status))
	}
}

// WriteLine writes a line to the log file and the in-memory history
func (lw *LogWriter) WriteLine(at time.Time, line string) {
	lw.mu.Lock()
	lw.history[lw.next] = line
	lw.next = (lw.next + 1) % len(lw.history)
	if lw.next == 0 {
		lw.full = true
	}
	lw.mu.Unlock()

	lw.writeFile(at, line)
}

func (lw *LogWriter) writeFile(at time.Time, line string) {
	if at.IsZero() {
		at = time.Now()
	}
	if _, err := fmt.Fprintf(lw.out, "[%s] %s\n", at.Format("2006-01-02 15:04:05"), line); err != nil {
		log.Printf("[Console] Failed to write console log: %v", err)
	}
}

// Recent returns up to n of the latest lines, oldest first.
func (lw *LogWriter) Recent(n int) []string {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	size := lw.next
	if lw.full {
		size = len(lw.history)
	}
	if n <= 0 || n > size {
		n = size
	}

	lines := make([]string, 0, n)
	start := lw.next - n
	for i := 0; i < n; i++ {
		idx := (start + i + len(lw.history)) % len(lw.history)
		lines = append(lines, lw.history[idx])
	}
	return lines
}

// Close closes the log file
func (lw *LogWriter) Close() error {
	return lw.out.Close()
}

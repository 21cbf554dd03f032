package logging

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/rmia46/roam-mc-server-manager/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger    *slog.Logger
	initOnce  sync.Once
	logCloser io.Closer
)

// Init configures the global logger singleton and routes the standard log
// package into it.
func Init(cfg config.LoggingConfig) (*slog.Logger, error) {
	initOnce.Do(func() {
		output, closer := buildOutput(cfg)
		logCloser = closer

		logger = slog.New(newHandler(output, cfg))
		slog.SetDefault(logger)
		log.SetFlags(0)
		log.SetOutput(slogWriter{logger: logger})
	})

	return logger, nil
}

func newHandler(w io.Writer, cfg config.LoggingConfig) slog.Handler {
	options := &slog.HandlerOptions{Level: parseLevel(cfg.Level), AddSource: cfg.AddSource}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(w, options)
	}
	return slog.NewJSONHandler(w, options)
}

// L returns the configured logger, or a no-op logger if not initialized.
func L() *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return logger
}

// Close flushes and closes any logger resources.
func Close() error {
	if logCloser != nil {
		return logCloser.Close()
	}
	return nil
}

// slogWriter turns "[Component] message" lines from the log package into
// structured records.
type slogWriter struct {
	logger *slog.Logger
}

func (w slogWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	if msg == "" {
		return len(p), nil
	}

	component, msg := splitComponent(msg)
	level := levelFor(msg)
	if component != "" {
		w.logger.Log(context.Background(), level, msg, slog.String("component", component))
	} else {
		w.logger.Log(context.Background(), level, msg)
	}
	return len(p), nil
}

func splitComponent(msg string) (string, string) {
	if !strings.HasPrefix(msg, "[") {
		return "", msg
	}
	end := strings.Index(msg, "]")
	if end <= 1 {
		return "", msg
	}
	return msg[1:end], strings.TrimSpace(msg[end+1:])
}

// levelFor reads the level from the message wording. An explicit "Warning:"
// prefix wins over failure words in the rest of the message.
func levelFor(msg string) slog.Level {
	lower := strings.ToLower(msg)
	switch {
	case strings.HasPrefix(lower, "warning"):
		return slog.LevelWarn
	case strings.HasPrefix(lower, "error"), strings.Contains(lower, "failed"):
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildOutput(cfg config.LoggingConfig) (io.Writer, io.Closer) {
	if strings.TrimSpace(cfg.File) == "" {
		return os.Stdout, nil
	}

	fileLogger := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	return io.MultiWriter(os.Stdout, fileLogger), fileLogger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

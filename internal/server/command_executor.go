package server

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// CommandFactory builds the command that launches the server described by cfg.
type CommandFactory func(cfg ServerConfig) *exec.Cmd

// JavaCommand returns a CommandFactory that runs the jar with javaPath,
// in the server directory.
func JavaCommand(javaPath string) CommandFactory {
	if javaPath == "" {
		javaPath = "java"
	}
	return func(cfg ServerConfig) *exec.Cmd {
		cmd := exec.Command(javaPath, cfg.JavaArgs()...)
		cmd.Dir = cfg.Path
		return cmd
	}
}

const eulaFileName = "eula.txt"

// acceptEULA writes the license acceptance marker. Overwrites any existing file.
func acceptEULA(dir string) error {
	path := filepath.Join(dir, eulaFileName)
	if err := os.WriteFile(path, []byte("eula=true\n"), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", eulaFileName, err)
	}
	return nil
}

// consoleWriter serializes writes to the server's standard input.
type consoleWriter struct {
	mu sync.Mutex
	w  io.WriteCloser
}

// WriteCommand sends one console command terminated by a newline.
func (c *consoleWriter) WriteCommand(command string) error {
	line := strings.TrimSpace(command) + "\n"

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := io.WriteString(c.w, line); err != nil {
		return &StreamError{Op: "write to server console", Err: err}
	}
	return nil
}

func (c *consoleWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w.Close()
}

// Package properties reads and writes a server's server.properties file.
package properties

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	FileName = "server.properties"
	header   = "# Updated by Roam MC Manager"

	defaultLevelName = "world"
)

// Read parses server.properties in dir. A missing file yields an empty map.
// Comment lines and lines without '=' are ignored.
func Read(dir string) (map[string]string, error) {
	props := make(map[string]string)

	f, err := os.Open(filepath.Join(dir, FileName))
	if errors.Is(err, fs.ErrNotExist) {
		return props, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", FileName, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		props[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}
	return props, nil
}

// Write replaces server.properties in dir with props, sorted by key.
func Write(dir string, props map[string]string) error {
	keys := make([]string, 0, len(props))
	for key := range props {
		if strings.TrimSpace(key) == "" || strings.ContainsAny(key, "=\n") {
			return fmt.Errorf("invalid property key %q", key)
		}
		if strings.Contains(props[key], "\n") {
			return fmt.Errorf("value for %q contains a newline", key)
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	for _, key := range keys {
		fmt.Fprintf(&b, "%s=%s\n", key, props[key])
	}

	path := filepath.Join(dir, FileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", FileName, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", FileName, err)
	}
	return nil
}

// IsInitialized reports whether the server has generated its properties
// file, i.e. it has been started at least once.
func IsInitialized(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, FileName))
	return err == nil
}

// LevelName returns the configured world directory, defaulting to "world".
func LevelName(dir string) string {
	props, err := Read(dir)
	if err != nil {
		return defaultLevelName
	}
	if name := props["level-name"]; name != "" {
		return name
	}
	return defaultLevelName
}

package server

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	DefaultMinRAM = "1G"
	DefaultMaxRAM = "2G"
)

var heapSizePattern = regexp.MustCompile(`^[0-9]+[KkMmGg]?$`)

// ServerConfig is the launch descriptor for a server installation.
type ServerConfig struct {
	Name    *string `json:"name,omitempty"`
	Path    string  `json:"path"`
	JarName string  `json:"jar_name"`
	MinRAM  string  `json:"min_ram"`
	MaxRAM  string  `json:"max_ram"`
}

// InvalidConfigError describes a rejected launch descriptor field.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid server config: %s %s", e.Field, e.Reason)
}

// Normalize trims fields and fills in the default heap sizes.
func (c ServerConfig) Normalize() ServerConfig {
	c.Path = strings.TrimSpace(c.Path)
	c.JarName = strings.TrimSpace(c.JarName)
	c.MinRAM = strings.TrimSpace(c.MinRAM)
	c.MaxRAM = strings.TrimSpace(c.MaxRAM)
	if c.MinRAM == "" {
		c.MinRAM = DefaultMinRAM
	}
	if c.MaxRAM == "" {
		c.MaxRAM = DefaultMaxRAM
	}
	if c.Path != "" {
		c.Path = filepath.Clean(c.Path)
	}
	return c
}

// Validate checks the descriptor. Heap sizes use the JVM -Xms/-Xmx syntax.
func (c ServerConfig) Validate() error {
	if c.Path == "" {
		return &InvalidConfigError{Field: "path", Reason: "is required"}
	}
	if c.JarName == "" {
		return &InvalidConfigError{Field: "jar_name", Reason: "is required"}
	}
	if strings.ContainsAny(c.JarName, `/\`) {
		return &InvalidConfigError{Field: "jar_name", Reason: "must be a file name inside path"}
	}
	if !heapSizePattern.MatchString(c.MinRAM) {
		return &InvalidConfigError{Field: "min_ram", Reason: fmt.Sprintf("%q is not a heap size", c.MinRAM)}
	}
	if !heapSizePattern.MatchString(c.MaxRAM) {
		return &InvalidConfigError{Field: "max_ram", Reason: fmt.Sprintf("%q is not a heap size", c.MaxRAM)}
	}
	return nil
}

// JavaArgs returns the argument vector passed to the Java runtime.
func (c ServerConfig) JavaArgs() []string {
	return []string{
		"-Xms" + c.MinRAM,
		"-Xmx" + c.MaxRAM,
		"-jar", c.JarName,
		"nogui",
	}
}

// DisplayName returns the configured name or the directory name.
func (c ServerConfig) DisplayName() string {
	if c.Name != nil && *c.Name != "" {
		return *c.Name
	}
	return filepath.Base(c.Path)
}

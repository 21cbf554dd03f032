// Package worlds inspects the world directories and player statistics of a
// server installation.
package worlds

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rmia46/roam-mc-server-manager/internal/models"
)

const (
	levelFile        = "level.dat"
	lastModifiedFmt  = "02 Jan 2006, 15:04"
	unknownTimestamp = "Unknown"
)

// ErrNotAWorld is returned when a directory does not contain level.dat.
var ErrNotAWorld = errors.New("not a world directory")

// ErrInvalidName is returned for world names that are not a single path element.
var ErrInvalidName = errors.New("invalid world name")

// List returns the direct subdirectories of dir that contain level.dat,
// sorted by name.
func List(dir string) ([]models.WorldInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read server directory: %w", err)
	}

	worlds := make([]models.WorldInfo, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		worldDir := filepath.Join(dir, entry.Name())
		if !IsWorld(worldDir) {
			continue
		}

		lastModified := unknownTimestamp
		if info, err := os.Stat(worldDir); err == nil {
			lastModified = info.ModTime().Local().Format(lastModifiedFmt)
		}

		size, err := DirSize(worldDir)
		if err != nil {
			return nil, err
		}

		worlds = append(worlds, models.WorldInfo{
			Name:         entry.Name(),
			SizeMB:       float64(size) / 1024 / 1024,
			LastModified: lastModified,
		})
	}

	sort.Slice(worlds, func(i, j int) bool { return worlds[i].Name < worlds[j].Name })
	return worlds, nil
}

// IsWorld reports whether dir holds a world save.
func IsWorld(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, levelFile))
	return err == nil && !info.IsDir()
}

// DirSize sums the sizes of all regular files under dir. Unreadable entries
// are skipped.
func DirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to size %s: %w", filepath.Base(dir), err)
	}
	return total, nil
}

// Resolve returns the absolute path of world name inside serverDir. Names
// that would escape serverDir are rejected.
func Resolve(serverDir, name string) (string, error) {
	clean := filepath.Clean(name)
	if name == "" || clean == "." || clean == ".." || filepath.IsAbs(name) ||
		strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return filepath.Join(serverDir, clean), nil
}

// Delete removes world name from serverDir.
func Delete(serverDir, name string) error {
	worldDir, err := Resolve(serverDir, name)
	if err != nil {
		return err
	}
	if !IsWorld(worldDir) {
		return fmt.Errorf("%s: %w", name, ErrNotAWorld)
	}
	if err := os.RemoveAll(worldDir); err != nil {
		return fmt.Errorf("failed to delete world %s: %w", name, err)
	}
	return nil
}

package backup

import (
	"archive/zip"
	"compress/flate"
	"io"
	"path"
	"strings"
)

// CompressionConfig controls archive compression
// Type values: "deflate", "store"
type CompressionConfig struct {
	Type  string `json:"type"`
	Level int    `json:"level,omitempty"`
}

func normalizeCompression(config CompressionConfig) CompressionConfig {
	compressionType := strings.ToLower(strings.TrimSpace(config.Type))
	if compressionType != "store" {
		compressionType = "deflate"
	}

	level := config.Level
	if level == 0 {
		level = flate.DefaultCompression
	}
	if level != flate.DefaultCompression {
		if level < flate.BestSpeed {
			level = flate.BestSpeed
		}
		if level > flate.BestCompression {
			level = flate.BestCompression
		}
	}

	return CompressionConfig{
		Type:  compressionType,
		Level: level,
	}
}

// zipMethod returns the entry method for the given compression.
func zipMethod(config CompressionConfig) uint16 {
	if normalizeCompression(config).Type == "store" {
		return zip.Store
	}
	return zip.Deflate
}

// registerCompressor installs a deflate writer using the configured level.
func registerCompressor(w *zip.Writer, config CompressionConfig) {
	level := normalizeCompression(config).Level
	w.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})
}

// isArchiveName reports whether filename looks like a world archive.
func isArchiveName(filename string) bool {
	return strings.EqualFold(path.Ext(filename), ".zip")
}

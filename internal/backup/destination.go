package backup

import (
	"fmt"
	"io"
	"strings"

	"github.com/rmia46/roam-mc-server-manager/internal/config"
)

// Destination represents a backup storage destination
type Destination interface {
	// Upload uploads a file from the source reader to the destination
	Upload(filename string, reader io.Reader, sizeBytes int64) error

	// Delete removes a file from the destination
	Delete(filename string) error

	// List returns all backup files at the destination
	List() ([]BackupFile, error)

	// GetType returns the destination type identifier
	GetType() string
}

// BackupFile represents a file in a backup destination
type BackupFile struct {
	Filename  string
	SizeBytes int64
	CreatedAt int64 // Unix timestamp
}

// DestinationConfig contains configuration for a backup destination
type DestinationConfig struct {
	Type string // "local", "sftp", "s3"
	Path string // Base path for backups; empty local path means the staging directory

	// SFTP specific
	SFTPHost     string
	SFTPPort     int
	SFTPUsername string
	SFTPPassword string
	SFTPKeyPath  string
	SSH          config.SSHConfig

	// S3 specific
	S3Bucket    string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string // Optional, for S3-compatible storage
}

// DestinationFromConfig builds a destination config from the backups and
// SSH sections of the manager configuration.
func DestinationFromConfig(dest config.DestinationConfig, sshCfg config.SSHConfig) DestinationConfig {
	destType := strings.ToLower(strings.TrimSpace(dest.Type))
	if destType == "" {
		destType = "local"
	}
	return DestinationConfig{
		Type:         destType,
		Path:         strings.TrimSpace(dest.Path),
		SFTPHost:     dest.SFTPHost,
		SFTPPort:     dest.SFTPPort,
		SFTPUsername: dest.SFTPUsername,
		SFTPPassword: dest.SFTPPassword,
		SFTPKeyPath:  dest.SFTPKeyPath,
		SSH:          sshCfg,
		S3Bucket:     dest.S3Bucket,
		S3Region:     dest.S3Region,
		S3AccessKey:  dest.S3AccessKey,
		S3SecretKey:  dest.S3SecretKey,
		S3Endpoint:   dest.S3Endpoint,
	}
}

// NewDestination creates a new backup destination based on config
func NewDestination(config *DestinationConfig) (Destination, error) {
	switch config.Type {
	case "local":
		if config.Path == "" {
			return nil, fmt.Errorf("local destination requires a path")
		}
		return NewLocalDestination(config.Path), nil
	case "sftp":
		return NewSFTPDestination(config)
	case "s3":
		return NewS3Destination(config)
	default:
		return nil, fmt.Errorf("unsupported destination type: %s", config.Type)
	}
}

// closeDestination releases connections held by remote destinations.
func closeDestination(dest Destination) {
	if closer, ok := dest.(io.Closer); ok {
		closer.Close()
	}
}

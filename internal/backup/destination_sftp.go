package backup

import (
	"fmt"
	"io"
	"log"
	"path"
	"time"

	"github.com/pkg/sftp"
	sshclient "github.com/rmia46/roam-mc-server-manager/internal/ssh"
	xssh "golang.org/x/crypto/ssh"
)

// SFTPDestination stores backups on a remote SFTP server
type SFTPDestination struct {
	config     *DestinationConfig
	sshClient  *xssh.Client
	sftpClient *sftp.Client
}

// NewSFTPDestination connects to the configured host and ensures the base
// directory exists.
func NewSFTPDestination(config *DestinationConfig) (*SFTPDestination, error) {
	if config.SFTPHost == "" {
		return nil, fmt.Errorf("sftp destination requires a host")
	}
	if config.Path == "" {
		return nil, fmt.Errorf("sftp destination requires a path")
	}

	dest := &SFTPDestination{
		config: config,
	}
	if err := dest.connect(); err != nil {
		return nil, err
	}
	return dest, nil
}

func (sd *SFTPDestination) connect() error {
	log.Printf("[SFTPDest] Connecting to %s:%d...", sd.config.SFTPHost, sd.config.SFTPPort)

	hostKeys, err := sshclient.NewKnownHosts(sd.config.SSH)
	if err != nil {
		return fmt.Errorf("sftp destination: %w", err)
	}

	sshClient, err := sshclient.Dial(&sshclient.ClientConfig{
		Host:     sd.config.SFTPHost,
		Port:     sd.config.SFTPPort,
		Username: sd.config.SFTPUsername,
		KeyPath:  sd.config.SFTPKeyPath,
		Password: sd.config.SFTPPassword,
		Timeout:  30 * time.Second,
		HostKeys: hostKeys,
	})
	if err != nil {
		return err
	}
	sd.sshClient = sshClient

	sftpClient, err := sftp.NewClient(sshClient,
		sftp.MaxPacketUnchecked(131072),
		sftp.UseConcurrentWrites(true),
		sftp.MaxConcurrentRequestsPerFile(64),
	)
	if err != nil {
		sshClient.Close()
		return fmt.Errorf("failed to create SFTP client: %w", err)
	}
	sd.sftpClient = sftpClient

	if err := sd.sftpClient.MkdirAll(sd.config.Path); err != nil {
		sd.Close()
		return fmt.Errorf("failed to create base directory: %w", err)
	}

	log.Printf("[SFTPDest] Connected successfully")
	return nil
}

// Close closes the SFTP and SSH connections
func (sd *SFTPDestination) Close() error {
	if sd.sftpClient != nil {
		sd.sftpClient.Close()
	}
	if sd.sshClient != nil {
		sd.sshClient.Close()
	}
	return nil
}

// Upload uploads a backup file to the SFTP destination
func (sd *SFTPDestination) Upload(filename string, reader io.Reader, sizeBytes int64) error {
	destPath := path.Join(sd.config.Path, filename)
	log.Printf("[SFTPDest] Uploading %s to %s (%d bytes)", filename, destPath, sizeBytes)

	file, err := sd.sftpClient.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create remote file: %w", err)
	}

	written, err := file.ReadFrom(reader)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		sd.sftpClient.Remove(destPath)
		return fmt.Errorf("failed to write remote file: %w", err)
	}
	if written != sizeBytes {
		sd.sftpClient.Remove(destPath)
		return fmt.Errorf("size mismatch: expected %d bytes, wrote %d bytes", sizeBytes, written)
	}

	log.Printf("[SFTPDest] Upload complete: %s", filename)
	return nil
}

// Delete removes a backup file from the SFTP destination
func (sd *SFTPDestination) Delete(filename string) error {
	destPath := path.Join(sd.config.Path, filename)
	log.Printf("[SFTPDest] Deleting %s", destPath)

	if err := sd.sftpClient.Remove(destPath); err != nil {
		return fmt.Errorf("failed to delete remote file: %w", err)
	}
	return nil
}

// List returns all archives in the SFTP destination
func (sd *SFTPDestination) List() ([]BackupFile, error) {
	entries, err := sd.sftpClient.ReadDir(sd.config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read remote directory: %w", err)
	}

	var files []BackupFile
	for _, entry := range entries {
		if entry.IsDir() || !isArchiveName(entry.Name()) {
			continue
		}
		files = append(files, BackupFile{
			Filename:  entry.Name(),
			SizeBytes: entry.Size(),
			CreatedAt: entry.ModTime().Unix(),
		})
	}
	return files, nil
}

// GetType returns the destination type
func (sd *SFTPDestination) GetType() string {
	return "sftp"
}

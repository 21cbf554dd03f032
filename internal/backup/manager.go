package backup

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rmia46/roam-mc-server-manager/internal/models"
	"github.com/rmia46/roam-mc-server-manager/internal/worlds"
)

const (
	StatusCreating  = "creating"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusDeleted   = "deleted"

	OriginManual    = "manual"
	OriginScheduled = "scheduled"

	archiveTimeFormat = "2006-01-02_15-04-05"
)

// ErrBackupNotFound is returned when a backup id has no record.
var ErrBackupNotFound = errors.New("backup not found")

// ErrBackupInProgress is returned when the same world is already being archived.
var ErrBackupInProgress = errors.New("a backup of this world is already in progress")

// BackupManager orchestrates backup operations
type BackupManager struct {
	db             *sql.DB
	stagingDirName string
	destination    DestinationConfig
	compression    CompressionConfig
	newDestination func(*DestinationConfig) (Destination, error)

	// one archive per world at a time
	inFlight sync.Map
}

// ManagerOptions configures a BackupManager.
type ManagerOptions struct {
	// StagingDirName is the directory under the server root where archives are written.
	StagingDirName string
	Destination    DestinationConfig
	Compression    CompressionConfig
}

// BackupRequest represents a backup creation request
type BackupRequest struct {
	ServerPath string
	World      string
	Origin     string
}

// BackupRecord represents a backup record in the database
type BackupRecord struct {
	ID              string
	ServerPath      string
	World           string
	Filename        string
	SizeBytes       int64
	CreatedAt       time.Time
	DestinationType string
	DestinationPath string
	Status          string
	ErrorMessage    string
	Origin          string
}

// Model converts the record to its API representation.
func (r *BackupRecord) Model() models.Backup {
	return models.Backup{
		ID:           r.ID,
		World:        r.World,
		Filename:     r.Filename,
		Size:         r.SizeBytes,
		Destination:  r.DestinationType,
		Location:     r.DestinationPath,
		Status:       r.Status,
		Origin:       r.Origin,
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt,
	}
}

// NewBackupManager creates a new backup manager
func NewBackupManager(db *sql.DB, opts ManagerOptions) *BackupManager {
	if opts.StagingDirName == "" {
		opts.StagingDirName = "roam_backups"
	}
	if opts.Destination.Type == "" {
		opts.Destination.Type = "local"
	}
	return &BackupManager{
		db:             db,
		stagingDirName: opts.StagingDirName,
		destination:    opts.Destination,
		compression:    normalizeCompression(opts.Compression),
		newDestination: NewDestination,
	}
}

// StagingDir returns the directory archives for serverPath are written to.
func (bm *BackupManager) StagingDir(serverPath string) string {
	return filepath.Join(serverPath, bm.stagingDirName)
}

// destinationFor returns the destination config for a server, filling in the
// staging directory for a local destination without a path.
func (bm *BackupManager) destinationFor(serverPath string) DestinationConfig {
	dest := bm.destination
	if dest.Type == "local" && dest.Path == "" {
		dest.Path = bm.StagingDir(serverPath)
	}
	return dest
}

// CreateBackup archives one world and hands the archive to the configured
// destination. The record moves from creating to completed or failed.
func (bm *BackupManager) CreateBackup(req *BackupRequest) (*BackupRecord, error) {
	worldDir, err := worlds.Resolve(req.ServerPath, req.World)
	if err != nil {
		return nil, err
	}
	if !worlds.IsWorld(worldDir) {
		return nil, fmt.Errorf("%s: %w", req.World, worlds.ErrNotAWorld)
	}

	key := filepath.Clean(worldDir)
	if _, busy := bm.inFlight.LoadOrStore(key, struct{}{}); busy {
		return nil, fmt.Errorf("%s: %w", req.World, ErrBackupInProgress)
	}
	defer bm.inFlight.Delete(key)

	origin := req.Origin
	if origin == "" {
		origin = OriginManual
	}

	dest := bm.destinationFor(req.ServerPath)
	staging := bm.StagingDir(req.ServerPath)
	record := &BackupRecord{
		ID:              "backup-" + uuid.New().String()[:8],
		ServerPath:      req.ServerPath,
		World:           req.World,
		Filename:        archiveName(staging, req.World, time.Now()),
		Status:          StatusCreating,
		CreatedAt:       time.Now(),
		DestinationType: dest.Type,
		DestinationPath: dest.Path,
		Origin:          origin,
	}
	log.Printf("[BackupMgr] Creating backup %s of world %s", record.ID, req.World)

	if err := bm.saveBackupRecord(record); err != nil {
		return nil, fmt.Errorf("failed to save backup record: %w", err)
	}

	if err := os.MkdirAll(staging, 0755); err != nil {
		return bm.fail(record, fmt.Errorf("failed to create staging directory: %w", err))
	}

	archive, err := Archive(worldDir, filepath.Join(staging, record.Filename), bm.compression)
	if err != nil {
		return bm.fail(record, err)
	}
	record.SizeBytes = archive.SizeBytes

	if !bm.isStagingDestination(dest, staging) {
		err := bm.transferToDestination(archive, &dest)
		if removeErr := os.Remove(archive.Path); removeErr != nil {
			log.Printf("[BackupMgr] Warning: Failed to remove staged archive: %v", removeErr)
		}
		if err != nil {
			return bm.fail(record, fmt.Errorf("failed to transfer backup: %w", err))
		}
	}

	record.Status = StatusCompleted
	if err := bm.saveBackupRecord(record); err != nil {
		log.Printf("[BackupMgr] Warning: Failed to update backup status: %v", err)
	}

	log.Printf("[BackupMgr] Backup %s created successfully: %s (%d bytes)",
		record.ID, record.Filename, record.SizeBytes)
	return record, nil
}

// archiveName returns <world>_<timestamp>.zip, adding a counter when an
// archive with that name is already staged.
func archiveName(staging, world string, now time.Time) string {
	base := fmt.Sprintf("%s_%s", world, now.Format(archiveTimeFormat))
	name := base + ".zip"
	for i := 2; ; i++ {
		if _, err := os.Stat(filepath.Join(staging, name)); os.IsNotExist(err) {
			return name
		}
		name = fmt.Sprintf("%s_%d.zip", base, i)
	}
}

func (bm *BackupManager) fail(record *BackupRecord, err error) (*BackupRecord, error) {
	record.Status = StatusFailed
	record.ErrorMessage = err.Error()
	if saveErr := bm.saveBackupRecord(record); saveErr != nil {
		log.Printf("[BackupMgr] Warning: Failed to record failure: %v", saveErr)
	}
	log.Printf("[BackupMgr] Backup %s failed: %v", record.ID, err)
	return record, err
}

func (bm *BackupManager) isStagingDestination(dest DestinationConfig, staging string) bool {
	return dest.Type == "local" && filepath.Clean(dest.Path) == filepath.Clean(staging)
}

// transferToDestination uploads a staged archive to the destination
func (bm *BackupManager) transferToDestination(archive *ArchiveInfo, destConfig *DestinationConfig) error {
	log.Printf("[BackupMgr] Transferring backup to %s destination", destConfig.Type)

	dest, err := bm.newDestination(destConfig)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}
	defer closeDestination(dest)

	src, err := os.Open(archive.Path)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer src.Close()

	if err := dest.Upload(archive.Filename, src, archive.SizeBytes); err != nil {
		return fmt.Errorf("failed to upload to destination: %w", err)
	}
	return nil
}

// DeleteBackup removes the archive from its destination and marks the record deleted
func (bm *BackupManager) DeleteBackup(backupID string) error {
	log.Printf("[BackupMgr] Deleting backup %s", backupID)

	record, err := bm.GetBackup(backupID)
	if err != nil {
		return err
	}
	if record.Status == StatusDeleted {
		return fmt.Errorf("%w: %s", ErrBackupNotFound, backupID)
	}

	if record.Status == StatusCompleted {
		destConfig := bm.destination
		destConfig.Type = record.DestinationType
		destConfig.Path = record.DestinationPath

		dest, err := bm.newDestination(&destConfig)
		if err != nil {
			return fmt.Errorf("failed to create destination: %w", err)
		}
		err = dest.Delete(record.Filename)
		closeDestination(dest)
		if err != nil {
			log.Printf("[BackupMgr] Warning: Failed to delete from destination: %v", err)
		}
	}

	record.Status = StatusDeleted
	if err := bm.saveBackupRecord(record); err != nil {
		return fmt.Errorf("failed to update backup record: %w", err)
	}

	log.Printf("[BackupMgr] Backup %s deleted successfully", backupID)
	return nil
}

const selectBackupColumns = `
	SELECT id, server_path, world, filename, size_bytes, created_at,
	       destination_type, destination_path, status, error_message, origin
	FROM backups
`

// ListBackups returns all live backups for a server, newest first
func (bm *BackupManager) ListBackups(serverPath string) ([]*BackupRecord, error) {
	rows, err := bm.db.Query(selectBackupColumns+`
		WHERE server_path = ? AND status != ?
		ORDER BY created_at DESC
	`, serverPath, StatusDeleted)
	if err != nil {
		return nil, fmt.Errorf("failed to query backups: %w", err)
	}
	defer rows.Close()

	backups := make([]*BackupRecord, 0)
	for rows.Next() {
		record, err := scanBackupRecord(rows)
		if err != nil {
			return nil, err
		}
		backups = append(backups, record)
	}
	return backups, rows.Err()
}

// GetBackup retrieves a specific backup
func (bm *BackupManager) GetBackup(backupID string) (*BackupRecord, error) {
	row := bm.db.QueryRow(selectBackupColumns+`WHERE id = ?`, backupID)
	record, err := scanBackupRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrBackupNotFound, backupID)
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBackupRecord(row rowScanner) (*BackupRecord, error) {
	record := &BackupRecord{}
	var errorMsg sql.NullString

	err := row.Scan(
		&record.ID,
		&record.ServerPath,
		&record.World,
		&record.Filename,
		&record.SizeBytes,
		&record.CreatedAt,
		&record.DestinationType,
		&record.DestinationPath,
		&record.Status,
		&errorMsg,
		&record.Origin,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan backup record: %w", err)
	}
	if errorMsg.Valid {
		record.ErrorMessage = errorMsg.String
	}
	return record, nil
}

// saveBackupRecord saves or updates a backup record
func (bm *BackupManager) saveBackupRecord(record *BackupRecord) error {
	query := `
		INSERT OR REPLACE INTO backups
		(id, server_path, world, filename, size_bytes, created_at, destination_type,
		 destination_path, status, error_message, origin)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := bm.db.Exec(query,
		record.ID,
		record.ServerPath,
		record.World,
		record.Filename,
		record.SizeBytes,
		record.CreatedAt,
		record.DestinationType,
		record.DestinationPath,
		record.Status,
		record.ErrorMessage,
		record.Origin,
	)
	if err != nil {
		return fmt.Errorf("failed to save backup record: %w", err)
	}
	return nil
}

package backup

import (
	"fmt"
	"log"
	"sort"
)

// RetentionManager handles backup retention policies
type RetentionManager struct {
	backupManager *BackupManager
}

// NewRetentionManager creates a new retention manager
func NewRetentionManager(backupMgr *BackupManager) *RetentionManager {
	return &RetentionManager{
		backupManager: backupMgr,
	}
}

// EnforceRetention keeps the newest keep completed backups of a world and
// deletes the rest. It returns how many backups were deleted.
func (rm *RetentionManager) EnforceRetention(serverPath, world string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	backups, err := rm.backupManager.ListBackups(serverPath)
	if err != nil {
		return 0, fmt.Errorf("failed to list backups: %w", err)
	}

	var completed []*BackupRecord
	for _, backup := range backups {
		if backup.Status == StatusCompleted && backup.World == world {
			completed = append(completed, backup)
		}
	}
	if len(completed) <= keep {
		return 0, nil
	}

	sort.Slice(completed, func(i, j int) bool {
		return completed[i].CreatedAt.After(completed[j].CreatedAt)
	})

	deleted := 0
	for _, backup := range completed[keep:] {
		log.Printf("[Retention] Deleting old backup: %s (created: %s)",
			backup.ID, backup.CreatedAt.Format("2006-01-02 15:04:05"))
		if err := rm.backupManager.DeleteBackup(backup.ID); err != nil {
			log.Printf("[Retention] Error deleting backup %s: %v", backup.ID, err)
			continue
		}
		deleted++
	}

	log.Printf("[Retention] World %s: deleted %d backups (keep %d)", world, deleted, keep)
	return deleted, nil
}

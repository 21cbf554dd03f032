package backup

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rmia46/roam-mc-server-manager/internal/config"
	"github.com/rmia46/roam-mc-server-manager/internal/logging"
	"github.com/rmia46/roam-mc-server-manager/internal/properties"
	"github.com/rmia46/roam-mc-server-manager/internal/server"
	"github.com/rmia46/roam-mc-server-manager/internal/worlds"
)

// ServerHandle is the part of the supervisor the scheduler needs.
type ServerHandle interface {
	Config() *server.ServerConfig
	SendCommand(text string) error
}

// EventRecorder records backup activity.
type EventRecorder interface {
	LogEvent(serverName, activityType, description string, metadata map[string]interface{}, err error) error
}

// saveSettle gives the server time to flush chunks after save-all.
const saveSettle = 3 * time.Second

// ScheduleRunner executes scheduled world backups on a cron schedule
type ScheduleRunner struct {
	cfg          config.BackupsConfig
	server       ServerHandle
	backupMgr    *BackupManager
	retentionMgr *RetentionManager
	activity     EventRecorder

	cron    *cron.Cron
	entryID cron.EntryID
	settle  time.Duration

	mu      sync.Mutex
	running bool
}

func NewScheduleRunner(cfg config.BackupsConfig, srv ServerHandle, backupMgr *BackupManager, activity EventRecorder) *ScheduleRunner {
	return &ScheduleRunner{
		cfg:          cfg,
		server:       srv,
		backupMgr:    backupMgr,
		retentionMgr: NewRetentionManager(backupMgr),
		activity:     activity,
		cron:         cron.New(),
		settle:       saveSettle,
	}
}

// Start registers the schedule and starts the cron scheduler. It is a no-op
// when scheduled backups are disabled.
func (sr *ScheduleRunner) Start() error {
	if !sr.cfg.Enabled {
		log.Printf("[BackupSchedule] Scheduled backups disabled")
		return nil
	}

	id, err := sr.cron.AddFunc(sr.cfg.Schedule, sr.RunOnce)
	if err != nil {
		return err
	}
	sr.entryID = id
	sr.cron.Start()
	log.Printf("[BackupSchedule] Scheduled backups enabled (%s), next run %s",
		sr.cfg.Schedule, sr.NextRun().Format(time.RFC3339))
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (sr *ScheduleRunner) Stop() {
	<-sr.cron.Stop().Done()
}

// NextRun reports the next activation, or the zero time when not scheduled.
func (sr *ScheduleRunner) NextRun() time.Time {
	if sr.entryID == 0 {
		return time.Time{}
	}
	return sr.cron.Entry(sr.entryID).Next
}

// RunOnce backs up the configured worlds of the current server. Overlapping
// runs are skipped.
func (sr *ScheduleRunner) RunOnce() {
	sr.mu.Lock()
	if sr.running {
		sr.mu.Unlock()
		log.Printf("[BackupSchedule] Previous run still in progress, skipping")
		return
	}
	sr.running = true
	sr.mu.Unlock()
	defer func() {
		sr.mu.Lock()
		sr.running = false
		sr.mu.Unlock()
	}()

	cfg := sr.server.Config()
	if cfg == nil {
		log.Printf("[BackupSchedule] No server configured, skipping")
		return
	}

	targets, err := sr.targetWorlds(cfg.Path)
	if err != nil {
		log.Printf("[BackupSchedule] Failed to list worlds: %v", err)
		return
	}
	if len(targets) == 0 {
		log.Printf("[BackupSchedule] No worlds to back up in %s", cfg.Path)
		return
	}

	if sr.cfg.SaveBeforeBackup {
		sr.saveWorlds()
	}

	for _, world := range targets {
		record, err := sr.backupMgr.CreateBackup(&BackupRequest{
			ServerPath: cfg.Path,
			World:      world,
			Origin:     OriginScheduled,
		})
		sr.record(cfg.DisplayName(), world, record, err)
		if err != nil {
			continue
		}

		if _, err := sr.retentionMgr.EnforceRetention(cfg.Path, world, sr.cfg.RetentionCount); err != nil {
			log.Printf("[BackupSchedule] Retention enforcement failed for %s: %v", world, err)
		}
	}
}

func (sr *ScheduleRunner) targetWorlds(serverPath string) ([]string, error) {
	if len(sr.cfg.Worlds) > 0 {
		return sr.cfg.Worlds, nil
	}

	found, err := worlds.List(serverPath)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(found))
	for _, w := range found {
		names = append(names, w.Name)
	}
	if len(names) == 0 && properties.IsInitialized(serverPath) {
		names = append(names, properties.LevelName(serverPath))
	}
	return names, nil
}

func (sr *ScheduleRunner) saveWorlds() {
	err := sr.server.SendCommand("save-all flush")
	switch {
	case err == nil:
		time.Sleep(sr.settle)
	case errors.Is(err, server.ErrNoOwnedProcess):
	default:
		log.Printf("[BackupSchedule] Warning: save-all failed: %v", err)
	}
}

func (sr *ScheduleRunner) record(serverName, world string, record *BackupRecord, err error) {
	if sr.activity == nil {
		return
	}
	metadata := map[string]interface{}{"world": world, "origin": OriginScheduled}
	if record != nil {
		metadata["backup_id"] = record.ID
		metadata["filename"] = record.Filename
	}
	if logErr := sr.activity.LogEvent(serverName, logging.ActivityBackupCreate,
		"Scheduled backup of "+world, metadata, err); logErr != nil {
		log.Printf("[BackupSchedule] Warning: failed to record activity: %v", logErr)
	}
}

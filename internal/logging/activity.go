package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ActivityLogger records user-visible server activity in sqlite and in a
// daily JSON-lines file.
type ActivityLogger struct {
	db          *sql.DB
	logDir      string
	currentFile *os.File
	currentDate string
	mu          sync.Mutex
}

// Activity represents a logged activity
type Activity struct {
	Timestamp    time.Time              `json:"timestamp"`
	ServerName   string                 `json:"server_name"`
	ActivityType string                 `json:"activity_type"`
	Description  string                 `json:"description"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Success      bool                   `json:"success"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// Activity type constants
const (
	ActivityServerStart        = "server.start"
	ActivityServerStop         = "server.stop"
	ActivityServerStatusChange = "server.status_change"
	ActivityCommandExecute     = "command.execute"
	ActivityConfigUpdate       = "config.update"
	ActivityPropertiesUpdate   = "properties.update"
	ActivityBackupCreate       = "backup.create"
	ActivityBackupDelete       = "backup.delete"
	ActivityWorldDelete        = "world.delete"
	ActivityError              = "error"
)

// NewActivityLogger creates a new activity logger
func NewActivityLogger(db *sql.DB, logDir string) (*ActivityLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	log.Printf("[ActivityLogger] Initialized (log directory: %s)", logDir)

	return &ActivityLogger{db: db, logDir: logDir}, nil
}

// LogActivity logs an activity to both database and file
func (al *ActivityLogger) LogActivity(activity *Activity) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	if activity.Timestamp.IsZero() {
		activity.Timestamp = time.Now().UTC()
	}

	// A database failure still leaves the file record.
	if err := al.logToDatabase(activity); err != nil {
		log.Printf("[ActivityLogger] Error logging to database: %v", err)
	}

	if err := al.logToFile(activity); err != nil {
		log.Printf("[ActivityLogger] Error logging to file: %v", err)
		return err
	}

	return nil
}

// LogServerStart logs a start request and its outcome.
func (al *ActivityLogger) LogServerStart(serverName string, err error) error {
	return al.LogActivity(&Activity{
		ServerName:   serverName,
		ActivityType: ActivityServerStart,
		Description:  "Server start requested",
		Success:      err == nil,
		ErrorMessage: errorText(err),
	})
}

// LogServerStop logs a stop request and whether anything was stopped.
func (al *ActivityLogger) LogServerStop(serverName string, stopped bool, err error) error {
	return al.LogActivity(&Activity{
		ServerName:   serverName,
		ActivityType: ActivityServerStop,
		Description:  fmt.Sprintf("Server stop requested (stopped: %v)", stopped),
		Metadata:     map[string]interface{}{"stopped": stopped},
		Success:      err == nil,
		ErrorMessage: errorText(err),
	})
}

// LogCommandExecute logs a console command.
func (al *ActivityLogger) LogCommandExecute(serverName, command string, err error) error {
	return al.LogActivity(&Activity{
		ServerName:   serverName,
		ActivityType: ActivityCommandExecute,
		Description:  fmt.Sprintf("Command executed: %s", command),
		Metadata:     map[string]interface{}{"command": command},
		Success:      err == nil,
		ErrorMessage: errorText(err),
	})
}

// LogStatusChange logs a server status change
func (al *ActivityLogger) LogStatusChange(serverName, oldStatus, newStatus string) error {
	return al.LogActivity(&Activity{
		ServerName:   serverName,
		ActivityType: ActivityServerStatusChange,
		Description:  fmt.Sprintf("Status changed: %s -> %s", oldStatus, newStatus),
		Metadata: map[string]interface{}{
			"old_status": oldStatus,
			"new_status": newStatus,
		},
		Success: true,
	})
}

// LogEvent records a generic activity such as a backup or a config update.
func (al *ActivityLogger) LogEvent(serverName, activityType, description string, metadata map[string]interface{}, err error) error {
	return al.LogActivity(&Activity{
		ServerName:   serverName,
		ActivityType: activityType,
		Description:  description,
		Metadata:     metadata,
		Success:      err == nil,
		ErrorMessage: errorText(err),
	})
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// GetActivities retrieves activities from the database, newest first.
func (al *ActivityLogger) GetActivities(activityType string, since time.Time, limit int) ([]*Activity, error) {
	if al.db == nil {
		return nil, fmt.Errorf("database not available")
	}

	query := `
		SELECT timestamp, server_name, activity_type, description, metadata, success, error_message
		FROM activity_log
		WHERE 1=1
	`
	args := make([]interface{}, 0)

	if activityType != "" {
		query += " AND activity_type = ?"
		args = append(args, activityType)
	}
	if !since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, since.UTC())
	}

	query += " ORDER BY timestamp DESC, id DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := al.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	activities := make([]*Activity, 0)
	for rows.Next() {
		activity := &Activity{}
		var metadataJSON sql.NullString

		if err := rows.Scan(
			&activity.Timestamp,
			&activity.ServerName,
			&activity.ActivityType,
			&activity.Description,
			&metadataJSON,
			&activity.Success,
			&activity.ErrorMessage,
		); err != nil {
			log.Printf("[ActivityLogger] Error scanning row: %v", err)
			continue
		}

		if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &activity.Metadata); err != nil {
				log.Printf("[ActivityLogger] Error unmarshaling metadata: %v", err)
			}
		}

		activities = append(activities, activity)
	}

	return activities, rows.Err()
}

// GetRecentActivities retrieves the most recent activities
func (al *ActivityLogger) GetRecentActivities(limit int) ([]*Activity, error) {
	return al.GetActivities("", time.Time{}, limit)
}

func (al *ActivityLogger) logToDatabase(activity *Activity) error {
	if al.db == nil {
		return nil
	}

	var metadata interface{}
	if len(activity.Metadata) > 0 {
		data, err := json.Marshal(activity.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = string(data)
	}

	_, err := al.db.Exec(`
		INSERT INTO activity_log (
			timestamp, server_name, activity_type, description, metadata, success, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		activity.Timestamp.UTC(),
		activity.ServerName,
		activity.ActivityType,
		activity.Description,
		metadata,
		activity.Success,
		activity.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

func (al *ActivityLogger) logToFile(activity *Activity) error {
	currentDate := time.Now().Format("2006-01-02")

	if al.currentFile == nil || al.currentDate != currentDate {
		if err := al.rotateLogFile(currentDate); err != nil {
			return fmt.Errorf("failed to rotate log file: %w", err)
		}
	}

	line, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}

	if _, err := fmt.Fprintf(al.currentFile, "%s\n", line); err != nil {
		return fmt.Errorf("failed to write to log file: %w", err)
	}

	if activity.ActivityType == ActivityServerStart ||
		activity.ActivityType == ActivityServerStop ||
		activity.ActivityType == ActivityError {
		al.currentFile.Sync()
	}

	return nil
}

func (al *ActivityLogger) rotateLogFile(date string) error {
	if al.currentFile != nil {
		al.currentFile.Close()
		al.currentFile = nil
	}

	logPath := filepath.Join(al.logDir, fmt.Sprintf("activity-%s.log", date))

	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	al.currentFile = file
	al.currentDate = date
	return nil
}

// Close closes the activity logger
func (al *ActivityLogger) Close() error {
	al.mu.Lock()
	defer al.mu.Unlock()

	if al.currentFile != nil {
		err := al.currentFile.Close()
		al.currentFile = nil
		return err
	}
	return nil
}

// CleanupOldActivities removes database rows and daily files older than olderThan.
func (al *ActivityLogger) CleanupOldActivities(olderThan time.Duration) error {
	if al.db == nil {
		return fmt.Errorf("database not available")
	}

	cutoff := time.Now().Add(-olderThan)

	result, err := al.db.Exec(`DELETE FROM activity_log WHERE timestamp < ?`, cutoff.UTC())
	if err != nil {
		return fmt.Errorf("failed to cleanup old activities: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()

	files, _ := filepath.Glob(filepath.Join(al.logDir, "activity-*.log"))
	removed := 0
	for _, path := range files {
		name := filepath.Base(path)
		day, err := time.ParseInLocation("2006-01-02", name[len("activity-"):len(name)-len(".log")], time.Local)
		if err != nil || !day.Before(cutoff.Truncate(24*time.Hour)) {
			continue
		}
		al.mu.Lock()
		current := al.currentFile != nil && filepath.Base(al.currentFile.Name()) == name
		al.mu.Unlock()
		if current {
			continue
		}
		if err := os.Remove(path); err == nil {
			removed++
		}
	}

	log.Printf("[ActivityLogger] Cleaned up %d activities and %d files older than %v", rowsAffected, removed, olderThan)
	return nil
}

package models

import "time"

// Backup represents a world backup
type Backup struct {
	ID           string    `json:"id"`
	World        string    `json:"world"`
	Filename     string    `json:"filename"`
	Size         int64     `json:"size"` // bytes
	Destination  string    `json:"destination"`
	Location     string    `json:"location"`
	Status       string    `json:"status"` // "creating", "completed", "failed"
	Origin       string    `json:"origin"` // "manual", "scheduled"
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateBackupRequest represents a backup creation request
type CreateBackupRequest struct {
	World string `json:"world" binding:"required"`
}

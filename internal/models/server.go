package models

// WorldInfo describes a world directory inside the server installation.
type WorldInfo struct {
	Name         string  `json:"name"`
	SizeMB       float64 `json:"size_mb"`
	LastModified string  `json:"last_modified"`
}

// PlayerInfo summarises one player's statistics file.
type PlayerInfo struct {
	UUID       string  `json:"uuid"`
	Name       string  `json:"name"`
	TimePlayed float64 `json:"time_played"` // hours
	Steps      uint64  `json:"steps"`
}

// CommandRequest is the body of a console command request.
type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// StopResponse reports whether a stop request found something to stop.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

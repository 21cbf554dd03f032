package server

import "log"

// StatusRecorder persists lifecycle transitions.
type StatusRecorder interface {
	LogStatusChange(serverName, oldStatus, newStatus string) error
}

// statusHistorySink forwards status-update events to a StatusRecorder,
// skipping repeats of the same status.
type statusHistorySink struct {
	recorder StatusRecorder
	name     func() string
	last     LifecycleStatus
}

// NewStatusHistorySink returns an EventSink that records status changes.
// name is called per event to label the record with the configured server.
func NewStatusHistorySink(recorder StatusRecorder, name func() string) EventSink {
	return &statusHistorySink{recorder: recorder, name: name, last: StatusOffline}
}

func (s *statusHistorySink) HandleEvent(e Event) {
	if e.Type != EventStatusUpdate || e.Status == s.last {
		return
	}
	from := s.last
	s.last = e.Status
	if err := s.recorder.LogStatusChange(s.name(), from.String(), e.Status.String()); err != nil {
		log.Printf("[Supervisor] Failed to record status change: %v", err)
	}
}

// ServerName returns the display name of the configured server, or "".
func (s *Supervisor) ServerName() string {
	if cfg := s.Config(); cfg != nil {
		return cfg.DisplayName()
	}
	return ""
}

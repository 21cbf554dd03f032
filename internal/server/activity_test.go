package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordedChange struct{ name, from, to string }

type fakeRecorder struct {
	changes []recordedChange
}

func (f *fakeRecorder) LogStatusChange(name, from, to string) error {
	f.changes = append(f.changes, recordedChange{name, from, to})
	return nil
}

func TestStatusHistorySinkSkipsRepeats(t *testing.T) {
	rec := &fakeRecorder{}
	sink := NewStatusHistorySink(rec, func() string { return "survival" })

	for _, status := range []LifecycleStatus{StatusStarting, StatusRunning, StatusStopping, StatusOffline, StatusOffline} {
		sink.HandleEvent(Event{Type: EventStatusUpdate, Status: status})
	}
	sink.HandleEvent(Event{Type: EventLogLine, Line: "noise"})

	assert.Equal(t, []recordedChange{
		{"survival", "Offline", "Starting"},
		{"survival", "Starting", "Running"},
		{"survival", "Running", "Stopping"},
		{"survival", "Stopping", "Offline"},
	}, rec.changes)
}

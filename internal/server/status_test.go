package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		from    LifecycleStatus
		trigger Trigger
		want    LifecycleStatus
		ok      bool
	}{
		{StatusOffline, TriggerStart, StatusStarting, true},
		{StatusStarting, TriggerStart, StatusStarting, false},
		{StatusRunning, TriggerStart, StatusRunning, false},
		{StatusStopping, TriggerStart, StatusStopping, false},
		{StatusStarting, TriggerLaunchFailed, StatusOffline, true},
		{StatusRunning, TriggerLaunchFailed, StatusRunning, false},
		{StatusStarting, TriggerReady, StatusRunning, true},
		{StatusRunning, TriggerReady, StatusRunning, true},
		{StatusStopping, TriggerReady, StatusStopping, false},
		{StatusOffline, TriggerReady, StatusOffline, false},
		{StatusOffline, TriggerStop, StatusStopping, true},
		{StatusRunning, TriggerStop, StatusStopping, true},
		{StatusStopping, TriggerStopped, StatusOffline, true},
		{StatusRunning, TriggerExited, StatusOffline, true},
		{StatusStarting, TriggerExited, StatusOffline, true},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+tt.trigger.String(), func(t *testing.T) {
			got, ok := Transition(tt.from, tt.trigger)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestStatusJSON(t *testing.T) {
	data, err := json.Marshal(ServerStats{Status: StatusRunning, PlayerCount: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"cpu":0,"memory":0,"status":"Running","player_count":2}`, string(data))

	var stats ServerStats
	require.NoError(t, json.Unmarshal([]byte(`{"status":"Stopping"}`), &stats))
	assert.Equal(t, StatusStopping, stats.Status)

	_, err = ParseStatus("Online")
	assert.Error(t, err)
}

func TestPlayerCounterNeverNegative(t *testing.T) {
	var p playerCounter

	assert.Equal(t, 0, p.decrement())

	assert.Equal(t, 1, p.increment())
	assert.Equal(t, 2, p.increment())

	assert.Equal(t, 1, p.decrement())
	p.decrement()
	p.decrement()
	assert.Equal(t, 0, p.value())
}

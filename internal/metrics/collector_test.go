package metrics

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rmia46/roam-mc-server-manager/internal/config"
	"github.com/rmia46/roam-mc-server-manager/internal/database"
	"github.com/rmia46/roam-mc-server-manager/internal/server"
)

type fakeSource struct {
	mu    sync.Mutex
	stats server.ServerStats
}

func (f *fakeSource) Stats() server.ServerStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

func (f *fakeSource) set(stats server.ServerStats) {
	f.mu.Lock()
	f.stats = stats
	f.mu.Unlock()
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeBroadcaster) Broadcast(msgType string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msgType)
}

func (f *fakeBroadcaster) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "metrics.db"), 1)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestCollectRecordsAndBroadcasts(t *testing.T) {
	db := newTestDB(t)
	source := &fakeSource{}
	broadcaster := &fakeBroadcaster{}
	collector := NewCollector(config.MetricsConfig{Enabled: true, Interval: "1s", RetentionDays: 2}, source, broadcaster, db)

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	collector.now = func() time.Time { return start.Add(time.Duration(tick) * time.Second) }

	source.set(server.ServerStats{Status: server.StatusOffline})
	collector.Collect()
	tick++
	source.set(server.ServerStats{CPU: 12.5, Memory: 1 << 30, Status: server.StatusRunning, PlayerCount: 2})
	collector.Collect()

	if broadcaster.count() != 2 || broadcaster.messages[0] != EventStatsUpdate {
		t.Fatalf("expected two stats-update broadcasts, got %v", broadcaster.messages)
	}

	history, err := collector.History(10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(history))
	}
	if history[0].Status != "Offline" || history[1].Status != "Running" {
		t.Fatalf("expected oldest first, got %+v", history)
	}
	if history[1].Memory != 1<<30 || history[1].PlayerCount != 2 || history[1].CPU != 12.5 {
		t.Fatalf("unexpected sample: %+v", history[1])
	}

	limited, err := collector.History(1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(limited) != 1 || limited[0].Status != "Running" {
		t.Fatalf("expected most recent sample, got %+v", limited)
	}
}

func TestCollectPurgesExpiredSamples(t *testing.T) {
	db := newTestDB(t)
	source := &fakeSource{stats: server.ServerStats{Status: server.StatusRunning}}
	collector := NewCollector(config.MetricsConfig{Enabled: true, Interval: "1s", RetentionDays: 1}, source, nil, db)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	collector.now = func() time.Time { return now }
	collector.Collect()

	// within the cleanup interval nothing is purged, even if rows have expired
	now = now.Add(2 * time.Hour)
	collector.Collect()

	now = now.Add(3 * 24 * time.Hour)
	collector.Collect()

	history, err := collector.History(10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || !history[0].Timestamp.Equal(now) {
		t.Fatalf("expected only the latest sample to survive, got %+v", history)
	}
}

func TestStartDisabledIsNoop(t *testing.T) {
	collector := NewCollector(config.MetricsConfig{Enabled: false}, &fakeSource{}, nil, nil)
	collector.Start()
	collector.Stop()
	collector.Stop()

	history, err := collector.History(5)
	if err != nil || len(history) != 0 {
		t.Fatalf("expected empty history without a database, got %v %v", history, err)
	}
}

func TestStartSamplesOnInterval(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	collector := NewCollector(config.MetricsConfig{Enabled: true, Interval: "20ms"}, &fakeSource{}, broadcaster, nil)
	collector.Start()
	defer collector.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for broadcaster.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("collector did not sample")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

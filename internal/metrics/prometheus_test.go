package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rmia46/roam-mc-server-manager/internal/config"
	"github.com/rmia46/roam-mc-server-manager/internal/server"
)

func TestExporterTracksEvents(t *testing.T) {
	e := NewExporter()

	if got := testutil.ToFloat64(e.status.WithLabelValues("Offline")); got != 1 {
		t.Fatalf("expected Offline to start at 1, got %v", got)
	}

	e.HandleEvent(server.Event{Type: server.EventStatusUpdate, Status: server.StatusStarting})
	e.HandleEvent(server.Event{Type: server.EventStatusUpdate, Status: server.StatusRunning})
	e.HandleEvent(server.Event{Type: server.EventLogLine, Line: "a"})
	e.HandleEvent(server.Event{Type: server.EventLogLine, Line: "b"})
	e.HandleEvent(server.Event{Type: server.EventPlayerUpdate, Players: 4})

	if got := testutil.ToFloat64(e.status.WithLabelValues("Running")); got != 1 {
		t.Fatalf("expected Running gauge 1, got %v", got)
	}
	if got := testutil.ToFloat64(e.status.WithLabelValues("Offline")); got != 0 {
		t.Fatalf("expected Offline gauge 0, got %v", got)
	}
	if got := testutil.ToFloat64(e.transitions.WithLabelValues("Starting")); got != 1 {
		t.Fatalf("expected one Starting transition, got %v", got)
	}
	if got := testutil.ToFloat64(e.logLines); got != 2 {
		t.Fatalf("expected 2 log lines, got %v", got)
	}
	if got := testutil.ToFloat64(e.players); got != 4 {
		t.Fatalf("expected 4 players, got %v", got)
	}
}

func TestCollectorFeedsExporter(t *testing.T) {
	source := &fakeSource{stats: server.ServerStats{CPU: 42, Memory: 2048, Status: server.StatusRunning, PlayerCount: 1}}
	collector := NewCollector(config.MetricsConfig{Enabled: true, Interval: "1s", RetentionDays: 1}, source, nil, nil)
	exporter := NewExporter()
	collector.SetExporter(exporter)

	collector.Collect()

	srv := httptest.NewServer(exporter.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		"roam_server_cpu_percent 42",
		"roam_server_memory_bytes 2048",
		`roam_server_status{status="Running"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %q in scrape:\n%s", want, body)
		}
	}
}

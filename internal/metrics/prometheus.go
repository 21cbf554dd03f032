package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rmia46/roam-mc-server-manager/internal/server"
)

const metricsNamespace = "roam"

var lifecycleStates = []server.LifecycleStatus{
	server.StatusOffline,
	server.StatusStarting,
	server.StatusRunning,
	server.StatusStopping,
}

// Exporter exposes the latest sample and lifecycle transitions in the
// Prometheus text format. Each Exporter owns its registry.
type Exporter struct {
	registry    *prometheus.Registry
	cpu         prometheus.Gauge
	memory      prometheus.Gauge
	players     prometheus.Gauge
	status      *prometheus.GaugeVec
	transitions *prometheus.CounterVec
	logLines    prometheus.Counter
}

func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		cpu: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "server",
			Name:      "cpu_percent",
			Help:      "CPU usage of the server process at the last sample.",
		}),
		memory: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "server",
			Name:      "memory_bytes",
			Help:      "Resident memory of the server process at the last sample.",
		}),
		players: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "server",
			Name:      "players_online",
			Help:      "Players online according to the server log.",
		}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "server",
			Name:      "status",
			Help:      "1 for the current lifecycle status, 0 otherwise.",
		}, []string{"status"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "server",
			Name:      "status_changes_total",
			Help:      "Lifecycle transitions by the status entered.",
		}, []string{"status"}),
		logLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "server",
			Name:      "log_lines_total",
			Help:      "Console lines read from the server.",
		}),
	}
	e.registry.MustRegister(e.cpu, e.memory, e.players, e.status, e.transitions, e.logLines)
	e.setStatus(server.StatusOffline)
	return e
}

// Observe records one stats snapshot.
func (e *Exporter) Observe(stats server.ServerStats) {
	e.cpu.Set(stats.CPU)
	e.memory.Set(float64(stats.Memory))
	e.players.Set(float64(stats.PlayerCount))
	e.setStatus(stats.Status)
}

// HandleEvent counts status transitions and log lines.
func (e *Exporter) HandleEvent(ev server.Event) {
	switch ev.Type {
	case server.EventStatusUpdate:
		e.transitions.WithLabelValues(ev.Status.String()).Inc()
		e.setStatus(ev.Status)
	case server.EventLogLine:
		e.logLines.Inc()
	case server.EventPlayerUpdate:
		e.players.Set(float64(ev.Players))
	}
}

func (e *Exporter) setStatus(current server.LifecycleStatus) {
	for _, s := range lifecycleStates {
		value := 0.0
		if s == current {
			value = 1
		}
		e.status.WithLabelValues(s.String()).Set(value)
	}
}

// Handler serves the registry.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

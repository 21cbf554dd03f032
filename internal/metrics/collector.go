// Package metrics samples the managed server on an interval, publishes each
// sample to live clients and keeps a short history in the database.
package metrics

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rmia46/roam-mc-server-manager/internal/config"
	"github.com/rmia46/roam-mc-server-manager/internal/database"
	"github.com/rmia46/roam-mc-server-manager/internal/server"
)

// EventStatsUpdate is the event type broadcast for every sample.
const EventStatsUpdate = "stats-update"

const cleanupInterval = 6 * time.Hour

// StatsSource produces point-in-time server stats.
type StatsSource interface {
	Stats() server.ServerStats
}

// Broadcaster publishes an event to connected clients.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{})
}

// Sample is one recorded stats row.
type Sample struct {
	Timestamp   time.Time `json:"timestamp"`
	CPU         float64   `json:"cpu"`
	Memory      uint64    `json:"memory"`
	Status      string    `json:"status"`
	PlayerCount int       `json:"player_count"`
}

type Collector struct {
	cfg         config.MetricsConfig
	source      StatsSource
	broadcaster Broadcaster
	db          *database.DB
	exporter    *Exporter
	stopCh      chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	mu          sync.Mutex
	lastCleanup time.Time
	now         func() time.Time
}

func NewCollector(cfg config.MetricsConfig, source StatsSource, broadcaster Broadcaster, db *database.DB) *Collector {
	return &Collector{
		cfg:         cfg,
		source:      source,
		broadcaster: broadcaster,
		db:          db,
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}
}

// SetExporter makes every sample update exporter as well.
func (c *Collector) SetExporter(exporter *Exporter) {
	c.exporter = exporter
}

func (c *Collector) Start() {
	if !c.cfg.Enabled {
		log.Printf("[Metrics] Stats collection disabled")
		return
	}

	interval := c.cfg.SampleInterval()
	log.Printf("[Metrics] Sampling server stats every %s", interval)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-c.stopCh:
				return
			}
		}
	}()
}

func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// Collect takes one sample, broadcasts it and stores it.
func (c *Collector) Collect() Sample {
	stats := c.source.Stats()
	now := c.now()

	if c.broadcaster != nil {
		c.broadcaster.Broadcast(EventStatsUpdate, stats)
	}
	if c.exporter != nil {
		c.exporter.Observe(stats)
	}

	sample := Sample{
		Timestamp:   now.UTC(),
		CPU:         stats.CPU,
		Memory:      stats.Memory,
		Status:      stats.Status.String(),
		PlayerCount: stats.PlayerCount,
	}
	if err := c.recordSample(sample); err != nil {
		log.Printf("[Metrics] Failed to record sample: %v", err)
	}

	c.cleanupOldMetrics(now)
	return sample
}

func (c *Collector) recordSample(sample Sample) error {
	if c.db == nil {
		return nil
	}

	_, err := c.db.Exec(`
		INSERT INTO server_metrics (timestamp, cpu_percent, memory_bytes, status, player_count)
		VALUES (?, ?, ?, ?, ?)
	`,
		sample.Timestamp,
		sample.CPU,
		int64(sample.Memory),
		sample.Status,
		sample.PlayerCount,
	)
	return err
}

func (c *Collector) cleanupOldMetrics(now time.Time) {
	if c.db == nil || c.cfg.RetentionDays <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.lastCleanup.IsZero() && now.Sub(c.lastCleanup) < cleanupInterval {
		return
	}

	cutoff := now.Add(-time.Duration(c.cfg.RetentionDays) * 24 * time.Hour).UTC()
	result, err := c.db.Exec("DELETE FROM server_metrics WHERE timestamp < ?", cutoff)
	if err != nil {
		log.Printf("[Metrics] Failed to purge old samples: %v", err)
		return
	}
	if n, _ := result.RowsAffected(); n > 0 {
		log.Printf("[Metrics] Purged %d samples older than %d days", n, c.cfg.RetentionDays)
	}
	c.lastCleanup = now
}

// History returns up to limit of the most recent samples, oldest first.
func (c *Collector) History(limit int) ([]Sample, error) {
	samples := make([]Sample, 0)
	if c.db == nil {
		return samples, nil
	}
	if limit <= 0 || limit > 10000 {
		limit = 720
	}

	rows, err := c.db.Query(`
		SELECT timestamp, cpu_percent, memory_bytes, status, player_count
		FROM server_metrics
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s Sample
		var memory int64
		if err := rows.Scan(&s.Timestamp, &s.CPU, &memory, &s.Status, &s.PlayerCount); err != nil {
			return nil, fmt.Errorf("failed to scan metrics row: %w", err)
		}
		s.Memory = uint64(memory)
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}
	return samples, nil
}

package worlds

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rmia46/roam-mc-server-manager/internal/models"
	"github.com/rmia46/roam-mc-server-manager/internal/properties"
)

const (
	ticksPerSecond = 20
	cmPerStep      = 75
)

type userCacheEntry struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

type statsFile struct {
	Stats struct {
		Custom map[string]uint64 `json:"minecraft:custom"`
	} `json:"stats"`
}

// Players reads per-player statistics from the active world.
func Players(serverDir string) ([]models.PlayerInfo, error) {
	statsDir := filepath.Join(serverDir, properties.LevelName(serverDir), "stats")
	entries, err := os.ReadDir(statsDir)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.PlayerInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read stats directory: %w", err)
	}

	names := loadUserCache(serverDir)

	players := make([]models.PlayerInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		uuid := strings.TrimSuffix(entry.Name(), ".json")

		data, err := os.ReadFile(filepath.Join(statsDir, entry.Name()))
		if err != nil {
			continue
		}
		var stats statsFile
		if err := json.Unmarshal(data, &stats); err != nil {
			log.Printf("[Worlds] Skipping unreadable stats for %s: %v", uuid, err)
			continue
		}

		custom := stats.Stats.Custom
		ticks, ok := custom["minecraft:play_time"]
		if !ok {
			ticks = custom["minecraft:play_one_minute"]
		}

		name := names[uuid]
		if name == "" {
			name = uuid
		}
		players = append(players, models.PlayerInfo{
			UUID:       uuid,
			Name:       name,
			TimePlayed: float64(ticks) / ticksPerSecond / 3600,
			Steps:      custom["minecraft:walk_one_cm"] / cmPerStep,
		})
	}

	sort.Slice(players, func(i, j int) bool { return players[i].TimePlayed > players[j].TimePlayed })
	return players, nil
}

func loadUserCache(serverDir string) map[string]string {
	names := make(map[string]string)
	data, err := os.ReadFile(filepath.Join(serverDir, "usercache.json"))
	if err != nil {
		return names
	}
	var entries []userCacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return names
	}
	for _, e := range entries {
		if e.UUID != "" && e.Name != "" {
			names[e.UUID] = e.Name
		}
	}
	return names
}

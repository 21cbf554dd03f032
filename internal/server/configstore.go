package server

import (
	"database/sql"
	"errors"
	"fmt"
)

// ConfigStore persists the last launch descriptor.
type ConfigStore struct {
	db *sql.DB
}

func NewConfigStore(db *sql.DB) *ConfigStore {
	return &ConfigStore{db: db}
}

// Save replaces the stored descriptor.
func (s *ConfigStore) Save(cfg ServerConfig) error {
	var name sql.NullString
	if cfg.Name != nil {
		name = sql.NullString{String: *cfg.Name, Valid: true}
	}
	_, err := s.db.Exec(`
		INSERT INTO server_config (id, name, path, jar_name, min_ram, max_ram, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			path = excluded.path,
			jar_name = excluded.jar_name,
			min_ram = excluded.min_ram,
			max_ram = excluded.max_ram,
			updated_at = CURRENT_TIMESTAMP
	`, name, cfg.Path, cfg.JarName, cfg.MinRAM, cfg.MaxRAM)
	if err != nil {
		return fmt.Errorf("failed to save server config: %w", err)
	}
	return nil
}

// Load returns the stored descriptor, or nil if none was saved.
func (s *ConfigStore) Load() (*ServerConfig, error) {
	var cfg ServerConfig
	var name sql.NullString
	err := s.db.QueryRow(`
		SELECT name, path, jar_name, min_ram, max_ram FROM server_config WHERE id = 1
	`).Scan(&name, &cfg.Path, &cfg.JarName, &cfg.MinRAM, &cfg.MaxRAM)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}
	if name.Valid {
		cfg.Name = &name.String
	}
	return &cfg, nil
}

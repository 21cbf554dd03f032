package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" json:"server"`
	Database   DatabaseConfig   `yaml:"database" json:"database"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
	Supervisor SupervisorConfig `yaml:"supervisor" json:"supervisor"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`
	Backups    BackupsConfig    `yaml:"backups" json:"backups"`
	Security   SecurityConfig   `yaml:"security" json:"security"`
}

// ServerConfig contains HTTP server settings for the control API
type ServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// Address returns host:port for the listener.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path           string `yaml:"path" json:"path"`
	MaxConnections int    `yaml:"max_connections" json:"max_connections"`
}

// StorageConfig contains storage paths
type StorageConfig struct {
	DataDir       string `yaml:"data_dir" json:"data_dir"`
	BackupDirName string `yaml:"backup_dir_name" json:"backup_dir_name"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
	AddSource  bool   `yaml:"add_source" json:"add_source"`
}

// SupervisorConfig controls how the game server process is launched and stopped.
type SupervisorConfig struct {
	JavaPath         string `yaml:"java_path" json:"java_path"`
	RuntimeName      string `yaml:"runtime_name" json:"runtime_name"`
	StopPollInterval string `yaml:"stop_poll_interval" json:"stop_poll_interval"`
	StopPollAttempts int    `yaml:"stop_poll_attempts" json:"stop_poll_attempts"`
	KillOnShutdown   bool   `yaml:"kill_on_shutdown" json:"kill_on_shutdown"`
}

// PollInterval returns StopPollInterval as a duration. Validate guarantees it parses.
func (s SupervisorConfig) PollInterval() time.Duration {
	d, err := time.ParseDuration(s.StopPollInterval)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// MetricsConfig contains stats collection settings
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	Interval      string `yaml:"interval" json:"interval"`
	RetentionDays int    `yaml:"retention_days" json:"retention_days"`
	Prometheus    bool   `yaml:"prometheus" json:"prometheus"`
}

// SampleInterval returns Interval as a duration.
func (m MetricsConfig) SampleInterval() time.Duration {
	d, err := time.ParseDuration(m.Interval)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// BackupsConfig contains scheduled world backup settings
type BackupsConfig struct {
	Enabled          bool              `yaml:"enabled" json:"enabled"`
	Schedule         string            `yaml:"schedule" json:"schedule"`
	Worlds           []string          `yaml:"worlds" json:"worlds"`
	RetentionCount   int               `yaml:"retention_count" json:"retention_count"`
	SaveBeforeBackup bool              `yaml:"save_before_backup" json:"save_before_backup"`
	Destination      DestinationConfig `yaml:"destination" json:"destination"`
}

// DestinationConfig describes where finished archives are stored.
type DestinationConfig struct {
	Type         string `yaml:"type" json:"type"`
	Path         string `yaml:"path" json:"path"`
	SFTPHost     string `yaml:"sftp_host" json:"sftp_host"`
	SFTPPort     int    `yaml:"sftp_port" json:"sftp_port"`
	SFTPUsername string `yaml:"sftp_username" json:"sftp_username"`
	SFTPPassword string `yaml:"sftp_password" json:"-"`
	SFTPKeyPath  string `yaml:"sftp_key_path" json:"sftp_key_path"`
	S3Bucket     string `yaml:"s3_bucket" json:"s3_bucket"`
	S3Region     string `yaml:"s3_region" json:"s3_region"`
	S3AccessKey  string `yaml:"s3_access_key" json:"-"`
	S3SecretKey  string `yaml:"s3_secret_key" json:"-"`
	S3Endpoint   string `yaml:"s3_endpoint" json:"s3_endpoint"`
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	CORS      CORSConfig      `yaml:"cors" json:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	SSH       SSHConfig       `yaml:"ssh" json:"ssh"`
}

// RateLimitConfig contains per-client request limits for the control API
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" json:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// CORSConfig contains CORS settings
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
}

// SSHConfig contains host key settings for SFTP destinations
type SSHConfig struct {
	KnownHostsPath  string `yaml:"known_hosts_path" json:"known_hosts_path"`
	TrustOnFirstUse bool   `yaml:"trust_on_first_use" json:"trust_on_first_use"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8765,
		},
		Database: DatabaseConfig{
			Path:           "./data/roam-manager.db",
			MaxConnections: 4,
		},
		Storage: StorageConfig{
			DataDir:       "./data",
			BackupDirName: "roam_backups",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     14,
			Compress:   true,
		},
		Supervisor: SupervisorConfig{
			JavaPath:         "java",
			RuntimeName:      "java",
			StopPollInterval: "500ms",
			StopPollAttempts: 10,
			KillOnShutdown:   true,
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			Interval:      "5s",
			RetentionDays: 2,
			Prometheus:    true,
		},
		Backups: BackupsConfig{
			Enabled:          false,
			Schedule:         "0 */6 * * *",
			RetentionCount:   5,
			SaveBeforeBackup: true,
			Destination: DestinationConfig{
				Type: "local",
			},
		},
		Security: SecurityConfig{
			CORS: CORSConfig{
				AllowedOrigins: []string{"http://localhost:1420", "http://127.0.0.1:1420", "tauri://localhost"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 300,
			},
			SSH: SSHConfig{
				TrustOnFirstUse: true,
			},
		},
	}
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	cfg := Default()

	configPath := GetConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.normalizeStoragePaths(configPath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		c.Database.Path = dbPath
	}
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDir = dataDir
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if javaPath := os.Getenv("JAVA_PATH"); javaPath != "" {
		c.Supervisor.JavaPath = javaPath
	}
	if host := os.Getenv("ROAM_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("ROAM_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid ROAM_PORT %q: %w", port, err)
		}
		c.Server.Port = p
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if strings.TrimSpace(c.Supervisor.JavaPath) == "" {
		return fmt.Errorf("supervisor.java_path must be set")
	}
	if strings.TrimSpace(c.Supervisor.RuntimeName) == "" {
		return fmt.Errorf("supervisor.runtime_name must be set")
	}
	if c.Supervisor.StopPollAttempts <= 0 {
		return fmt.Errorf("supervisor.stop_poll_attempts must be positive")
	}
	if d, err := time.ParseDuration(c.Supervisor.StopPollInterval); err != nil || d <= 0 {
		return fmt.Errorf("supervisor.stop_poll_interval %q is not a positive duration", c.Supervisor.StopPollInterval)
	}

	if c.Security.RateLimit.Enabled && c.Security.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("security.rate_limit.requests_per_minute must be positive when enabled")
	}

	if c.Metrics.Enabled {
		if d, err := time.ParseDuration(c.Metrics.Interval); err != nil || d <= 0 {
			return fmt.Errorf("metrics.interval %q is not a positive duration", c.Metrics.Interval)
		}
	}

	if strings.ContainsAny(c.Storage.BackupDirName, `/\`) || strings.TrimSpace(c.Storage.BackupDirName) == "" {
		return fmt.Errorf("storage.backup_dir_name must be a plain directory name")
	}

	if c.Backups.Enabled {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(c.Backups.Schedule); err != nil {
			return fmt.Errorf("backups.schedule %q is invalid: %w", c.Backups.Schedule, err)
		}
		if c.Backups.RetentionCount < 0 {
			return fmt.Errorf("backups.retention_count must not be negative")
		}
	}

	switch c.Backups.Destination.Type {
	case "", "local", "s3", "sftp":
	default:
		return fmt.Errorf("backups.destination.type %q is not supported", c.Backups.Destination.Type)
	}

	return nil
}

func resolveConfigPath() string {
	candidates := []string{"../configs/config.yaml", "./configs/config.yaml"}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "./configs/config.yaml"
}

// GetConfigPath returns the resolved config path
func GetConfigPath() string {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = resolveConfigPath()
	}
	return configPath
}

// Save writes the configuration back to disk
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// normalizeStoragePaths resolves relative paths against the directory that
// holds configs/, so the daemon behaves the same from any working directory.
func (c *Config) normalizeStoragePaths(configPath string) {
	baseDir := filepath.Dir(configPath)
	if !filepath.IsAbs(baseDir) {
		if absBase, err := filepath.Abs(baseDir); err == nil {
			baseDir = absBase
		}
	}

	rootDir := baseDir
	if filepath.Base(baseDir) == "configs" {
		rootDir = filepath.Dir(baseDir)
	}

	resolvePath := func(value string) string {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return ""
		}
		if filepath.IsAbs(trimmed) {
			return filepath.Clean(trimmed)
		}
		return filepath.Clean(filepath.Join(rootDir, trimmed))
	}

	if strings.TrimSpace(c.Storage.DataDir) == "" {
		c.Storage.DataDir = filepath.Join(rootDir, "data")
	}
	c.Storage.DataDir = resolvePath(c.Storage.DataDir)

	if strings.TrimSpace(c.Database.Path) == "" {
		c.Database.Path = filepath.Join(c.Storage.DataDir, "roam-manager.db")
	}
	c.Database.Path = resolvePath(c.Database.Path)

	if c.Logging.File != "" {
		c.Logging.File = resolvePath(c.Logging.File)
	}

	if strings.TrimSpace(c.Security.SSH.KnownHostsPath) == "" {
		c.Security.SSH.KnownHostsPath = filepath.Join(c.Storage.DataDir, "known_hosts")
	}
	c.Security.SSH.KnownHostsPath = resolvePath(c.Security.SSH.KnownHostsPath)

	if c.Backups.Destination.Type == "local" && c.Backups.Destination.Path != "" {
		c.Backups.Destination.Path = resolvePath(c.Backups.Destination.Path)
	}
}

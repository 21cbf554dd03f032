package database

// Migration represents a database migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// migrations contains all database migrations in order
var migrations = []Migration{
	{
		Version: "001_server_config",
		Up: `
-- Last launch descriptor, restored at startup so orphaned servers can be found
CREATE TABLE IF NOT EXISTS server_config (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    name TEXT,
    path TEXT NOT NULL,
    jar_name TEXT NOT NULL,
    min_ram TEXT NOT NULL,
    max_ram TEXT NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`,
		Down: `DROP TABLE IF EXISTS server_config;`,
	},
	{
		Version: "002_activity_log",
		Up: `
CREATE TABLE IF NOT EXISTS activity_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp DATETIME NOT NULL,
    server_name TEXT NOT NULL DEFAULT '',
    activity_type TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    metadata TEXT,
    success BOOLEAN NOT NULL DEFAULT true,
    error_message TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_activity_log_timestamp ON activity_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_activity_log_type ON activity_log(activity_type);
`,
		Down: `DROP TABLE IF EXISTS activity_log;`,
	},
	{
		Version: "003_backups",
		Up: `
CREATE TABLE IF NOT EXISTS backups (
    id TEXT PRIMARY KEY,
    server_path TEXT NOT NULL,
    world TEXT NOT NULL,
    filename TEXT NOT NULL,
    size_bytes INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    destination_type TEXT NOT NULL,
    destination_path TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    error_message TEXT,
    origin TEXT NOT NULL DEFAULT 'manual'
);

CREATE INDEX IF NOT EXISTS idx_backups_server_path ON backups(server_path);
CREATE INDEX IF NOT EXISTS idx_backups_created_at ON backups(created_at);
CREATE INDEX IF NOT EXISTS idx_backups_status ON backups(status);
`,
		Down: `DROP TABLE IF EXISTS backups;`,
	},
	{
		Version: "004_server_metrics",
		Up: `
CREATE TABLE IF NOT EXISTS server_metrics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    cpu_percent REAL NOT NULL DEFAULT 0,
    memory_bytes INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    player_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_server_metrics_timestamp ON server_metrics(timestamp);
`,
		Down: `DROP TABLE IF EXISTS server_metrics;`,
	},
}

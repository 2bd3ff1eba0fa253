package store

import (
	"cmp"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"
)

// Migration is one forward-only schema step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationStatus is what `taskbridge migrate --inspect` prints.
type MigrationStatus struct {
	CurrentVersion   int             `json:"current_version"`
	AvailableVersion int             `json:"available_version"`
	Pending          []MigrationInfo `json:"pending"`
}

// MigrationInfo describes a single migration.
type MigrationInfo struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "local users and browser sessions",
		SQL: `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL,
  disabled INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  token_hash TEXT NOT NULL UNIQUE,
  expires_at TEXT NOT NULL,
  revoked_at TEXT,
  created_at TEXT NOT NULL,
  FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
`,
	},
	{
		Version:     2,
		Description: "per-user jira accounts with sealed api tokens",
		SQL: `
CREATE TABLE IF NOT EXISTS jira_accounts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  site_url TEXT NOT NULL,
  email TEXT NOT NULL,
  api_token TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);
`,
	},
	{
		Version:     3,
		Description: "optional per-account project key override",
		SQL: `
ALTER TABLE jira_accounts ADD COLUMN project_key TEXT;
`,
	},
}

const migrationsTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  description TEXT NOT NULL DEFAULT '',
  applied_at TEXT NOT NULL
);
`

// ErrSchemaTooNew is returned when the database was migrated by a newer build.
var ErrSchemaTooNew = errors.New("database schema is newer than this build")

func currentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	return version, err
}

func sortedMigrations() []Migration {
	sorted := slices.Clone(migrations)
	slices.SortFunc(sorted, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return sorted
}

func latestMigrationVersion() int {
	sorted := sortedMigrations()
	if len(sorted) == 0 {
		return 0
	}
	return sorted[len(sorted)-1].Version
}

// runMigrations applies every pending migration, each in its own transaction.
func runMigrations(db *sql.DB) error {
	plan, err := MigrationPlan(db)
	if err != nil {
		return err
	}
	if plan.CurrentVersion > plan.AvailableVersion {
		return fmt.Errorf("%w: database at v%d, build supports v%d", ErrSchemaTooNew, plan.CurrentVersion, plan.AvailableVersion)
	}

	for _, m := range sortedMigrations() {
		if m.Version <= plan.CurrentVersion {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`,
		m.Version, m.Description, dbFormatTime(time.Now())); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}

// MigrationPlan reports the schema version and pending migrations without
// applying anything. It creates the bookkeeping table if needed.
func MigrationPlan(db *sql.DB) (*MigrationStatus, error) {
	if _, err := db.Exec(migrationsTableSQL); err != nil {
		return nil, fmt.Errorf("create migrations table: %w", err)
	}
	current, err := currentVersion(db)
	if err != nil {
		return nil, fmt.Errorf("read schema version: %w", err)
	}

	status := &MigrationStatus{
		CurrentVersion:   current,
		AvailableVersion: latestMigrationVersion(),
		Pending:          []MigrationInfo{},
	}
	for _, m := range sortedMigrations() {
		if m.Version > current {
			status.Pending = append(status.Pending, MigrationInfo{Version: m.Version, Description: m.Description})
		}
	}
	return status, nil
}

package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	"github.com/openfroyo/pluginlist/pkg/plugins"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	// Every connection to :memory: is a separate database
	if cfg.Path == MemoryPath {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// dsn builds the driver connection string with SQLite-specific parameters.
func (s *SQLiteStore) dsn() string {
	if s.cfg.Path == MemoryPath {
		return MemoryPath + "?_pragma=foreign_keys(1)"
	}
	return s.cfg.Path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
}

// Init opens the database connection and enables WAL mode for file databases.
func (s *SQLiteStore) Init(ctx context.Context) error {
	db, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// Create database driver
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Create migration instance
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// withTx runs fn in a transaction, rolling back if fn fails.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SaveProfile replaces the stored profile with the current contents of list. Missing
// plugins are kept with priority -1 so they are remembered when their file returns.
func (s *SQLiteStore) SaveProfile(ctx context.Context, profile string, list ProfileSource) error {
	now := time.Now().UnixNano()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM plugin_states WHERE profile = ?`, profile); err != nil {
			return fmt.Errorf("failed to clear plugin states: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM load_orders WHERE profile = ?`, profile); err != nil {
			return fmt.Errorf("failed to clear load order: %w", err)
		}

		insert, err := tx.PrepareContext(ctx, `
			INSERT INTO plugin_states (profile, name, name_key, state, priority, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (profile, name_key) DO UPDATE SET
				name = excluded.name,
				state = excluded.state,
				priority = excluded.priority,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare plugin state insert: %w", err)
		}
		defer insert.Close()

		for _, entry := range list.Entries() {
			if _, err := insert.ExecContext(ctx, profile, entry.Name, strings.ToLower(entry.Name),
				entry.State.String(), entry.Priority, now); err != nil {
				return fmt.Errorf("failed to save plugin %s: %w", entry.Name, err)
			}
		}
		for _, name := range list.MissingNames() {
			if _, err := insert.ExecContext(ctx, profile, name, strings.ToLower(name),
				plugins.StateMissing.String(), -1, now); err != nil {
				return fmt.Errorf("failed to save plugin %s: %w", name, err)
			}
		}

		for i, name := range list.LoadOrder() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO load_orders (profile, position, name) VALUES (?, ?, ?)`,
				profile, i, name); err != nil {
				return fmt.Errorf("failed to save load order: %w", err)
			}
		}

		return nil
	})
}

// LoadProfile restores a stored profile into list. Stored plugins that list does not
// have are marked missing, present ones get their stored state and are reordered by
// stored priority. It reports false when the profile does not exist.
func (s *SQLiteStore) LoadProfile(ctx context.Context, profile string, list ProfileTarget) (bool, error) {
	records, err := s.ListPluginStates(ctx, profile)
	if err != nil {
		return false, err
	}
	if len(records) == 0 {
		return false, nil
	}

	var order []string
	for _, rec := range records {
		if list.State(rec.Name) == plugins.StateMissing {
			list.MarkMissing(rec.Name)
			continue
		}
		if rec.State != plugins.StateMissing {
			list.SetState(rec.Name, rec.State)
		}
		order = append(order, rec.Name)
	}
	list.Reorder(order)

	loadOrder, err := s.GetLoadOrder(ctx, profile)
	if err != nil {
		return false, err
	}
	if len(loadOrder) > 0 {
		list.SetLoadOrder(loadOrder)
	}

	return true, nil
}

// ListPluginStates returns the stored plugins of profile by priority, missing plugins last.
func (s *SQLiteStore) ListPluginStates(ctx context.Context, profile string) ([]*PluginRecord, error) {
	query := `
		SELECT profile, name, state, priority, updated_at
		FROM plugin_states
		WHERE profile = ?
		ORDER BY priority < 0, priority, name_key
	`

	rows, err := s.db.QueryContext(ctx, query, profile)
	if err != nil {
		return nil, fmt.Errorf("failed to list plugin states: %w", err)
	}
	defer rows.Close()

	records := []*PluginRecord{}
	for rows.Next() {
		var (
			rec       PluginRecord
			state     string
			updatedAt int64
		)
		if err := rows.Scan(&rec.Profile, &rec.Name, &state, &rec.Priority, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plugin state: %w", err)
		}

		parsed, ok := plugins.ParseState(state)
		if !ok {
			return nil, fmt.Errorf("invalid stored state %q for plugin %s", state, rec.Name)
		}
		rec.State = parsed
		rec.UpdatedAt = time.Unix(0, updatedAt)
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plugin states: %w", err)
	}

	return records, nil
}

// GetLoadOrder returns the stored load order of profile.
func (s *SQLiteStore) GetLoadOrder(ctx context.Context, profile string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM load_orders WHERE profile = ? ORDER BY position`, profile)
	if err != nil {
		return nil, fmt.Errorf("failed to get load order: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan load order: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating load order: %w", err)
	}

	return names, nil
}

// ListProfiles returns the names of all stored profiles.
func (s *SQLiteStore) ListProfiles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT profile FROM plugin_states ORDER BY profile`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []string
	for rows.Next() {
		var profile string
		if err := rows.Scan(&profile); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}

	return profiles, nil
}

// DeleteProfile removes the plugin states and load order of profile. Its manifest save
// history is kept.
func (s *SQLiteStore) DeleteProfile(ctx context.Context, profile string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM plugin_states WHERE profile = ?`, profile)
		if err != nil {
			return fmt.Errorf("failed to delete profile: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("profile not found: %s", profile)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM load_orders WHERE profile = ?`, profile); err != nil {
			return fmt.Errorf("failed to delete load order: %w", err)
		}
		return nil
	})
}

// RecordManifestSave appends a manifest save. ID and SavedAt are filled in when empty.
func (s *SQLiteStore) RecordManifestSave(ctx context.Context, save *ManifestSave) error {
	if save.ID == "" {
		save.ID = uuid.New().String()
	}
	if save.SavedAt.IsZero() {
		save.SavedAt = time.Now()
	}

	query := `
		INSERT INTO manifest_saves (id, profile, path, hash, active_count, invalid_count, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		save.ID,
		save.Profile,
		save.Path,
		save.Hash,
		save.Active,
		save.Invalid,
		save.SavedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record manifest save: %w", err)
	}

	return nil
}

// ListManifestSaves lists the most recent manifest saves of profile, newest first. An
// empty profile lists every profile. A limit of zero or less means no limit.
func (s *SQLiteStore) ListManifestSaves(ctx context.Context, profile string, limit int) ([]*ManifestSave, error) {
	query := `
		SELECT id, profile, path, hash, active_count, invalid_count, saved_at
		FROM manifest_saves
		WHERE (? = '' OR profile = ?)
		ORDER BY saved_at DESC
		LIMIT ?
	`
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, query, profile, profile, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list manifest saves: %w", err)
	}
	defer rows.Close()

	saves := []*ManifestSave{}
	for rows.Next() {
		var (
			save    ManifestSave
			savedAt int64
		)
		err := rows.Scan(
			&save.ID,
			&save.Profile,
			&save.Path,
			&save.Hash,
			&save.Active,
			&save.Invalid,
			&savedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan manifest save: %w", err)
		}
		save.SavedAt = time.Unix(0, savedAt)
		saves = append(saves, &save)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating manifest saves: %w", err)
	}

	return saves, nil
}

// HealthCheck performs a health check on the database
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

// Package store persists per-guild queue snapshots in SQLite. Writes
// happen after every mutating queue operation and are best-effort: a
// failed write is logged and swallowed because in-memory state stays
// authoritative for the running session. Reads happen once per guild
// during startup recovery.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Store owns the snapshot database.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// Open connects to (or creates) the snapshot database and applies the
// schema.
func Open(path string, logger *log.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("invalid database path")
	}
	if logger == nil {
		logger = log.Default()
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open snapshot database")
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			db.Close()
			return nil, errors.Wrapf(execErr, "apply pragma %q", pragma)
		}
	}

	s := &Store{db: db, logger: logger.With("component", "store")}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrations are applied in order; PRAGMA user_version tracks how far
// this database has gotten.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS queue_snapshots (
		guild_id TEXT PRIMARY KEY,
		schema_version INTEGER NOT NULL,
		payload TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_queue_snapshots_updated_at
		ON queue_snapshots(updated_at);`,
}

func (s *Store) initSchema() error {
	var version int
	if err := s.db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return errors.Wrap(err, "read schema version")
	}
	if version > len(migrations) {
		return errors.Errorf("database schema version %d is newer than supported %d", version, len(migrations))
	}

	for ; version < len(migrations); version++ {
		if _, err := s.db.Exec(migrations[version]); err != nil {
			return errors.Wrapf(err, "apply migration %d", version+1)
		}
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", version+1)); err != nil {
			return errors.Wrapf(err, "record migration %d", version+1)
		}
		s.logger.Debug("applied schema migration", "version", version+1)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save writes the snapshot for a guild, replacing any previous one.
// The row only moves forward: a snapshot older than the stored one is
// a no-op, so background writes landing out of order cannot make a
// stale snapshot durable.
func (s *Store) Save(guildID string, snapshot *Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}

	updatedAt := snapshot.LastUpdated
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err = s.db.Exec(
		`INSERT INTO queue_snapshots (guild_id, schema_version, payload, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(guild_id) DO UPDATE SET
			schema_version = excluded.schema_version,
			payload = excluded.payload,
			updated_at = excluded.updated_at
		 WHERE excluded.updated_at >= queue_snapshots.updated_at`,
		guildID, snapshot.SchemaVersion, string(payload), updatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "write snapshot")
	}
	return nil
}

// SaveAsync writes the snapshot on a background goroutine. Failures are
// logged and otherwise swallowed; the caller's in-memory state remains
// authoritative either way.
func (s *Store) SaveAsync(guildID string, snapshot *Snapshot) {
	go func() {
		if err := s.Save(guildID, snapshot); err != nil {
			s.logger.Error("snapshot write failed", "guild_id", guildID, "error", err)
		}
	}()
}

// Load reads the snapshot for a guild. A missing row yields (nil, nil).
// A corrupt or unreadable payload also yields (nil, nil) with a
// warning: a broken snapshot must never block startup.
func (s *Store) Load(guildID string) (*Snapshot, error) {
	var payload string
	err := s.db.QueryRow(
		`SELECT payload FROM queue_snapshots WHERE guild_id = ?`, guildID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read snapshot")
	}

	return s.decode(guildID, payload), nil
}

// LoadAll reads every stored snapshot, skipping corrupt rows with a
// warning.
func (s *Store) LoadAll() ([]*Snapshot, error) {
	rows, err := s.db.Query(`SELECT guild_id, payload FROM queue_snapshots`)
	if err != nil {
		return nil, errors.Wrap(err, "query snapshots")
	}
	defer rows.Close()

	var snapshots []*Snapshot
	for rows.Next() {
		var guildID, payload string
		if err := rows.Scan(&guildID, &payload); err != nil {
			return nil, errors.Wrap(err, "scan snapshot row")
		}
		if snapshot := s.decode(guildID, payload); snapshot != nil {
			snapshots = append(snapshots, snapshot)
		}
	}
	return snapshots, rows.Err()
}

func (s *Store) decode(guildID, payload string) *Snapshot {
	var snapshot Snapshot
	if err := json.Unmarshal([]byte(payload), &snapshot); err != nil {
		s.logger.Warn("corrupt snapshot, treating as empty", "guild_id", guildID, "error", err)
		return nil
	}
	if snapshot.SchemaVersion > SchemaVersion {
		s.logger.Warn("snapshot written by a newer schema, treating as empty",
			"guild_id", guildID, "schema_version", snapshot.SchemaVersion)
		return nil
	}
	return &snapshot
}

// Delete removes a guild's snapshot.
func (s *Store) Delete(guildID string) error {
	_, err := s.db.Exec(`DELETE FROM queue_snapshots WHERE guild_id = ?`, guildID)
	if err != nil {
		return errors.Wrap(err, "delete snapshot")
	}
	return nil
}

// PruneIdle removes snapshots not updated within the retention window
// and returns how many rows went away.
func (s *Store) PruneIdle(retention time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-retention)
	res, err := s.db.Exec(`DELETE FROM queue_snapshots WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "prune snapshots")
	}
	pruned, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(pruned), nil
}

// Count returns how many guild snapshots are stored.
func (s *Store) Count() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM queue_snapshots`).Scan(&count)
	return count, err
}

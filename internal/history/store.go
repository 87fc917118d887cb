// Package history persists the append-only event log and the per-memory
// version snapshots that let a caller reconstruct a memory at a point in
// time. Two SQLite-backed stores, matching spec.md §6's separate
// history.db/versions.db files, sharing the same connection/locking idiom
// as internal/cognitive.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"rook/internal/coreerr"
	"rook/internal/types"
)

// Store is the SQLite-backed history log store.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates or opens the history store at path. path == ":memory:" opens
// a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func openDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, coreerr.Database("create db directory", err)
			}
		}
	}
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, coreerr.Database("open db", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS history (
	id TEXT PRIMARY KEY,
	memory_id TEXT NOT NULL,
	event TEXT NOT NULL,
	prev TEXT,
	next TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT,
	actor_id TEXT,
	role TEXT
);
CREATE INDEX IF NOT EXISTS idx_history_memory_id ON history(memory_id);
`
	if _, err := s.db.Exec(schema); err != nil {
		return coreerr.Database("init history schema", err)
	}
	return nil
}

// Append writes one history event. A generated ID is assigned if record.ID
// is empty.
func (s *Store) Append(ctx context.Context, record types.HistoryRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var updatedAt any
	if record.UpdatedAt != nil {
		updatedAt = record.UpdatedAt.UTC().Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history(id, memory_id, event, prev, next, created_at, updated_at, actor_id, role)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.MemoryID, string(record.Event), record.Prev, record.Next,
		record.CreatedAt.UTC().Format(time.RFC3339), updatedAt, record.ActorID, record.Role,
	)
	if err != nil {
		return coreerr.Database("append history record", err)
	}
	return nil
}

// ForMemory returns every history record for memoryID, oldest first.
func (s *Store) ForMemory(ctx context.Context, memoryID string) ([]types.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, memory_id, event, prev, next, created_at, updated_at, actor_id, role
		 FROM history WHERE memory_id = ? ORDER BY created_at ASC, id ASC`, memoryID)
	if err != nil {
		return nil, coreerr.Database("query history", err)
	}
	defer rows.Close()

	var out []types.HistoryRecord
	for rows.Next() {
		var r types.HistoryRecord
		var createdAt string
		var updatedAt sql.NullString
		if err := rows.Scan(&r.ID, &r.MemoryID, &r.Event, &r.Prev, &r.Next, &createdAt, &updatedAt, &r.ActorID, &r.Role); err != nil {
			return nil, coreerr.Database("scan history row", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if updatedAt.Valid {
			t, _ := time.Parse(time.RFC3339, updatedAt.String)
			r.UpdatedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// EventSequence returns just the ordered event types for memoryID, the
// shape spec.md §8 property 10 (history conservation) checks against.
func (s *Store) EventSequence(ctx context.Context, memoryID string) ([]types.HistoryEventType, error) {
	records, err := s.ForMemory(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	out := make([]types.HistoryEventType, len(records))
	for i, r := range records {
		out[i] = r.Event
	}
	return out, nil
}

// VersionStore is the SQLite-backed point-in-time snapshot store.
type VersionStore struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenVersions creates or opens the version store at path.
func OpenVersions(path string) (*VersionStore, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	v := &VersionStore{db: db}
	if err := v.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return v, nil
}

// Close closes the underlying connection.
func (v *VersionStore) Close() error { return v.db.Close() }

func (v *VersionStore) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS versions (
	version_id TEXT PRIMARY KEY,
	memory_id TEXT NOT NULL,
	version_number INTEGER NOT NULL,
	content TEXT NOT NULL,
	metadata TEXT,
	fsrs_snapshot TEXT,
	created_at TEXT NOT NULL,
	event_type TEXT NOT NULL,
	change_description TEXT,
	changed_by TEXT,
	UNIQUE(memory_id, version_number)
);
CREATE INDEX IF NOT EXISTS idx_versions_memory_id ON versions(memory_id);
`
	if _, err := v.db.Exec(schema); err != nil {
		return coreerr.Database("init versions schema", err)
	}
	return nil
}

// Save writes a new version, auto-assigning the next version_number for
// version.MemoryID when version.VersionNumber is zero.
func (v *VersionStore) Save(ctx context.Context, version types.MemoryVersion) (types.MemoryVersion, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if version.VersionID == "" {
		version.VersionID = uuid.New().String()
	}
	if version.VersionNumber == 0 {
		var max sql.NullInt64
		row := v.db.QueryRowContext(ctx, `SELECT MAX(version_number) FROM versions WHERE memory_id = ?`, version.MemoryID)
		if err := row.Scan(&max); err != nil {
			return types.MemoryVersion{}, coreerr.Database("compute next version number", err)
		}
		version.VersionNumber = int(max.Int64) + 1
	}

	metadataJSON, err := marshalOptional(version.Metadata)
	if err != nil {
		return types.MemoryVersion{}, coreerr.Parse("marshal version metadata", err)
	}
	fsrsJSON, err := marshalOptional(version.FsrsSnapshot)
	if err != nil {
		return types.MemoryVersion{}, coreerr.Parse("marshal version fsrs snapshot", err)
	}

	_, err = v.db.ExecContext(ctx,
		`INSERT INTO versions(version_id, memory_id, version_number, content, metadata, fsrs_snapshot,
		                       created_at, event_type, change_description, changed_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		version.VersionID, version.MemoryID, version.VersionNumber, version.Content, metadataJSON, fsrsJSON,
		version.CreatedAt.UTC().Format(time.RFC3339), string(version.EventType), version.ChangeDescription, version.ChangedBy,
	)
	if err != nil {
		return types.MemoryVersion{}, coreerr.Database("save version", err)
	}
	return version, nil
}

// ForMemory returns every version of memoryID ordered oldest to newest.
func (v *VersionStore) ForMemory(ctx context.Context, memoryID string) ([]types.MemoryVersion, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	rows, err := v.db.QueryContext(ctx,
		`SELECT version_id, memory_id, version_number, content, metadata, fsrs_snapshot,
		        created_at, event_type, change_description, changed_by
		 FROM versions WHERE memory_id = ? ORDER BY version_number ASC`, memoryID)
	if err != nil {
		return nil, coreerr.Database("query versions", err)
	}
	defer rows.Close()

	var out []types.MemoryVersion
	for rows.Next() {
		ver, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ver)
	}
	return out, rows.Err()
}

// At returns the version of memoryID in effect at or before t (the latest
// version whose created_at <= t), for point-in-time reconstruction.
func (v *VersionStore) At(ctx context.Context, memoryID string, t time.Time) (types.MemoryVersion, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	row := v.db.QueryRowContext(ctx,
		`SELECT version_id, memory_id, version_number, content, metadata, fsrs_snapshot,
		        created_at, event_type, change_description, changed_by
		 FROM versions WHERE memory_id = ? AND created_at <= ? ORDER BY version_number DESC LIMIT 1`,
		memoryID, t.UTC().Format(time.RFC3339))

	ver, err := scanVersionRow(row)
	if err == sql.ErrNoRows {
		return types.MemoryVersion{}, false, nil
	}
	if err != nil {
		return types.MemoryVersion{}, false, coreerr.Database("query version at time", err)
	}
	return ver, true, nil
}

func scanVersion(rows *sql.Rows) (types.MemoryVersion, error) {
	var ver types.MemoryVersion
	var metadataJSON, fsrsJSON sql.NullString
	var createdAt string
	if err := rows.Scan(&ver.VersionID, &ver.MemoryID, &ver.VersionNumber, &ver.Content, &metadataJSON, &fsrsJSON,
		&createdAt, &ver.EventType, &ver.ChangeDescription, &ver.ChangedBy); err != nil {
		return types.MemoryVersion{}, coreerr.Database("scan version row", err)
	}
	ver.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if err := unmarshalOptional(metadataJSON, &ver.Metadata); err != nil {
		return types.MemoryVersion{}, coreerr.Parse("unmarshal version metadata", err)
	}
	if fsrsJSON.Valid && fsrsJSON.String != "" {
		var snap types.FsrsState
		if err := json.Unmarshal([]byte(fsrsJSON.String), &snap); err != nil {
			return types.MemoryVersion{}, coreerr.Parse("unmarshal fsrs snapshot", err)
		}
		ver.FsrsSnapshot = &snap
	}
	return ver, nil
}

func scanVersionRow(row *sql.Row) (types.MemoryVersion, error) {
	var ver types.MemoryVersion
	var metadataJSON, fsrsJSON sql.NullString
	var createdAt string
	if err := row.Scan(&ver.VersionID, &ver.MemoryID, &ver.VersionNumber, &ver.Content, &metadataJSON, &fsrsJSON,
		&createdAt, &ver.EventType, &ver.ChangeDescription, &ver.ChangedBy); err != nil {
		return types.MemoryVersion{}, err
	}
	ver.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &ver.Metadata); err != nil {
			return types.MemoryVersion{}, err
		}
	}
	if fsrsJSON.Valid && fsrsJSON.String != "" {
		var snap types.FsrsState
		if err := json.Unmarshal([]byte(fsrsJSON.String), &snap); err != nil {
			return types.MemoryVersion{}, err
		}
		ver.FsrsSnapshot = &snap
	}
	return ver, nil
}

func marshalOptional(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case map[string]any:
		if len(val) == 0 {
			return nil, nil
		}
	case *types.FsrsState:
		if val == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func unmarshalOptional(ns sql.NullString, out *map[string]any) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), out)
}

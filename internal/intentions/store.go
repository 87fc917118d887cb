// Package intentions persists time-triggered intentions and schedules
// their firing. Executing the side effect a fired intention names
// (Notify/Callback/Log) is left to the host via a FireHandler callback;
// this package only owns eligibility, firing bookkeeping, and persistence.
package intentions

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
)

// TriggerData is the due-time payload for a trigger. DueAt is when the
// intention next becomes eligible to fire; IntervalMinutes, when non-zero,
// causes the store to advance DueAt by that many minutes after each firing
// instead of deactivating the intention.
type TriggerData struct {
	DueAt           time.Time `json:"due_at"`
	IntervalMinutes int       `json:"interval_minutes,omitempty"`
}

// Intention is one scheduled action.
type Intention struct {
	ID           string
	Name         string
	MemoryID     string
	UserID       string
	TriggerType  string
	Trigger      TriggerData
	ActionType   string
	ActionData   map[string]any
	ExpiresAt    *time.Time
	Active       bool
	CreatedAt    time.Time
	LastFiredAt  *time.Time
	FireCount    int
	MaxFires     int
	Metadata     map[string]any
}

// Fire is one recorded firing of an intention.
type Fire struct {
	ID          string
	IntentionID string
	FiredAt     time.Time
	Success     bool
	Detail      string
}

// Store is the SQLite-backed intentions store.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates or opens the intentions store at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, coreerr.Database("create intentions db directory", err)
			}
		}
	}
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, coreerr.Database("open intentions db", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS intentions (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	memory_id TEXT,
	user_id TEXT,
	trigger_type TEXT NOT NULL,
	trigger_data TEXT NOT NULL,
	action_type TEXT NOT NULL,
	action_data TEXT,
	expires_at TEXT,
	active INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	last_fired_at TEXT,
	fire_count INTEGER NOT NULL DEFAULT 0,
	max_fires INTEGER,
	metadata TEXT
);
CREATE INDEX IF NOT EXISTS idx_intentions_active ON intentions(active);
CREATE TABLE IF NOT EXISTS intention_fires (
	id TEXT PRIMARY KEY,
	intention_id TEXT NOT NULL,
	fired_at TEXT NOT NULL,
	success INTEGER NOT NULL,
	detail TEXT
);
CREATE INDEX IF NOT EXISTS idx_intention_fires_intention_id ON intention_fires(intention_id);
`
	if _, err := s.db.Exec(schema); err != nil {
		return coreerr.Database("init intentions schema", err)
	}
	return nil
}

// Create inserts a new intention, assigning an ID if one isn't set.
func (s *Store) Create(ctx context.Context, in Intention) (Intention, error) {
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	in.Active = true

	s.mu.Lock()
	defer s.mu.Unlock()

	triggerJSON, err := json.Marshal(in.Trigger)
	if err != nil {
		return Intention{}, coreerr.Parse("marshal trigger data", err)
	}
	actionJSON, err := marshalOptionalMap(in.ActionData)
	if err != nil {
		return Intention{}, coreerr.Parse("marshal action data", err)
	}
	metadataJSON, err := marshalOptionalMap(in.Metadata)
	if err != nil {
		return Intention{}, coreerr.Parse("marshal intention metadata", err)
	}
	var expiresAt any
	if in.ExpiresAt != nil {
		expiresAt = in.ExpiresAt.UTC().Format(time.RFC3339)
	}
	var maxFires any
	if in.MaxFires > 0 {
		maxFires = in.MaxFires
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO intentions(id, name, memory_id, user_id, trigger_type, trigger_data, action_type,
		                         action_data, expires_at, active, created_at, last_fired_at, fire_count,
		                         max_fires, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, NULL, 0, ?, ?)`,
		in.ID, in.Name, nullIfEmpty(in.MemoryID), nullIfEmpty(in.UserID), in.TriggerType, string(triggerJSON),
		in.ActionType, actionJSON, expiresAt, in.CreatedAt.UTC().Format(time.RFC3339), maxFires, metadataJSON,
	)
	if err != nil {
		return Intention{}, coreerr.Database("create intention", err)
	}
	return in, nil
}

// Due returns every active, unexpired intention whose trigger is due at or
// before now.
func (s *Store) Due(ctx context.Context, now time.Time) ([]Intention, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, memory_id, user_id, trigger_type, trigger_data, action_type, action_data,
		        expires_at, active, created_at, last_fired_at, fire_count, max_fires, metadata
		 FROM intentions WHERE active = 1 ORDER BY created_at ASC`)
	if err != nil {
		return nil, coreerr.Database("query due intentions", err)
	}
	defer rows.Close()

	var out []Intention
	for rows.Next() {
		in, err := scanIntention(rows)
		if err != nil {
			return nil, err
		}
		if in.ExpiresAt != nil && !now.Before(*in.ExpiresAt) {
			continue
		}
		if in.Trigger.DueAt.After(now) {
			continue
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// MarkFired records a firing: increments fire_count, sets last_fired_at,
// appends an intention_fires row, and deactivates the intention unless its
// trigger is recurring (IntervalMinutes > 0) and max_fires hasn't been
// reached, in which case DueAt is advanced by the interval.
func (s *Store) MarkFired(ctx context.Context, intentionID string, firedAt time.Time, success bool, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT trigger_data, fire_count, max_fires FROM intentions WHERE id = ?`, intentionID)
	var triggerJSON string
	var fireCount int
	var maxFires sql.NullInt64
	if err := row.Scan(&triggerJSON, &fireCount, &maxFires); err != nil {
		if err == sql.ErrNoRows {
			return coreerr.NotFound("intention", intentionID)
		}
		return coreerr.Database("load intention for firing", err)
	}

	var trigger TriggerData
	if err := json.Unmarshal([]byte(triggerJSON), &trigger); err != nil {
		return coreerr.Parse("unmarshal trigger data", err)
	}

	newFireCount := fireCount + 1
	stillActive := true
	if maxFires.Valid && int64(newFireCount) >= maxFires.Int64 {
		stillActive = false
	}
	if trigger.IntervalMinutes > 0 && stillActive {
		trigger.DueAt = firedAt.Add(time.Duration(trigger.IntervalMinutes) * time.Minute)
	} else {
		stillActive = false
	}

	updatedTriggerJSON, err := json.Marshal(trigger)
	if err != nil {
		return coreerr.Parse("marshal advanced trigger data", err)
	}

	active := 0
	if stillActive {
		active = 1
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE intentions SET fire_count = ?, last_fired_at = ?, trigger_data = ?, active = ? WHERE id = ?`,
		newFireCount, firedAt.UTC().Format(time.RFC3339), string(updatedTriggerJSON), active, intentionID,
	); err != nil {
		return coreerr.Database("update intention after firing", err)
	}

	fireID := uuid.New().String()
	successInt := 0
	if success {
		successInt = 1
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO intention_fires(id, intention_id, fired_at, success, detail) VALUES (?, ?, ?, ?, ?)`,
		fireID, intentionID, firedAt.UTC().Format(time.RFC3339), successInt, detail,
	); err != nil {
		return coreerr.Database("insert intention fire", err)
	}
	return nil
}

// Fires returns every recorded firing of intentionID, oldest first.
func (s *Store) Fires(ctx context.Context, intentionID string) ([]Fire, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, intention_id, fired_at, success, detail FROM intention_fires
		 WHERE intention_id = ? ORDER BY fired_at ASC`, intentionID)
	if err != nil {
		return nil, coreerr.Database("query intention fires", err)
	}
	defer rows.Close()

	var out []Fire
	for rows.Next() {
		var f Fire
		var firedAt string
		var success int
		var detail sql.NullString
		if err := rows.Scan(&f.ID, &f.IntentionID, &firedAt, &success, &detail); err != nil {
			return nil, coreerr.Database("scan intention fire", err)
		}
		f.FiredAt, _ = time.Parse(time.RFC3339, firedAt)
		f.Success = success != 0
		f.Detail = detail.String
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanIntention(rows *sql.Rows) (Intention, error) {
	var in Intention
	var memoryID, userID, actionData, expiresAt, lastFiredAt, metadata sql.NullString
	var maxFires sql.NullInt64
	var triggerJSON, createdAt string
	var active int
	if err := rows.Scan(&in.ID, &in.Name, &memoryID, &userID, &in.TriggerType, &triggerJSON, &in.ActionType,
		&actionData, &expiresAt, &active, &createdAt, &lastFiredAt, &in.FireCount, &maxFires, &metadata); err != nil {
		return Intention{}, coreerr.Database("scan intention row", err)
	}
	in.MemoryID = memoryID.String
	in.UserID = userID.String
	in.Active = active != 0
	in.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if err := json.Unmarshal([]byte(triggerJSON), &in.Trigger); err != nil {
		return Intention{}, coreerr.Parse("unmarshal trigger data", err)
	}
	if actionData.Valid && actionData.String != "" {
		if err := json.Unmarshal([]byte(actionData.String), &in.ActionData); err != nil {
			return Intention{}, coreerr.Parse("unmarshal action data", err)
		}
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &in.Metadata); err != nil {
			return Intention{}, coreerr.Parse("unmarshal intention metadata", err)
		}
	}
	if expiresAt.Valid && expiresAt.String != "" {
		t, _ := time.Parse(time.RFC3339, expiresAt.String)
		in.ExpiresAt = &t
	}
	if lastFiredAt.Valid && lastFiredAt.String != "" {
		t, _ := time.Parse(time.RFC3339, lastFiredAt.String)
		in.LastFiredAt = &t
	}
	if maxFires.Valid {
		in.MaxFires = int(maxFires.Int64)
	}
	return in, nil
}

func marshalOptionalMap(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

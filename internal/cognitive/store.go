// Package cognitive persists FSRS scheduling state, synaptic tags, dual
// strength, and consolidation phase for every memory in a dedicated SQLite
// database, independent of wherever the memory's content/embedding lives.
package cognitive

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"rook/internal/coreerr"
	"rook/internal/types"
)

// Store is the SQLite-backed cognitive state store. One connection guarded
// by a single mutex; SQLite serializes writers anyway and this keeps the
// read-modify-write sequences (e.g. save_dual_strength) atomic at the Go
// level without needing a transaction per call.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates or opens the cognitive store at path, creating the schema if
// it doesn't exist. path == ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, coreerr.Database("create cognitive db directory", err)
			}
		}
	}
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, coreerr.Database("open cognitive db", err)
	}
	if path == ":memory:" {
		// A single shared connection, or database/sql's pool hands out a
		// fresh empty in-memory database per connection.
		db.SetMaxOpenConns(1)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS fsrs_states (
	memory_id TEXT PRIMARY KEY,
	stability REAL NOT NULL,
	difficulty REAL NOT NULL,
	last_review TEXT,
	reps INTEGER NOT NULL DEFAULT 0,
	lapses INTEGER NOT NULL DEFAULT 0,
	is_key INTEGER NOT NULL DEFAULT 0,
	consolidation_phase TEXT NOT NULL DEFAULT 'immediate',
	storage_strength REAL NOT NULL DEFAULT 0.5,
	retrieval_strength REAL NOT NULL DEFAULT 1.0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fsrs_states_is_key ON fsrs_states(is_key);
CREATE INDEX IF NOT EXISTS idx_fsrs_states_stability ON fsrs_states(stability);
CREATE INDEX IF NOT EXISTS idx_fsrs_states_last_review ON fsrs_states(last_review);
CREATE INDEX IF NOT EXISTS idx_fsrs_states_created_at ON fsrs_states(created_at);
CREATE INDEX IF NOT EXISTS idx_fsrs_states_consolidation_phase ON fsrs_states(consolidation_phase);

CREATE TABLE IF NOT EXISTS synaptic_tags (
	memory_id TEXT PRIMARY KEY,
	initial_strength REAL NOT NULL,
	tau REAL NOT NULL,
	tagged_at TEXT NOT NULL,
	prp_available INTEGER NOT NULL DEFAULT 0,
	prp_available_at TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_synaptic_tags_tagged_at ON synaptic_tags(tagged_at);
CREATE INDEX IF NOT EXISTS idx_synaptic_tags_prp_available ON synaptic_tags(prp_available);
`
	if _, err := s.db.Exec(schema); err != nil {
		return coreerr.Database("init cognitive schema", err)
	}
	// Databases created before the dual-strength columns existed get them added.
	for _, col := range []struct{ name, def string }{
		{"storage_strength", "REAL NOT NULL DEFAULT 0.5"},
		{"retrieval_strength", "REAL NOT NULL DEFAULT 1.0"},
	} {
		var n int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('fsrs_states') WHERE name = ?`, col.name).Scan(&n); err != nil {
			return coreerr.Database("inspect fsrs_states columns", err)
		}
		if n == 0 {
			if _, err := s.db.Exec("ALTER TABLE fsrs_states ADD COLUMN " + col.name + " " + col.def); err != nil {
				return coreerr.Database("migrate fsrs_states", err)
			}
		}
	}
	return nil
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func formatOptTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseOptTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// StateRow bundles an FsrsState with the row-level metadata the cognitive
// store tracks alongside it.
type StateRow struct {
	State     types.FsrsState
	IsKey     bool
	CreatedAt time.Time
}

// SaveState inserts or updates the FSRS state for memoryID. createdAt, when
// non-nil, seeds the row's created_at on first insert only; later calls
// preserve the original created_at.
func (s *Store) SaveState(memoryID string, state types.FsrsState, isKey bool, createdAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	created := now
	if createdAt != nil {
		created = *createdAt
	}
	isKeyInt := 0
	if isKey {
		isKeyInt = 1
	}
	_, err := s.db.Exec(`
INSERT INTO fsrs_states (memory_id, stability, difficulty, last_review, reps, lapses, is_key, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?,
        COALESCE((SELECT created_at FROM fsrs_states WHERE memory_id = ?), ?),
        ?)
ON CONFLICT(memory_id) DO UPDATE SET
	stability = excluded.stability,
	difficulty = excluded.difficulty,
	last_review = excluded.last_review,
	reps = excluded.reps,
	lapses = excluded.lapses,
	is_key = excluded.is_key,
	updated_at = excluded.updated_at
`,
		memoryID, state.Stability, state.Difficulty, formatOptTime(state.LastReview), state.Reps, state.Lapses, isKeyInt,
		memoryID, formatTime(created),
		formatTime(now),
	)
	if err != nil {
		return coreerr.Database("save fsrs state", err)
	}
	return nil
}

// GetState returns the stored state for memoryID, or (nil, nil) if absent.
func (s *Store) GetState(memoryID string) (*StateRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`
SELECT stability, difficulty, last_review, reps, lapses, is_key, created_at
FROM fsrs_states WHERE memory_id = ?`, memoryID)

	var (
		stability, difficulty float64
		lastReview            sql.NullString
		reps, lapses          uint32
		isKeyInt              int
		createdAtStr          string
	)
	if err := row.Scan(&stability, &difficulty, &lastReview, &reps, &lapses, &isKeyInt, &createdAtStr); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, coreerr.Database("get fsrs state", err)
	}
	createdAt, err := parseTime(createdAtStr)
	if err != nil {
		createdAt = time.Now().UTC()
	}
	return &StateRow{
		State: types.FsrsState{
			Stability:  stability,
			Difficulty: difficulty,
			LastReview: parseOptTime(lastReview),
			Reps:       reps,
			Lapses:     lapses,
		},
		IsKey:     isKeyInt != 0,
		CreatedAt: createdAt,
	}, nil
}

// DeleteState removes the FSRS state row for memoryID. Returns whether a row
// was actually deleted.
func (s *Store) DeleteState(memoryID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM fsrs_states WHERE memory_id = ?`, memoryID)
	if err != nil {
		return false, coreerr.Database("delete fsrs state", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SetKey sets the is_key flag for memoryID. Returns whether a row existed.
func (s *Store) SetKey(memoryID string, isKey bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	isKeyInt := 0
	if isKey {
		isKeyInt = 1
	}
	res, err := s.db.Exec(`UPDATE fsrs_states SET is_key = ?, updated_at = ? WHERE memory_id = ?`,
		isKeyInt, formatTime(time.Now().UTC()), memoryID)
	if err != nil {
		return false, coreerr.Database("set key flag", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Count returns the total number of tracked memories.
func (s *Store) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM fsrs_states`).Scan(&n); err != nil {
		return 0, coreerr.Database("count fsrs states", err)
	}
	return n, nil
}

// CountKeyMemories returns the number of memories flagged is_key.
func (s *Store) CountKeyMemories() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM fsrs_states WHERE is_key = 1`).Scan(&n); err != nil {
		return 0, coreerr.Database("count key memories", err)
	}
	return n, nil
}

// ArchivalCandidate is one row returned by GetArchivalCandidates, bundling
// the memory's FSRS state with its age.
type ArchivalCandidate struct {
	MemoryID  string
	State     types.FsrsState
	CreatedAt time.Time
}

// GetArchivalCandidates returns non-key memories created at or before
// now-minAgeDays, ordered by stability ascending (least stable, most likely
// forgotten, first), capped at limit. The caller is responsible for the
// retrievability<archiveThreshold check using an FSRS scheduler — this query
// only narrows by is_key and age, matching the store's original contract.
func (s *Store) GetArchivalCandidates(minAgeDays int, limit int, now time.Time) ([]ArchivalCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.AddDate(0, 0, -minAgeDays)
	rows, err := s.db.Query(`
SELECT memory_id, stability, difficulty, last_review, reps, lapses, created_at
FROM fsrs_states
WHERE is_key = 0 AND created_at <= ?
ORDER BY stability ASC, last_review ASC
LIMIT ?`, formatTime(cutoff), limit)
	if err != nil {
		return nil, coreerr.Database("query archival candidates", err)
	}
	defer rows.Close()

	var out []ArchivalCandidate
	for rows.Next() {
		var (
			memoryID               string
			stability, difficulty  float64
			lastReview             sql.NullString
			reps, lapses           uint32
			createdAtStr           string
		)
		if err := rows.Scan(&memoryID, &stability, &difficulty, &lastReview, &reps, &lapses, &createdAtStr); err != nil {
			return nil, coreerr.Database("scan archival candidate", err)
		}
		createdAt, err := parseTime(createdAtStr)
		if err != nil {
			createdAt = now
		}
		out = append(out, ArchivalCandidate{
			MemoryID: memoryID,
			State: types.FsrsState{
				Stability:  stability,
				Difficulty: difficulty,
				LastReview: parseOptTime(lastReview),
				Reps:       reps,
				Lapses:     lapses,
			},
			CreatedAt: createdAt,
		})
	}
	return out, rows.Err()
}

// SaveSynapticTag inserts or updates the synaptic tag for tag.MemoryID.
func (s *Store) SaveSynapticTag(tag types.SynapticTag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	prpInt := 0
	if tag.PrpAvailable {
		prpInt = 1
	}
	_, err := s.db.Exec(`
INSERT INTO synaptic_tags (memory_id, initial_strength, tau, tagged_at, prp_available, prp_available_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?,
        COALESCE((SELECT created_at FROM synaptic_tags WHERE memory_id = ?), ?),
        ?)
ON CONFLICT(memory_id) DO UPDATE SET
	initial_strength = excluded.initial_strength,
	tau = excluded.tau,
	tagged_at = excluded.tagged_at,
	prp_available = excluded.prp_available,
	prp_available_at = excluded.prp_available_at,
	updated_at = excluded.updated_at
`,
		tag.MemoryID, tag.InitialStrength, tag.Tau, formatTime(tag.TaggedAt), prpInt, formatOptTime(tag.PrpAvailableAt),
		tag.MemoryID, formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return coreerr.Database("save synaptic tag", err)
	}
	return nil
}

func scanTag(row interface {
	Scan(dest ...any) error
}) (types.SynapticTag, error) {
	var (
		memoryID                         string
		initialStrength, tau             float64
		taggedAtStr                      string
		prpInt                           int
		prpAvailableAt                   sql.NullString
	)
	if err := row.Scan(&memoryID, &initialStrength, &tau, &taggedAtStr, &prpInt, &prpAvailableAt); err != nil {
		return types.SynapticTag{}, err
	}
	taggedAt, err := parseTime(taggedAtStr)
	if err != nil {
		taggedAt = time.Now().UTC()
	}
	return types.SynapticTag{
		MemoryID:        memoryID,
		InitialStrength: initialStrength,
		Tau:             tau,
		TaggedAt:        taggedAt,
		PrpAvailable:    prpInt != 0,
		PrpAvailableAt:  parseOptTime(prpAvailableAt),
	}, nil
}

// GetSynapticTag returns the tag for memoryID, or (nil, nil) if absent.
func (s *Store) GetSynapticTag(memoryID string) (*types.SynapticTag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`
SELECT memory_id, initial_strength, tau, tagged_at, prp_available, prp_available_at
FROM synaptic_tags WHERE memory_id = ?`, memoryID)
	tag, err := scanTag(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, coreerr.Database("get synaptic tag", err)
	}
	return &tag, nil
}

// DeleteSynapticTag removes the tag for memoryID. Returns whether a row was
// deleted.
func (s *Store) DeleteSynapticTag(memoryID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`DELETE FROM synaptic_tags WHERE memory_id = ?`, memoryID)
	if err != nil {
		return false, coreerr.Database("delete synaptic tag", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// GetTagsInTimeRange returns tags with tagged_at in [start, end], newest
// first.
func (s *Store) GetTagsInTimeRange(start, end time.Time) ([]types.SynapticTag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
SELECT memory_id, initial_strength, tau, tagged_at, prp_available, prp_available_at
FROM synaptic_tags
WHERE tagged_at >= ? AND tagged_at <= ?
ORDER BY tagged_at DESC`, formatTime(start), formatTime(end))
	if err != nil {
		return nil, coreerr.Database("query tags in range", err)
	}
	defer rows.Close()

	var out []types.SynapticTag
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, coreerr.Database("scan tag", err)
		}
		out = append(out, tag)
	}
	return out, rows.Err()
}

// GetTagsNeedingPRP returns tags without a captured PRP that are still valid
// (strength at now() >= validityThreshold).
func (s *Store) GetTagsNeedingPRP(validityThreshold float64) ([]types.SynapticTag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
SELECT memory_id, initial_strength, tau, tagged_at, prp_available, prp_available_at
FROM synaptic_tags
WHERE prp_available = 0
ORDER BY tagged_at DESC`)
	if err != nil {
		return nil, coreerr.Database("query tags needing prp", err)
	}
	defer rows.Close()

	now := time.Now()
	var out []types.SynapticTag
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, coreerr.Database("scan tag", err)
		}
		if tag.IsValidAt(now, validityThreshold) {
			out = append(out, tag)
		}
	}
	return out, rows.Err()
}

// GetDualStrength returns the dual-strength pair for memoryID, or (nil, nil)
// if absent.
func (s *Store) GetDualStrength(memoryID string) (*types.DualStrength, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var storage, retrieval float64
	err := s.db.QueryRow(`SELECT storage_strength, retrieval_strength FROM fsrs_states WHERE memory_id = ?`, memoryID).
		Scan(&storage, &retrieval)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, coreerr.Database("get dual strength", err)
	}
	return &types.DualStrength{StorageStrength: storage, RetrievalStrength: retrieval}, nil
}

// SaveDualStrength updates just the dual-strength columns for memoryID.
// Returns whether a row was updated.
func (s *Store) SaveDualStrength(memoryID string, dual types.DualStrength) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
UPDATE fsrs_states SET storage_strength = ?, retrieval_strength = ?, updated_at = ?
WHERE memory_id = ?`, dual.StorageStrength, dual.RetrievalStrength, formatTime(time.Now().UTC()), memoryID)
	if err != nil {
		return false, coreerr.Database("save dual strength", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// GetConsolidationPhase returns the phase for memoryID, or (nil, nil) if
// absent.
func (s *Store) GetConsolidationPhase(memoryID string) (*types.ConsolidationPhase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var phaseStr string
	err := s.db.QueryRow(`SELECT consolidation_phase FROM fsrs_states WHERE memory_id = ?`, memoryID).Scan(&phaseStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, coreerr.Database("get consolidation phase", err)
	}
	phase, err := types.ParsePhase(phaseStr)
	if err != nil {
		phase = types.PhaseImmediate
	}
	return &phase, nil
}

// UpdateConsolidationPhase sets the phase for memoryID. Returns whether a
// row was updated.
func (s *Store) UpdateConsolidationPhase(memoryID string, phase types.ConsolidationPhase) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE fsrs_states SET consolidation_phase = ?, updated_at = ? WHERE memory_id = ?`,
		phase.String(), formatTime(time.Now().UTC()), memoryID)
	if err != nil {
		return false, coreerr.Database("update consolidation phase", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// GetMemoriesInPhase returns all memory IDs currently in phase.
func (s *Store) GetMemoriesInPhase(phase types.ConsolidationPhase) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT memory_id FROM fsrs_states WHERE consolidation_phase = ?`, phase.String())
	if err != nil {
		return nil, coreerr.Database("query memories in phase", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, coreerr.Database("scan memory id", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CountByPhase returns the number of memories in each consolidation phase.
func (s *Store) CountByPhase() (map[types.ConsolidationPhase]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT consolidation_phase, COUNT(*) FROM fsrs_states GROUP BY consolidation_phase`)
	if err != nil {
		return nil, coreerr.Database("count by phase", err)
	}
	defer rows.Close()

	out := map[types.ConsolidationPhase]int{}
	for rows.Next() {
		var phaseStr string
		var count int
		if err := rows.Scan(&phaseStr, &count); err != nil {
			return nil, coreerr.Database("scan phase count", err)
		}
		if phase, err := types.ParsePhase(phaseStr); err == nil {
			out[phase] = count
		}
	}
	return out, rows.Err()
}

// GetMemoriesWithValidTags returns (memoryID, tag) pairs for every synaptic
// tag whose strength at now is still at least threshold.
func (s *Store) GetMemoriesWithValidTags(threshold float64, now time.Time) ([]types.SynapticTag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
SELECT memory_id, initial_strength, tau, tagged_at, prp_available, prp_available_at
FROM synaptic_tags`)
	if err != nil {
		return nil, coreerr.Database("query memories with valid tags", err)
	}
	defer rows.Close()

	var out []types.SynapticTag
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, coreerr.Database("scan tag", err)
		}
		if tag.IsValidAt(now, threshold) {
			out = append(out, tag)
		}
	}
	return out, rows.Err()
}

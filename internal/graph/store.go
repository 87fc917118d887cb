// Package graph implements the entity/relationship graph store: durable
// SQLite-backed storage for GraphEntity/GraphRelationship, LLM-driven
// extraction from conversational text (the ports.GraphStore contract), and
// spreading activation over the resulting adjacency structure for cognitive
// retrieval.
package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"rook/internal/types"
)

// Store is a SQLite-backed entity/relationship graph, additionally caching
// an in-memory adjacency index for spreading activation.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	// adjacency caches outgoing edges per source entity ID, rebuilt
	// incrementally on writes; it backs spreading activation without
	// re-querying SQLite on every retrieval call.
	adjacency map[string][]Edge
	entities  map[string]types.GraphEntity
}

// Edge is one outgoing relationship for adjacency-index purposes.
type Edge struct {
	TargetID string
	Weight   float64
	Type     types.GraphRelationType
}

// Open opens (creating if necessary) the SQLite graph store at path, or an
// in-memory database for path == ":memory:".
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("graph: create db dir: %w", err)
			}
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("graph: open db: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, adjacency: make(map[string][]Edge), entities: make(map[string]types.GraphEntity)}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.loadAdjacency(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS entities (
	db_id       TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	type        TEXT NOT NULL,
	properties  TEXT NOT NULL DEFAULT '{}',
	user_id     TEXT NOT NULL DEFAULT '',
	agent_id    TEXT NOT NULL DEFAULT '',
	run_id      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name);
CREATE INDEX IF NOT EXISTS idx_entities_scope ON entities(user_id, agent_id, run_id);

CREATE TABLE IF NOT EXISTS relationships (
	source_id   TEXT NOT NULL,
	target_id   TEXT NOT NULL,
	type        TEXT NOT NULL,
	weight      REAL NOT NULL DEFAULT 1.0,
	user_id     TEXT NOT NULL DEFAULT '',
	agent_id    TEXT NOT NULL DEFAULT '',
	run_id      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (source_id, target_id, type)
);
CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_id);
CREATE INDEX IF NOT EXISTS idx_relationships_scope ON relationships(user_id, agent_id, run_id);
`)
	return err
}

func (s *Store) loadAdjacency() error {
	rows, err := s.db.Query(`SELECT db_id, name, type, properties, user_id, agent_id, run_id FROM entities`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var e types.GraphEntity
		var propsJSON string
		if err := rows.Scan(&e.DBID, &e.Name, &e.Type, &propsJSON, &e.Scope.UserID, &e.Scope.AgentID, &e.Scope.RunID); err != nil {
			return err
		}
		_ = json.Unmarshal([]byte(propsJSON), &e.Properties)
		s.entities[e.DBID] = e
	}
	if err := rows.Err(); err != nil {
		return err
	}

	edgeRows, err := s.db.Query(`SELECT source_id, target_id, type, weight FROM relationships`)
	if err != nil {
		return err
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var src, dst string
		var relType types.GraphRelationType
		var weight float64
		if err := edgeRows.Scan(&src, &dst, &relType, &weight); err != nil {
			return err
		}
		s.adjacency[src] = append(s.adjacency[src], Edge{TargetID: dst, Weight: weight, Type: relType})
	}
	return edgeRows.Err()
}

// UpsertEntity creates or replaces an entity and refreshes the in-memory
// cache entry.
func (s *Store) UpsertEntity(ctx context.Context, e types.GraphEntity) error {
	propsJSON, err := json.Marshal(e.Properties)
	if err != nil {
		return fmt.Errorf("graph: marshal properties: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO entities (db_id, name, type, properties, user_id, agent_id, run_id)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.DBID, e.Name, e.Type, string(propsJSON), e.Scope.UserID, e.Scope.AgentID, e.Scope.RunID)
	if err != nil {
		return fmt.Errorf("graph: upsert entity: %w", err)
	}
	s.entities[e.DBID] = e
	return nil
}

// UpsertRelationship creates or replaces a directed edge and refreshes the
// adjacency cache.
func (s *Store) UpsertRelationship(ctx context.Context, r types.GraphRelationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO relationships (source_id, target_id, type, weight, user_id, agent_id, run_id)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.SourceID, r.TargetID, r.Type, r.Weight, r.Scope.UserID, r.Scope.AgentID, r.Scope.RunID)
	if err != nil {
		return fmt.Errorf("graph: upsert relationship: %w", err)
	}

	edges := s.adjacency[r.SourceID]
	replaced := false
	for i, e := range edges {
		if e.TargetID == r.TargetID && e.Type == r.Type {
			edges[i].Weight = r.Weight
			replaced = true
			break
		}
	}
	if !replaced {
		edges = append(edges, Edge{TargetID: r.TargetID, Weight: r.Weight, Type: r.Type})
	}
	s.adjacency[r.SourceID] = edges
	return nil
}

// GetEntity returns the entity by ID, or false if absent.
func (s *Store) GetEntity(id string) (types.GraphEntity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	return e, ok
}

// FindEntityByName returns the first entity matching name within scope, or
// false if none match. Scope filtering follows types.Scope.Matches.
func (s *Store) FindEntityByName(name string, scope types.Scope) (types.GraphEntity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entities {
		if e.Name == name && scope.Matches(e.Scope) {
			return e, true
		}
	}
	return types.GraphEntity{}, false
}

// Neighbors returns the outgoing edges for id, sorted by target ID for
// deterministic iteration.
func (s *Store) Neighbors(id string) []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	edges := append([]Edge(nil), s.adjacency[id]...)
	sort.Slice(edges, func(i, j int) bool { return edges[i].TargetID < edges[j].TargetID })
	return edges
}

// EntityIDsInScope returns every entity ID visible to scope.
func (s *Store) EntityIDsInScope(scope types.Scope) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, e := range s.entities {
		if scope.Matches(e.Scope) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// DeleteAllScope removes every entity and relationship visible to scope.
func (s *Store) DeleteAllScope(ctx context.Context, scope types.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var toDelete []string
	for id, e := range s.entities {
		if scope.Matches(e.Scope) {
			toDelete = append(toDelete, id)
		}
	}
	for _, id := range toDelete {
		delete(s.entities, id)
		delete(s.adjacency, id)
	}
	for src, edges := range s.adjacency {
		kept := edges[:0:0]
		for _, e := range edges {
			if _, removed := indexOf(toDelete, e.TargetID); !removed {
				kept = append(kept, e)
			}
		}
		s.adjacency[src] = kept
	}

	query := `DELETE FROM relationships WHERE 1=1`
	var args []any
	if scope.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, scope.UserID)
	}
	if scope.AgentID != "" {
		query += ` AND agent_id = ?`
		args = append(args, scope.AgentID)
	}
	if scope.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, scope.RunID)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("graph: delete relationships: %w", err)
	}

	entityQuery := strings.Replace(query, "relationships", "entities", 1)
	if _, err := s.db.ExecContext(ctx, entityQuery, args...); err != nil {
		return fmt.Errorf("graph: delete entities: %w", err)
	}
	return nil
}

func indexOf(haystack []string, needle string) (int, bool) {
	for i, v := range haystack {
		if v == needle {
			return i, true
		}
	}
	return -1, false
}

// GetAllScope returns every entity and relationship visible to scope.
func (s *Store) GetAllScope(scope types.Scope) ([]types.GraphEntity, []types.GraphRelationship) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entities []types.GraphEntity
	idSet := map[string]bool{}
	for id, e := range s.entities {
		if scope.Matches(e.Scope) {
			entities = append(entities, e)
			idSet[id] = true
		}
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].DBID < entities[j].DBID })

	var rels []types.GraphRelationship
	for src, edges := range s.adjacency {
		if !idSet[src] {
			continue
		}
		for _, e := range edges {
			if !idSet[e.TargetID] {
				continue
			}
			rels = append(rels, types.GraphRelationship{
				SourceID: src,
				TargetID: e.TargetID,
				Type:     e.Type,
				Weight:   e.Weight,
				Scope:    scope,
			})
		}
	}
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].SourceID != rels[j].SourceID {
			return rels[i].SourceID < rels[j].SourceID
		}
		return rels[i].TargetID < rels[j].TargetID
	})
	return entities, rels
}

package facade

import (
	"context"
	"fmt"
	"sort"
	"time"

	"rook/internal/ports"
	"rook/internal/types"
)

// Get returns the memory with id, or a coreerr.KindNotFound error if it
// doesn't exist.
func (m *Memory) Get(ctx context.Context, id string) (types.MemoryItem, error) {
	record, ok, err := m.deps.VectorStore.Get(ctx, id)
	if err != nil {
		return types.MemoryItem{}, fmt.Errorf("facade: get memory: %w", err)
	}
	if !ok {
		return types.MemoryItem{}, notFoundErr(id)
	}
	return recordToItem(record), nil
}

// GetAll returns every memory in scope, newest first, capped at limit (no
// cap when limit <= 0).
func (m *Memory) GetAll(ctx context.Context, scope types.Scope, limit int) ([]types.MemoryItem, error) {
	records, err := m.deps.VectorStore.List(ctx, scopeFilter(scope), 0)
	if err != nil {
		return nil, fmt.Errorf("facade: list memories: %w", err)
	}
	out := make([]types.MemoryItem, len(records))
	for i, r := range records {
		out[i] = recordToItem(r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Update replaces id's content, re-embeds it, and records an Update history
// event and a new version snapshot.
func (m *Memory) Update(ctx context.Context, id, text string) (types.MemoryItem, error) {
	record, ok, err := m.deps.VectorStore.Get(ctx, id)
	if err != nil {
		return types.MemoryItem{}, fmt.Errorf("facade: get memory for update: %w", err)
	}
	if !ok {
		return types.MemoryItem{}, notFoundErr(id)
	}

	oldContent, _ := record.Payload["content"].(string)
	now := time.Now().UTC()

	vec, err := m.deps.Embedder.Embed(ctx, text, ports.EmbedActionUpdate)
	if err != nil {
		return types.MemoryItem{}, fmt.Errorf("facade: embed updated memory: %w", err)
	}

	payload := cloneMap(record.Payload)
	payload["content"] = text
	payload["content_hash"] = types.ContentHash(text)
	payload["updated_at"] = now.Format(time.RFC3339)

	if err := m.deps.VectorStore.Update(ctx, id, vec, payload); err != nil {
		return types.MemoryItem{}, fmt.Errorf("facade: update memory: %w", err)
	}

	if m.deps.History != nil {
		if err := m.deps.History.Append(ctx, types.HistoryRecord{
			MemoryID:  id,
			Event:     types.EventUpdate,
			Prev:      &oldContent,
			Next:      &text,
			CreatedAt: now,
		}); err != nil {
			return types.MemoryItem{}, fmt.Errorf("facade: append update history: %w", err)
		}
	}
	if m.deps.Versions != nil {
		metadata, _ := payload["metadata"].(map[string]any)
		if _, err := m.deps.Versions.Save(ctx, types.MemoryVersion{
			MemoryID:  id,
			Content:   text,
			Metadata:  metadata,
			CreatedAt: now,
			EventType: types.EventUpdate,
		}); err != nil {
			return types.MemoryItem{}, fmt.Errorf("facade: save update version: %w", err)
		}
	}

	updated, _, err := m.deps.VectorStore.Get(ctx, id)
	if err != nil {
		return types.MemoryItem{}, fmt.Errorf("facade: re-read updated memory: %w", err)
	}
	return recordToItem(updated), nil
}

// Delete removes id from every store it participates in: vector store,
// cognitive state, and the history log records the Delete event (the
// memory's versions remain, so a past state can still be reconstructed).
func (m *Memory) Delete(ctx context.Context, id string) error {
	record, ok, err := m.deps.VectorStore.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("facade: get memory for delete: %w", err)
	}
	if !ok {
		return notFoundErr(id)
	}
	content, _ := record.Payload["content"].(string)

	if err := m.deps.VectorStore.Delete(ctx, id); err != nil {
		return fmt.Errorf("facade: delete memory: %w", err)
	}
	if m.deps.Cognitive != nil {
		if _, err := m.deps.Cognitive.DeleteState(id); err != nil {
			return fmt.Errorf("facade: delete cognitive state: %w", err)
		}
	}
	if m.deps.History != nil {
		now := time.Now().UTC()
		if err := m.deps.History.Append(ctx, types.HistoryRecord{
			MemoryID:  id,
			Event:     types.EventDelete,
			Prev:      &content,
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("facade: append delete history: %w", err)
		}
	}
	return nil
}

// DeleteAll removes every memory in scope. It is not atomic: a failure
// partway through leaves the remainder untouched, and the first error
// encountered is returned after every memory has been attempted.
func (m *Memory) DeleteAll(ctx context.Context, scope types.Scope) error {
	records, err := m.deps.VectorStore.List(ctx, scopeFilter(scope), 0)
	if err != nil {
		return fmt.Errorf("facade: list memories for delete_all: %w", err)
	}

	var firstErr error
	for _, r := range records {
		if err := m.Delete(ctx, r.ID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// History returns the append-only event log for id, oldest first.
func (m *Memory) History(ctx context.Context, id string) ([]types.HistoryRecord, error) {
	if m.deps.History == nil {
		return nil, nil
	}
	return m.deps.History.ForMemory(ctx, id)
}

// Reset resets the vector store and, when a graph store is configured,
// deletes all of its entities and relationships. Cognitive state rows and
// the history/version log are left as they are.
func (m *Memory) Reset(ctx context.Context) error {
	if err := m.deps.VectorStore.Reset(ctx); err != nil {
		return fmt.Errorf("facade: reset vector store: %w", err)
	}
	if m.deps.GraphStore != nil {
		if err := m.deps.GraphStore.DeleteAll(ctx, nil); err != nil {
			return fmt.Errorf("facade: reset graph store: %w", err)
		}
	}
	return nil
}

func recordToItem(r ports.VectorRecord) types.MemoryItem {
	content, _ := r.Payload["content"].(string)
	contentHash, _ := r.Payload["content_hash"].(string)
	userID, _ := r.Payload["user_id"].(string)
	agentID, _ := r.Payload["agent_id"].(string)
	runID, _ := r.Payload["run_id"].(string)

	item := types.MemoryItem{
		ID:          r.ID,
		Content:     content,
		ContentHash: contentHash,
		Scope:       types.Scope{UserID: userID, AgentID: agentID, RunID: runID},
		Embedding:   r.Vector,
	}
	if createdAt, ok := r.Payload["created_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			item.CreatedAt = t
		}
	}
	if updatedAt, ok := r.Payload["updated_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
			item.UpdatedAt = t
		}
	}
	if supersededBy, ok := r.Payload["superseded_by"].(string); ok {
		item.SupersededBy = supersededBy
	}
	if supersededAt, ok := r.Payload["superseded_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, supersededAt); err == nil {
			item.SupersededAt = &t
		}
	}
	item.Metadata = cloneMap(r.Payload)
	delete(item.Metadata, "content")
	delete(item.Metadata, "content_hash")
	delete(item.Metadata, "user_id")
	delete(item.Metadata, "agent_id")
	delete(item.Metadata, "run_id")
	delete(item.Metadata, "created_at")
	delete(item.Metadata, "updated_at")
	return item
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

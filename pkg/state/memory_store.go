package state

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	inherit "github.com/goliatone/go-inherit"
	"github.com/google/uuid"
)

// MemoryStore keeps snapshots in a map keyed by Ref.Identifier. Snapshots
// are deep copied in and out, and every save bumps a per-key revision that
// is reported as the ETag.
type MemoryStore[T any] struct {
	mu      sync.RWMutex
	records map[string]memoryRecord[T]
	now     func() time.Time
}

type memoryRecord[T any] struct {
	snapshot T
	meta     Meta
	revision int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{records: map[string]memoryRecord[T]{}, now: time.Now}
}

// Load returns the snapshot stored for ref, if any.
func (s *MemoryStore[T]) Load(_ context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	key, err := ref.Identifier()
	if err != nil {
		return zero, Meta{}, false, err
	}

	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return zero, Meta{}, false, nil
	}
	return inherit.Clone(record.snapshot), record.meta.clone(), true, nil
}

// Save stores snapshot under ref. When a snapshot already exists and
// meta.ETag is set, it must match the stored ETag. A missing SnapshotID
// gets a fresh UUID and a missing UpdatedAt the current time; the returned
// ETag is always the new revision.
func (s *MemoryStore[T]) Save(_ context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.records[key]
	if exists && meta.ETag != "" && meta.ETag != current.meta.ETag {
		return Meta{}, fmt.Errorf("%w: %s expected %q, stored %q", ErrETagMismatch, key, meta.ETag, current.meta.ETag)
	}

	stored := meta.clone()
	if stored.SnapshotID == "" {
		stored.SnapshotID = current.meta.SnapshotID
	}
	if stored.SnapshotID == "" {
		stored.SnapshotID = uuid.NewString()
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = s.now().UTC()
	}
	revision := current.revision + 1
	stored.ETag = strconv.Itoa(revision)

	s.records[key] = memoryRecord[T]{
		snapshot: inherit.Clone(snapshot),
		meta:     stored,
		revision: revision,
	}
	return stored.clone(), nil
}

// Len reports the number of stored snapshots.
func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

package overlay

import (
	"bytes"
	"context"
	"slices"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store is the persistence abstraction for overlays.
// Implementations can be in-memory or backed by MongoDB; the Service does not
// need to know which one it has.
type Store interface {
	// Create inserts o under a new id and returns the stored record.
	Create(ctx context.Context, o Overlay) (Overlay, error)

	// List returns every overlay in creation order.
	List(ctx context.Context) ([]Overlay, error)

	// Update applies p to the overlay with the given id, or returns ErrNotFound.
	Update(ctx context.Context, id primitive.ObjectID, p Patch) error

	// Delete removes the overlay with the given id, or returns ErrNotFound.
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// MemoryStore is a concurrency-safe in-memory implementation of Store.
type MemoryStore struct {
	mu       sync.RWMutex
	overlays map[primitive.ObjectID]Overlay
}

// NewMemoryStore returns a new empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		overlays: make(map[primitive.ObjectID]Overlay),
	}
}

// Create implements Store.Create.
func (s *MemoryStore) Create(_ context.Context, o Overlay) (Overlay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o.ID = primitive.NewObjectID()
	s.overlays[o.ID] = o
	return o, nil
}

// List implements Store.List. Object ids grow monotonically within a
// process, so sorting by id yields creation order.
func (s *MemoryStore) List(_ context.Context) ([]Overlay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Overlay, 0, len(s.overlays))
	for _, o := range s.overlays {
		out = append(out, o)
	}
	slices.SortFunc(out, func(a, b Overlay) int {
		return bytes.Compare(a.ID[:], b.ID[:])
	})
	return out, nil
}

// Update implements Store.Update.
func (s *MemoryStore) Update(_ context.Context, id primitive.ObjectID, p Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.overlays[id]
	if !ok {
		return ErrNotFound
	}
	p.apply(&o)
	s.overlays[id] = o
	return nil
}

// Delete implements Store.Delete.
func (s *MemoryStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.overlays[id]; !ok {
		return ErrNotFound
	}
	delete(s.overlays, id)
	return nil
}

// Len returns the number of stored overlays.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.overlays)
}

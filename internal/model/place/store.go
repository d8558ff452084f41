package place

import "sync"

// Store exposes catalog storage to the catalog service.
type Store interface {
	List() []Place
	FindByID(id string) (Place, bool)
	Upsert(p Place) (replaced bool)
	Replace(items []Place)
	Len() int
}

// MemoryStore implements Store with an in-memory slice kept in insertion
// order. All access goes through a single RWMutex.
type MemoryStore struct {
	mu    sync.RWMutex
	items []Place
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied places.
func NewMemoryStore(items []Place) *MemoryStore {
	return &MemoryStore{items: append([]Place(nil), items...)}
}

// List returns a copy of the catalog in insertion order.
func (s *MemoryStore) List() []Place {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Place{}, s.items...)
}

// FindByID looks up a place by identifier.
func (s *MemoryStore) FindByID(id string) (Place, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Place{}, false
}

// Upsert removes the first place sharing p's id, then appends p.
func (s *MemoryStore) Upsert(p Place) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := false
	for i, item := range s.items {
		if item.ID == p.ID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			replaced = true
			break
		}
	}
	s.items = append(s.items, p)
	return replaced
}

// Replace swaps the whole collection.
func (s *MemoryStore) Replace(items []Place) {
	fresh := append([]Place(nil), items...)
	s.mu.Lock()
	s.items = fresh
	s.mu.Unlock()
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

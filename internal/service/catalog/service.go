package catalog

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/zhouzirui/favorite-places/backend/internal/dataset"
	"github.com/zhouzirui/favorite-places/backend/internal/events"
	"github.com/zhouzirui/favorite-places/backend/internal/model/place"
)

// Service owns the place catalog: listing, client upserts and reloads from
// the dataset.
type Service struct {
	store     place.Store
	source    dataset.Source
	publisher events.Publisher

	// reloadMu serializes reloads so two resets cannot interleave their
	// load and swap steps.
	reloadMu sync.Mutex
	// changeMu pairs each store mutation with its event, so events are
	// published in the order the catalog changed.
	changeMu sync.Mutex
}

// NewService loads the dataset from source and returns a ready catalog.
// A load failure is returned to the caller, which treats it as fatal.
func NewService(ctx context.Context, source dataset.Source, publisher events.Publisher) (*Service, error) {
	places, err := dataset.LoadFrom(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("bootstrap catalog: %w", err)
	}
	log.Printf("[catalog] loaded %d places from %s", len(places), source.Name())
	return NewServiceWithStore(place.NewMemoryStore(places), source, publisher), nil
}

// NewServiceWithStore wires a service around an existing store.
func NewServiceWithStore(store place.Store, source dataset.Source, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Discard
	}
	return &Service{store: store, source: source, publisher: publisher}
}

// List returns the full catalog in insertion order.
func (s *Service) List(_ context.Context) []place.Place {
	return s.store.List()
}

// Upsert validates p and stores it, replacing any place with the same id.
// Invalid places leave the catalog untouched.
func (s *Service) Upsert(_ context.Context, p place.Place) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.changeMu.Lock()
	defer s.changeMu.Unlock()

	replaced := s.store.Upsert(p)
	s.publisher.Publish(events.PlaceUpserted(p, replaced))
	return nil
}

// Reload replaces the catalog with a fresh load of the dataset, discarding
// every upsert made since the last load.
func (s *Service) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	places, err := dataset.LoadFrom(ctx, s.source)
	if err != nil {
		return fmt.Errorf("reload catalog: %w", err)
	}

	s.changeMu.Lock()
	s.store.Replace(places)
	s.publisher.Publish(events.CatalogReset(places))
	s.changeMu.Unlock()

	log.Printf("[catalog] reloaded %d places", len(places))
	return nil
}

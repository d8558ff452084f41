package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"github.com/zhouzirui/favorite-places/backend/internal/model/place"
)

const placesMapping = `{
	"mappings": {
		"properties": {
			"id":          {"type": "keyword"},
			"name":        {"type": "text"},
			"description": {"type": "text"},
			"location":    {"type": "geo_point"}
		}
	}
}`

// GeoPoint is the Elasticsearch geo_point shape.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// document is how a place is stored in the search index.
type document struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Location    GeoPoint `json:"location"`
}

func toDocument(p place.Place) document {
	return document{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Location:    GeoPoint{Lat: p.Latitude, Lon: p.Longitude},
	}
}

// ElasticSink mirrors the catalog into a search index. The index is a
// read model only; the in-memory catalog stays authoritative.
type ElasticSink struct {
	client *elasticsearch.Client
	index  string
}

// NewElasticSink creates a sink for the given client and index.
func NewElasticSink(client *elasticsearch.Client, index string) *ElasticSink {
	return &ElasticSink{client: client, index: index}
}

// NewElasticClient builds a client for a single node address.
func NewElasticClient(address string) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{address}})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return client, nil
}

func (s *ElasticSink) Name() string { return "elasticsearch:" + s.index }

// EnsureIndex creates the index with a geo_point mapping when it is absent.
func (s *ElasticSink) EnsureIndex(ctx context.Context) error {
	exists, err := s.client.Indices.Exists([]string{s.index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", s.index, err)
	}
	defer exists.Body.Close()
	if exists.StatusCode == 200 {
		return nil
	}

	res, err := s.client.Indices.Create(
		s.index,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(strings.NewReader(placesMapping)),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", s.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index %s: %s", s.index, res.Status())
	}
	log.Printf("[events] created elasticsearch index %s", s.index)
	return nil
}

func (s *ElasticSink) Deliver(ctx context.Context, event Event) error {
	switch event.Type {
	case TypePlaceUpserted:
		if event.Place == nil {
			return nil
		}
		return s.indexOne(ctx, *event.Place)
	case TypeCatalogReset:
		return s.reindex(ctx, event.Places)
	default:
		return nil
	}
}

func (s *ElasticSink) indexOne(ctx context.Context, p place.Place) error {
	data, err := json.Marshal(toDocument(p))
	if err != nil {
		return fmt.Errorf("encode place %s: %w", p.ID, err)
	}

	res, err := s.client.Index(
		s.index,
		bytes.NewReader(data),
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(p.ID),
	)
	if err != nil {
		return fmt.Errorf("index place %s: %w", p.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index place %s: %s", p.ID, res.Status())
	}
	return nil
}

// reindex clears the index and bulk loads the full catalog.
func (s *ElasticSink) reindex(ctx context.Context, places []place.Place) error {
	res, err := s.client.DeleteByQuery(
		[]string{s.index},
		strings.NewReader(`{"query":{"match_all":{}}}`),
		s.client.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("clear index %s: %w", s.index, err)
	}
	res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("clear index %s: %s", s.index, res.Status())
	}

	var failed uint64
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:         s.index,
		Client:        s.client,
		NumWorkers:    1,
		FlushInterval: 30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("create bulk indexer: %w", err)
	}

	for _, p := range places {
		data, err := json.Marshal(toDocument(p))
		if err != nil {
			_ = bi.Close(ctx)
			return fmt.Errorf("encode place %s: %w", p.ID, err)
		}
		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: p.ID,
			Body:       bytes.NewReader(data),
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				atomic.AddUint64(&failed, 1)
				if err != nil {
					log.Printf("[events] bulk index %s: %v", item.DocumentID, err)
				} else {
					log.Printf("[events] bulk index %s: %s: %s", item.DocumentID, res.Error.Type, res.Error.Reason)
				}
			},
		})
		if err != nil {
			_ = bi.Close(ctx)
			return fmt.Errorf("queue place %s: %w", p.ID, err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return fmt.Errorf("flush bulk indexer: %w", err)
	}
	if n := atomic.LoadUint64(&failed); n > 0 {
		return fmt.Errorf("bulk index: %d of %d places failed", n, len(places))
	}
	return nil
}

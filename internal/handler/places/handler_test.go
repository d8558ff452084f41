package places

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/favorite-places/backend/internal/model/place"
)

type fakeCatalog struct {
	places    []place.Place
	upserted  []place.Place
	upsertErr error
	reloads   int
}

func (f *fakeCatalog) List(context.Context) []place.Place { return f.places }

func (f *fakeCatalog) Upsert(_ context.Context, p place.Place) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, p)
	return nil
}

func (f *fakeCatalog) Reload(context.Context) error {
	f.reloads++
	return nil
}

func setupRouter(catalog *fakeCatalog) *chi.Mux {
	r := chi.NewRouter()
	New(catalog).RegisterRoutes(r)
	return r
}

func TestListPlacesEmptyCatalogIsArray(t *testing.T) {
	r := setupRouter(&fakeCatalog{places: []place.Place{}})

	req := httptest.NewRequest(http.MethodGet, "/places", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got := strings.TrimSpace(resp.Body.String()); got != "[]" {
		t.Fatalf("expected empty array, got %q", got)
	}
}

func TestResetCallsReload(t *testing.T) {
	catalog := &fakeCatalog{}
	r := setupRouter(catalog)

	req := httptest.NewRequest(http.MethodGet, "/reset", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if catalog.reloads != 1 {
		t.Fatalf("expected 1 reload, got %d", catalog.reloads)
	}
}

func TestUpsertPassesDecodedPlace(t *testing.T) {
	catalog := &fakeCatalog{}
	r := setupRouter(catalog)

	payload := []byte(`{"id":"11111111-2222-4333-8444-555555555555","name":"Quad","latitude":40.1,"longitude":-88.2,"description":"green"}`)
	req := httptest.NewRequest(http.MethodPost, "/favoriteplace", bytes.NewReader(payload))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if len(catalog.upserted) != 1 || catalog.upserted[0].Name != "Quad" {
		t.Fatalf("unexpected upserts: %+v", catalog.upserted)
	}
}

func TestUpsertMapsErrors(t *testing.T) {
	payload := []byte(`{"id":"11111111-2222-4333-8444-555555555555","name":"Quad","latitude":40.1,"longitude":-88.2,"description":"green"}`)
	cases := []struct {
		err  error
		want int
	}{
		{place.ErrLatitudeRange, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		r := setupRouter(&fakeCatalog{upsertErr: tc.err})
		req := httptest.NewRequest(http.MethodPost, "/favoriteplace", bytes.NewReader(payload))
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)

		if resp.Code != tc.want {
			t.Fatalf("expected %d for %v, got %d", tc.want, tc.err, resp.Code)
		}
	}
}

func TestUpsertRejectsOversizedBody(t *testing.T) {
	catalog := &fakeCatalog{}
	r := setupRouter(catalog)

	big := `{"id":"11111111-2222-4333-8444-555555555555","name":"` + strings.Repeat("a", maxBodyBytes) + `","latitude":1,"longitude":1,"description":"d"}`
	req := httptest.NewRequest(http.MethodPost, "/favoriteplace", strings.NewReader(big))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if len(catalog.upserted) != 0 {
		t.Fatal("expected no upsert")
	}
}

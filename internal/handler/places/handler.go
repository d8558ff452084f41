package places

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/favorite-places/backend/internal/model/place"
	"github.com/zhouzirui/favorite-places/backend/pkg/utils"
)

// maxBodyBytes caps a submitted place payload.
const maxBodyBytes = 1 << 20

// Catalog is the catalog behaviour the handler depends on.
type Catalog interface {
	List(ctx context.Context) []place.Place
	Upsert(ctx context.Context, p place.Place) error
	Reload(ctx context.Context) error
}

// Handler serves the catalog routes.
type Handler struct {
	catalog Catalog
}

// New creates a place handler.
func New(catalog Catalog) *Handler {
	return &Handler{catalog: catalog}
}

// RegisterRoutes registers the catalog routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/reset", h.handleReset)
	r.Get("/places", h.handleListPlaces)
	r.Post("/favoriteplace", h.handleUpsertPlace)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Reload(r.Context()); err != nil {
		log.Printf("[place] reset failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "reset failed")
		return
	}
	utils.RespondEmpty(w, http.StatusOK, "")
}

func (h *Handler) handleListPlaces(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.catalog.List(r.Context()))
}

func (h *Handler) handleUpsertPlace(w http.ResponseWriter, r *http.Request) {
	p, err := place.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.catalog.Upsert(r.Context(), p); err != nil {
		if errors.Is(err, place.ErrInvalidPlace) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("[place] upsert %s failed: %v", p.ID, err)
		utils.RespondError(w, http.StatusInternalServerError, "upsert failed")
		return
	}

	utils.RespondEmpty(w, http.StatusOK, utils.ContentTypeJSON)
}

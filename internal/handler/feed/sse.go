package feed

import (
	"log"
	"net/http"
	"time"

	"github.com/zhouzirui/favorite-places/backend/pkg/utils"
)

const keepAliveInterval = 15 * time.Second

// handleSSE streams events as server-sent events, one per change.
func (h *Hub) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := h.subscribe()
	defer h.unsubscribe(sub)

	ctx := r.Context()
	log.Printf("[feed] sse subscriber %s connected", sub.id)

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[feed] sse subscriber %s disconnected", sub.id)
			return
		case event := <-sub.send:
			if err := utils.SendSSEEvent(w, flusher, string(event.Type), event.ID, event); err != nil {
				log.Printf("[feed] sse write to %s failed: %v", sub.id, err)
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "keep-alive"); err != nil {
				return
			}
		}
	}
}

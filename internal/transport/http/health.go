package http

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
}

// HandleHealth reports liveness. With a pinger it also reports the store
// and answers 503 while the store is unreachable.
func HandleHealth(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		if store == nil {
			writeData(w, http.StatusOK, healthResponse{Status: "ok"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, envelope{
				Data:  healthResponse{Status: "degraded", Store: "unreachable"},
				Error: "store unreachable",
				Code:  "store_unavailable",
			})
			return
		}
		writeData(w, http.StatusOK, healthResponse{Status: "ok", Store: "ok"})
	}
}

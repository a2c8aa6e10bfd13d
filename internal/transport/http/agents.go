package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/singhnitish007/Clawbid.org/internal/app"
	"github.com/singhnitish007/Clawbid.org/internal/domain"
)

// AgentDirectory is the minimal interface needed for public agent profiles.
type AgentDirectory interface {
	Profile(ctx context.Context, agentID string) (domain.AgentStats, error)
	Auctions(ctx context.Context, agentID string, f domain.AuctionFilter) (app.AuctionPage, error)
}

type agentResponse struct {
	ID             string `json:"id"`
	AuctionsListed int    `json:"auctionsListed"`
	TotalBids      int    `json:"totalBids"`
	TotalWins      int    `json:"totalWins"`
	LeadingCount   int    `json:"leadingCount"`
}

// HandleAgent serves GET /agents/{id} and GET /agents/{id}/auctions.
func HandleAgent(svc AgentDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, sub, ok := parseAgentPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		if sub == "" {
			stats, err := svc.Profile(r.Context(), id)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeData(w, http.StatusOK, agentResponse{
				ID:             stats.AgentID,
				AuctionsListed: stats.AuctionsListed,
				TotalBids:      stats.TotalBids,
				TotalWins:      stats.TotalWins,
				LeadingCount:   stats.Leading,
			})
			return
		}

		filter, err := parseAuctionFilter(r.URL.Query())
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidQuery, err.Error())
			return
		}
		page, err := svc.Auctions(r.Context(), id, filter)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		data := make([]auctionResponse, 0, len(page.Auctions))
		for _, a := range page.Auctions {
			data = append(data, toAuctionResponse(a))
		}
		writeJSON(w, http.StatusOK, envelope{
			Success:    true,
			Data:       data,
			Pagination: &pagination{Page: page.Page, Limit: page.Limit, Total: page.Total},
		})
	}
}

// parseAgentPath splits /agents/{id}[/auctions].
func parseAgentPath(path string) (id, sub string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] != "agents" || parts[1] == "" {
		return "", "", false
	}
	if len(parts) == 3 {
		if parts[2] != "auctions" {
			return "", "", false
		}
		sub = parts[2]
	}
	return parts[1], sub, true
}

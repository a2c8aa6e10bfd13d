package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/singhnitish007/Clawbid.org/internal/app"
)

// BidPlacer is the minimal interface needed to place a bid.
type BidPlacer interface {
	PlaceBid(ctx context.Context, in app.PlaceBidInput) (app.PlaceBidResult, error)
}

type placeBidRequest struct {
	AuctionID string              `json:"auctionId"`
	Amount    *decimal.Decimal    `json:"amount"`
	MaxBid    decimal.NullDecimal `json:"maxBid"`
}

// HandlePlaceBid serves POST /bids. Spectators are rejected with 401.
func HandlePlaceBid(svc BidPlacer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		agent, ok := requireAgent(w, r)
		if !ok {
			return
		}

		var req placeBidRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if strings.TrimSpace(req.AuctionID) == "" || req.Amount == nil {
			writeError(w, http.StatusBadRequest, codeMissingField, "auctionId and amount required")
			return
		}

		res, err := svc.PlaceBid(r.Context(), app.PlaceBidInput{
			AuctionID: req.AuctionID,
			BidderID:  agent.ID,
			Amount:    *req.Amount,
			MaxBid:    req.MaxBid,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeData(w, http.StatusCreated, placeBidResponse{
			Bid:      toBidResponse(res.Bid),
			NewPrice: res.Auction.CurrentPrice,
			BidCount: res.Auction.BidCount,
			Leading:  !res.Outbid(),
			Recorded: toBidResponses(res.Recorded),
		})
	}
}

// HandleAuctionBids serves GET /bids/auction/{id}.
func HandleAuctionBids(catalog AuctionCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 3 || parts[0] != "bids" || parts[1] != "auction" || parts[2] == "" {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		serveBidList(w, r, catalog, parts[2])
	}
}

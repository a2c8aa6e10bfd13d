package http

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/singhnitish007/Clawbid.org/internal/app"
	"github.com/singhnitish007/Clawbid.org/internal/domain"
)

// AuctionCatalog is the minimal interface needed for auction reads and
// listing creation.
type AuctionCatalog interface {
	Create(ctx context.Context, in app.CreateAuctionInput) (domain.Auction, error)
	List(ctx context.Context, f domain.AuctionFilter) (app.AuctionPage, error)
	Get(ctx context.Context, id string) (app.AuctionDetail, error)
	ListBids(ctx context.Context, auctionID string, limit int) ([]domain.Bid, error)
}

// AuctionSettler is the minimal interface needed for buy-now and
// cancellation.
type AuctionSettler interface {
	BuyNow(ctx context.Context, in app.BuyNowInput) (app.PlaceBidResult, error)
	Cancel(ctx context.Context, auctionID, agentID string) (domain.Auction, error)
}

// HandleAuctions serves GET (list) and POST (create) on /auctions.
func HandleAuctions(svc AuctionCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			filter, err := parseAuctionFilter(r.URL.Query())
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidQuery, err.Error())
				return
			}
			page, err := svc.List(r.Context(), filter)
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
		case http.MethodPost:
			agent, ok := requireAgent(w, r)
			if !ok {
				return
			}
			var req createAuctionRequest
			if err := decodeBody(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}
			if req.StartingPrice == nil {
				writeError(w, http.StatusBadRequest, codeMissingField, "title and startingPrice are required")
				return
			}
			a, err := svc.Create(r.Context(), req.input(agent.ID))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeData(w, http.StatusCreated, toAuctionResponse(a))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleAuction serves /auctions/{id}, /auctions/{id}/bids,
// /auctions/{id}/buy-now and /auctions/{id}/cancel.
func HandleAuction(catalog AuctionCatalog, settler AuctionSettler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, action, ok := parseAuctionPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch action {
		case "":
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			detail, err := catalog.Get(r.Context(), id)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeData(w, http.StatusOK, auctionDetailResponse{
				auctionResponse: toAuctionResponse(detail.Auction),
				Bids:            toBidResponses(detail.Bids),
			})
		case "bids":
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			serveBidList(w, r, catalog, id)
		case "buy-now":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			agent, ok := requireAgent(w, r)
			if !ok {
				return
			}
			res, err := settler.BuyNow(r.Context(), app.BuyNowInput{AuctionID: id, BuyerID: agent.ID})
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeData(w, http.StatusOK, struct {
				Auction auctionResponse `json:"auction"`
				Bid     bidResponse     `json:"bid"`
			}{toAuctionResponse(res.Auction), toBidResponse(res.Bid)})
		case "cancel":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			agent, ok := requireAgent(w, r)
			if !ok {
				return
			}
			a, err := settler.Cancel(r.Context(), id, agent.ID)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeData(w, http.StatusOK, toAuctionResponse(a))
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func serveBidList(w http.ResponseWriter, r *http.Request, catalog AuctionCatalog, auctionID string) {
	limit, err := intParam(r.URL.Query(), "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidQuery, err.Error())
		return
	}
	bids, err := catalog.ListBids(r.Context(), auctionID, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toBidResponses(bids))
}

type createAuctionRequest struct {
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	ListingType     string              `json:"listingType"`
	Category        string              `json:"category"`
	Tags            []string            `json:"tags"`
	StartingPrice   *decimal.Decimal    `json:"startingPrice"`
	MinBidIncrement decimal.NullDecimal `json:"minBidIncrement"`
	BuyNowPrice     decimal.NullDecimal `json:"buyNowPrice"`
	DurationDays    int                 `json:"durationDays"`
	DurationHours   int                 `json:"durationHours"`
}

func (req createAuctionRequest) input(sellerID string) app.CreateAuctionInput {
	var d time.Duration
	switch {
	case req.DurationHours != 0:
		d = time.Duration(req.DurationHours) * time.Hour
	case req.DurationDays != 0:
		d = time.Duration(req.DurationDays) * 24 * time.Hour
	}
	return app.CreateAuctionInput{
		SellerID:      sellerID,
		Title:         req.Title,
		Description:   req.Description,
		ListingType:   req.ListingType,
		Category:      req.Category,
		Tags:          req.Tags,
		StartingPrice: *req.StartingPrice,
		MinIncrement:  req.MinBidIncrement,
		BuyNowPrice:   req.BuyNowPrice,
		Duration:      d,
	}
}

func parseAuctionFilter(q url.Values) (domain.AuctionFilter, error) {
	f := domain.AuctionFilter{
		Status:      domain.AuctionStatus(q.Get("status")),
		ListingType: q.Get("type"),
		Category:    q.Get("category"),
		SellerID:    q.Get("seller"),
		Sort:        domain.AuctionSort(q.Get("sort")),
	}
	var err error
	if f.MinPrice, err = decimalParam(q, "min_price"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = decimalParam(q, "max_price"); err != nil {
		return f, err
	}
	if f.Page, err = intParam(q, "page"); err != nil {
		return f, err
	}
	if f.Limit, err = intParam(q, "limit"); err != nil {
		return f, err
	}
	return f, nil
}

func intParam(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &queryError{name: name}
	}
	return n, nil
}

func decimalParam(q url.Values, name string) (decimal.NullDecimal, error) {
	raw := q.Get(name)
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, &queryError{name: name}
	}
	return decimal.NewNullDecimal(d), nil
}

type queryError struct {
	name string
}

func (e *queryError) Error() string {
	return "invalid " + e.name + " parameter"
}

// parseAuctionPath splits /auctions/{id}[/{action}].
func parseAuctionPath(path string) (id, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] != "auctions" || parts[1] == "" {
		return "", "", false
	}
	if len(parts) == 3 {
		action = parts[2]
	}
	return parts[1], action, true
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/singhnitish007/Clawbid.org/internal/app"
	"github.com/singhnitish007/Clawbid.org/internal/domain"
)

func TestHandleAuctions_Create(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		agent          string
		body           string
		serviceErr     error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "success",
			agent:          "seller",
			body:           `{"title":"Vintage GPU","startingPrice":"10.00","durationHours":6}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "spectator",
			body:           `{"title":"Vintage GPU","startingPrice":"10.00"}`,
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "unauthorized",
		},
		{
			name:           "invalid json",
			agent:          "seller",
			body:           `{"title":`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   codeInvalidRequestBody,
		},
		{
			name:           "unknown field",
			agent:          "seller",
			body:           `{"title":"x","startingPrice":"1","reserve":"5"}`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   codeInvalidRequestBody,
		},
		{
			name:           "missing starting price",
			agent:          "seller",
			body:           `{"title":"Vintage GPU"}`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   codeMissingField,
		},
		{
			name:           "service validation",
			agent:          "seller",
			body:           `{"title":"","startingPrice":"10.00"}`,
			serviceErr:     domain.ErrTitleRequired,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "title_required",
		},
		{
			name:           "internal error",
			agent:          "seller",
			body:           `{"title":"Vintage GPU","startingPrice":"10.00"}`,
			serviceErr:     errors.New("db down"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   codeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &fakeCatalog{auction: sampleAuction(), err: tt.serviceErr}
			req := httptest.NewRequest(http.MethodPost, "/auctions", strings.NewReader(tt.body))
			if tt.agent != "" {
				req = asAgent(req, tt.agent)
			}
			rec := httptest.NewRecorder()

			HandleAuctions(svc).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			env := decodeEnvelope(t, rec)
			if env.Code != tt.expectedCode {
				t.Fatalf("expected code %q, got %q", tt.expectedCode, env.Code)
			}
		})
	}
}

func TestHandleAuctions_CreateMapsDuration(t *testing.T) {
	t.Parallel()

	svc := &fakeCatalog{auction: sampleAuction()}
	body := `{"title":"Vintage GPU","startingPrice":"10.00","minBidIncrement":"0.50","buyNowPrice":"99.00","durationDays":2,"tags":["gpu"]}`
	req := asAgent(httptest.NewRequest(http.MethodPost, "/auctions", strings.NewReader(body)), "seller")
	rec := httptest.NewRecorder()

	HandleAuctions(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "seller", svc.created.SellerID)
	assert.Equal(t, 48*time.Hour, svc.created.Duration)
	assert.True(t, svc.created.StartingPrice.Equal(dec("10")))
	assert.True(t, svc.created.MinIncrement.Valid)
	assert.True(t, svc.created.BuyNowPrice.Decimal.Equal(dec("99")))
	assert.Equal(t, []string{"gpu"}, svc.created.Tags)
}

func TestHandleAuctions_List(t *testing.T) {
	t.Parallel()

	svc := &fakeCatalog{page: app.AuctionPage{
		Auctions: []domain.Auction{sampleAuction()},
		Page:     2,
		Limit:    10,
		Total:    11,
	}}
	req := httptest.NewRequest(http.MethodGet, "/auctions?status=active&category=hardware&min_price=5&sort=price_desc&page=2&limit=10", nil)
	rec := httptest.NewRecorder()

	HandleAuctions(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, pagination{Page: 2, Limit: 10, Total: 11}, *env.Pagination)

	assert.Equal(t, domain.AuctionStatusActive, svc.filter.Status)
	assert.Equal(t, "hardware", svc.filter.Category)
	assert.Equal(t, domain.SortPriceDesc, svc.filter.Sort)
	assert.True(t, svc.filter.MinPrice.Valid)
	assert.False(t, svc.filter.MaxPrice.Valid)

	var items []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "25", items[0]["currentPrice"])
	assert.Equal(t, "bidder-1", items[0]["highestBidderId"])
	assert.NotContains(t, items[0], "leaderCeiling")
}

func TestHandleAuctions_ListInvalidQuery(t *testing.T) {
	t.Parallel()

	for _, query := range []string{"page=x", "limit=1.5", "min_price=cheap", "max_price=abc"} {
		req := httptest.NewRequest(http.MethodGet, "/auctions?"+query, nil)
		rec := httptest.NewRecorder()

		HandleAuctions(&fakeCatalog{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status 400, got %d", query, rec.Code)
		}
	}
}

func TestHandleAuctions_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodDelete, "/auctions", nil)
	rec := httptest.NewRecorder()

	HandleAuctions(&fakeCatalog{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
}

func TestHandleAuction_Detail(t *testing.T) {
	t.Parallel()

	catalog := &fakeCatalog{detail: app.AuctionDetail{Auction: sampleAuction(), Bids: []domain.Bid{sampleBid()}}}
	req := httptest.NewRequest(http.MethodGet, "/auctions/a-1", nil)
	rec := httptest.NewRecorder()

	HandleAuction(catalog, &fakeSettler{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"id":"a-1"`)
	assert.Contains(t, body, `"bids":[`)
	assert.NotContains(t, body, "90", "proxy ceiling leaked: %s", body)
}

func TestHandleAuction_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		method         string
		path           string
		agent          string
		err            error
		expectedStatus int
	}{
		{name: "not found", method: http.MethodGet, path: "/auctions/missing", err: domain.ErrAuctionNotFound, expectedStatus: http.StatusNotFound},
		{name: "bad path", method: http.MethodGet, path: "/auctions/a-1/bids/extra", expectedStatus: http.StatusNotFound},
		{name: "unknown action", method: http.MethodPost, path: "/auctions/a-1/relist", agent: "seller", expectedStatus: http.StatusNotFound},
		{name: "detail wrong method", method: http.MethodPost, path: "/auctions/a-1", expectedStatus: http.StatusMethodNotAllowed},
		{name: "buy-now spectator", method: http.MethodPost, path: "/auctions/a-1/buy-now", expectedStatus: http.StatusUnauthorized},
		{name: "buy-now wrong method", method: http.MethodGet, path: "/auctions/a-1/buy-now", expectedStatus: http.StatusMethodNotAllowed},
		{name: "buy-now unavailable", method: http.MethodPost, path: "/auctions/a-1/buy-now", agent: "buyer", err: domain.ErrBuyNowUnavailable, expectedStatus: http.StatusBadRequest},
		{name: "cancel by stranger", method: http.MethodPost, path: "/auctions/a-1/cancel", agent: "other", err: domain.ErrForbidden, expectedStatus: http.StatusForbidden},
		{name: "busy", method: http.MethodPost, path: "/auctions/a-1/cancel", agent: "seller", err: domain.ErrBusy, expectedStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.agent != "" {
				req = asAgent(req, tt.agent)
			}
			rec := httptest.NewRecorder()

			HandleAuction(&fakeCatalog{err: tt.err}, &fakeSettler{err: tt.err}).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if rec.Code == http.StatusServiceUnavailable && rec.Header().Get("Retry-After") == "" {
				t.Fatalf("expected Retry-After header")
			}
		})
	}
}

func TestHandleAuction_BuyNowAndCancel(t *testing.T) {
	t.Parallel()

	ended := sampleAuction()
	ended.Status = domain.AuctionStatusEnded
	ended.WinnerID = "buyer"
	bid := sampleBid()
	bid.BidderID = "buyer"
	bid.Kind = domain.BidKindBuyNow
	settler := &fakeSettler{
		result:  app.PlaceBidResult{Bid: bid, Auction: ended},
		auction: ended,
	}
	handler := HandleAuction(&fakeCatalog{}, settler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, asAgent(httptest.NewRequest(http.MethodPost, "/auctions/a-1/buy-now", nil), "buyer"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, app.BuyNowInput{AuctionID: "a-1", BuyerID: "buyer"}, settler.buyNow)
	assert.Contains(t, rec.Body.String(), `"winnerId":"buyer"`)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, asAgent(httptest.NewRequest(http.MethodPost, "/auctions/a-1/cancel", nil), "seller"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a-1", settler.canceled)
	assert.Equal(t, "seller", settler.by)
}

func TestHandleAuction_BidsPassesLimit(t *testing.T) {
	t.Parallel()

	catalog := &fakeCatalog{bids: []domain.Bid{sampleBid()}}
	rec := httptest.NewRecorder()

	HandleAuction(catalog, &fakeSettler{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auctions/a-1/bids?limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, catalog.bidLimit)
	assert.NotContains(t, rec.Body.String(), "maxBid")
}

func TestParseAuctionPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path   string
		id     string
		action string
		ok     bool
	}{
		{path: "/auctions/a-1", id: "a-1", ok: true},
		{path: "/auctions/a-1/", id: "a-1", ok: true},
		{path: "/auctions/a-1/bids", id: "a-1", action: "bids", ok: true},
		{path: "/auctions/", ok: false},
		{path: "/auctions/a-1/bids/x", ok: false},
		{path: "/bids/a-1", ok: false},
	}

	for _, tt := range tests {
		id, action, ok := parseAuctionPath(tt.path)
		if ok != tt.ok || id != tt.id || action != tt.action {
			t.Fatalf("%s: got (%q, %q, %v)", tt.path, id, action, ok)
		}
	}
}

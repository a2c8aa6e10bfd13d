package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/singhnitish007/Clawbid.org/internal/app"
	"github.com/singhnitish007/Clawbid.org/internal/domain"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnvelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Pagination *pagination     `json:"pagination"`
	Error      string          `json:"error"`
	Code       string          `json:"code"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env
}

func asAgent(r *http.Request, id string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), agentKey{}, domain.Agent{ID: id, Name: id}))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleAuction() domain.Auction {
	return domain.Auction{
		ID:            "a-1",
		SellerID:      "seller",
		Title:         "Vintage GPU",
		ListingType:   "physical",
		Category:      "hardware",
		StartingPrice: dec("10.00"),
		CurrentPrice:  dec("25.00"),
		MinIncrement:  dec("1.00"),
		Status:        domain.AuctionStatusActive,
		EndsAt:        testNow.Add(24 * time.Hour),
		BidCount:      3,
		LeaderID:      "bidder-1",
		LeaderBidID:   "b-3",
		LeaderCeiling: decimal.NewNullDecimal(dec("90.00")),
		LeaderHold:    dec("90.00"),
		CreatedAt:     testNow,
	}
}

func sampleBid() domain.Bid {
	return domain.Bid{
		ID:        "b-3",
		AuctionID: "a-1",
		BidderID:  "bidder-1",
		Amount:    dec("25.00"),
		MaxBid:    decimal.NewNullDecimal(dec("90.00")),
		Kind:      domain.BidKindManual,
		Accepted:  true,
		CreatedAt: testNow,
	}
}

type fakeCatalog struct {
	created  app.CreateAuctionInput
	filter   domain.AuctionFilter
	bidLimit int

	auction domain.Auction
	page    app.AuctionPage
	detail  app.AuctionDetail
	bids    []domain.Bid
	err     error
}

func (f *fakeCatalog) Create(_ context.Context, in app.CreateAuctionInput) (domain.Auction, error) {
	f.created = in
	return f.auction, f.err
}

func (f *fakeCatalog) List(_ context.Context, filter domain.AuctionFilter) (app.AuctionPage, error) {
	f.filter = filter
	return f.page, f.err
}

func (f *fakeCatalog) Get(_ context.Context, _ string) (app.AuctionDetail, error) {
	return f.detail, f.err
}

func (f *fakeCatalog) ListBids(_ context.Context, _ string, limit int) ([]domain.Bid, error) {
	f.bidLimit = limit
	return f.bids, f.err
}

type fakeSettler struct {
	buyNow   app.BuyNowInput
	canceled string
	by       string

	result  app.PlaceBidResult
	auction domain.Auction
	err     error
}

func (f *fakeSettler) BuyNow(_ context.Context, in app.BuyNowInput) (app.PlaceBidResult, error) {
	f.buyNow = in
	return f.result, f.err
}

func (f *fakeSettler) Cancel(_ context.Context, auctionID, agentID string) (domain.Auction, error) {
	f.canceled, f.by = auctionID, agentID
	return f.auction, f.err
}

type fakeBidPlacer struct {
	input  app.PlaceBidInput
	calls  int
	result app.PlaceBidResult
	err    error
}

func (f *fakeBidPlacer) PlaceBid(_ context.Context, in app.PlaceBidInput) (app.PlaceBidResult, error) {
	f.calls++
	f.input = in
	return f.result, f.err
}

type fakeWallets struct {
	agentID string
	limit   int
	credit  app.LedgerEntry

	wallet domain.Wallet
	txns   []domain.Transaction
	tx     domain.Transaction
	err    error
}

func (f *fakeWallets) Wallet(_ context.Context, agentID string) (domain.Wallet, error) {
	f.agentID = agentID
	return f.wallet, f.err
}

func (f *fakeWallets) Transactions(_ context.Context, agentID string, limit int) ([]domain.Transaction, error) {
	f.agentID, f.limit = agentID, limit
	return f.txns, f.err
}

func (f *fakeWallets) Credit(_ context.Context, in app.LedgerEntry) (domain.Transaction, error) {
	f.credit = in
	return f.tx, f.err
}

type fakeAdmin struct {
	adjust app.AdjustWalletInput
	action string
	frozen bool

	tx     domain.Transaction
	wallet domain.Wallet
	err    error
}

func (f *fakeAdmin) Bonus(_ context.Context, in app.AdjustWalletInput) (domain.Transaction, error) {
	f.action, f.adjust = "bonus", in
	return f.tx, f.err
}

func (f *fakeAdmin) Penalty(_ context.Context, in app.AdjustWalletInput) (domain.Transaction, error) {
	f.action, f.adjust = "penalty", in
	return f.tx, f.err
}

func (f *fakeAdmin) SetFrozen(_ context.Context, agentID string, frozen bool) (domain.Wallet, error) {
	f.action, f.frozen = "freeze", frozen
	f.adjust.AgentID = agentID
	return f.wallet, f.err
}

type fakeAgents struct {
	agentID string
	filter  domain.AuctionFilter

	stats domain.AgentStats
	page  app.AuctionPage
	err   error
}

func (f *fakeAgents) Profile(_ context.Context, agentID string) (domain.AgentStats, error) {
	f.agentID = agentID
	return f.stats, f.err
}

func (f *fakeAgents) Auctions(_ context.Context, agentID string, filter domain.AuctionFilter) (app.AuctionPage, error) {
	f.agentID, f.filter = agentID, filter
	return f.page, f.err
}

// staticResolver authenticates "Bearer <id>" as agent <id>.
type staticResolver struct{}

func (staticResolver) Resolve(authorization, _ string) domain.Agent {
	const prefix = "Bearer "
	if len(authorization) > len(prefix) && authorization[:len(prefix)] == prefix {
		id := authorization[len(prefix):]
		return domain.Agent{ID: id, Name: id}
	}
	return domain.Spectator()
}

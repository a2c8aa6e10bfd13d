package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/singhnitish007/Clawbid.org/internal/domain"
)

// Responses never carry proxy ceilings: LeaderCeiling and Bid.MaxBid stay
// private to the bidder.

type auctionResponse struct {
	ID              string              `json:"id"`
	SellerID        string              `json:"sellerId"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	ListingType     string              `json:"listingType"`
	Category        string              `json:"category"`
	Tags            []string            `json:"tags"`
	StartingPrice   decimal.Decimal     `json:"startingPrice"`
	CurrentPrice    decimal.Decimal     `json:"currentPrice"`
	MinBidIncrement decimal.Decimal     `json:"minBidIncrement"`
	BuyNowPrice     decimal.NullDecimal `json:"buyNowPrice"`
	Status          string              `json:"status"`
	EndsAt          time.Time           `json:"endsAt"`
	BidCount        int                 `json:"bidCount"`
	HighestBidderID *string             `json:"highestBidderId"`
	WinnerID        *string             `json:"winnerId"`
	CreatedAt       time.Time           `json:"createdAt"`
}

func toAuctionResponse(a domain.Auction) auctionResponse {
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	return auctionResponse{
		ID:              a.ID,
		SellerID:        a.SellerID,
		Title:           a.Title,
		Description:     a.Description,
		ListingType:     a.ListingType,
		Category:        a.Category,
		Tags:            tags,
		StartingPrice:   a.StartingPrice,
		CurrentPrice:    a.CurrentPrice,
		MinBidIncrement: a.MinIncrement,
		BuyNowPrice:     a.BuyNowPrice,
		Status:          string(a.Status),
		EndsAt:          a.EndsAt,
		BidCount:        a.BidCount,
		HighestBidderID: optional(a.LeaderID),
		WinnerID:        optional(a.WinnerID),
		CreatedAt:       a.CreatedAt,
	}
}

type auctionDetailResponse struct {
	auctionResponse
	Bids []bidResponse `json:"bids"`
}

type bidResponse struct {
	ID        string          `json:"id"`
	AuctionID string          `json:"auctionId"`
	BidderID  string          `json:"bidderId"`
	Amount    decimal.Decimal `json:"amount"`
	Kind      string          `json:"kind"`
	IsAutoBid bool            `json:"isAutoBid"`
	CreatedAt time.Time       `json:"createdAt"`
}

func toBidResponse(b domain.Bid) bidResponse {
	return bidResponse{
		ID:        b.ID,
		AuctionID: b.AuctionID,
		BidderID:  b.BidderID,
		Amount:    b.Amount,
		Kind:      string(b.Kind),
		IsAutoBid: b.Kind == domain.BidKindAuto,
		CreatedAt: b.CreatedAt,
	}
}

func toBidResponses(bids []domain.Bid) []bidResponse {
	out := make([]bidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, toBidResponse(b))
	}
	return out
}

type placeBidResponse struct {
	Bid      bidResponse     `json:"bid"`
	NewPrice decimal.Decimal `json:"newPrice"`
	BidCount int             `json:"bidCount"`
	Leading  bool            `json:"leading"`
	Recorded []bidResponse   `json:"recorded"`
}

type walletResponse struct {
	AgentID        string          `json:"agentId"`
	Balance        decimal.Decimal `json:"balance"`
	PendingBalance decimal.Decimal `json:"pendingBalance"`
	IsFrozen       bool            `json:"isFrozen"`
}

func toWalletResponse(w domain.Wallet) walletResponse {
	return walletResponse{
		AgentID:        w.AgentID,
		Balance:        w.Balance,
		PendingBalance: w.PendingBalance,
		IsFrozen:       w.Frozen,
	}
}

type transactionResponse struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
	Description   string          `json:"description"`
	ReferenceType string          `json:"referenceType"`
	ReferenceID   *string         `json:"referenceId"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func toTransactionResponse(t domain.Transaction) transactionResponse {
	return transactionResponse{
		ID:            t.ID,
		Type:          string(t.Type),
		Amount:        t.Amount,
		BalanceAfter:  t.BalanceAfter,
		Description:   t.Description,
		ReferenceType: t.ReferenceType,
		ReferenceID:   optional(t.ReferenceID),
		CreatedAt:     t.CreatedAt,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AuctionStatus string

const (
	AuctionStatusActive    AuctionStatus = "active"
	AuctionStatusEnding    AuctionStatus = "ending"
	AuctionStatusEnded     AuctionStatus = "ended"
	AuctionStatusCancelled AuctionStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s AuctionStatus) Terminal() bool {
	return s == AuctionStatusEnded || s == AuctionStatusCancelled
}

// Auction is a listing with its denormalized price and leader state.
// LeaderHold is the amount currently reserved in the leader's wallet.
type Auction struct {
	ID            string
	SellerID      string
	Title         string
	Description   string
	ListingType   string
	Category      string
	Tags          []string
	StartingPrice decimal.Decimal
	CurrentPrice  decimal.Decimal
	MinIncrement  decimal.Decimal
	BuyNowPrice   decimal.NullDecimal
	Status        AuctionStatus
	EndsAt        time.Time
	BidCount      int
	LeaderID      string
	LeaderBidID   string
	LeaderCeiling decimal.NullDecimal
	LeaderHold    decimal.Decimal
	WinnerID      string
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasLeader reports whether any bid has been accepted.
func (a Auction) HasLeader() bool {
	return a.LeaderID != ""
}

// Expired reports whether the end time has been reached at now.
func (a Auction) Expired(now time.Time) bool {
	return !now.Before(a.EndsAt)
}

// AuctionSort selects the ordering of auction listings.
type AuctionSort string

const (
	SortEndingSoon AuctionSort = "ending_soon"
	SortNewest     AuctionSort = "newest"
	SortPriceAsc   AuctionSort = "price_asc"
	SortPriceDesc  AuctionSort = "price_desc"
	SortMostBids   AuctionSort = "most_bids"
)

// Valid reports whether s is a known sort key.
func (s AuctionSort) Valid() bool {
	switch s {
	case SortEndingSoon, SortNewest, SortPriceAsc, SortPriceDesc, SortMostBids:
		return true
	}
	return false
}

// AuctionFilter narrows auction listings. Zero values mean "any".
type AuctionFilter struct {
	Status      AuctionStatus
	ListingType string
	Category    string
	SellerID    string
	MinPrice    decimal.NullDecimal
	MaxPrice    decimal.NullDecimal
	Sort        AuctionSort
	Page        int
	Limit       int
}

// Offset returns the row offset for the filter's page.
func (f AuctionFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type BidKind string

const (
	BidKindManual BidKind = "manual"
	BidKindAuto   BidKind = "auto"
	BidKindBuyNow BidKind = "buy_now"
)

// Bid is an accepted bid. Rejected bids are never stored.
type Bid struct {
	ID        string
	AuctionID string
	BidderID  string
	Amount    decimal.Decimal
	MaxBid    decimal.NullDecimal
	Kind      BidKind
	Accepted  bool
	CreatedAt time.Time
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event names published on auction topics.
const (
	EventNewBid           = "new-bid"
	EventAuctionEnded     = "auction_ended"
	EventAuctionCancelled = "auction_cancelled"
)

// AuctionTopic returns the notifier topic for an auction.
func AuctionTopic(auctionID string) string {
	return "auction:" + auctionID
}

// NewBidEvent announces one accepted bid. BidCount is the auction's bid count
// once this bid is recorded; it increases strictly per auction, so
// subscribers can restore acceptance order when deliveries interleave.
type NewBidEvent struct {
	AuctionID string          `json:"auctionId"`
	BidID     string          `json:"bidId"`
	BidderID  string          `json:"bidderId"`
	Amount    decimal.Decimal `json:"amount"`
	IsAutoBid bool            `json:"isAutoBid"`
	BidCount  int             `json:"bidCount"`
	Timestamp time.Time       `json:"timestamp"`
}

type AuctionEndedEvent struct {
	AuctionID  string          `json:"auctionId"`
	WinnerID   *string         `json:"winnerId"`
	FinalPrice decimal.Decimal `json:"finalPrice"`
}

type AuctionCancelledEvent struct {
	AuctionID string    `json:"auctionId"`
	Timestamp time.Time `json:"timestamp"`
}

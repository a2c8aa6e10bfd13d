package app

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/singhnitish007/Clawbid.org/internal/domain"
)

// BidCandidate is a bid that has not been accepted yet.
type BidCandidate struct {
	BidderID string
	Amount   decimal.Decimal
	MaxBid   decimal.NullDecimal
}

// Ceiling is the most the bidder is willing to pay.
func (c BidCandidate) Ceiling() decimal.Decimal {
	if c.MaxBid.Valid && c.MaxBid.Decimal.GreaterThan(c.Amount) {
		return c.MaxBid.Decimal
	}
	return c.Amount
}

// BidValidator checks a candidate bid against an auction and wallet snapshot.
// It has no side effects.
type BidValidator struct {
	AllowSelfBid bool
}

func (v BidValidator) Validate(a domain.Auction, c BidCandidate, w domain.Wallet, now time.Time) error {
	if a.Status != domain.AuctionStatusActive || a.Expired(now) {
		return domain.ErrAuctionNotActive
	}
	if !v.AllowSelfBid && c.BidderID == a.SellerID {
		return domain.ErrSelfBid
	}
	if !domain.ValidAmount(c.Amount) {
		return domain.ErrInvalidAmount
	}
	if c.MaxBid.Valid && (!domain.ValidAmount(c.MaxBid.Decimal) || c.MaxBid.Decimal.LessThan(c.Amount)) {
		return domain.ErrInvalidCeiling
	}
	if !c.Amount.GreaterThan(a.CurrentPrice) {
		return domain.ErrBidTooLow
	}
	if a.MinIncrement.IsPositive() && c.Amount.LessThan(a.CurrentPrice.Add(a.MinIncrement)) {
		return domain.ErrBidTooLow
	}
	if w.Frozen {
		return domain.ErrWalletFrozen
	}
	if c.Ceiling().GreaterThan(available(a, w)) {
		return domain.ErrInsufficientBalance
	}
	return nil
}

// available is the spendable balance plus what the bidder already holds on
// this auction as its leader.
func available(a domain.Auction, w domain.Wallet) decimal.Decimal {
	if a.LeaderID != "" && a.LeaderID == w.AgentID {
		return w.Balance.Add(a.LeaderHold)
	}
	return w.Balance
}

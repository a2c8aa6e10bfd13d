package app

import (
	"github.com/shopspring/decimal"

	"github.com/singhnitish007/Clawbid.org/internal/domain"
)

type plannedBid struct {
	BidderID string
	Amount   decimal.Decimal
	MaxBid   decimal.NullDecimal
	Kind     domain.BidKind
}

// arbitration is the outcome of resolving a new bid against the standing
// leader's ceiling. Bids are in acceptance order and strictly increasing;
// Bids[0] is always the incoming bid.
type arbitration struct {
	Bids          []plannedBid
	Leader        int
	LeaderCeiling decimal.NullDecimal
}

func (r arbitration) leaderID() string {
	return r.Bids[r.Leader].BidderID
}

func (r arbitration) price() decimal.Decimal {
	return r.Bids[len(r.Bids)-1].Amount
}

// hold is what the leader must have reserved: the price or its ceiling,
// whichever is higher.
func (r arbitration) hold() decimal.Decimal {
	p := r.price()
	if r.LeaderCeiling.Valid && r.LeaderCeiling.Decimal.GreaterThan(p) {
		return r.LeaderCeiling.Decimal
	}
	return p
}

// arbitrate resolves an already validated bid. At most two automatic bids
// are generated. Equal ceilings go to the standing leader.
func arbitrate(a domain.Auction, c BidCandidate) arbitration {
	incoming := plannedBid{
		BidderID: c.BidderID,
		Amount:   c.Amount,
		MaxBid:   c.MaxBid,
		Kind:     domain.BidKindManual,
	}
	out := arbitration{
		Bids:          []plannedBid{incoming},
		Leader:        0,
		LeaderCeiling: c.MaxBid,
	}

	if !a.HasLeader() || a.LeaderID == c.BidderID || !a.LeaderCeiling.Valid {
		return out
	}

	step := a.MinIncrement
	if step.LessThan(domain.MinStep) {
		step = domain.MinStep
	}
	// A ceiling equal to amount+step still answers: that counter-bid is valid.
	leaderCeiling := a.LeaderCeiling.Decimal
	if leaderCeiling.LessThan(c.Amount.Add(step)) {
		return out
	}

	bidderCeiling := c.Ceiling()
	if bidderCeiling.GreaterThanOrEqual(leaderCeiling.Add(step)) {
		out.Bids = append(out.Bids,
			plannedBid{
				BidderID: a.LeaderID,
				Amount:   leaderCeiling,
				MaxBid:   a.LeaderCeiling,
				Kind:     domain.BidKindAuto,
			},
			plannedBid{
				BidderID: c.BidderID,
				Amount:   decimal.Min(bidderCeiling, leaderCeiling.Add(step)),
				MaxBid:   c.MaxBid,
				Kind:     domain.BidKindAuto,
			},
		)
		out.Leader = 2
		return out
	}

	out.Bids = append(out.Bids, plannedBid{
		BidderID: a.LeaderID,
		Amount:   decimal.Min(leaderCeiling, bidderCeiling.Add(step)),
		MaxBid:   a.LeaderCeiling,
		Kind:     domain.BidKindAuto,
	})
	out.Leader = 1
	out.LeaderCeiling = a.LeaderCeiling
	return out
}

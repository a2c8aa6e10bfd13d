package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds an agent's CLAW balance. PendingBalance is reserved by
// leading bids and is not spendable.
type Wallet struct {
	AgentID        string
	Balance        decimal.Decimal
	PendingBalance decimal.Decimal
	Frozen         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// Reference types recorded on ledger entries.
const (
	RefBidHold    = "bid_hold"
	RefBidRelease = "bid_release"
	RefAuctionWon = "auction_won"
	RefSale       = "auction_sale"
	RefDemo       = "demo"
	RefBonus      = "bonus"
	RefPenalty    = "penalty"
)

// Transaction is an immutable ledger entry.
type Transaction struct {
	ID            string
	AgentID       string
	Type          TransactionType
	Amount        decimal.Decimal
	BalanceAfter  decimal.Decimal
	Description   string
	ReferenceType string
	ReferenceID   string
	CreatedAt     time.Time
}

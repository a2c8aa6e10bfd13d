package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/singhnitish007/Clawbid.org/internal/domain"
)

type AdminRepository interface {
	SetFrozen(ctx context.Context, agentID string, frozen bool) error
}

// AdminLedger is the part of the ledger operators can drive directly.
type AdminLedger interface {
	LockWallets(ctx context.Context, agentIDs ...string) (context.Context, func(), error)
	Credit(ctx context.Context, in LedgerEntry) (domain.Transaction, error)
	Debit(ctx context.Context, in LedgerEntry) (domain.Transaction, error)
	Wallet(ctx context.Context, agentID string) (domain.Wallet, error)
}

// AdminService holds operator actions on wallets: bonuses, penalties and
// freezing.
type AdminService struct {
	repo   AdminRepository
	ledger AdminLedger
}

func NewAdminService(repo AdminRepository, ledger AdminLedger) *AdminService {
	return &AdminService{
		repo:   repo,
		ledger: ledger,
	}
}

type AdjustWalletInput struct {
	AgentID     string
	Amount      decimal.Decimal
	Description string
}

// Bonus credits a wallet outside of any auction.
func (s *AdminService) Bonus(ctx context.Context, in AdjustWalletInput) (domain.Transaction, error) {
	desc := in.Description
	if desc == "" {
		desc = "Bonus"
	}
	return s.ledger.Credit(ctx, LedgerEntry{
		AgentID:       in.AgentID,
		Amount:        in.Amount,
		Description:   desc,
		ReferenceType: domain.RefBonus,
	})
}

// Penalty debits a wallet. It fails like any debit when funds are short.
func (s *AdminService) Penalty(ctx context.Context, in AdjustWalletInput) (domain.Transaction, error) {
	desc := in.Description
	if desc == "" {
		desc = "Penalty"
	}
	return s.ledger.Debit(ctx, LedgerEntry{
		AgentID:       in.AgentID,
		Amount:        in.Amount,
		Description:   desc,
		ReferenceType: domain.RefPenalty,
	})
}

// SetFrozen freezes or unfreezes an existing wallet.
func (s *AdminService) SetFrozen(ctx context.Context, agentID string, frozen bool) (domain.Wallet, error) {
	if agentID == "" {
		return domain.Wallet{}, domain.ErrInvalidID
	}
	lockCtx, unlock, err := s.ledger.LockWallets(ctx, agentID)
	if err != nil {
		return domain.Wallet{}, err
	}
	defer unlock()

	if err := s.repo.SetFrozen(lockCtx, agentID, frozen); err != nil {
		return domain.Wallet{}, err
	}
	return s.ledger.Wallet(lockCtx, agentID)
}

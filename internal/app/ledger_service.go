package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/singhnitish007/Clawbid.org/internal/clock"
	"github.com/singhnitish007/Clawbid.org/internal/domain"
	"github.com/singhnitish007/Clawbid.org/internal/lock"
)

type LedgerRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetWallet(ctx context.Context, agentID string) (domain.Wallet, error)
	GetWalletForUpdate(ctx context.Context, agentID string) (domain.Wallet, error)
	CreateWallet(ctx context.Context, w domain.Wallet) error
	UpdateWallet(ctx context.Context, w domain.Wallet) error
	InsertTransaction(ctx context.Context, t domain.Transaction) error
	ListTransactions(ctx context.Context, agentID string, limit int) ([]domain.Transaction, error)
}

const (
	defaultTransactionLimit = 50
	maxTransactionLimit     = 200
	defaultWalletLockWait   = 2 * time.Second
)

// LedgerService owns wallet balances. Every mutation of a wallet goes through
// it and is serialized per wallet.
type LedgerService struct {
	repo     LedgerRepository
	clock    clock.Clock
	locks    *lock.Keyed
	lockWait time.Duration
	logger   zerolog.Logger
}

type LedgerServiceOption func(*LedgerService)

// WithWalletLockWait bounds how long a wallet operation waits for the wallet.
func WithWalletLockWait(d time.Duration) LedgerServiceOption {
	return func(s *LedgerService) {
		if d > 0 {
			s.lockWait = d
		}
	}
}

func WithLedgerLogger(l zerolog.Logger) LedgerServiceOption {
	return func(s *LedgerService) {
		s.logger = l
	}
}

func NewLedgerService(repo LedgerRepository, clk clock.Clock, opts ...LedgerServiceOption) *LedgerService {
	svc := &LedgerService{
		repo:     repo,
		clock:    clk,
		locks:    lock.New(),
		lockWait: defaultWalletLockWait,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// LedgerEntry describes one balance movement.
type LedgerEntry struct {
	AgentID       string
	Amount        decimal.Decimal
	Description   string
	ReferenceType string
	ReferenceID   string
}

func (e LedgerEntry) validate() error {
	if e.AgentID == "" {
		return domain.ErrInvalidID
	}
	if !domain.ValidAmount(e.Amount) {
		return domain.ErrInvalidAmount
	}
	return nil
}

// LockWallets takes the wallet locks for agentIDs in sorted order. Locks
// already held through ctx are skipped, so ledger calls made with the
// returned context do not block on them again.
func (s *LedgerService) LockWallets(ctx context.Context, agentIDs ...string) (context.Context, func(), error) {
	keys := make([]string, 0, len(agentIDs))
	for _, id := range agentIDs {
		if id != "" {
			keys = append(keys, "wallet:"+id)
		}
	}
	lockCtx, unlock, err := s.locks.Acquire(ctx, s.lockWait, keys...)
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			return ctx, nil, domain.ErrBusy
		}
		return ctx, nil, err
	}
	return lockCtx, unlock, nil
}

// Credit adds amount to the wallet, creating it when absent.
func (s *LedgerService) Credit(ctx context.Context, in LedgerEntry) (domain.Transaction, error) {
	if err := in.validate(); err != nil {
		return domain.Transaction{}, err
	}
	var out domain.Transaction
	err := s.mutate(ctx, in.AgentID, func(txCtx context.Context, w *domain.Wallet) error {
		w.Balance = w.Balance.Add(in.Amount)
		t, err := s.record(txCtx, w, domain.TransactionCredit, in)
		out = t
		return err
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return out, nil
}

// Debit removes amount from the spendable balance.
func (s *LedgerService) Debit(ctx context.Context, in LedgerEntry) (domain.Transaction, error) {
	if err := in.validate(); err != nil {
		return domain.Transaction{}, err
	}
	var out domain.Transaction
	err := s.mutate(ctx, in.AgentID, func(txCtx context.Context, w *domain.Wallet) error {
		if w.Frozen {
			return domain.ErrWalletFrozen
		}
		if in.Amount.GreaterThan(w.Balance) {
			return domain.ErrInsufficientFunds
		}
		w.Balance = w.Balance.Sub(in.Amount)
		t, err := s.record(txCtx, w, domain.TransactionDebit, in)
		out = t
		return err
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return out, nil
}

// Reserve moves amount from balance to pending balance.
func (s *LedgerService) Reserve(ctx context.Context, in LedgerEntry) error {
	if err := in.validate(); err != nil {
		return err
	}
	if in.ReferenceType == "" {
		in.ReferenceType = domain.RefBidHold
	}
	return s.mutate(ctx, in.AgentID, func(txCtx context.Context, w *domain.Wallet) error {
		if w.Frozen {
			return domain.ErrWalletFrozen
		}
		if in.Amount.GreaterThan(w.Balance) {
			return domain.ErrInsufficientFunds
		}
		w.Balance = w.Balance.Sub(in.Amount)
		w.PendingBalance = w.PendingBalance.Add(in.Amount)
		_, err := s.record(txCtx, w, domain.TransactionDebit, in)
		return err
	})
}

// Release returns a reservation to the spendable balance. Frozen wallets
// still get their funds back.
func (s *LedgerService) Release(ctx context.Context, in LedgerEntry) error {
	if err := in.validate(); err != nil {
		return err
	}
	if in.ReferenceType == "" {
		in.ReferenceType = domain.RefBidRelease
	}
	return s.mutate(ctx, in.AgentID, func(txCtx context.Context, w *domain.Wallet) error {
		if in.Amount.GreaterThan(w.PendingBalance) {
			return fmt.Errorf("release %s from %s: pending balance is %s", in.Amount, in.AgentID, w.PendingBalance)
		}
		w.PendingBalance = w.PendingBalance.Sub(in.Amount)
		w.Balance = w.Balance.Add(in.Amount)
		_, err := s.record(txCtx, w, domain.TransactionCredit, in)
		return err
	})
}

// Capture settles a reservation: hold is released and price is debited.
// price must not exceed hold. The frozen flag is ignored because the funds
// were already set aside.
func (s *LedgerService) Capture(ctx context.Context, hold decimal.Decimal, in LedgerEntry) (domain.Transaction, error) {
	if err := in.validate(); err != nil {
		return domain.Transaction{}, err
	}
	if in.Amount.GreaterThan(hold) {
		return domain.Transaction{}, fmt.Errorf("capture %s exceeds hold %s", in.Amount, hold)
	}
	var out domain.Transaction
	err := s.mutate(ctx, in.AgentID, func(txCtx context.Context, w *domain.Wallet) error {
		if hold.GreaterThan(w.PendingBalance) {
			return fmt.Errorf("capture from %s: hold %s exceeds pending balance %s", in.AgentID, hold, w.PendingBalance)
		}
		w.PendingBalance = w.PendingBalance.Sub(hold)
		w.Balance = w.Balance.Add(hold)
		if _, err := s.record(txCtx, w, domain.TransactionCredit, LedgerEntry{
			AgentID:       in.AgentID,
			Amount:        hold,
			Description:   "Bid hold released",
			ReferenceType: domain.RefBidRelease,
			ReferenceID:   in.ReferenceID,
		}); err != nil {
			return err
		}
		w.Balance = w.Balance.Sub(in.Amount)
		t, err := s.record(txCtx, w, domain.TransactionDebit, in)
		out = t
		return err
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return out, nil
}

// Wallet returns the agent's wallet, or a zero wallet when none exists yet.
func (s *LedgerService) Wallet(ctx context.Context, agentID string) (domain.Wallet, error) {
	if agentID == "" {
		return domain.Wallet{}, domain.ErrInvalidID
	}
	w, err := s.repo.GetWallet(ctx, agentID)
	if errors.Is(err, domain.ErrWalletNotFound) {
		return domain.Wallet{AgentID: agentID}, nil
	}
	return w, err
}

// WalletForUpdate is Wallet with a row lock, for use inside a transaction.
func (s *LedgerService) WalletForUpdate(ctx context.Context, agentID string) (domain.Wallet, error) {
	if agentID == "" {
		return domain.Wallet{}, domain.ErrInvalidID
	}
	w, err := s.repo.GetWalletForUpdate(ctx, agentID)
	if errors.Is(err, domain.ErrWalletNotFound) {
		return domain.Wallet{AgentID: agentID}, nil
	}
	return w, err
}

// Transactions lists the agent's ledger entries, newest first.
func (s *LedgerService) Transactions(ctx context.Context, agentID string, limit int) ([]domain.Transaction, error) {
	if agentID == "" {
		return nil, domain.ErrInvalidID
	}
	switch {
	case limit < 0:
		return nil, domain.ErrInvalidLimit
	case limit == 0:
		limit = defaultTransactionLimit
	case limit > maxTransactionLimit:
		limit = maxTransactionLimit
	}
	return s.repo.ListTransactions(ctx, agentID, limit)
}

// mutate runs fn against a locked wallet row inside a transaction and
// persists the result. The wallet is created when missing.
func (s *LedgerService) mutate(ctx context.Context, agentID string, fn func(ctx context.Context, w *domain.Wallet) error) error {
	lockCtx, unlock, err := s.LockWallets(ctx, agentID)
	if err != nil {
		return err
	}
	defer unlock()

	return s.repo.WithTx(lockCtx, func(txCtx context.Context) error {
		now := s.clock.Now()
		w, err := s.repo.GetWalletForUpdate(txCtx, agentID)
		if errors.Is(err, domain.ErrWalletNotFound) {
			w = domain.Wallet{AgentID: agentID, CreatedAt: now, UpdatedAt: now}
			if err := s.repo.CreateWallet(txCtx, w); err != nil {
				return err
			}
			w, err = s.repo.GetWalletForUpdate(txCtx, agentID)
		}
		if err != nil {
			return err
		}

		if err := fn(txCtx, &w); err != nil {
			return err
		}
		if w.Balance.IsNegative() || w.PendingBalance.IsNegative() {
			return fmt.Errorf("wallet %s would go negative", agentID)
		}
		w.UpdatedAt = now
		return s.repo.UpdateWallet(txCtx, w)
	})
}

func (s *LedgerService) record(ctx context.Context, w *domain.Wallet, typ domain.TransactionType, in LedgerEntry) (domain.Transaction, error) {
	t := domain.Transaction{
		ID:            newUUID(),
		AgentID:       w.AgentID,
		Type:          typ,
		Amount:        in.Amount,
		BalanceAfter:  w.Balance,
		Description:   in.Description,
		ReferenceType: in.ReferenceType,
		ReferenceID:   in.ReferenceID,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.repo.InsertTransaction(ctx, t); err != nil {
		return domain.Transaction{}, err
	}
	s.logger.Debug().
		Str("agent_id", t.AgentID).
		Str("type", string(t.Type)).
		Str("amount", t.Amount.String()).
		Str("balance_after", t.BalanceAfter.String()).
		Str("reference_type", t.ReferenceType).
		Msg("ledger entry recorded")
	return t, nil
}

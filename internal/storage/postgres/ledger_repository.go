package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/singhnitish007/Clawbid.org/internal/domain"
)

// LedgerRepository stores wallets and their append-only transaction log.
type LedgerRepository struct {
	pool *pgxpool.Pool
	opts options
}

func NewLedgerRepository(pool *pgxpool.Pool, opts ...Option) *LedgerRepository {
	return &LedgerRepository{pool: pool, opts: buildOptions(opts)}
}

func (r *LedgerRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, r.opts.lockTimeout, fn)
}

const walletColumns = `agent_id, balance, pending_balance, frozen, created_at, updated_at`

func (r *LedgerRepository) GetWallet(ctx context.Context, agentID string) (domain.Wallet, error) {
	return r.getWallet(ctx, agentID, "")
}

func (r *LedgerRepository) GetWalletForUpdate(ctx context.Context, agentID string) (domain.Wallet, error) {
	return r.getWallet(ctx, agentID, " FOR UPDATE")
}

func (r *LedgerRepository) getWallet(ctx context.Context, agentID, suffix string) (domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE agent_id = $1` + suffix
	var w domain.Wallet
	err := conn(ctx, r.pool).QueryRow(ctx, query, agentID).Scan(
		&w.AgentID, &w.Balance, &w.PendingBalance, &w.Frozen, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Wallet{}, domain.ErrWalletNotFound
		}
		return domain.Wallet{}, classify(fmt.Errorf("get wallet: %w", err))
	}
	return w, nil
}

// CreateWallet inserts w unless a wallet for the agent already exists.
func (r *LedgerRepository) CreateWallet(ctx context.Context, w domain.Wallet) error {
	if w.AgentID == "" {
		return domain.ErrInvalidID
	}
	const stmt = `
INSERT INTO wallets (agent_id, balance, pending_balance, frozen, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (agent_id) DO NOTHING`
	_, err := conn(ctx, r.pool).Exec(ctx, stmt,
		w.AgentID, w.Balance, w.PendingBalance, w.Frozen, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return classify(fmt.Errorf("create wallet: %w", err))
	}
	return nil
}

func (r *LedgerRepository) UpdateWallet(ctx context.Context, w domain.Wallet) error {
	const stmt = `
UPDATE wallets
SET balance = $2, pending_balance = $3, frozen = $4, updated_at = $5
WHERE agent_id = $1`
	tag, err := conn(ctx, r.pool).Exec(ctx, stmt, w.AgentID, w.Balance, w.PendingBalance, w.Frozen, w.UpdatedAt)
	if err != nil {
		return classify(fmt.Errorf("update wallet: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWalletNotFound
	}
	return nil
}

// SetFrozen flips the frozen flag on an existing wallet.
func (r *LedgerRepository) SetFrozen(ctx context.Context, agentID string, frozen bool) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE wallets SET frozen = $2, updated_at = NOW() WHERE agent_id = $1`,
		agentID, frozen,
	)
	if err != nil {
		return classify(fmt.Errorf("set frozen: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWalletNotFound
	}
	return nil
}

func (r *LedgerRepository) InsertTransaction(ctx context.Context, t domain.Transaction) error {
	const stmt = `
INSERT INTO wallet_transactions (
	id, agent_id, type, amount, balance_after, description, reference_type, reference_id, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)`
	_, err := conn(ctx, r.pool).Exec(ctx, stmt,
		t.ID, t.AgentID, t.Type, t.Amount, t.BalanceAfter, t.Description, t.ReferenceType, t.ReferenceID, t.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrWalletNotFound
		}
		return classify(fmt.Errorf("insert transaction: %w", err))
	}
	return nil
}

// ListTransactions returns entries newest first.
func (r *LedgerRepository) ListTransactions(ctx context.Context, agentID string, limit int) ([]domain.Transaction, error) {
	const query = `
SELECT id, agent_id, type, amount, balance_after, description, reference_type,
	COALESCE(reference_id, ''), created_at
FROM wallet_transactions
WHERE agent_id = $1
ORDER BY seq DESC
LIMIT $2`
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := conn(ctx, r.pool).Query(ctx, query, agentID, lim)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txns := make([]domain.Transaction, 0)
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(
			&t.ID, &t.AgentID, &t.Type, &t.Amount, &t.BalanceAfter, &t.Description, &t.ReferenceType,
			&t.ReferenceID, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate transactions: %w", rows.Err())
	}
	return txns, nil
}

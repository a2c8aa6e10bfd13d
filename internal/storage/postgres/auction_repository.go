package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/singhnitish007/Clawbid.org/internal/domain"
)

type Option func(*options)

type options struct {
	lockTimeout time.Duration
}

// WithLockTimeout bounds how long a transaction waits on row locks before
// failing with domain.ErrBusy.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.lockTimeout = d
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{lockTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type AuctionRepository struct {
	pool *pgxpool.Pool
	opts options
}

func NewAuctionRepository(pool *pgxpool.Pool, opts ...Option) *AuctionRepository {
	return &AuctionRepository{pool: pool, opts: buildOptions(opts)}
}

func (r *AuctionRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, r.opts.lockTimeout, fn)
}

const auctionColumns = `
id, seller_id, title, description, listing_type, category, tags,
starting_price, current_price, min_increment, buy_now_price, status, ends_at,
bid_count, COALESCE(leader_id, ''), COALESCE(leader_bid_id::text, ''), leader_ceiling,
leader_hold, COALESCE(winner_id, ''), version, created_at, updated_at`

func scanAuction(row pgx.Row) (domain.Auction, error) {
	var a domain.Auction
	err := row.Scan(
		&a.ID, &a.SellerID, &a.Title, &a.Description, &a.ListingType, &a.Category, &a.Tags,
		&a.StartingPrice, &a.CurrentPrice, &a.MinIncrement, &a.BuyNowPrice, &a.Status, &a.EndsAt,
		&a.BidCount, &a.LeaderID, &a.LeaderBidID, &a.LeaderCeiling,
		&a.LeaderHold, &a.WinnerID, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func (r *AuctionRepository) CreateAuction(ctx context.Context, a domain.Auction) error {
	const stmt = `
INSERT INTO auctions (
	id, seller_id, title, description, listing_type, category, tags,
	starting_price, current_price, min_increment, buy_now_price, status, ends_at,
	bid_count, version, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := conn(ctx, r.pool).Exec(ctx, stmt,
		a.ID, a.SellerID, a.Title, a.Description, a.ListingType, a.Category, tags,
		a.StartingPrice, a.CurrentPrice, a.MinIncrement, a.BuyNowPrice, a.Status, a.EndsAt,
		a.BidCount, a.Version, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isUniqueViolation(err) {
			return domain.ErrInvalidAuction
		}
		return fmt.Errorf("create auction: %w", err)
	}
	return nil
}

func (r *AuctionRepository) GetAuction(ctx context.Context, id string) (domain.Auction, error) {
	return r.getAuction(ctx, id, "")
}

func (r *AuctionRepository) GetAuctionForUpdate(ctx context.Context, id string) (domain.Auction, error) {
	return r.getAuction(ctx, id, " FOR UPDATE")
}

func (r *AuctionRepository) getAuction(ctx context.Context, id, suffix string) (domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1` + suffix
	a, err := scanAuction(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		// a malformed id cannot name an auction
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return domain.Auction{}, domain.ErrAuctionNotFound
		}
		return domain.Auction{}, classify(fmt.Errorf("get auction: %w", err))
	}
	return a, nil
}

func (r *AuctionRepository) UpdateAuction(ctx context.Context, a domain.Auction, expectedVersion int64) error {
	const stmt = `
UPDATE auctions SET
	title = $3,
	description = $4,
	current_price = $5,
	status = $6,
	ends_at = $7,
	bid_count = $8,
	leader_id = NULLIF($9, ''),
	leader_bid_id = NULLIF($10, '')::uuid,
	leader_ceiling = $11,
	leader_hold = $12,
	winner_id = NULLIF($13, ''),
	updated_at = $14,
	version = version + 1
WHERE id = $1 AND version = $2`
	tag, err := conn(ctx, r.pool).Exec(ctx, stmt,
		a.ID, expectedVersion,
		a.Title, a.Description, a.CurrentPrice, a.Status, a.EndsAt, a.BidCount,
		a.LeaderID, a.LeaderBidID, a.LeaderCeiling, a.LeaderHold, a.WinnerID, a.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrAuctionNotFound
		}
		return classify(fmt.Errorf("update auction: %w", err))
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM auctions WHERE id = $1)`, a.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check auction: %w", err)
	}
	if !exists {
		return domain.ErrAuctionNotFound
	}
	return domain.ErrConcurrentUpdate
}

var auctionOrder = map[domain.AuctionSort]string{
	domain.SortEndingSoon: "ends_at ASC, id ASC",
	domain.SortNewest:     "created_at DESC, id ASC",
	domain.SortPriceAsc:   "current_price ASC, id ASC",
	domain.SortPriceDesc:  "current_price DESC, id ASC",
	domain.SortMostBids:   "bid_count DESC, id ASC",
}

func (r *AuctionRepository) ListAuctions(ctx context.Context, f domain.AuctionFilter) ([]domain.Auction, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.ListingType != "" {
		add("listing_type = $%d", f.ListingType)
	}
	if f.Category != "" {
		add("LOWER(category) = LOWER($%d)", f.Category)
	}
	if f.SellerID != "" {
		add("seller_id = $%d", f.SellerID)
	}
	if f.MinPrice.Valid {
		add("current_price >= $%d", f.MinPrice.Decimal)
	}
	if f.MaxPrice.Valid {
		add("current_price <= $%d", f.MaxPrice.Decimal)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM auctions`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count auctions: %w", err)
	}

	order, ok := auctionOrder[f.Sort]
	if !ok {
		order = auctionOrder[domain.SortEndingSoon]
	}
	var limit any
	if f.Limit > 0 {
		limit = f.Limit
	}
	args = append(args, limit, f.Offset())
	query := fmt.Sprintf(`SELECT %s FROM auctions%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		auctionColumns, clause, order, len(args)-1, len(args))

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list auctions: %w", err)
	}
	defer rows.Close()

	auctions := make([]domain.Auction, 0)
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan auction: %w", err)
		}
		auctions = append(auctions, a)
	}
	if rows.Err() != nil {
		return nil, 0, fmt.Errorf("iterate auctions: %w", rows.Err())
	}
	return auctions, total, nil
}

func (r *AuctionRepository) ListExpiredAuctions(ctx context.Context, now time.Time, limit int) ([]string, error) {
	const query = `
SELECT id
FROM auctions
WHERE status = $1 AND ends_at <= $2
ORDER BY ends_at ASC, id ASC
LIMIT $3`
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := conn(ctx, r.pool).Query(ctx, query, domain.AuctionStatusActive, now, lim)
	if err != nil {
		return nil, fmt.Errorf("list expired auctions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired auction: %w", err)
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate expired auctions: %w", rows.Err())
	}
	return ids, nil
}

func (r *AuctionRepository) InsertBid(ctx context.Context, b domain.Bid) error {
	const stmt = `
INSERT INTO bids (id, auction_id, bidder_id, amount, max_bid, kind, accepted, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := conn(ctx, r.pool).Exec(ctx, stmt,
		b.ID, b.AuctionID, b.BidderID, b.Amount, b.MaxBid, b.Kind, b.Accepted, b.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrAuctionNotFound
		}
		return classify(fmt.Errorf("insert bid: %w", err))
	}
	return nil
}

func (r *AuctionRepository) ListBids(ctx context.Context, auctionID string, limit int) ([]domain.Bid, error) {
	const query = `
SELECT id, auction_id, bidder_id, amount, max_bid, kind, accepted, created_at
FROM bids
WHERE auction_id = $1
ORDER BY seq DESC
LIMIT $2`
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := conn(ctx, r.pool).Query(ctx, query, auctionID, lim)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list bids: %w", err)
	}
	defer rows.Close()

	bids := make([]domain.Bid, 0)
	for rows.Next() {
		var b domain.Bid
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.Amount, &b.MaxBid, &b.Kind, &b.Accepted, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		bids = append(bids, b)
	}
	if rows.Err() != nil {
		if isInvalidUUID(rows.Err()) {
			return nil, nil
		}
		return nil, fmt.Errorf("iterate bids: %w", rows.Err())
	}
	return bids, nil
}

// AgentStats aggregates an agent's listings, bids and wins. Agents have no
// table of their own.
func (r *AuctionRepository) AgentStats(ctx context.Context, agentID string) (domain.AgentStats, error) {
	const query = `
SELECT
	(SELECT COUNT(*) FROM auctions WHERE seller_id = $1),
	(SELECT COUNT(*) FROM bids WHERE bidder_id = $1),
	(SELECT COUNT(*) FROM auctions WHERE winner_id = $1 AND status = 'ended'),
	(SELECT COUNT(*) FROM auctions WHERE leader_id = $1 AND status = 'active'),
	EXISTS (SELECT 1 FROM wallets WHERE agent_id = $1)`
	stats := domain.AgentStats{AgentID: agentID}
	err := conn(ctx, r.pool).QueryRow(ctx, query, agentID).Scan(
		&stats.AuctionsListed, &stats.TotalBids, &stats.TotalWins, &stats.Leading, &stats.HasWallet,
	)
	if err != nil {
		return domain.AgentStats{}, classify(fmt.Errorf("agent stats: %w", err))
	}
	return stats, nil
}

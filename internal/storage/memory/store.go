// Package memory is an in-process implementation of the auction and ledger
// repositories. Transactions buffer their writes and are validated against
// the versions they read when they commit.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/singhnitish007/Clawbid.org/internal/domain"
)

type walletRow struct {
	wallet  domain.Wallet
	version int64
}

// Store holds auctions, bids, wallets and ledger entries in memory. The zero
// value is not usable; call New.
type Store struct {
	mu       sync.RWMutex
	auctions map[string]domain.Auction
	bids     map[string][]domain.Bid
	wallets  map[string]walletRow
	txns     map[string][]domain.Transaction
}

func New() *Store {
	return &Store{
		auctions: make(map[string]domain.Auction),
		bids:     make(map[string][]domain.Bid),
		wallets:  make(map[string]walletRow),
		txns:     make(map[string][]domain.Transaction),
	}
}

type txKey struct{}

type tx struct {
	auctions     map[string]domain.Auction
	created      map[string]bool
	auctionReads map[string]int64
	bids         []domain.Bid
	wallets      map[string]domain.Wallet
	walletReads  map[string]int64
	txns         []domain.Transaction
}

func newTx() *tx {
	return &tx{
		auctions:     make(map[string]domain.Auction),
		created:      make(map[string]bool),
		auctionReads: make(map[string]int64),
		wallets:      make(map[string]domain.Wallet),
		walletReads:  make(map[string]int64),
	}
}

func txFromContext(ctx context.Context) *tx {
	t, _ := ctx.Value(txKey{}).(*tx)
	return t
}

// WithTx runs fn in a transaction. Nested calls join the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t := newTx()
	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		return err
	}
	return s.commit(t)
}

// run executes fn inside the caller's transaction or a fresh one.
func (s *Store) run(ctx context.Context, fn func(t *tx) error) error {
	if t := txFromContext(ctx); t != nil {
		return fn(t)
	}
	t := newTx()
	if err := fn(t); err != nil {
		return err
	}
	return s.commit(t)
}

func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, version := range t.auctionReads {
		if s.auctionVersionLocked(id) != version {
			return domain.ErrConcurrentUpdate
		}
	}
	for id := range t.created {
		if _, exists := s.auctions[id]; exists {
			return domain.ErrConcurrentUpdate
		}
	}
	for id, version := range t.walletReads {
		if s.walletVersionLocked(id) != version {
			return domain.ErrConcurrentUpdate
		}
	}

	for id, a := range t.auctions {
		s.auctions[id] = cloneAuction(a)
	}
	for _, b := range t.bids {
		s.bids[b.AuctionID] = append(s.bids[b.AuctionID], b)
	}
	for id, w := range t.wallets {
		row := s.wallets[id]
		s.wallets[id] = walletRow{wallet: w, version: row.version + 1}
	}
	for _, e := range t.txns {
		s.txns[e.AgentID] = append(s.txns[e.AgentID], e)
	}
	return nil
}

func (s *Store) auctionVersionLocked(id string) int64 {
	a, ok := s.auctions[id]
	if !ok {
		return 0
	}
	return a.Version
}

func (s *Store) walletVersionLocked(id string) int64 {
	row, ok := s.wallets[id]
	if !ok {
		return 0
	}
	return row.version
}

// Auctions

func (s *Store) CreateAuction(ctx context.Context, a domain.Auction) error {
	if a.ID == "" {
		return domain.ErrInvalidID
	}
	return s.run(ctx, func(t *tx) error {
		if _, ok := t.auctions[a.ID]; ok {
			return domain.ErrInvalidAuction
		}
		s.mu.RLock()
		_, exists := s.auctions[a.ID]
		s.mu.RUnlock()
		if exists {
			return domain.ErrInvalidAuction
		}
		t.auctions[a.ID] = cloneAuction(a)
		t.created[a.ID] = true
		return nil
	})
}

func (s *Store) GetAuction(ctx context.Context, id string) (domain.Auction, error) {
	var out domain.Auction
	err := s.run(ctx, func(t *tx) error {
		a, err := s.readAuction(t, id)
		out = a
		return err
	})
	return out, err
}

// GetAuctionForUpdate reads like GetAuction; conflicting writers are
// detected when the transaction commits.
func (s *Store) GetAuctionForUpdate(ctx context.Context, id string) (domain.Auction, error) {
	return s.GetAuction(ctx, id)
}

func (s *Store) readAuction(t *tx, id string) (domain.Auction, error) {
	if a, ok := t.auctions[id]; ok {
		return cloneAuction(a), nil
	}
	s.mu.RLock()
	a, ok := s.auctions[id]
	s.mu.RUnlock()
	if _, seen := t.auctionReads[id]; !seen {
		t.auctionReads[id] = a.Version
	}
	if !ok {
		return domain.Auction{}, domain.ErrAuctionNotFound
	}
	return cloneAuction(a), nil
}

func (s *Store) UpdateAuction(ctx context.Context, a domain.Auction, expectedVersion int64) error {
	return s.run(ctx, func(t *tx) error {
		current, err := s.readAuction(t, a.ID)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return domain.ErrConcurrentUpdate
		}
		a.Version = expectedVersion + 1
		t.auctions[a.ID] = cloneAuction(a)
		return nil
	})
}

// ListAuctions sees committed state only.
func (s *Store) ListAuctions(_ context.Context, f domain.AuctionFilter) ([]domain.Auction, int, error) {
	s.mu.RLock()
	matched := make([]domain.Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		if matches(a, f) {
			matched = append(matched, cloneAuction(a))
		}
	}
	s.mu.RUnlock()

	sortAuctions(matched, f.Sort)

	total := len(matched)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := total
	if f.Limit > 0 && start+f.Limit < total {
		end = start + f.Limit
	}
	return matched[start:end], total, nil
}

func matches(a domain.Auction, f domain.AuctionFilter) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.ListingType != "" && a.ListingType != f.ListingType {
		return false
	}
	if f.Category != "" && !strings.EqualFold(a.Category, f.Category) {
		return false
	}
	if f.SellerID != "" && a.SellerID != f.SellerID {
		return false
	}
	if f.MinPrice.Valid && a.CurrentPrice.LessThan(f.MinPrice.Decimal) {
		return false
	}
	if f.MaxPrice.Valid && a.CurrentPrice.GreaterThan(f.MaxPrice.Decimal) {
		return false
	}
	return true
}

func sortAuctions(list []domain.Auction, by domain.AuctionSort) {
	less := func(i, j int) bool { return list[i].EndsAt.Before(list[j].EndsAt) }
	switch by {
	case domain.SortNewest:
		less = func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) }
	case domain.SortPriceAsc:
		less = func(i, j int) bool { return list[i].CurrentPrice.LessThan(list[j].CurrentPrice) }
	case domain.SortPriceDesc:
		less = func(i, j int) bool { return list[i].CurrentPrice.GreaterThan(list[j].CurrentPrice) }
	case domain.SortMostBids:
		less = func(i, j int) bool { return list[i].BidCount > list[j].BidCount }
	}
	sort.SliceStable(list, func(i, j int) bool {
		if less(i, j) {
			return true
		}
		if less(j, i) {
			return false
		}
		return list[i].ID < list[j].ID
	})
}

// ListExpiredAuctions returns active auctions ending at or before now,
// oldest end time first.
func (s *Store) ListExpiredAuctions(_ context.Context, now time.Time, limit int) ([]string, error) {
	s.mu.RLock()
	expired := make([]domain.Auction, 0)
	for _, a := range s.auctions {
		if a.Status == domain.AuctionStatusActive && a.Expired(now) {
			expired = append(expired, a)
		}
	}
	s.mu.RUnlock()

	sortAuctions(expired, domain.SortEndingSoon)
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	ids := make([]string, 0, len(expired))
	for _, a := range expired {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

// Bids

func (s *Store) InsertBid(ctx context.Context, b domain.Bid) error {
	if b.ID == "" || b.AuctionID == "" {
		return domain.ErrInvalidID
	}
	return s.run(ctx, func(t *tx) error {
		if _, err := s.readAuction(t, b.AuctionID); err != nil {
			return err
		}
		t.bids = append(t.bids, b)
		return nil
	})
}

// ListBids returns committed bids newest first.
func (s *Store) ListBids(_ context.Context, auctionID string, limit int) ([]domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.bids[auctionID]
	n := len(all)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]domain.Bid, 0, n)
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// Agents

// AgentStats aggregates committed auctions, bids and wallets for agentID.
func (s *Store) AgentStats(_ context.Context, agentID string) (domain.AgentStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.AgentStats{AgentID: agentID}
	for _, a := range s.auctions {
		if a.SellerID == agentID {
			stats.AuctionsListed++
		}
		if a.Status == domain.AuctionStatusEnded && a.WinnerID == agentID {
			stats.TotalWins++
		}
		if a.Status == domain.AuctionStatusActive && a.LeaderID == agentID {
			stats.Leading++
		}
	}
	for _, bids := range s.bids {
		for _, b := range bids {
			if b.BidderID == agentID {
				stats.TotalBids++
			}
		}
	}
	_, stats.HasWallet = s.wallets[agentID]
	return stats, nil
}

// Wallets

func (s *Store) GetWallet(ctx context.Context, agentID string) (domain.Wallet, error) {
	var out domain.Wallet
	err := s.run(ctx, func(t *tx) error {
		w, err := s.readWallet(t, agentID)
		out = w
		return err
	})
	return out, err
}

func (s *Store) GetWalletForUpdate(ctx context.Context, agentID string) (domain.Wallet, error) {
	return s.GetWallet(ctx, agentID)
}

func (s *Store) readWallet(t *tx, agentID string) (domain.Wallet, error) {
	if w, ok := t.wallets[agentID]; ok {
		return w, nil
	}
	s.mu.RLock()
	row, ok := s.wallets[agentID]
	s.mu.RUnlock()
	if _, seen := t.walletReads[agentID]; !seen {
		t.walletReads[agentID] = row.version
	}
	if !ok {
		return domain.Wallet{}, domain.ErrWalletNotFound
	}
	return row.wallet, nil
}

// CreateWallet inserts w unless a wallet for the agent already exists.
func (s *Store) CreateWallet(ctx context.Context, w domain.Wallet) error {
	if w.AgentID == "" {
		return domain.ErrInvalidID
	}
	return s.run(ctx, func(t *tx) error {
		if _, err := s.readWallet(t, w.AgentID); err == nil {
			return nil
		}
		t.wallets[w.AgentID] = w
		return nil
	})
}

func (s *Store) UpdateWallet(ctx context.Context, w domain.Wallet) error {
	return s.run(ctx, func(t *tx) error {
		if _, err := s.readWallet(t, w.AgentID); err != nil {
			return err
		}
		t.wallets[w.AgentID] = w
		return nil
	})
}

// SetFrozen flips the frozen flag on an existing wallet.
func (s *Store) SetFrozen(ctx context.Context, agentID string, frozen bool) error {
	return s.run(ctx, func(t *tx) error {
		w, err := s.readWallet(t, agentID)
		if err != nil {
			return err
		}
		w.Frozen = frozen
		t.wallets[agentID] = w
		return nil
	})
}

// Ledger entries

func (s *Store) InsertTransaction(ctx context.Context, e domain.Transaction) error {
	if e.ID == "" || e.AgentID == "" {
		return domain.ErrInvalidID
	}
	return s.run(ctx, func(t *tx) error {
		t.txns = append(t.txns, e)
		return nil
	})
}

// ListTransactions returns committed entries newest first.
func (s *Store) ListTransactions(_ context.Context, agentID string, limit int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.txns[agentID]
	n := len(all)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]domain.Transaction, 0, n)
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func cloneAuction(a domain.Auction) domain.Auction {
	if a.Tags != nil {
		a.Tags = append([]string(nil), a.Tags...)
	}
	return a
}

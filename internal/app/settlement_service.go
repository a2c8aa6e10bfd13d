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

// Publisher fans events out to subscribers. Delivery is best effort and
// happens after the auction lock is released, so concurrent bids may arrive
// out of order; NewBidEvent.BidCount orders them.
type Publisher interface {
	Publish(topic, event string, data any) int
}

// Wallets is the part of the ledger settlement needs.
type Wallets interface {
	LockWallets(ctx context.Context, agentIDs ...string) (context.Context, func(), error)
	WalletForUpdate(ctx context.Context, agentID string) (domain.Wallet, error)
	Credit(ctx context.Context, in LedgerEntry) (domain.Transaction, error)
	Debit(ctx context.Context, in LedgerEntry) (domain.Transaction, error)
	Reserve(ctx context.Context, in LedgerEntry) error
	Release(ctx context.Context, in LedgerEntry) error
	Capture(ctx context.Context, hold decimal.Decimal, in LedgerEntry) (domain.Transaction, error)
}

const defaultAuctionLockWait = 2 * time.Second

// SettlementService is the only writer of auction price, leader and status.
// All operations on one auction are serialized by a keyed lock; wallet locks
// are always taken after the auction lock and in sorted order.
type SettlementService struct {
	repo      AuctionRepository
	ledger    Wallets
	publisher Publisher
	clock     clock.Clock
	validator BidValidator
	locks     *lock.Keyed
	lockWait  time.Duration
	logger    zerolog.Logger
}

type SettlementServiceOption func(*SettlementService)

// WithAuctionLockWait bounds how long an operation waits for the auction.
func WithAuctionLockWait(d time.Duration) SettlementServiceOption {
	return func(s *SettlementService) {
		if d > 0 {
			s.lockWait = d
		}
	}
}

// WithSelfBidding allows sellers to bid on their own auctions.
func WithSelfBidding(allow bool) SettlementServiceOption {
	return func(s *SettlementService) {
		s.validator.AllowSelfBid = allow
	}
}

func WithSettlementLogger(l zerolog.Logger) SettlementServiceOption {
	return func(s *SettlementService) {
		s.logger = l
	}
}

func NewSettlementService(repo AuctionRepository, ledger Wallets, pub Publisher, clk clock.Clock, opts ...SettlementServiceOption) *SettlementService {
	svc := &SettlementService{
		repo:      repo,
		ledger:    ledger,
		publisher: pub,
		clock:     clk,
		locks:     lock.New(),
		lockWait:  defaultAuctionLockWait,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type PlaceBidInput struct {
	AuctionID string
	BidderID  string
	Amount    decimal.Decimal
	MaxBid    decimal.NullDecimal
}

type PlaceBidResult struct {
	// Bid is the caller's bid.
	Bid domain.Bid
	// Recorded holds every bid accepted in this call, in order.
	Recorded []domain.Bid
	Auction  domain.Auction
}

// Outbid reports whether an automatic counter-bid left the caller behind.
func (r PlaceBidResult) Outbid() bool {
	return r.Auction.LeaderID != r.Bid.BidderID
}

func (s *SettlementService) PlaceBid(ctx context.Context, in PlaceBidInput) (PlaceBidResult, error) {
	if in.AuctionID == "" {
		return PlaceBidResult{}, domain.ErrInvalidID
	}
	if in.BidderID == "" || in.BidderID == domain.SpectatorID {
		return PlaceBidResult{}, domain.ErrUnauthorized
	}
	if !domain.ValidAmount(in.Amount) {
		return PlaceBidResult{}, domain.ErrInvalidAmount
	}
	if in.MaxBid.Valid && (!domain.ValidAmount(in.MaxBid.Decimal) || in.MaxBid.Decimal.LessThan(in.Amount)) {
		return PlaceBidResult{}, domain.ErrInvalidCeiling
	}

	var result PlaceBidResult
	err := s.withAuction(ctx, in.AuctionID, []string{in.BidderID}, func(txCtx context.Context, snapshot domain.Auction) error {
		r, err := s.settleBid(txCtx, in, snapshot)
		result = r
		return err
	})
	if err != nil {
		return PlaceBidResult{}, s.settlementError("place bid", in.AuctionID, err)
	}

	s.logger.Info().
		Str("auction_id", in.AuctionID).
		Str("bidder_id", in.BidderID).
		Str("amount", in.Amount.String()).
		Str("price", result.Auction.CurrentPrice.String()).
		Str("leader_id", result.Auction.LeaderID).
		Int("recorded", len(result.Recorded)).
		Msg("bid accepted")

	first := result.Auction.BidCount - len(result.Recorded) + 1
	for i, b := range result.Recorded {
		s.publishBid(b, first+i)
	}
	return result, nil
}

func (s *SettlementService) settleBid(ctx context.Context, in PlaceBidInput, snapshot domain.Auction) (PlaceBidResult, error) {
	a, err := s.repo.GetAuctionForUpdate(ctx, in.AuctionID)
	if err != nil {
		return PlaceBidResult{}, err
	}
	if a.LeaderID != snapshot.LeaderID {
		return PlaceBidResult{}, domain.ErrConcurrentUpdate
	}

	now := s.clock.Now()
	w, err := s.ledger.WalletForUpdate(ctx, in.BidderID)
	if err != nil {
		return PlaceBidResult{}, err
	}
	candidate := BidCandidate{BidderID: in.BidderID, Amount: in.Amount, MaxBid: in.MaxBid}
	if err := s.validator.Validate(a, candidate, w, now); err != nil {
		return PlaceBidResult{}, err
	}

	plan := arbitrate(a, candidate)
	recorded := make([]domain.Bid, 0, len(plan.Bids))
	for _, p := range plan.Bids {
		b := domain.Bid{
			ID:        newUUID(),
			AuctionID: a.ID,
			BidderID:  p.BidderID,
			Amount:    p.Amount,
			MaxBid:    p.MaxBid,
			Kind:      p.Kind,
			Accepted:  true,
			CreatedAt: now,
		}
		if err := s.repo.InsertBid(ctx, b); err != nil {
			return PlaceBidResult{}, err
		}
		recorded = append(recorded, b)
	}

	if err := s.moveHold(ctx, a, plan.leaderID(), plan.hold()); err != nil {
		return PlaceBidResult{}, err
	}

	prev := a.Version
	a.CurrentPrice = plan.price()
	a.BidCount += len(recorded)
	a.LeaderID = plan.leaderID()
	a.LeaderBidID = recorded[plan.Leader].ID
	a.LeaderCeiling = plan.LeaderCeiling
	a.LeaderHold = plan.hold()
	a.UpdatedAt = now
	if err := s.repo.UpdateAuction(ctx, a, prev); err != nil {
		return PlaceBidResult{}, err
	}
	a.Version = prev + 1

	return PlaceBidResult{Bid: recorded[0], Recorded: recorded, Auction: a}, nil
}

// moveHold makes leaderID the only holder of funds on a, with hold reserved.
func (s *SettlementService) moveHold(ctx context.Context, a domain.Auction, leaderID string, hold decimal.Decimal) error {
	if a.LeaderID == leaderID && a.LeaderHold.Equal(hold) {
		return nil
	}
	if a.HasLeader() && a.LeaderHold.IsPositive() {
		if err := s.ledger.Release(ctx, LedgerEntry{
			AgentID:       a.LeaderID,
			Amount:        a.LeaderHold,
			Description:   "Bid hold released: " + a.Title,
			ReferenceType: domain.RefBidRelease,
			ReferenceID:   a.ID,
		}); err != nil {
			return err
		}
	}
	return s.ledger.Reserve(ctx, LedgerEntry{
		AgentID:       leaderID,
		Amount:        hold,
		Description:   "Bid hold: " + a.Title,
		ReferenceType: domain.RefBidHold,
		ReferenceID:   a.ID,
	})
}

type BuyNowInput struct {
	AuctionID string
	BuyerID   string
}

// BuyNow ends the auction immediately at its buy-now price.
func (s *SettlementService) BuyNow(ctx context.Context, in BuyNowInput) (PlaceBidResult, error) {
	if in.AuctionID == "" {
		return PlaceBidResult{}, domain.ErrInvalidID
	}
	if in.BuyerID == "" || in.BuyerID == domain.SpectatorID {
		return PlaceBidResult{}, domain.ErrUnauthorized
	}

	var result PlaceBidResult
	err := s.withAuction(ctx, in.AuctionID, []string{in.BuyerID}, func(txCtx context.Context, snapshot domain.Auction) error {
		a, err := s.repo.GetAuctionForUpdate(txCtx, in.AuctionID)
		if err != nil {
			return err
		}
		if a.LeaderID != snapshot.LeaderID || a.SellerID != snapshot.SellerID {
			return domain.ErrConcurrentUpdate
		}

		now := s.clock.Now()
		if a.Status != domain.AuctionStatusActive || a.Expired(now) {
			return domain.ErrAuctionNotActive
		}
		if !s.validator.AllowSelfBid && in.BuyerID == a.SellerID {
			return domain.ErrSelfBid
		}
		if !a.BuyNowPrice.Valid || !a.BuyNowPrice.Decimal.GreaterThan(a.CurrentPrice) {
			return domain.ErrBuyNowUnavailable
		}
		price := a.BuyNowPrice.Decimal

		w, err := s.ledger.WalletForUpdate(txCtx, in.BuyerID)
		if err != nil {
			return err
		}
		if w.Frozen {
			return domain.ErrWalletFrozen
		}
		if price.GreaterThan(available(a, w)) {
			return domain.ErrInsufficientBalance
		}

		if a.HasLeader() && a.LeaderHold.IsPositive() {
			if err := s.ledger.Release(txCtx, LedgerEntry{
				AgentID:       a.LeaderID,
				Amount:        a.LeaderHold,
				Description:   "Bid hold released: " + a.Title,
				ReferenceType: domain.RefBidRelease,
				ReferenceID:   a.ID,
			}); err != nil {
				return err
			}
		}
		if _, err := s.ledger.Debit(txCtx, LedgerEntry{
			AgentID:       in.BuyerID,
			Amount:        price,
			Description:   "Won auction (buy now): " + a.Title,
			ReferenceType: domain.RefAuctionWon,
			ReferenceID:   a.ID,
		}); err != nil {
			return err
		}
		if _, err := s.ledger.Credit(txCtx, LedgerEntry{
			AgentID:       a.SellerID,
			Amount:        price,
			Description:   "Sold auction: " + a.Title,
			ReferenceType: domain.RefSale,
			ReferenceID:   a.ID,
		}); err != nil {
			return err
		}

		b := domain.Bid{
			ID:        newUUID(),
			AuctionID: a.ID,
			BidderID:  in.BuyerID,
			Amount:    price,
			Kind:      domain.BidKindBuyNow,
			Accepted:  true,
			CreatedAt: now,
		}
		if err := s.repo.InsertBid(txCtx, b); err != nil {
			return err
		}

		prev := a.Version
		a.CurrentPrice = price
		a.BidCount++
		a.LeaderID = in.BuyerID
		a.LeaderBidID = b.ID
		a.LeaderCeiling = decimal.NullDecimal{}
		a.LeaderHold = decimal.Zero
		a.WinnerID = in.BuyerID
		a.Status = domain.AuctionStatusEnded
		a.UpdatedAt = now
		if err := s.repo.UpdateAuction(txCtx, a, prev); err != nil {
			return err
		}
		a.Version = prev + 1

		result = PlaceBidResult{Bid: b, Recorded: []domain.Bid{b}, Auction: a}
		return nil
	}, withSeller())
	if err != nil {
		return PlaceBidResult{}, s.settlementError("buy now", in.AuctionID, err)
	}

	s.logger.Info().
		Str("auction_id", in.AuctionID).
		Str("buyer_id", in.BuyerID).
		Str("price", result.Auction.CurrentPrice.String()).
		Msg("auction bought")

	s.publishBid(result.Bid, result.Auction.BidCount)
	s.publishEnded(result.Auction)
	return result, nil
}

// Cancel withdraws an active auction. Only its seller may cancel it.
func (s *SettlementService) Cancel(ctx context.Context, auctionID, agentID string) (domain.Auction, error) {
	if auctionID == "" {
		return domain.Auction{}, domain.ErrInvalidID
	}
	if agentID == "" || agentID == domain.SpectatorID {
		return domain.Auction{}, domain.ErrUnauthorized
	}

	var out domain.Auction
	err := s.withAuction(ctx, auctionID, nil, func(txCtx context.Context, snapshot domain.Auction) error {
		a, err := s.repo.GetAuctionForUpdate(txCtx, auctionID)
		if err != nil {
			return err
		}
		if a.LeaderID != snapshot.LeaderID {
			return domain.ErrConcurrentUpdate
		}
		if a.SellerID != agentID {
			return domain.ErrForbidden
		}
		now := s.clock.Now()
		if a.Status != domain.AuctionStatusActive || a.Expired(now) {
			return domain.ErrAuctionNotActive
		}

		if a.HasLeader() && a.LeaderHold.IsPositive() {
			if err := s.ledger.Release(txCtx, LedgerEntry{
				AgentID:       a.LeaderID,
				Amount:        a.LeaderHold,
				Description:   "Auction cancelled: " + a.Title,
				ReferenceType: domain.RefBidRelease,
				ReferenceID:   a.ID,
			}); err != nil {
				return err
			}
		}

		prev := a.Version
		a.Status = domain.AuctionStatusCancelled
		a.LeaderHold = decimal.Zero
		a.UpdatedAt = now
		if err := s.repo.UpdateAuction(txCtx, a, prev); err != nil {
			return err
		}
		a.Version = prev + 1
		out = a
		return nil
	})
	if err != nil {
		return domain.Auction{}, s.settlementError("cancel", auctionID, err)
	}

	s.logger.Info().Str("auction_id", auctionID).Msg("auction cancelled")
	s.publisher.Publish(domain.AuctionTopic(auctionID), domain.EventAuctionCancelled, domain.AuctionCancelledEvent{
		AuctionID: auctionID,
		Timestamp: out.UpdatedAt,
	})
	return out, nil
}

// CloseAuction ends an expired active auction, settling the winner's hold
// and paying the seller. It reports false when there was nothing to do.
func (s *SettlementService) CloseAuction(ctx context.Context, auctionID string) (bool, error) {
	if auctionID == "" {
		return false, domain.ErrInvalidID
	}

	var (
		out    domain.Auction
		closed bool
	)
	err := s.withAuction(ctx, auctionID, nil, func(txCtx context.Context, snapshot domain.Auction) error {
		a, err := s.repo.GetAuctionForUpdate(txCtx, auctionID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if a.Status.Terminal() || !a.Expired(now) {
			return nil
		}
		if a.LeaderID != snapshot.LeaderID {
			return domain.ErrConcurrentUpdate
		}

		if a.HasLeader() {
			if _, err := s.ledger.Capture(txCtx, a.LeaderHold, LedgerEntry{
				AgentID:       a.LeaderID,
				Amount:        a.CurrentPrice,
				Description:   "Won auction: " + a.Title,
				ReferenceType: domain.RefAuctionWon,
				ReferenceID:   a.ID,
			}); err != nil {
				return err
			}
			if _, err := s.ledger.Credit(txCtx, LedgerEntry{
				AgentID:       a.SellerID,
				Amount:        a.CurrentPrice,
				Description:   "Sold auction: " + a.Title,
				ReferenceType: domain.RefSale,
				ReferenceID:   a.ID,
			}); err != nil {
				return err
			}
			a.WinnerID = a.LeaderID
		}

		prev := a.Version
		a.Status = domain.AuctionStatusEnded
		a.LeaderHold = decimal.Zero
		a.UpdatedAt = now
		if err := s.repo.UpdateAuction(txCtx, a, prev); err != nil {
			return err
		}
		a.Version = prev + 1
		out = a
		closed = true
		return nil
	}, withSeller(), skipTerminal())
	if err != nil {
		return false, s.settlementError("close auction", auctionID, err)
	}
	if !closed {
		return false, nil
	}

	s.logger.Info().
		Str("auction_id", auctionID).
		Str("winner_id", out.WinnerID).
		Str("final_price", out.CurrentPrice.String()).
		Msg("auction ended")
	s.publishEnded(out)
	return true, nil
}

type auctionScope struct {
	lockSeller   bool
	skipTerminal bool
}

type auctionScopeOption func(*auctionScope)

func withSeller() auctionScopeOption {
	return func(o *auctionScope) { o.lockSeller = true }
}

// skipTerminal returns early without opening a transaction when the
// snapshot is already ended or cancelled.
func skipTerminal() auctionScopeOption {
	return func(o *auctionScope) { o.skipTerminal = true }
}

// withAuction runs fn in one transaction while holding the auction lock and
// the wallet locks of the current leader, extra and optionally the seller.
// fn receives the snapshot the wallet set was derived from.
func (s *SettlementService) withAuction(ctx context.Context, auctionID string, extra []string, fn func(ctx context.Context, snapshot domain.Auction) error, opts ...auctionScopeOption) error {
	var scope auctionScope
	for _, opt := range opts {
		opt(&scope)
	}

	lockCtx, unlock, err := s.locks.Acquire(ctx, s.lockWait, "auction:"+auctionID)
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			return domain.ErrBusy
		}
		return err
	}
	defer unlock()

	snapshot, err := s.repo.GetAuction(lockCtx, auctionID)
	if err != nil {
		return err
	}
	if scope.skipTerminal && snapshot.Status.Terminal() {
		return nil
	}

	agents := append([]string{snapshot.LeaderID}, extra...)
	if scope.lockSeller {
		agents = append(agents, snapshot.SellerID)
	}
	walletCtx, unlockWallets, err := s.ledger.LockWallets(lockCtx, agents...)
	if err != nil {
		return err
	}
	defer unlockWallets()

	return s.repo.WithTx(walletCtx, func(txCtx context.Context) error {
		return fn(txCtx, snapshot)
	})
}

// settlementError passes domain errors through and turns anything else into
// a retryable settlement failure.
func (s *SettlementService) settlementError(op, auctionID string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		if de.Kind == domain.KindTransient {
			s.logger.Warn().Err(err).Str("op", op).Str("auction_id", auctionID).Msg("settlement contention")
		}
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.logger.Error().Err(err).Str("op", op).Str("auction_id", auctionID).Msg("settlement failed")
	return fmt.Errorf("%s %s: %w: %w", op, auctionID, domain.ErrSettlementFailed, err)
}

func (s *SettlementService) publishBid(b domain.Bid, bidCount int) {
	s.publisher.Publish(domain.AuctionTopic(b.AuctionID), domain.EventNewBid, domain.NewBidEvent{
		AuctionID: b.AuctionID,
		BidID:     b.ID,
		BidderID:  b.BidderID,
		Amount:    b.Amount,
		IsAutoBid: b.Kind == domain.BidKindAuto,
		BidCount:  bidCount,
		Timestamp: b.CreatedAt,
	})
}

func (s *SettlementService) publishEnded(a domain.Auction) {
	var winner *string
	if a.WinnerID != "" {
		w := a.WinnerID
		winner = &w
	}
	s.publisher.Publish(domain.AuctionTopic(a.ID), domain.EventAuctionEnded, domain.AuctionEndedEvent{
		AuctionID:  a.ID,
		WinnerID:   winner,
		FinalPrice: a.CurrentPrice,
	})
}

package app

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/singhnitish007/Clawbid.org/internal/clock"
	"github.com/singhnitish007/Clawbid.org/internal/domain"
)

type AuctionRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateAuction(ctx context.Context, a domain.Auction) error
	GetAuction(ctx context.Context, id string) (domain.Auction, error)
	GetAuctionForUpdate(ctx context.Context, id string) (domain.Auction, error)
	// UpdateAuction stores a with Version set to expectedVersion+1, or
	// returns domain.ErrConcurrentUpdate when the stored version differs.
	UpdateAuction(ctx context.Context, a domain.Auction, expectedVersion int64) error
	ListAuctions(ctx context.Context, f domain.AuctionFilter) ([]domain.Auction, int, error)
	ListExpiredAuctions(ctx context.Context, now time.Time, limit int) ([]string, error)
	InsertBid(ctx context.Context, b domain.Bid) error
	// ListBids returns accepted bids newest first.
	ListBids(ctx context.Context, auctionID string, limit int) ([]domain.Bid, error)
}

const (
	defaultListingType   = "skill"
	defaultCategory      = "General"
	defaultListLimit     = 20
	maxListLimit         = 100
	defaultBidsLimit     = 50
	maxBidsLimit         = 200
	defaultMaxDuration   = 30 * 24 * time.Hour
	defaultAuctionPeriod = 7 * 24 * time.Hour
)

// AuctionService handles listing creation and reads. Price and status
// changes belong to SettlementService.
type AuctionService struct {
	repo         AuctionRepository
	clock        clock.Clock
	minIncrement decimal.Decimal
	maxDuration  time.Duration
	logger       zerolog.Logger
}

type AuctionServiceOption func(*AuctionService)

// WithDefaultMinIncrement sets the increment used when a listing omits one.
func WithDefaultMinIncrement(d decimal.Decimal) AuctionServiceOption {
	return func(s *AuctionService) {
		if domain.ValidNonNegative(d) {
			s.minIncrement = d
		}
	}
}

// WithMaxDuration caps how long a listing may run.
func WithMaxDuration(d time.Duration) AuctionServiceOption {
	return func(s *AuctionService) {
		if d > 0 {
			s.maxDuration = d
		}
	}
}

func WithAuctionLogger(l zerolog.Logger) AuctionServiceOption {
	return func(s *AuctionService) {
		s.logger = l
	}
}

func NewAuctionService(repo AuctionRepository, clk clock.Clock, opts ...AuctionServiceOption) *AuctionService {
	svc := &AuctionService{
		repo:         repo,
		clock:        clk,
		minIncrement: decimal.NewFromInt(5),
		maxDuration:  defaultMaxDuration,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type CreateAuctionInput struct {
	SellerID      string
	Title         string
	Description   string
	ListingType   string
	Category      string
	Tags          []string
	StartingPrice decimal.Decimal
	MinIncrement  decimal.NullDecimal
	BuyNowPrice   decimal.NullDecimal
	Duration      time.Duration
}

func (s *AuctionService) Create(ctx context.Context, in CreateAuctionInput) (domain.Auction, error) {
	if in.SellerID == "" || in.SellerID == domain.SpectatorID {
		return domain.Auction{}, domain.ErrUnauthorized
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Auction{}, domain.ErrTitleRequired
	}
	if !domain.ValidAmount(in.StartingPrice) {
		return domain.Auction{}, domain.ErrInvalidAmount
	}

	inc := s.minIncrement
	if in.MinIncrement.Valid {
		if !domain.ValidNonNegative(in.MinIncrement.Decimal) {
			return domain.Auction{}, domain.ErrInvalidAuction
		}
		inc = in.MinIncrement.Decimal
	}
	if in.BuyNowPrice.Valid {
		if !domain.ValidAmount(in.BuyNowPrice.Decimal) || !in.BuyNowPrice.Decimal.GreaterThan(in.StartingPrice) {
			return domain.Auction{}, domain.ErrInvalidAuction
		}
	}

	duration := in.Duration
	if duration == 0 {
		duration = defaultAuctionPeriod
	}
	if duration < 0 || duration > s.maxDuration {
		return domain.Auction{}, domain.ErrInvalidAuction
	}

	listingType := strings.TrimSpace(in.ListingType)
	if listingType == "" {
		listingType = defaultListingType
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = defaultCategory
	}
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	now := s.clock.Now()
	a := domain.Auction{
		ID:            newUUID(),
		SellerID:      in.SellerID,
		Title:         title,
		Description:   in.Description,
		ListingType:   listingType,
		Category:      category,
		Tags:          tags,
		StartingPrice: in.StartingPrice,
		CurrentPrice:  in.StartingPrice,
		MinIncrement:  inc,
		BuyNowPrice:   in.BuyNowPrice,
		Status:        domain.AuctionStatusActive,
		EndsAt:        now.Add(duration),
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.CreateAuction(ctx, a); err != nil {
		return domain.Auction{}, err
	}

	s.logger.Info().
		Str("auction_id", a.ID).
		Str("seller_id", a.SellerID).
		Str("starting_price", a.StartingPrice.String()).
		Time("ends_at", a.EndsAt).
		Msg("auction created")
	return a, nil
}

// AuctionPage is one page of a filtered listing.
type AuctionPage struct {
	Auctions []domain.Auction
	Page     int
	Limit    int
	Total    int
}

func (s *AuctionService) List(ctx context.Context, f domain.AuctionFilter) (AuctionPage, error) {
	if f.Status == "" {
		f.Status = domain.AuctionStatusActive
	}
	if f.Sort == "" {
		f.Sort = domain.SortEndingSoon
	}
	return listPage(ctx, s.repo, f)
}

type auctionLister interface {
	ListAuctions(ctx context.Context, f domain.AuctionFilter) ([]domain.Auction, int, error)
}

// listPage validates the sort and page bounds of f and fetches one page.
func listPage(ctx context.Context, repo auctionLister, f domain.AuctionFilter) (AuctionPage, error) {
	if !f.Sort.Valid() {
		return AuctionPage{}, domain.ErrInvalidAuction
	}
	if f.Page < 0 || f.Limit < 0 {
		return AuctionPage{}, domain.ErrInvalidLimit
	}
	if f.Page == 0 {
		f.Page = 1
	}
	if f.Limit == 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}

	auctions, total, err := repo.ListAuctions(ctx, f)
	if err != nil {
		return AuctionPage{}, err
	}
	return AuctionPage{Auctions: auctions, Page: f.Page, Limit: f.Limit, Total: total}, nil
}

// AuctionDetail is an auction with its most recent bids.
type AuctionDetail struct {
	Auction domain.Auction
	Bids    []domain.Bid
}

func (s *AuctionService) Get(ctx context.Context, id string) (AuctionDetail, error) {
	if id == "" {
		return AuctionDetail{}, domain.ErrInvalidID
	}
	a, err := s.repo.GetAuction(ctx, id)
	if err != nil {
		return AuctionDetail{}, err
	}
	bids, err := s.repo.ListBids(ctx, id, defaultBidsLimit)
	if err != nil {
		return AuctionDetail{}, err
	}
	return AuctionDetail{Auction: a, Bids: bids}, nil
}

func (s *AuctionService) ListBids(ctx context.Context, auctionID string, limit int) ([]domain.Bid, error) {
	if auctionID == "" {
		return nil, domain.ErrInvalidID
	}
	switch {
	case limit < 0:
		return nil, domain.ErrInvalidLimit
	case limit == 0:
		limit = defaultBidsLimit
	case limit > maxBidsLimit:
		limit = maxBidsLimit
	}
	if _, err := s.repo.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	return s.repo.ListBids(ctx, auctionID, limit)
}

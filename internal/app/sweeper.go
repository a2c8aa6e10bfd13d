package app

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/singhnitish007/Clawbid.org/internal/clock"
)

// ExpiredAuctions lists active auctions whose end time has passed.
type ExpiredAuctions interface {
	ListExpiredAuctions(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// AuctionCloser settles one expired auction.
type AuctionCloser interface {
	CloseAuction(ctx context.Context, auctionID string) (bool, error)
}

const (
	defaultSweepInterval = time.Second
	defaultSweepBatch    = 100
	defaultSweepWorkers  = 4
)

// Sweeper periodically closes expired auctions.
type Sweeper struct {
	repo     ExpiredAuctions
	closer   AuctionCloser
	clock    clock.Clock
	interval time.Duration
	batch    int
	workers  int
	logger   zerolog.Logger
}

type SweeperOption func(*Sweeper)

func WithSweepInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSweepBatch caps how many auctions one tick closes.
func WithSweepBatch(n int) SweeperOption {
	return func(s *Sweeper) {
		if n > 0 {
			s.batch = n
		}
	}
}

// WithSweepWorkers caps how many auctions are closed concurrently.
func WithSweepWorkers(n int) SweeperOption {
	return func(s *Sweeper) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithSweeperLogger(l zerolog.Logger) SweeperOption {
	return func(s *Sweeper) {
		s.logger = l
	}
}

func NewSweeper(repo ExpiredAuctions, closer AuctionCloser, clk clock.Clock, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		repo:     repo,
		closer:   closer,
		clock:    clk,
		interval: defaultSweepInterval,
		batch:    defaultSweepBatch,
		workers:  defaultSweepWorkers,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sweeper stopped")
			return nil
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

// SweepOnce closes up to one batch of expired auctions and returns how many
// it closed. A failure on one auction does not stop the others; it is
// retried on the next tick.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	ids, err := s.repo.ListExpiredAuctions(ctx, s.clock.Now(), s.batch)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var closed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, id := range ids {
		g.Go(func() error {
			ok, err := s.closer.CloseAuction(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.Warn().Err(err).Str("auction_id", id).Msg("close auction failed")
				return nil
			}
			if ok {
				closed.Add(1)
			}
			return nil
		})
	}
	err = g.Wait()

	n := int(closed.Load())
	if n > 0 {
		s.logger.Debug().Int("closed", n).Int("candidates", len(ids)).Msg("sweep complete")
	}
	return n, err
}

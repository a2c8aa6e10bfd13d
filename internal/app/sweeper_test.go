package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/singhnitish007/Clawbid.org/internal/clock"
	"github.com/singhnitish007/Clawbid.org/internal/domain"
)

func TestSweeper_SweepOnceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", "1000")
	a := f.createAuction(t, "seller", "50", "5")
	b := f.createAuction(t, "seller", "50", "5")
	live := f.createAuction(t, "seller", "50", "5")
	if _, err := f.bid(a.ID, "alice", "60"); err != nil {
		t.Fatalf("bid: %v", err)
	}

	sweeper := NewSweeper(f.store, f.settlement, f.clock, WithSweepWorkers(2))

	n, err := sweeper.SweepOnce(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("expected nothing to close yet, got %d %v", n, err)
	}

	f.clock.Advance(time.Hour)
	// keep one auction alive past the sweep
	if err := f.store.WithTx(context.Background(), func(ctx context.Context) error {
		cur, err := f.store.GetAuctionForUpdate(ctx, live.ID)
		if err != nil {
			return err
		}
		cur.EndsAt = f.clock.Now().Add(time.Hour)
		return f.store.UpdateAuction(ctx, cur, cur.Version)
	}); err != nil {
		t.Fatalf("extend: %v", err)
	}

	n, err = sweeper.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 closed, got %d", n)
	}

	n, err = sweeper.SweepOnce(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("expected second sweep to be a no-op, got %d %v", n, err)
	}

	ended := f.pub.named(domain.EventAuctionEnded)
	if len(ended) != 2 {
		t.Fatalf("expected 2 auction_ended events, got %d", len(ended))
	}
	winners := map[string]*string{}
	for _, e := range ended {
		payload := e.Data.(domain.AuctionEndedEvent)
		winners[payload.AuctionID] = payload.WinnerID
	}
	if w := winners[a.ID]; w == nil || *w != "alice" {
		t.Fatalf("expected alice to win %s", a.ID)
	}
	if w, ok := winners[b.ID]; !ok || w != nil {
		t.Fatalf("expected %s to end without a winner", b.ID)
	}
	if f.auction(t, live.ID).Status != domain.AuctionStatusActive {
		t.Fatalf("expected live auction to stay active")
	}
}

type stubExpired struct {
	ids []string
	err error
}

func (s stubExpired) ListExpiredAuctions(context.Context, time.Time, int) ([]string, error) {
	return s.ids, s.err
}

type stubCloser struct {
	mu      sync.Mutex
	calls   []string
	failFor map[string]error
}

func (s *stubCloser) CloseAuction(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, id)
	if err := s.failFor[id]; err != nil {
		return false, err
	}
	return true, nil
}

func TestSweeper_FailureDoesNotStopOthers(t *testing.T) {
	closer := &stubCloser{failFor: map[string]error{"b": domain.ErrBusy}}
	sweeper := NewSweeper(stubExpired{ids: []string{"a", "b", "c"}}, closer, clock.NewFixed(testNow))

	n, err := sweeper.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 closed, got %d", n)
	}
	if len(closer.calls) != 3 {
		t.Fatalf("expected every candidate attempted, got %v", closer.calls)
	}
}

func TestSweeper_ListError(t *testing.T) {
	boom := errors.New("boom")
	sweeper := NewSweeper(stubExpired{err: boom}, &stubCloser{}, clock.NewFixed(testNow))
	if _, err := sweeper.SweepOnce(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected list error, got %v", err)
	}
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	closer := &stubCloser{}
	sweeper := NewSweeper(stubExpired{ids: []string{"a"}}, closer, clock.NewFixed(testNow), WithSweepInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		closer.mu.Lock()
		calls := len(closer.calls)
		closer.mu.Unlock()
		if calls >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("sweeper did not tick")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("sweeper did not stop")
	}
}

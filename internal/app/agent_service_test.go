package app

import (
	"context"
	"testing"
	"time"

	"github.com/singhnitish007/Clawbid.org/internal/domain"
)

func TestAgentService_Profile(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	agents := NewAgentService(f.store)

	f.fund(t, "alice", "100")
	sold := f.createAuction(t, "seller", "10", "1")
	f.createAuction(t, "seller", "10", "1")
	if _, err := f.bid(sold.ID, "alice", "11"); err != nil {
		t.Fatalf("bid: %v", err)
	}
	f.clock.Advance(2 * time.Hour)
	if closed, err := f.settlement.CloseAuction(ctx, sold.ID); err != nil || !closed {
		t.Fatalf("close: closed=%v err=%v", closed, err)
	}

	alice, err := agents.Profile(ctx, "alice")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	want := domain.AgentStats{AgentID: "alice", TotalBids: 1, TotalWins: 1, HasWallet: true}
	if alice != want {
		t.Fatalf("expected %+v, got %+v", want, alice)
	}

	seller, err := agents.Profile(ctx, "seller")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if seller.AuctionsListed != 2 || seller.TotalBids != 0 {
		t.Fatalf("unexpected seller stats %+v", seller)
	}

	for _, id := range []string{"ghost", "", domain.SpectatorID} {
		if _, err := agents.Profile(ctx, id); err != domain.ErrAgentNotFound {
			t.Fatalf("%q: expected ErrAgentNotFound, got %v", id, err)
		}
	}
}

func TestAgentService_Auctions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	agents := NewAgentService(f.store)

	older := f.createAuction(t, "seller", "10", "1")
	f.clock.Advance(time.Minute)
	newer := f.createAuction(t, "seller", "10", "1")
	f.createAuction(t, "someone-else", "10", "1")
	if _, err := f.settlement.Cancel(ctx, older.ID, "seller"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	page, err := agents.Auctions(ctx, "seller", domain.AuctionFilter{})
	if err != nil {
		t.Fatalf("auctions: %v", err)
	}
	if page.Total != 2 || len(page.Auctions) != 2 {
		t.Fatalf("expected both listings in any status, got total %d", page.Total)
	}
	if page.Auctions[0].ID != newer.ID || page.Auctions[1].ID != older.ID {
		t.Fatalf("expected newest first, got %s then %s", page.Auctions[0].ID, page.Auctions[1].ID)
	}
	if page.Limit != defaultListLimit || page.Page != 1 {
		t.Fatalf("expected default paging, got page %d limit %d", page.Page, page.Limit)
	}

	page, err = agents.Auctions(ctx, "seller", domain.AuctionFilter{Status: domain.AuctionStatusCancelled, SellerID: "someone-else"})
	if err != nil {
		t.Fatalf("auctions: %v", err)
	}
	if page.Total != 1 || page.Auctions[0].ID != older.ID {
		t.Fatalf("expected only the cancelled listing, got %+v", page.Auctions)
	}

	if _, err := agents.Auctions(ctx, "seller", domain.AuctionFilter{Limit: -1}); err != domain.ErrInvalidLimit {
		t.Fatalf("expected ErrInvalidLimit, got %v", err)
	}
	if _, err := agents.Auctions(ctx, domain.SpectatorID, domain.AuctionFilter{}); err != domain.ErrAgentNotFound {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
}

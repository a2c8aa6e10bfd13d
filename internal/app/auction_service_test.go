package app

import (
	"context"
	"testing"
	"time"

	"github.com/singhnitish007/Clawbid.org/internal/clock"
	"github.com/singhnitish007/Clawbid.org/internal/domain"
	"github.com/singhnitish007/Clawbid.org/internal/storage/memory"
)

func TestAuctionService_Create(t *testing.T) {
	t.Parallel()

	svc := NewAuctionService(memory.New(), clock.NewFixed(testNow), WithMaxDuration(48*time.Hour))

	t.Run("applies defaults", func(t *testing.T) {
		a, err := svc.Create(context.Background(), CreateAuctionInput{
			SellerID:      "seller",
			Title:         "  Data labelling  ",
			StartingPrice: dec("10"),
			Duration:      24 * time.Hour,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if a.ID == "" {
			t.Fatalf("expected ID to be set")
		}
		if a.Title != "Data labelling" {
			t.Fatalf("expected trimmed title, got %q", a.Title)
		}
		if a.ListingType != "skill" || a.Category != "General" {
			t.Fatalf("unexpected defaults %q %q", a.ListingType, a.Category)
		}
		requireDecimal(t, "5", a.MinIncrement, "default increment")
		requireDecimal(t, "10", a.CurrentPrice, "current price")
		if a.Status != domain.AuctionStatusActive {
			t.Fatalf("expected active, got %s", a.Status)
		}
		if !a.EndsAt.Equal(testNow.Add(24 * time.Hour)) {
			t.Fatalf("unexpected end time %v", a.EndsAt)
		}
	})

	cases := []struct {
		name string
		in   CreateAuctionInput
		want error
	}{
		{"spectator", CreateAuctionInput{SellerID: domain.SpectatorID, Title: "x", StartingPrice: dec("1")}, domain.ErrUnauthorized},
		{"blank title", CreateAuctionInput{SellerID: "s", Title: "   ", StartingPrice: dec("1")}, domain.ErrTitleRequired},
		{"zero price", CreateAuctionInput{SellerID: "s", Title: "x", StartingPrice: dec("0")}, domain.ErrInvalidAmount},
		{"negative increment", CreateAuctionInput{SellerID: "s", Title: "x", StartingPrice: dec("1"), MinIncrement: nullDec("-1")}, domain.ErrInvalidAuction},
		{"buy now below start", CreateAuctionInput{SellerID: "s", Title: "x", StartingPrice: dec("10"), BuyNowPrice: nullDec("10")}, domain.ErrInvalidAuction},
		{"too long", CreateAuctionInput{SellerID: "s", Title: "x", StartingPrice: dec("1"), Duration: 72 * time.Hour}, domain.ErrInvalidAuction},
		{"negative duration", CreateAuctionInput{SellerID: "s", Title: "x", StartingPrice: dec("1"), Duration: -time.Hour}, domain.ErrInvalidAuction},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tc.in); err != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestAuctionService_List(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	cheap := f.createAuction(t, "s1", "10", "1")
	f.clock.Advance(time.Minute)
	mid := f.createAuction(t, "s2", "50", "1")
	f.clock.Advance(time.Minute)
	pricey := f.createAuction(t, "s1", "90", "1")

	f.fund(t, "bidder", "1000")
	if _, err := f.bid(cheap.ID, "bidder", "20"); err != nil {
		t.Fatalf("bid: %v", err)
	}
	if _, err := f.bid(cheap.ID, "bidder", "30"); err != nil {
		t.Fatalf("bid: %v", err)
	}

	cases := []struct {
		name   string
		filter domain.AuctionFilter
		want   []string
		total  int
	}{
		{"ending soon by default", domain.AuctionFilter{}, []string{cheap.ID, mid.ID, pricey.ID}, 3},
		{"newest", domain.AuctionFilter{Sort: domain.SortNewest}, []string{pricey.ID, mid.ID, cheap.ID}, 3},
		{"price descending", domain.AuctionFilter{Sort: domain.SortPriceDesc}, []string{pricey.ID, mid.ID, cheap.ID}, 3},
		{"price ascending", domain.AuctionFilter{Sort: domain.SortPriceAsc}, []string{cheap.ID, mid.ID, pricey.ID}, 3},
		{"most bids", domain.AuctionFilter{Sort: domain.SortMostBids, Limit: 1}, []string{cheap.ID}, 3},
		{"seller", domain.AuctionFilter{SellerID: "s1"}, []string{cheap.ID, pricey.ID}, 2},
		{"price band", domain.AuctionFilter{MinPrice: nullDec("25"), MaxPrice: nullDec("60")}, []string{cheap.ID, mid.ID}, 2},
		{"second page", domain.AuctionFilter{Page: 2, Limit: 2}, []string{pricey.ID}, 3},
		{"ended only", domain.AuctionFilter{Status: domain.AuctionStatusEnded}, nil, 0},
	}
	for _, tc := range cases {
		page, err := f.auctions.List(ctx, tc.filter)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if page.Total != tc.total {
			t.Fatalf("%s: expected total %d, got %d", tc.name, tc.total, page.Total)
		}
		if len(page.Auctions) != len(tc.want) {
			t.Fatalf("%s: expected %d auctions, got %d", tc.name, len(tc.want), len(page.Auctions))
		}
		for i, id := range tc.want {
			if page.Auctions[i].ID != id {
				t.Fatalf("%s: position %d expected %s, got %s", tc.name, i, id, page.Auctions[i].ID)
			}
		}
	}

	page, err := f.auctions.List(ctx, domain.AuctionFilter{Limit: 1000})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Limit != 100 || page.Page != 1 {
		t.Fatalf("expected clamped limit 100 page 1, got %d %d", page.Limit, page.Page)
	}
	if _, err := f.auctions.List(ctx, domain.AuctionFilter{Sort: "random"}); err != domain.ErrInvalidAuction {
		t.Fatalf("expected ErrInvalidAuction for unknown sort, got %v", err)
	}
}

func TestAuctionService_GetAndBids(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	a := f.createAuction(t, "seller", "50", "5")
	f.fund(t, "alice", "1000")
	for _, amount := range []string{"55", "60", "65"} {
		if _, err := f.bid(a.ID, "alice", amount); err != nil {
			t.Fatalf("bid %s: %v", amount, err)
		}
	}

	detail, err := f.auctions.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(detail.Bids) != 3 || !detail.Bids[0].Amount.Equal(dec("65")) {
		t.Fatalf("expected newest bid first, got %+v", detail.Bids)
	}

	bids, err := f.auctions.ListBids(ctx, a.ID, 2)
	if err != nil {
		t.Fatalf("list bids: %v", err)
	}
	if len(bids) != 2 {
		t.Fatalf("expected 2 bids, got %d", len(bids))
	}

	if _, err := f.auctions.Get(ctx, "missing"); err != domain.ErrAuctionNotFound {
		t.Fatalf("expected ErrAuctionNotFound, got %v", err)
	}
	if _, err := f.auctions.ListBids(ctx, "missing", 0); err != domain.ErrAuctionNotFound {
		t.Fatalf("expected ErrAuctionNotFound, got %v", err)
	}
	if _, err := f.auctions.ListBids(ctx, a.ID, -1); err != domain.ErrInvalidLimit {
		t.Fatalf("expected ErrInvalidLimit, got %v", err)
	}
}

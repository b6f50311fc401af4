package memory

import (
	"context"
	"testing"
	"time"

	"github.com/rahulvdm/auction-engine/internal/clock"
	"github.com/rahulvdm/auction-engine/internal/config"
	"github.com/rahulvdm/auction-engine/internal/event"
	"github.com/rahulvdm/auction-engine/internal/store"
)

func testRepos(t *testing.T) *store.Repositories {
	t.Helper()
	return New(clock.NewMock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))
}

func TestDriverRegistered(t *testing.T) {
	cfg := config.Defaults().Database
	cfg.Driver = "memory"
	repos, err := store.Open(context.Background(), cfg, clock.Real{})
	if err != nil {
		t.Fatalf("Open(memory): %v", err)
	}
	if err := repos.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
	if err := repos.Closer.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestMarkSoldIsSingleShot(t *testing.T) {
	repos := testRepos(t)
	ctx := context.Background()

	p := &store.Player{AuctionID: "a1", Name: "One", BasePrice: 1000, Status: store.PlayerAvailable}
	if err := repos.Players.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repos.Players.MarkSold(ctx, p.ID, "b1", 5000); err != nil {
		t.Fatalf("MarkSold: %v", err)
	}
	if err := repos.Players.MarkSold(ctx, p.ID, "b2", 6000); err == nil {
		t.Fatal("second MarkSold succeeded")
	}

	got, err := repos.Players.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != store.PlayerSold || got.SoldPrice == nil || *got.SoldPrice != 5000 || got.SoldTo == nil || *got.SoldTo != "b1" {
		t.Errorf("sale not recorded once: %+v", got)
	}
}

func TestDeductPurseGuardsNegative(t *testing.T) {
	repos := testRepos(t)
	ctx := context.Background()

	b := &store.Bidder{AuctionID: "a1", Name: "Team", InitialPurse: 10000, RemainingPurse: 10000}
	if err := repos.Bidders.Create(ctx, b); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repos.Bidders.DeductPurse(ctx, b.ID, 4000); err != nil {
		t.Fatalf("DeductPurse: %v", err)
	}
	if err := repos.Bidders.DeductPurse(ctx, b.ID, 7000); err == nil {
		t.Fatal("overdraft allowed")
	}
	got, err := repos.Bidders.GetByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.RemainingPurse != 6000 {
		t.Errorf("RemainingPurse = %d, want 6000", got.RemainingPurse)
	}
}

func TestEventLoadOrdersByVersion(t *testing.T) {
	repos := testRepos(t)
	ctx := context.Background()

	events := []event.Event{
		{AggregateID: "a1", Type: event.AuctionBidPlaced, Data: []byte(`{}`), Version: 3},
		{AggregateID: "a1", Type: event.AuctionStarted, Data: []byte(`{}`), Version: 1},
		{AggregateID: "a2", Type: event.AuctionStarted, Data: []byte(`{}`), Version: 1},
		{AggregateID: "a1", Type: event.AuctionLotOpened, Data: []byte(`{}`), Version: 2},
	}
	if err := repos.Events.Append(ctx, events...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := repos.Events.Load(ctx, "a1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Load returned %d events, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Version <= got[i-1].Version {
			t.Errorf("events out of version order: %d after %d", got[i].Version, got[i-1].Version)
		}
	}

	byType, err := repos.Events.LoadByType(ctx, event.AuctionStarted)
	if err != nil {
		t.Fatalf("LoadByType: %v", err)
	}
	if len(byType) != 2 {
		t.Errorf("LoadByType returned %d events, want 2", len(byType))
	}
}

func TestListLiveFiltersCompleted(t *testing.T) {
	repos := testRepos(t)
	ctx := context.Background()

	live := &store.Auction{Name: "live one", Status: "live"}
	done := &store.Auction{Name: "done one", Status: "live"}
	for _, a := range []*store.Auction{live, done} {
		if err := repos.Auctions.Create(ctx, a); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := repos.Auctions.Complete(ctx, done.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got, err := repos.Auctions.ListLive(ctx)
	if err != nil {
		t.Fatalf("ListLive: %v", err)
	}
	if len(got) != 1 || got[0].ID != live.ID {
		t.Errorf("ListLive = %+v, want just %s", got, live.ID)
	}
}

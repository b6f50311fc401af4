package postgres_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/rahulvdm/auction-engine/internal/store"
	"github.com/rahulvdm/auction-engine/internal/store/postgres"
)

// seedAuction inserts a parent auction row and returns its id.
func seedAuction(t *testing.T, repo *postgres.AuctionRepo) string {
	t.Helper()
	a := &store.Auction{
		Name:                   "test auction",
		Status:                 "live",
		MinBidIncrement:        1000,
		IncrementTierThreshold: 10000,
		TierBidIncrement:       2000,
		MandatoryTeamSize:      12,
		MinPerPlayerReserve:    1000,
		TotalPurse:             120000,
	}
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("seeding auction: %v", err)
	}
	return a.ID
}

func TestPlayerRepo_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	clk := testClock()
	auctions := postgres.NewAuctionRepo(db, clk)
	players := postgres.NewPlayerRepo(db, clk)
	ctx := context.Background()

	auctionID := seedAuction(t, auctions)
	p := &store.Player{
		ID:         uuid.NewString(),
		AuctionID:  auctionID,
		Name:       "Opening Bat",
		BasePrice:  2000,
		Attributes: store.AttributeBag{"runs": "4200", "strike_rate": "138"},
	}
	if err := players.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := players.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "Opening Bat" || got.Status != store.PlayerAvailable {
		t.Errorf("got %+v, want available Opening Bat", got)
	}
	if got.Attributes["runs"] != "4200" {
		t.Errorf("attributes round-trip lost data: %+v", got.Attributes)
	}
}

func TestPlayerRepo_MarkSoldIsSingleShot(t *testing.T) {
	db := newTestDB(t)
	clk := testClock()
	auctions := postgres.NewAuctionRepo(db, clk)
	players := postgres.NewPlayerRepo(db, clk)
	bidders := postgres.NewBidderRepo(db, clk)
	ctx := context.Background()

	auctionID := seedAuction(t, auctions)
	b := &store.Bidder{ID: uuid.NewString(), AuctionID: auctionID, Name: "Strikers", InitialPurse: 120000, RemainingPurse: 120000}
	if err := bidders.Create(ctx, b); err != nil {
		t.Fatalf("Create bidder: %v", err)
	}
	p := &store.Player{ID: uuid.NewString(), AuctionID: auctionID, Name: "Hot Lot", BasePrice: 1000}
	if err := players.Create(ctx, p); err != nil {
		t.Fatalf("Create player: %v", err)
	}

	if err := players.MarkSold(ctx, p.ID, b.ID, 5000); err != nil {
		t.Fatalf("MarkSold: %v", err)
	}
	if err := players.MarkSold(ctx, p.ID, b.ID, 6000); err == nil {
		t.Fatal("second MarkSold succeeded")
	}

	got, err := players.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != store.PlayerSold || got.SoldPrice == nil || *got.SoldPrice != 5000 {
		t.Errorf("player after sale = %+v, want sold at 5000", got)
	}
}

func TestBidderRepo_DeductPurseRefusesOverdraft(t *testing.T) {
	db := newTestDB(t)
	clk := testClock()
	auctions := postgres.NewAuctionRepo(db, clk)
	bidders := postgres.NewBidderRepo(db, clk)
	ctx := context.Background()

	auctionID := seedAuction(t, auctions)
	b := &store.Bidder{ID: uuid.NewString(), AuctionID: auctionID, Name: "Royals", InitialPurse: 10000, RemainingPurse: 10000}
	if err := bidders.Create(ctx, b); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := bidders.DeductPurse(ctx, b.ID, 4000); err != nil {
		t.Fatalf("DeductPurse: %v", err)
	}
	if err := bidders.DeductPurse(ctx, b.ID, 7000); err == nil {
		t.Fatal("overdraft allowed")
	}

	got, err := bidders.GetByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.RemainingPurse != 6000 {
		t.Errorf("RemainingPurse = %d, want 6000", got.RemainingPurse)
	}
}

package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rahulvdm/auction-engine/internal/clock"
	"github.com/rahulvdm/auction-engine/internal/store"
)

// AuctionRepo implements store.AuctionRepository with sqlx.
type AuctionRepo struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewAuctionRepo returns a new AuctionRepo.
func NewAuctionRepo(db *sqlx.DB, clk clock.Clock) *AuctionRepo {
	return &AuctionRepo{db: db, clock: clk}
}

func (r *AuctionRepo) Create(ctx context.Context, a *store.Auction) error {
	query := `INSERT INTO auctions
	           (id, name, status, min_bid_increment, increment_tier_threshold, tier_bid_increment,
	            mandatory_team_size, min_per_player_reserve, total_purse, created_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = r.clock.Now().UTC()
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Name, a.Status,
		a.MinBidIncrement, a.IncrementTierThreshold, a.TierBidIncrement,
		a.MandatoryTeamSize, a.MinPerPlayerReserve, a.TotalPurse, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting auction: %w", err)
	}
	return nil
}

func (r *AuctionRepo) GetByID(ctx context.Context, id string) (*store.Auction, error) {
	var a store.Auction
	err := r.db.GetContext(ctx, &a, `SELECT * FROM auctions WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("getting auction: %w", err)
	}
	return &a, nil
}

func (r *AuctionRepo) Complete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE auctions SET status = 'completed', completed_at = $1 WHERE id = $2 AND status = 'live'`,
		r.clock.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("completing auction: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("auction %s not found or not live", id)
	}
	return nil
}

func (r *AuctionRepo) ListLive(ctx context.Context) ([]store.Auction, error) {
	var auctions []store.Auction
	err := r.db.SelectContext(ctx, &auctions,
		`SELECT * FROM auctions WHERE status = 'live' ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing live auctions: %w", err)
	}
	return auctions, nil
}

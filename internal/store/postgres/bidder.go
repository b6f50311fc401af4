package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rahulvdm/auction-engine/internal/clock"
	"github.com/rahulvdm/auction-engine/internal/store"
)

// BidderRepo implements store.BidderRepository with sqlx.
type BidderRepo struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewBidderRepo returns a new BidderRepo.
func NewBidderRepo(db *sqlx.DB, clk clock.Clock) *BidderRepo {
	return &BidderRepo{db: db, clock: clk}
}

func (r *BidderRepo) Create(ctx context.Context, b *store.Bidder) error {
	query := `INSERT INTO bidders (id, auction_id, name, initial_purse, remaining_purse, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7)`
	now := r.clock.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.AuctionID, b.Name, b.InitialPurse, b.RemainingPurse, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting bidder: %w", err)
	}
	return nil
}

func (r *BidderRepo) GetByID(ctx context.Context, id string) (*store.Bidder, error) {
	var b store.Bidder
	err := r.db.GetContext(ctx, &b, `SELECT * FROM bidders WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("getting bidder: %w", err)
	}
	return &b, nil
}

func (r *BidderRepo) ListByAuction(ctx context.Context, auctionID string) ([]store.Bidder, error) {
	var bidders []store.Bidder
	err := r.db.SelectContext(ctx, &bidders,
		`SELECT * FROM bidders WHERE auction_id = $1 ORDER BY name ASC`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("listing bidders: %w", err)
	}
	return bidders, nil
}

// DeductPurse decrements remaining_purse. The predicate refuses overdrafts in
// the same statement, so the purse can never go negative under concurrency.
func (r *BidderRepo) DeductPurse(ctx context.Context, id string, amount int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE bidders SET remaining_purse = remaining_purse - $1, updated_at = $2
		 WHERE id = $3 AND remaining_purse >= $1`,
		amount, r.clock.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("deducting purse: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("bidder %s not found or purse cannot cover %d", id, amount)
	}
	return nil
}

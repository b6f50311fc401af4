package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rahulvdm/auction-engine/internal/clock"
	"github.com/rahulvdm/auction-engine/internal/store"
)

// PlayerRepo implements store.PlayerRepository with sqlx.
type PlayerRepo struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewPlayerRepo returns a new PlayerRepo.
func NewPlayerRepo(db *sqlx.DB, clk clock.Clock) *PlayerRepo {
	return &PlayerRepo{db: db, clock: clk}
}

func (r *PlayerRepo) Create(ctx context.Context, p *store.Player) error {
	query := `INSERT INTO players (id, auction_id, name, base_price, status, attributes, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	now := r.clock.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = store.PlayerAvailable
	}
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.AuctionID, p.Name, p.BasePrice, p.Status, p.Attributes, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting player: %w", err)
	}
	return nil
}

func (r *PlayerRepo) GetByID(ctx context.Context, id string) (*store.Player, error) {
	var p store.Player
	err := r.db.GetContext(ctx, &p, `SELECT * FROM players WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("getting player: %w", err)
	}
	return &p, nil
}

func (r *PlayerRepo) ListByAuction(ctx context.Context, auctionID string) ([]store.Player, error) {
	var players []store.Player
	err := r.db.SelectContext(ctx, &players,
		`SELECT * FROM players WHERE auction_id = $1 ORDER BY name ASC`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	return players, nil
}

// MarkSold flips an available player to sold. The status predicate keeps the
// transition single-shot even if two settlements race at the storage layer.
func (r *PlayerRepo) MarkSold(ctx context.Context, id, bidderID string, price int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE players SET status = 'sold', sold_to = $1, sold_price = $2, updated_at = $3
		 WHERE id = $4 AND status = 'available'`,
		bidderID, price, r.clock.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("marking player sold: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("player %s not found or not available", id)
	}
	return nil
}

func (r *PlayerRepo) MarkUnsold(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE players SET status = 'unsold', updated_at = $1
		 WHERE id = $2 AND status = 'available'`,
		r.clock.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("marking player unsold: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("player %s not found or not available", id)
	}
	return nil
}

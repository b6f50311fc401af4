package store

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// PlayerStatus is the lifecycle state of an auction lot.
type PlayerStatus string

const (
	PlayerAvailable PlayerStatus = "available"
	PlayerSold      PlayerStatus = "sold"
	PlayerUnsold    PlayerStatus = "unsold"
	PlayerRetired   PlayerStatus = "retired"
)

// AttributeBag holds a player's raw stat fields as loosely typed strings.
// Values arrive from spreadsheet imports and may be missing or malformed;
// consumers must parse leniently. Stored as JSONB.
type AttributeBag map[string]string

// Value implements driver.Valuer for JSONB columns.
func (b AttributeBag) Value() (driver.Value, error) {
	if b == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(b)
}

// Scan implements sql.Scanner for JSONB columns.
func (b *AttributeBag) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*b = AttributeBag{}
		return nil
	case []byte:
		return json.Unmarshal(v, b)
	case string:
		return json.Unmarshal([]byte(v), b)
	default:
		return fmt.Errorf("cannot scan %T into AttributeBag", src)
	}
}

// Player represents an auction lot. SoldPrice and SoldTo are set exactly once,
// on the transition to sold.
type Player struct {
	ID         string       `db:"id"`
	AuctionID  string       `db:"auction_id"`
	Name       string       `db:"name"`
	BasePrice  int64        `db:"base_price"`
	Status     PlayerStatus `db:"status"`
	Attributes AttributeBag `db:"attributes"`
	SoldPrice  *int64       `db:"sold_price"`
	SoldTo     *string      `db:"sold_to"`
	CreatedAt  time.Time    `db:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at"`
}

// Bidder represents an auction participant. RemainingPurse only ever
// decreases, and only by settlement of a winning bid.
type Bidder struct {
	ID             string    `db:"id"`
	AuctionID      string    `db:"auction_id"`
	Name           string    `db:"name"`
	InitialPurse   int64     `db:"initial_purse"`
	RemainingPurse int64     `db:"remaining_purse"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Auction represents an auction record.
type Auction struct {
	ID                     string     `db:"id"`
	Name                   string     `db:"name"`
	Status                 string     `db:"status"` // "live", "completed", "cancelled"
	MinBidIncrement        int64      `db:"min_bid_increment"`
	IncrementTierThreshold int64      `db:"increment_tier_threshold"`
	TierBidIncrement       int64      `db:"tier_bid_increment"`
	MandatoryTeamSize      int        `db:"mandatory_team_size"`
	MinPerPlayerReserve    int64      `db:"min_per_player_reserve"`
	TotalPurse             int64      `db:"total_purse"`
	CreatedAt              time.Time  `db:"created_at"`
	CompletedAt            *time.Time `db:"completed_at"`
}

// PlayerRepository defines player persistence operations.
type PlayerRepository interface {
	Create(ctx context.Context, p *Player) error
	GetByID(ctx context.Context, id string) (*Player, error)
	ListByAuction(ctx context.Context, auctionID string) ([]Player, error)
	// MarkSold records the sale. It fails if the player is not available,
	// which makes the sold transition single-shot at the storage layer too.
	MarkSold(ctx context.Context, id, bidderID string, price int64) error
	MarkUnsold(ctx context.Context, id string) error
}

// BidderRepository defines bidder persistence operations.
type BidderRepository interface {
	Create(ctx context.Context, b *Bidder) error
	GetByID(ctx context.Context, id string) (*Bidder, error)
	ListByAuction(ctx context.Context, auctionID string) ([]Bidder, error)
	// DeductPurse atomically decrements remaining_purse, failing if the
	// bidder is unknown or the purse would go negative.
	DeductPurse(ctx context.Context, id string, amount int64) error
}

// AuctionRepository defines auction persistence operations.
type AuctionRepository interface {
	Create(ctx context.Context, a *Auction) error
	GetByID(ctx context.Context, id string) (*Auction, error)
	Complete(ctx context.Context, id string) error
	ListLive(ctx context.Context) ([]Auction, error)
}

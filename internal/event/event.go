package event

import (
	"encoding/json"
	"time"
)

// Type identifies an event kind.
type Type string

const (
	AuctionStarted   Type = "auction.started"
	AuctionLotOpened Type = "auction.lot_opened"
	AuctionBidPlaced Type = "auction.bid_placed"
	PlayerSold       Type = "auction.player_sold"
	PlayerUnsold     Type = "auction.player_unsold"
	AuctionCompleted Type = "auction.completed"

	BidderRegistered Type = "bidder.registered"
	PlayerRegistered Type = "player.registered"
)

// Event represents a single domain event.
type Event struct {
	ID          string          `json:"id" db:"id"`
	AggregateID string          `json:"aggregate_id" db:"aggregate_id"`
	Type        Type            `json:"type" db:"type"`
	Data        json.RawMessage `json:"data" db:"data"`
	Version     int             `json:"version" db:"version"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// AuctionStartedData is the payload for AuctionStarted events. Rule fields are
// flattened in so the auction can be replayed without a separate rules lookup.
type AuctionStartedData struct {
	Name                   string `json:"name"`
	MinBidIncrement        int64  `json:"min_bid_increment"`
	IncrementTierThreshold int64  `json:"increment_tier_threshold"`
	TierBidIncrement       int64  `json:"tier_bid_increment"`
	MandatoryTeamSize      int    `json:"mandatory_team_size"`
	MinPerPlayerReserve    int64  `json:"min_per_player_reserve"`
	TotalPurse             int64  `json:"total_purse"`
}

// LotOpenedData is the payload for AuctionLotOpened events.
type LotOpenedData struct {
	PlayerID  string `json:"player_id"`
	BasePrice int64  `json:"base_price"`
}

// BidPlacedData is the payload for AuctionBidPlaced events.
type BidPlacedData struct {
	EntryID     string `json:"entry_id"`
	PlayerID    string `json:"player_id"`
	BidderID    string `json:"bidder_id"`
	Amount      int64  `json:"amount"`
	LogicalTime int    `json:"logical_time"`
}

// PlayerSoldData is the payload for PlayerSold events.
type PlayerSoldData struct {
	PlayerID string `json:"player_id"`
	BidderID string `json:"bidder_id"`
	Amount   int64  `json:"amount"`
}

// PlayerUnsoldData is the payload for PlayerUnsold events.
type PlayerUnsoldData struct {
	PlayerID string `json:"player_id"`
}

// BidderRegisteredData is the payload for BidderRegistered events.
type BidderRegisteredData struct {
	AuctionID string `json:"auction_id"`
	Name      string `json:"name"`
	Purse     int64  `json:"purse"`
}

// PlayerRegisteredData is the payload for PlayerRegistered events.
type PlayerRegisteredData struct {
	AuctionID string `json:"auction_id"`
	Name      string `json:"name"`
	BasePrice int64  `json:"base_price"`
}

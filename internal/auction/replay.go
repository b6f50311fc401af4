package auction

import (
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/rahulvdm/auction-engine/internal/clock"
	"github.com/rahulvdm/auction-engine/internal/event"
	"github.com/rahulvdm/auction-engine/internal/store"
)

// Hydrate rebuilds an in-memory aggregate after a restart or failover.
// Player and bidder rows already carry the settled state (sold markers,
// deducted purses); the event history is used only to reconstruct the bid
// ledger and the open lot, which live nowhere else.
func Hydrate(rec store.Auction, players []store.Player, bidders []store.Bidder, history []event.Event, tp trace.TracerProvider, clk clock.Clock) (*Auction, error) {
	a := &Auction{
		gate:   make(chan struct{}, 1),
		ID:     rec.ID,
		Name:   rec.Name,
		Status: rec.Status,
		Rules: Rules{
			MinBidIncrement:        rec.MinBidIncrement,
			IncrementTierThreshold: rec.IncrementTierThreshold,
			TierBidIncrement:       rec.TierBidIncrement,
			MandatoryTeamSize:      rec.MandatoryTeamSize,
			MinPerPlayerReserve:    rec.MinPerPlayerReserve,
			TotalPurse:             rec.TotalPurse,
		},
		players: make(map[string]*store.Player, len(players)),
		bidders: make(map[string]*store.Bidder, len(bidders)),
		ledger:  make(map[string][]LedgerEntry),
		tracer:  tp.Tracer("github.com/rahulvdm/auction-engine/internal/auction"),
		clock:   clk,
	}
	for i := range players {
		cp := players[i]
		a.players[cp.ID] = &cp
	}
	for i := range bidders {
		cp := bidders[i]
		a.bidders[cp.ID] = &cp
	}

	for _, e := range history {
		switch e.Type {
		case event.AuctionLotOpened:
			var d event.LotOpenedData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, fmt.Errorf("unmarshalling lot opened event: %w", err)
			}
			a.currentPlayerID = d.PlayerID

		case event.AuctionBidPlaced:
			var d event.BidPlacedData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, fmt.Errorf("unmarshalling bid event: %w", err)
			}
			a.ledger[d.PlayerID] = append(a.ledger[d.PlayerID], LedgerEntry{
				ID:          d.EntryID,
				PlayerID:    d.PlayerID,
				BidderID:    d.BidderID,
				Amount:      d.Amount,
				LogicalTime: d.LogicalTime,
				At:          e.CreatedAt,
			})

		case event.PlayerSold, event.PlayerUnsold:
			a.currentPlayerID = ""

		case event.AuctionCompleted:
			a.Status = StatusCompleted
		}
		if e.Version > a.Version {
			a.Version = e.Version
		}
	}

	// An open lot only survives recovery if the player row still says
	// available; settled rows win over a replayed lot_opened.
	if a.currentPlayerID != "" {
		if p, ok := a.players[a.currentPlayerID]; !ok || p.Status != store.PlayerAvailable {
			a.currentPlayerID = ""
		}
	}
	return a, nil
}

package auction

import (
	"time"

	"github.com/rahulvdm/auction-engine/internal/store"
)

// Snapshot is a point-in-time copy of an auction for read-only analysis. It
// never blocks writers for long and tolerates being slightly stale: the
// prediction path is eventually consistent, only the ledger itself is not.
type Snapshot struct {
	AuctionID       string
	Name            string
	Status          string
	Rules           Rules
	CurrentPlayerID string
	Version         int
	TakenAt         time.Time
	Players         []store.Player
	Bidders         []store.Bidder
	Ledger          map[string][]LedgerEntry
}

// Snapshot copies the aggregate state under the read lock.
func (a *Auction) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := Snapshot{
		AuctionID:       a.ID,
		Name:            a.Name,
		Status:          a.Status,
		Rules:           a.Rules,
		CurrentPlayerID: a.currentPlayerID,
		Version:         a.Version,
		TakenAt:         a.clock.Now().UTC(),
		Players:         make([]store.Player, 0, len(a.players)),
		Bidders:         make([]store.Bidder, 0, len(a.bidders)),
		Ledger:          make(map[string][]LedgerEntry, len(a.ledger)),
	}
	for _, p := range a.players {
		s.Players = append(s.Players, *p)
	}
	for _, b := range a.bidders {
		s.Bidders = append(s.Bidders, *b)
	}
	for id, entries := range a.ledger {
		cp := make([]LedgerEntry, len(entries))
		copy(cp, entries)
		s.Ledger[id] = cp
	}
	return s
}

// Player looks up a player by id.
func (s Snapshot) Player(id string) (store.Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return store.Player{}, false
}

// Bidder looks up a bidder by id.
func (s Snapshot) Bidder(id string) (store.Bidder, bool) {
	for _, b := range s.Bidders {
		if b.ID == id {
			return b, true
		}
	}
	return store.Bidder{}, false
}

// Roster returns the players sold to bidderID.
func (s Snapshot) Roster(bidderID string) []store.Player {
	var roster []store.Player
	for _, p := range s.Players {
		if p.Status == store.PlayerSold && p.SoldTo != nil && *p.SoldTo == bidderID {
			roster = append(roster, p)
		}
	}
	return roster
}

// HighestBid returns the top ledger entry for a player, if any.
func (s Snapshot) HighestBid(playerID string) (LedgerEntry, bool) {
	entries := s.Ledger[playerID]
	if len(entries) == 0 {
		return LedgerEntry{}, false
	}
	return entries[len(entries)-1], true
}

// CurrentBidAmount returns the highest bid for a player, or its base price
// when the ledger is empty.
func (s Snapshot) CurrentBidAmount(playerID string) int64 {
	if top, ok := s.HighestBid(playerID); ok {
		return top.Amount
	}
	if p, ok := s.Player(playerID); ok {
		return p.BasePrice
	}
	return 0
}

// AvailablePlayers returns the lots still open for bidding.
func (s Snapshot) AvailablePlayers() []store.Player {
	var out []store.Player
	for _, p := range s.Players {
		if p.Status == store.PlayerAvailable {
			out = append(out, p)
		}
	}
	return out
}

// SoldCount returns how many lots have been sold.
func (s Snapshot) SoldCount() int {
	n := 0
	for _, p := range s.Players {
		if p.Status == store.PlayerSold {
			n++
		}
	}
	return n
}

package auction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rahulvdm/auction-engine/internal/clock"
	"github.com/rahulvdm/auction-engine/internal/event"
	"github.com/rahulvdm/auction-engine/internal/store"
)

// Auction status values.
const (
	StatusLive      = "live"
	StatusCompleted = "completed"
)

// LedgerEntry is one immutable record in a player's append-only bid ledger.
// LogicalTime is the aggregate version at append time; entries for one player
// carry strictly increasing amounts.
type LedgerEntry struct {
	ID          string
	PlayerID    string
	BidderID    string
	Amount      int64
	LogicalTime int
	At          time.Time
}

// Sale is the outcome of settling a lot.
type Sale struct {
	PlayerID   string
	PlayerName string
	BidderID   string
	Amount     int64
}

// Auction is the aggregate root for one live auction. It is safe for
// concurrent use: reads take the RWMutex, while every mutation first passes
// a single commit gate with a bounded wait, so concurrent bids on the same
// lot are serialized and losers are re-validated against committed state.
type Auction struct {
	mu   sync.RWMutex
	gate chan struct{}

	ID      string
	Name    string
	Status  string
	Rules   Rules
	Version int

	players         map[string]*store.Player
	bidders         map[string]*store.Bidder
	ledger          map[string][]LedgerEntry
	currentPlayerID string

	events []event.Event
	tracer trace.Tracer
	clock  clock.Clock
}

// New creates a live auction and records its started event.
func New(id, name string, rules Rules, tp trace.TracerProvider, clk clock.Clock) *Auction {
	a := &Auction{
		gate:    make(chan struct{}, 1),
		ID:      id,
		Name:    name,
		Status:  StatusLive,
		Rules:   rules,
		players: make(map[string]*store.Player),
		bidders: make(map[string]*store.Bidder),
		ledger:  make(map[string][]LedgerEntry),
		tracer:  tp.Tracer("github.com/rahulvdm/auction-engine/internal/auction"),
		clock:   clk,
	}

	data, _ := json.Marshal(event.AuctionStartedData{
		Name:                   name,
		MinBidIncrement:        rules.MinBidIncrement,
		IncrementTierThreshold: rules.IncrementTierThreshold,
		TierBidIncrement:       rules.TierBidIncrement,
		MandatoryTeamSize:      rules.MandatoryTeamSize,
		MinPerPlayerReserve:    rules.MinPerPlayerReserve,
		TotalPurse:             rules.TotalPurse,
	})
	a.recordEvent(event.AuctionStarted, data)
	return a
}

// acquireGate claims exclusive write access with a bounded wait. Once
// acquired, the caller's validate+mutate runs to completion; release happens
// in the returned func. A timeout or cancellation surfaces as
// ErrConcurrencyConflict rather than hanging.
func (a *Auction) acquireGate(ctx context.Context, wait time.Duration) (release func(), err error) {
	if wait <= 0 {
		wait = 3 * time.Second
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case a.gate <- struct{}{}:
		return func() { <-a.gate }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrConcurrencyConflict, ctx.Err())
	case <-timer.C:
		return nil, fmt.Errorf("%w: gate wait exceeded %v", ErrConcurrencyConflict, wait)
	}
}

// AddBidder registers a participant.
func (a *Auction) AddBidder(ctx context.Context, b store.Bidder, wait time.Duration) error {
	release, err := a.acquireGate(ctx, wait)
	if err != nil {
		return err
	}
	defer release()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.Status != StatusLive {
		return ErrAuctionNotLive
	}
	if b.ID == "" || b.InitialPurse <= 0 {
		return fmt.Errorf("%w: bidder needs an id and a positive purse", ErrValidation)
	}
	if _, ok := a.bidders[b.ID]; ok {
		return fmt.Errorf("%w: bidder %s already registered", ErrValidation, b.ID)
	}
	cp := b
	a.bidders[b.ID] = &cp

	data, _ := json.Marshal(event.BidderRegisteredData{AuctionID: a.ID, Name: b.Name, Purse: b.InitialPurse})
	a.recordEvent(event.BidderRegistered, data)
	return nil
}

// AddPlayer registers a lot.
func (a *Auction) AddPlayer(ctx context.Context, p store.Player, wait time.Duration) error {
	release, err := a.acquireGate(ctx, wait)
	if err != nil {
		return err
	}
	defer release()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.Status != StatusLive {
		return ErrAuctionNotLive
	}
	if p.ID == "" || p.BasePrice < 0 {
		return fmt.Errorf("%w: player needs an id and a non-negative base price", ErrValidation)
	}
	if _, ok := a.players[p.ID]; ok {
		return fmt.Errorf("%w: player %s already registered", ErrValidation, p.ID)
	}
	if p.Status == "" {
		p.Status = store.PlayerAvailable
	}
	cp := p
	a.players[p.ID] = &cp

	data, _ := json.Marshal(event.PlayerRegisteredData{AuctionID: a.ID, Name: p.Name, BasePrice: p.BasePrice})
	a.recordEvent(event.PlayerRegistered, data)
	return nil
}

// OpenLot puts a player up for bidding. Only one lot is open at a time.
func (a *Auction) OpenLot(ctx context.Context, playerID string, wait time.Duration) error {
	ctx, span := a.tracer.Start(ctx, "Auction.OpenLot",
		trace.WithAttributes(
			attribute.String("auction.id", a.ID),
			attribute.String("player.id", playerID),
		),
	)
	defer span.End()

	release, err := a.acquireGate(ctx, wait)
	if err != nil {
		return err
	}
	defer release()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.Status != StatusLive {
		return ErrAuctionNotLive
	}
	if a.currentPlayerID != "" {
		return fmt.Errorf("%w: lot %s is still open", ErrValidation, a.currentPlayerID)
	}
	p, ok := a.players[playerID]
	if !ok {
		return ErrPlayerNotFound
	}
	if p.Status != store.PlayerAvailable {
		return ErrPlayerNotAvailable
	}
	a.currentPlayerID = playerID

	data, _ := json.Marshal(event.LotOpenedData{PlayerID: playerID, BasePrice: p.BasePrice})
	a.recordEvent(event.AuctionLotOpened, data)
	return nil
}

// SubmitBid validates a bid against committed state and appends it to the
// current lot's ledger. All checks run inside the commit gate, never on a
// stale read; on any rejection no state changes.
func (a *Auction) SubmitBid(ctx context.Context, bidderID string, amount int64, wait time.Duration) (LedgerEntry, error) {
	ctx, span := a.tracer.Start(ctx, "Auction.SubmitBid",
		trace.WithAttributes(
			attribute.String("auction.id", a.ID),
			attribute.String("bidder.id", bidderID),
			attribute.Int64("bid.amount", amount),
		),
	)
	defer span.End()

	release, err := a.acquireGate(ctx, wait)
	if err != nil {
		return LedgerEntry{}, err
	}
	defer release()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.Status != StatusLive {
		return LedgerEntry{}, ErrAuctionNotLive
	}
	if amount <= 0 {
		return LedgerEntry{}, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	bidder, ok := a.bidders[bidderID]
	if !ok {
		return LedgerEntry{}, ErrBidderNotFound
	}
	if a.currentPlayerID == "" {
		return LedgerEntry{}, ErrPlayerNotAvailable
	}
	player := a.players[a.currentPlayerID]
	if player.Status != store.PlayerAvailable {
		return LedgerEntry{}, ErrPlayerNotAvailable
	}

	entries := a.ledger[player.ID]
	currentBid := player.BasePrice
	if n := len(entries); n > 0 {
		last := entries[n-1]
		if last.BidderID == bidderID {
			return LedgerEntry{}, ErrAlreadyHighestBidder
		}
		currentBid = last.Amount
	}

	if min := a.Rules.MinimumNextBid(currentBid); amount < min {
		return LedgerEntry{}, fmt.Errorf("%w: minimum valid bid is %d", ErrBelowMinimumIncrement, min)
	}
	if amount > bidder.RemainingPurse {
		return LedgerEntry{}, ErrInsufficientFunds
	}

	roster := a.rosterCount(bidderID)
	if a.Rules.PurchasableSlots(roster) <= 0 {
		return LedgerEntry{}, fmt.Errorf("%w: roster already complete", ErrRosterInfeasible)
	}
	if reserve := a.Rules.ReserveAfter(roster); bidder.RemainingPurse-amount < reserve {
		return LedgerEntry{}, fmt.Errorf("%w: %d must stay reserved for remaining slots", ErrRosterInfeasible, reserve)
	}

	a.Version++
	entry := LedgerEntry{
		ID:          uuid.NewString(),
		PlayerID:    player.ID,
		BidderID:    bidderID,
		Amount:      amount,
		LogicalTime: a.Version,
		At:          a.clock.Now().UTC(),
	}
	a.ledger[player.ID] = append(entries, entry)

	data, _ := json.Marshal(event.BidPlacedData{
		EntryID:     entry.ID,
		PlayerID:    entry.PlayerID,
		BidderID:    entry.BidderID,
		Amount:      entry.Amount,
		LogicalTime: entry.LogicalTime,
	})
	a.appendEvent(event.AuctionBidPlaced, data)

	slog.InfoContext(ctx, "bid accepted",
		slog.String("auction_id", a.ID),
		slog.String("player_id", entry.PlayerID),
		slog.String("bidder_id", entry.BidderID),
		slog.Int64("amount", entry.Amount),
	)
	return entry, nil
}

// SettleLot closes the open lot as sold to its highest bidder, deducting the
// price from the winner's purse. SoldPrice and SoldTo are set exactly once.
func (a *Auction) SettleLot(ctx context.Context, wait time.Duration) (Sale, error) {
	ctx, span := a.tracer.Start(ctx, "Auction.SettleLot",
		trace.WithAttributes(attribute.String("auction.id", a.ID)),
	)
	defer span.End()

	release, err := a.acquireGate(ctx, wait)
	if err != nil {
		return Sale{}, err
	}
	defer release()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.Status != StatusLive {
		return Sale{}, ErrAuctionNotLive
	}
	if a.currentPlayerID == "" {
		return Sale{}, ErrPlayerNotAvailable
	}
	player := a.players[a.currentPlayerID]
	entries := a.ledger[player.ID]
	if len(entries) == 0 {
		return Sale{}, ErrNoBids
	}

	winning := entries[len(entries)-1]
	bidder := a.bidders[winning.BidderID]

	player.Status = store.PlayerSold
	price := winning.Amount
	player.SoldPrice = &price
	winnerID := winning.BidderID
	player.SoldTo = &winnerID
	bidder.RemainingPurse -= price
	a.currentPlayerID = ""

	data, _ := json.Marshal(event.PlayerSoldData{PlayerID: player.ID, BidderID: winnerID, Amount: price})
	a.recordEvent(event.PlayerSold, data)

	slog.InfoContext(ctx, "lot settled",
		slog.String("auction_id", a.ID),
		slog.String("player_id", player.ID),
		slog.String("winner_id", winnerID),
		slog.Int64("amount", price),
	)
	return Sale{PlayerID: player.ID, PlayerName: player.Name, BidderID: winnerID, Amount: price}, nil
}

// CloseLotUnsold closes the open lot with no bids as unsold.
func (a *Auction) CloseLotUnsold(ctx context.Context, wait time.Duration) (string, error) {
	_, span := a.tracer.Start(ctx, "Auction.CloseLotUnsold",
		trace.WithAttributes(attribute.String("auction.id", a.ID)),
	)
	defer span.End()

	release, err := a.acquireGate(ctx, wait)
	if err != nil {
		return "", err
	}
	defer release()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.Status != StatusLive {
		return "", ErrAuctionNotLive
	}
	if a.currentPlayerID == "" {
		return "", ErrPlayerNotAvailable
	}
	player := a.players[a.currentPlayerID]
	if len(a.ledger[player.ID]) > 0 {
		return "", fmt.Errorf("%w: lot has bids and must be settled", ErrValidation)
	}

	player.Status = store.PlayerUnsold
	a.currentPlayerID = ""

	data, _ := json.Marshal(event.PlayerUnsoldData{PlayerID: player.ID})
	a.recordEvent(event.PlayerUnsold, data)
	return player.ID, nil
}

// Complete marks the auction finished. The open lot, if any, must be closed
// first.
func (a *Auction) Complete(ctx context.Context, wait time.Duration) error {
	release, err := a.acquireGate(ctx, wait)
	if err != nil {
		return err
	}
	defer release()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.Status != StatusLive {
		return ErrAuctionNotLive
	}
	if a.currentPlayerID != "" {
		return fmt.Errorf("%w: lot %s is still open", ErrValidation, a.currentPlayerID)
	}
	a.Status = StatusCompleted
	a.recordEvent(event.AuctionCompleted, json.RawMessage(`{}`))
	return nil
}

// CurrentBid returns the highest bid on the open lot, if any.
func (a *Auction) CurrentBid() (LedgerEntry, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.currentPlayerID == "" {
		return LedgerEntry{}, false
	}
	entries := a.ledger[a.currentPlayerID]
	if len(entries) == 0 {
		return LedgerEntry{}, false
	}
	return entries[len(entries)-1], true
}

// rosterCount is the number of players sold to bidderID. Callers hold a.mu.
func (a *Auction) rosterCount(bidderID string) int {
	n := 0
	for _, p := range a.players {
		if p.Status == store.PlayerSold && p.SoldTo != nil && *p.SoldTo == bidderID {
			n++
		}
	}
	return n
}

// PendingEvents returns uncommitted events and clears the buffer.
func (a *Auction) PendingEvents() []event.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	events := a.events
	a.events = nil
	return events
}

// recordEvent bumps the aggregate version and buffers an event. Callers hold
// a.mu (or run before the aggregate is shared).
func (a *Auction) recordEvent(t event.Type, data json.RawMessage) {
	a.Version++
	a.appendEvent(t, data)
}

// appendEvent buffers an event at the current version, for mutations that
// already advanced the version themselves.
func (a *Auction) appendEvent(t event.Type, data json.RawMessage) {
	a.events = append(a.events, event.Event{
		AggregateID: a.ID,
		Type:        t,
		Data:        data,
		Version:     a.Version,
		CreatedAt:   a.clock.Now().UTC(),
	})
}

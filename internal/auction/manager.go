package auction

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rahulvdm/auction-engine/internal/clock"
	"github.com/rahulvdm/auction-engine/internal/event"
	"github.com/rahulvdm/auction-engine/internal/notify"
	"github.com/rahulvdm/auction-engine/internal/store"
	"github.com/rahulvdm/auction-engine/internal/telemetry"
)

// Manager coordinates auction lifecycle, persistence and notification.
// Separate auctions are fully independent; only bids against the same
// auction serialize against each other.
type Manager struct {
	mu       sync.RWMutex
	auctions map[string]*Auction

	players  store.PlayerRepository
	bidders  store.BidderRepository
	records  store.AuctionRepository
	events   event.Store
	sink     notify.Sink
	logger   *slog.Logger
	tracer   trace.Tracer
	tp       trace.TracerProvider
	clock    clock.Clock
	gateWait time.Duration
	metrics  *telemetry.BidMetrics
}

// NewManager creates a Manager. gateWait bounds how long one bid may wait
// for its auction's commit gate. metrics may be nil.
func NewManager(repos *store.Repositories, sink notify.Sink, logger *slog.Logger, tp trace.TracerProvider, clk clock.Clock, gateWait time.Duration, metrics *telemetry.BidMetrics) *Manager {
	if sink == nil {
		sink = notify.NopSink{}
	}
	return &Manager{
		auctions: make(map[string]*Auction),
		players:  repos.Players,
		bidders:  repos.Bidders,
		records:  repos.Auctions,
		events:   repos.Events,
		sink:     sink,
		logger:   logger,
		tracer:   tp.Tracer("github.com/rahulvdm/auction-engine/internal/auction"),
		tp:       tp,
		clock:    clk,
		gateWait: gateWait,
		metrics:  metrics,
	}
}

// StartAuction creates and tracks a live auction.
func (m *Manager) StartAuction(ctx context.Context, name string, rules Rules) (*Auction, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.StartAuction",
		trace.WithAttributes(attribute.String("auction.name", name)),
	)
	defer span.End()

	rec := &store.Auction{
		Name:                   name,
		Status:                 StatusLive,
		MinBidIncrement:        rules.MinBidIncrement,
		IncrementTierThreshold: rules.IncrementTierThreshold,
		TierBidIncrement:       rules.TierBidIncrement,
		MandatoryTeamSize:      rules.MandatoryTeamSize,
		MinPerPlayerReserve:    rules.MinPerPlayerReserve,
		TotalPurse:             rules.TotalPurse,
	}
	if err := m.records.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("creating auction record: %w", err)
	}

	a := New(rec.ID, name, rules, m.tp, m.clock)
	if err := m.events.Append(ctx, a.PendingEvents()...); err != nil {
		return nil, fmt.Errorf("persisting auction started events: %w", err)
	}

	m.mu.Lock()
	m.auctions[rec.ID] = a
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "auction started",
		slog.String("auction_id", rec.ID),
		slog.String("name", name),
	)
	return a, nil
}

// RegisterBidder adds a participant with the auction's full purse.
func (m *Manager) RegisterBidder(ctx context.Context, auctionID, name string) (*store.Bidder, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.RegisterBidder",
		trace.WithAttributes(
			attribute.String("auction_id", auctionID),
			attribute.String("bidder.name", name),
		),
	)
	defer span.End()

	a, err := m.get(auctionID)
	if err != nil {
		return nil, err
	}

	b := &store.Bidder{
		ID:             uuid.NewString(),
		AuctionID:      auctionID,
		Name:           name,
		InitialPurse:   a.Rules.TotalPurse,
		RemainingPurse: a.Rules.TotalPurse,
	}
	if err := m.bidders.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("creating bidder: %w", err)
	}
	if err := a.AddBidder(ctx, *b, m.gateWait); err != nil {
		return nil, err
	}
	m.persistEvents(ctx, a)

	m.logger.InfoContext(ctx, "bidder registered",
		slog.String("auction_id", auctionID),
		slog.String("bidder_id", b.ID),
	)
	return b, nil
}

// RegisterPlayer adds a lot with its raw attribute bag.
func (m *Manager) RegisterPlayer(ctx context.Context, auctionID, name string, basePrice int64, attrs store.AttributeBag) (*store.Player, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.RegisterPlayer",
		trace.WithAttributes(
			attribute.String("auction_id", auctionID),
			attribute.String("player.name", name),
		),
	)
	defer span.End()

	a, err := m.get(auctionID)
	if err != nil {
		return nil, err
	}

	p := &store.Player{
		ID:         uuid.NewString(),
		AuctionID:  auctionID,
		Name:       name,
		BasePrice:  basePrice,
		Status:     store.PlayerAvailable,
		Attributes: attrs,
	}
	if err := m.players.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("creating player: %w", err)
	}
	if err := a.AddPlayer(ctx, *p, m.gateWait); err != nil {
		return nil, err
	}
	m.persistEvents(ctx, a)
	return p, nil
}

// OpenLot puts a player up for bidding.
func (m *Manager) OpenLot(ctx context.Context, auctionID, playerID string) error {
	a, err := m.get(auctionID)
	if err != nil {
		return err
	}
	if err := a.OpenLot(ctx, playerID, m.gateWait); err != nil {
		return err
	}
	m.persistEvents(ctx, a)
	return nil
}

// SubmitBid validates and commits a bid on the open lot. On success the
// ledger entry is durable in the event store and a new-bid notification goes
// out; the notification can neither fail nor delay the commit.
func (m *Manager) SubmitBid(ctx context.Context, auctionID, bidderID string, amount int64) (LedgerEntry, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.SubmitBid",
		trace.WithAttributes(
			attribute.String("auction_id", auctionID),
			attribute.String("bidder_id", bidderID),
			attribute.Int64("amount", amount),
		),
	)
	defer span.End()

	a, err := m.get(auctionID)
	if err != nil {
		return LedgerEntry{}, err
	}

	entry, err := a.SubmitBid(ctx, bidderID, amount, m.gateWait)
	if err != nil {
		m.metrics.RecordRejected(ctx)
		return LedgerEntry{}, err
	}
	m.metrics.RecordAccepted(ctx, entry.Amount)
	m.persistEvents(ctx, a)

	m.sink.Publish(notify.Notification{
		Kind:      notify.KindNewBid,
		AuctionID: auctionID,
		PlayerID:  entry.PlayerID,
		BidderID:  entry.BidderID,
		Amount:    entry.Amount,
		At:        entry.At,
	})
	return entry, nil
}

// SettleLot sells the open lot to its highest bidder, writes the sale through
// to the player and bidder rows, and notifies consumers.
func (m *Manager) SettleLot(ctx context.Context, auctionID string) (Sale, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.SettleLot",
		trace.WithAttributes(attribute.String("auction_id", auctionID)),
	)
	defer span.End()

	a, err := m.get(auctionID)
	if err != nil {
		return Sale{}, err
	}

	sale, err := a.SettleLot(ctx, m.gateWait)
	if err != nil {
		return Sale{}, err
	}

	if err := m.players.MarkSold(ctx, sale.PlayerID, sale.BidderID, sale.Amount); err != nil {
		m.logger.ErrorContext(ctx, "failed to persist sale", slog.Any("error", err))
	}
	if err := m.bidders.DeductPurse(ctx, sale.BidderID, sale.Amount); err != nil {
		m.logger.ErrorContext(ctx, "failed to persist purse deduction", slog.Any("error", err))
	}
	m.metrics.RecordSold(ctx)
	m.persistEvents(ctx, a)

	m.sink.Publish(notify.Notification{
		Kind:      notify.KindPlayerSold,
		AuctionID: auctionID,
		PlayerID:  sale.PlayerID,
		BidderID:  sale.BidderID,
		Amount:    sale.Amount,
		At:        m.clock.Now().UTC(),
	})
	return sale, nil
}

// CloseLotUnsold closes a lot nobody bid on.
func (m *Manager) CloseLotUnsold(ctx context.Context, auctionID string) error {
	ctx, span := m.tracer.Start(ctx, "Manager.CloseLotUnsold",
		trace.WithAttributes(attribute.String("auction_id", auctionID)),
	)
	defer span.End()

	a, err := m.get(auctionID)
	if err != nil {
		return err
	}

	playerID, err := a.CloseLotUnsold(ctx, m.gateWait)
	if err != nil {
		return err
	}
	if err := m.players.MarkUnsold(ctx, playerID); err != nil {
		m.logger.ErrorContext(ctx, "failed to persist unsold marker", slog.Any("error", err))
	}
	m.persistEvents(ctx, a)

	m.sink.Publish(notify.Notification{
		Kind:      notify.KindPlayerUnsold,
		AuctionID: auctionID,
		PlayerID:  playerID,
		At:        m.clock.Now().UTC(),
	})
	return nil
}

// CompleteAuction finishes an auction and drops it from the live set.
func (m *Manager) CompleteAuction(ctx context.Context, auctionID string) error {
	a, err := m.get(auctionID)
	if err != nil {
		return err
	}
	if err := a.Complete(ctx, m.gateWait); err != nil {
		return err
	}
	if err := m.records.Complete(ctx, auctionID); err != nil {
		m.logger.ErrorContext(ctx, "failed to persist auction completion", slog.Any("error", err))
	}
	m.persistEvents(ctx, a)

	m.mu.Lock()
	delete(m.auctions, auctionID)
	m.mu.Unlock()
	return nil
}

// Stats reports live aggregate counts for health reporting.
func (m *Manager) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	openLots := 0
	for _, a := range m.auctions {
		if a.Snapshot().CurrentPlayerID != "" {
			openLots++
		}
	}
	return map[string]int{
		"live_auctions": len(m.auctions),
		"open_lots":     openLots,
	}
}

// Snapshot returns a read-only copy of an auction for analysis.
func (m *Manager) Snapshot(auctionID string) (Snapshot, error) {
	a, err := m.get(auctionID)
	if err != nil {
		return Snapshot{}, err
	}
	return a.Snapshot(), nil
}

// RecoverLiveAuctions reloads every live auction from storage and replays its
// bid history into memory. Used on leader startup to restore state after a
// failover.
func (m *Manager) RecoverLiveAuctions(ctx context.Context) (int, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.RecoverLiveAuctions")
	defer span.End()

	records, err := m.records.ListLive(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing live auctions: %w", err)
	}

	recovered := 0
	for _, rec := range records {
		players, err := m.players.ListByAuction(ctx, rec.ID)
		if err != nil {
			m.logger.WarnContext(ctx, "skipping auction, players failed to load",
				slog.String("auction_id", rec.ID), slog.Any("error", err))
			continue
		}
		bidders, err := m.bidders.ListByAuction(ctx, rec.ID)
		if err != nil {
			m.logger.WarnContext(ctx, "skipping auction, bidders failed to load",
				slog.String("auction_id", rec.ID), slog.Any("error", err))
			continue
		}
		history, err := m.events.Load(ctx, rec.ID)
		if err != nil {
			m.logger.WarnContext(ctx, "skipping auction, history failed to load",
				slog.String("auction_id", rec.ID), slog.Any("error", err))
			continue
		}

		a, err := Hydrate(rec, players, bidders, history, m.tp, m.clock)
		if err != nil {
			m.logger.WarnContext(ctx, "failed to replay auction during recovery",
				slog.String("auction_id", rec.ID), slog.Any("error", err))
			continue
		}

		m.mu.Lock()
		m.auctions[rec.ID] = a
		m.mu.Unlock()
		recovered++

		m.logger.InfoContext(ctx, "recovered live auction",
			slog.String("auction_id", rec.ID),
			slog.Int("players", len(players)),
			slog.Int("bidders", len(bidders)),
		)
	}

	m.logger.InfoContext(ctx, "auction recovery complete",
		slog.Int("live_records", len(records)),
		slog.Int("recovered", recovered),
	)
	return recovered, nil
}

func (m *Manager) get(auctionID string) (*Auction, error) {
	m.mu.RLock()
	a, ok := m.auctions[auctionID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAuctionNotFound, auctionID)
	}
	return a, nil
}

// persistEvents appends the aggregate's pending events. Persistence failures
// are logged, not returned: the in-memory aggregate is authoritative for the
// live auction and must not roll back an accepted mutation.
func (m *Manager) persistEvents(ctx context.Context, a *Auction) {
	events := a.PendingEvents()
	if len(events) == 0 {
		return
	}
	if err := m.events.Append(ctx, events...); err != nil {
		m.logger.ErrorContext(ctx, "failed to persist events",
			slog.String("auction_id", a.ID),
			slog.Int("count", len(events)),
			slog.Any("error", err),
		)
	}
}

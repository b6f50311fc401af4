// Package memory provides an in-process store driver. It backs tests and
// single-node deployments that do not need durability across restarts; the
// postgres driver is the production choice.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/rahulvdm/auction-engine/internal/clock"
	"github.com/rahulvdm/auction-engine/internal/config"
	"github.com/rahulvdm/auction-engine/internal/event"
	"github.com/rahulvdm/auction-engine/internal/store"
)

func init() {
	store.Register("memory", func(_ context.Context, _ config.DatabaseConfig, clk clock.Clock) (*store.Repositories, error) {
		return New(clk), nil
	})
}

// db is the shared state behind all repositories of one Open call.
type db struct {
	mu       sync.RWMutex
	clock    clock.Clock
	players  map[string]store.Player
	bidders  map[string]store.Bidder
	auctions map[string]store.Auction
	events   []event.Event
}

// New builds a fresh set of in-memory repositories around clk.
func New(clk clock.Clock) *store.Repositories {
	d := &db{
		clock:    clk,
		players:  make(map[string]store.Player),
		bidders:  make(map[string]store.Bidder),
		auctions: make(map[string]store.Auction),
	}
	return &store.Repositories{
		Players:  (*playerRepo)(d),
		Bidders:  (*bidderRepo)(d),
		Auctions: (*auctionRepo)(d),
		Events:   (*eventStore)(d),
		Closer:   nopCloser{},
		Ping:     func(context.Context) error { return nil },
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type playerRepo db

func (r *playerRepo) Create(_ context.Context, p *store.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := r.players[p.ID]; ok {
		return fmt.Errorf("player %s already exists", p.ID)
	}
	now := r.clock.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	r.players[p.ID] = *p
	return nil
}

func (r *playerRepo) GetByID(_ context.Context, id string) (*store.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[id]
	if !ok {
		return nil, fmt.Errorf("player %s not found", id)
	}
	return &p, nil
}

func (r *playerRepo) ListByAuction(_ context.Context, auctionID string) ([]store.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []store.Player
	for _, p := range r.players {
		if p.AuctionID == auctionID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *playerRepo) MarkSold(_ context.Context, id, bidderID string, price int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[id]
	if !ok {
		return fmt.Errorf("player %s not found", id)
	}
	if p.Status != store.PlayerAvailable {
		return fmt.Errorf("player %s is %s, not available", id, p.Status)
	}
	p.Status = store.PlayerSold
	p.SoldPrice = &price
	p.SoldTo = &bidderID
	p.UpdatedAt = r.clock.Now().UTC()
	r.players[id] = p
	return nil
}

func (r *playerRepo) MarkUnsold(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[id]
	if !ok {
		return fmt.Errorf("player %s not found", id)
	}
	if p.Status != store.PlayerAvailable {
		return fmt.Errorf("player %s is %s, not available", id, p.Status)
	}
	p.Status = store.PlayerUnsold
	p.UpdatedAt = r.clock.Now().UTC()
	r.players[id] = p
	return nil
}

type bidderRepo db

func (r *bidderRepo) Create(_ context.Context, b *store.Bidder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if _, ok := r.bidders[b.ID]; ok {
		return fmt.Errorf("bidder %s already exists", b.ID)
	}
	now := r.clock.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	r.bidders[b.ID] = *b
	return nil
}

func (r *bidderRepo) GetByID(_ context.Context, id string) (*store.Bidder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bidders[id]
	if !ok {
		return nil, fmt.Errorf("bidder %s not found", id)
	}
	return &b, nil
}

func (r *bidderRepo) ListByAuction(_ context.Context, auctionID string) ([]store.Bidder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []store.Bidder
	for _, b := range r.bidders {
		if b.AuctionID == auctionID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *bidderRepo) DeductPurse(_ context.Context, id string, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bidders[id]
	if !ok {
		return fmt.Errorf("bidder %s not found", id)
	}
	if b.RemainingPurse < amount {
		return fmt.Errorf("bidder %s purse %d cannot cover %d", id, b.RemainingPurse, amount)
	}
	b.RemainingPurse -= amount
	b.UpdatedAt = r.clock.Now().UTC()
	r.bidders[id] = b
	return nil
}

type auctionRepo db

func (r *auctionRepo) Create(_ context.Context, a *store.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if _, ok := r.auctions[a.ID]; ok {
		return fmt.Errorf("auction %s already exists", a.ID)
	}
	a.CreatedAt = r.clock.Now().UTC()
	r.auctions[a.ID] = *a
	return nil
}

func (r *auctionRepo) GetByID(_ context.Context, id string) (*store.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.auctions[id]
	if !ok {
		return nil, fmt.Errorf("auction %s not found", id)
	}
	return &a, nil
}

func (r *auctionRepo) Complete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[id]
	if !ok {
		return fmt.Errorf("auction %s not found", id)
	}
	now := r.clock.Now().UTC()
	a.Status = "completed"
	a.CompletedAt = &now
	r.auctions[id] = a
	return nil
}

func (r *auctionRepo) ListLive(_ context.Context) ([]store.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []store.Auction
	for _, a := range r.auctions {
		if a.Status == "live" {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type eventStore db

func (s *eventStore) Append(_ context.Context, events ...event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = s.clock.Now().UTC()
		}
		s.events = append(s.events, e)
	}
	return nil
}

func (s *eventStore) Load(_ context.Context, aggregateID string) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []event.Event
	for _, e := range s.events {
		if e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (s *eventStore) LoadByType(_ context.Context, eventType event.Type) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []event.Event
	for _, e := range s.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out, nil
}

// Package notify carries post-commit domain notifications to external
// consumers (scoreboards, timers, chat relays). Publishing happens strictly
// after a successful commit and is best-effort: a slow or absent consumer
// must never block or fail the commit that produced the notification.
package notify

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Kind identifies a notification type.
type Kind string

const (
	KindNewBid       Kind = "new-bid"
	KindPlayerSold   Kind = "player-sold"
	KindPlayerUnsold Kind = "player-unsold"
)

// Notification is one published domain occurrence.
type Notification struct {
	Kind      Kind
	AuctionID string
	PlayerID  string
	BidderID  string
	Amount    int64
	At        time.Time
}

// Sink receives notifications. Implementations must not block.
type Sink interface {
	Publish(n Notification)
}

// NopSink discards everything.
type NopSink struct{}

// Publish implements Sink.
func (NopSink) Publish(Notification) {}

// Hub fans notifications out to subscriber channels. Delivery is lossy by
// contract: a subscriber that stops draining its channel loses messages
// rather than stalling publishers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan Notification
	nextID int
	buffer int
	logger *slog.Logger

	dropped atomic.Int64
}

// NewHub creates a Hub whose subscriber channels buffer up to buffer
// notifications each.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[int]chan Notification),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a consumer and returns its channel plus a cancel func.
func (h *Hub) Subscribe() (<-chan Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Notification, h.buffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers n to every subscriber without blocking.
func (h *Hub) Publish(n Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs {
		select {
		case ch <- n:
		default:
			h.dropped.Add(1)
			h.logger.Warn("notification dropped, subscriber not draining",
				slog.String("kind", string(n.Kind)),
				slog.String("auction_id", n.AuctionID),
			)
		}
	}
}

// Dropped reports how many notifications were discarded so far.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

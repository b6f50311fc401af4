// Package prediction turns an auction snapshot into bidder-behavior
// forecasts: who is likely to bid on the current lot, how high, and what the
// focal bidder should do about it. The deterministic computation in this
// package is the source of truth; an external narrative enhancer may edit
// the prose but never the numeric guarantees.
package prediction

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rahulvdm/auction-engine/internal/analysis"
	"github.com/rahulvdm/auction-engine/internal/auction"
	"github.com/rahulvdm/auction-engine/internal/config"
	"github.com/rahulvdm/auction-engine/internal/store"
	"github.com/rahulvdm/auction-engine/internal/valuation"
)

// Action is the recommended move for the focal bidder.
type Action string

const (
	ActionBid  Action = "bid"
	ActionWait Action = "wait"
	ActionPass Action = "pass"
)

// Probability ceiling: no forecast is ever certain.
const maxProbability = 0.95

// Thresholds for the upcoming high-value list.
const (
	highValueRating = 70.0
	upcomingLimit   = 5
)

// LikelyBidder is one bidder's forecast participation on the current lot.
type LikelyBidder struct {
	BidderID    string  `json:"bidder_id"`
	BidderName  string  `json:"bidder_name"`
	Probability float64 `json:"probability"`
	// CeilingPrice is the highest amount this bidder is expected to chase,
	// rounded up to the bid increment.
	CeilingPrice int64 `json:"ceiling_price"`
}

// MarketAnalysis aggregates bid activity on the lot.
type MarketAnalysis struct {
	CurrentBid       int64  `json:"current_bid"`
	BidCount         int    `json:"bid_count"`
	AverageBid       int64  `json:"average_bid"`
	HighestBid       int64  `json:"highest_bid"`
	Anchor           int64  `json:"anchor"`
	CompetitionLevel string `json:"competition_level"` // high, medium, low
}

// Recommendation is the focal bidder's suggested move. RecommendedBid is set
// only when Action is bid.
type Recommendation struct {
	Action            Action `json:"action"`
	SuggestedBuyPrice int64  `json:"suggested_buy_price"`
	RecommendedBid    int64  `json:"recommended_bid,omitempty"`
	Rationale         string `json:"rationale"`
}

// UpcomingPlayer is a still-available lot worth saving purse for.
type UpcomingPlayer struct {
	PlayerID       string  `json:"player_id"`
	Name           string  `json:"name"`
	Rating         float64 `json:"rating"`
	PredictedPrice int64   `json:"predicted_price"`
}

// Result is the full prediction output.
type Result struct {
	AuctionID         string           `json:"auction_id"`
	PlayerID          string           `json:"player_id"`
	FocalBidderID     string           `json:"focal_bidder_id"`
	Valuation         valuation.Score  `json:"-"`
	LikelyBidders     []LikelyBidder   `json:"likely_bidders"`
	Recommendation    Recommendation   `json:"recommendation"`
	Market            MarketAnalysis   `json:"market"`
	UpcomingHighValue []UpcomingPlayer `json:"upcoming_high_value"`
	Enhanced          bool             `json:"enhanced"`
}

// Options toggles optional behavior per call.
type Options struct {
	// UseExternalEnhancement asks the engine to run the configured
	// narrative enhancer over the deterministic result. Enhancer failures
	// are swallowed; the local result always stands.
	UseExternalEnhancement bool
}

// Engine computes predictions. Safe for concurrent use; it never mutates the
// snapshot it is given.
type Engine struct {
	cfg      config.PredictionConfig
	enhancer Enhancer
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewEngine creates an Engine. enhancer may be nil.
func NewEngine(cfg config.PredictionConfig, enhancer Enhancer, logger *slog.Logger, tp trace.TracerProvider) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		enhancer: enhancer,
		logger:   logger,
		tracer:   tp.Tracer("github.com/rahulvdm/auction-engine/internal/prediction"),
	}
}

// Predict produces the forecast for playerID from the focal bidder's seat.
// It errors only on structurally invalid input (unknown player or bidder);
// data-quality problems degrade to documented defaults instead.
func (e *Engine) Predict(ctx context.Context, snap auction.Snapshot, playerID, focalBidderID string, opts Options) (Result, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Predict",
		trace.WithAttributes(
			attribute.String("auction_id", snap.AuctionID),
			attribute.String("player_id", playerID),
			attribute.String("focal_bidder_id", focalBidderID),
		),
	)
	defer span.End()

	player, ok := snap.Player(playerID)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", auction.ErrPlayerNotFound, playerID)
	}
	focal, ok := snap.Bidder(focalBidderID)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", auction.ErrBidderNotFound, focalBidderID)
	}

	unit := snap.Rules.MinBidIncrement
	val := valuation.Compute(player.Attributes, player.BasePrice, unit)
	pool := analysis.AnalyzePool(snap.Players)
	impact := pool.SupplyImpact(val.Role)
	upcoming := upcomingHighValue(snap, playerID, unit)

	market := analyzeMarket(snap, playerID, val)

	soldFrac := 0.0
	if len(snap.Players) > 0 {
		soldFrac = float64(snap.SoldCount()) / float64(len(snap.Players))
	}

	var likely []LikelyBidder
	for _, b := range snap.Bidders {
		needs := analysis.AnalyzeNeeds(b, snap.Roster(b.ID), snap.Rules)
		p := e.bidderProbability(b, needs, val.Role, impact, soldFrac, len(upcoming) > 0, snap.Rules, market.CurrentBid)
		if p < 0.05 {
			continue
		}
		likely = append(likely, LikelyBidder{
			BidderID:     b.ID,
			BidderName:   b.Name,
			Probability:  p,
			CeilingPrice: e.ceilingPrice(b, market, player.BasePrice, val, unit),
		})
	}
	sort.Slice(likely, func(i, j int) bool {
		if likely[i].Probability != likely[j].Probability {
			return likely[i].Probability > likely[j].Probability
		}
		return likely[i].BidderID < likely[j].BidderID
	})
	market.CompetitionLevel = competitionLevel(likely)

	focalNeeds := analysis.AnalyzeNeeds(focal, snap.Roster(focal.ID), snap.Rules)
	rec := e.recommend(focal, focalNeeds, val, market, player.BasePrice, snap.Rules, len(upcoming) > 0)

	result := Result{
		AuctionID:         snap.AuctionID,
		PlayerID:          playerID,
		FocalBidderID:     focalBidderID,
		Valuation:         val,
		LikelyBidders:     likely,
		Recommendation:    rec,
		Market:            market,
		UpcomingHighValue: upcoming,
	}

	if opts.UseExternalEnhancement && e.enhancer != nil {
		enhanced, err := e.enhancer.Enhance(ctx, result)
		if err != nil {
			// Enhancement is strictly optional; never surface its failure.
			e.logger.WarnContext(ctx, "narrative enhancement unavailable",
				slog.String("player_id", playerID),
				slog.Any("error", err),
			)
		} else {
			result = sanitizeEnhanced(result, enhanced, unit)
			result.Enhanced = true
		}
	}
	return result, nil
}

// bidderProbability sums independently clamped factors into [0, 0.95].
func (e *Engine) bidderProbability(b store.Bidder, needs analysis.Needs, role valuation.Role, impact analysis.Impact, soldFrac float64, upcomingHigh bool, rules auction.Rules, currentBid int64) float64 {
	if b.InitialPurse <= 0 || needs.RemainingSlots <= 0 {
		return 0
	}
	// A bidder who cannot even afford the next step will not participate.
	if rules.MinimumNextBid(currentBid) > b.RemainingPurse {
		return 0
	}

	frac := clamp01(float64(b.RemainingPurse) / float64(b.InitialPurse))

	p := e.cfg.PurseFractionWeight * frac

	switch spent := 1 - frac; {
	case spent < 0.3:
		p += e.cfg.UtilizationBonusLow
	case spent < 0.6:
		p += e.cfg.UtilizationBonusMid
	}

	if needs.NeedsRole(role) {
		p += e.cfg.RoleNeedWeight * clamp01(float64(needs.Urgency)/10)
	}

	if roster := rules.MandatoryTeamSize - needs.RemainingSlots; roster > 0 {
		avgPaid := (b.InitialPurse - b.RemainingPurse) / int64(roster)
		if avgPaid <= rules.AveragePerSlotBudget() {
			p += e.cfg.SpendingPatternBonus
		}
	}

	if soldFrac < 0.25 {
		p += e.cfg.EarlyAuctionBonus
	}

	// Saving for later: a bidder still holding most of the purse while
	// high-value lots are known to be upcoming tends to sit out.
	if upcomingHigh && frac > 0.6 {
		p -= e.cfg.SavingPenalty
	}

	switch impact {
	case analysis.ImpactHigh:
		p += e.cfg.SupplyAdjustment
	case analysis.ImpactLow:
		p -= e.cfg.SupplyAdjustment
	}

	if p < 0 {
		return 0
	}
	if p > maxProbability {
		return maxProbability
	}
	return p
}

// ceilingPrice caps what a bidder is expected to chase. The binding limit is
// the lowest of a purse fraction, a multiple of the live anchor, a hard cap,
// and the valuation band's top, rounded up to the increment unit.
func (e *Engine) ceilingPrice(b store.Bidder, market MarketAnalysis, basePrice int64, val valuation.Score, unit int64) int64 {
	c := e.cfg.CeilingPurseFraction * float64(b.RemainingPurse)

	ref := float64(market.HighestBid)
	if market.BidCount == 0 {
		ref = float64(basePrice)
	}
	if m := e.cfg.CeilingBidMultiple * ref; m < c {
		c = m
	}
	if hard := float64(e.cfg.CeilingHardCap); hard > 0 && hard < c {
		c = hard
	}
	if top := float64(val.MaxPrice); top < c {
		c = top
	}
	if c < 0 {
		c = 0
	}
	return valuation.CeilToUnit(c, unit)
}

// recommend runs the focal bidder's action state machine.
func (e *Engine) recommend(focal store.Bidder, needs analysis.Needs, val valuation.Score, market MarketAnalysis, basePrice int64, rules auction.Rules, upcomingHigh bool) Recommendation {
	unit := rules.MinBidIncrement
	suggested := suggestedBuyPrice(val, needs, basePrice, unit)

	rec := Recommendation{SuggestedBuyPrice: suggested}

	minNext := rules.MinimumNextBid(market.CurrentBid)
	affordable := focal.RemainingPurse >= minNext &&
		focal.RemainingPurse-minNext >= reserveFor(needs, rules)

	current := float64(market.CurrentBid)
	urgentGap := needs.Urgency >= 7 && len(needs.Missing) > 0

	switch {
	// Mandatory override: more than 10% over target is always a pass.
	case current > 1.10*float64(suggested):
		rec.Action = ActionPass
		rec.Rationale = "bidding already exceeds the target price by more than 10%"

	case !affordable || needs.RemainingSlots == 0:
		rec.Action = ActionPass
		rec.Rationale = "the next increment is not affordable within roster constraints"

	case current > float64(suggested):
		rec.Action = ActionWait
		rec.Rationale = "price is within 10% over target; wait for the market to settle"

	case upcomingHigh && !urgentGap && needs.Urgency < 5:
		rec.Action = ActionWait
		rec.Rationale = "higher-value players remain upcoming and no roster gap is urgent"

	case market.CompetitionLevel != "high" || urgentGap:
		rec.Action = ActionBid
		rec.RecommendedBid = valuation.CeilToUnit(float64(minNext), unit)
		rec.Rationale = "price sits under target and the squad can carry the spend"

	default:
		rec.Action = ActionWait
		rec.Rationale = "competition is running hot for a non-essential pick"
	}
	return rec
}

// suggestedBuyPrice is the focal bidder's target: a 70-85% cut of the
// predicted price, pushed up under spend pressure, clamped into the valuation
// band, floored at 1.5x base and rounded up to a whole increment.
func suggestedBuyPrice(val valuation.Score, needs analysis.Needs, basePrice, unit int64) int64 {
	pct := 0.75
	switch {
	case needs.Urgency >= 7:
		pct = 0.85
	case needs.Urgency <= 2:
		pct = 0.70
	}
	s := pct * float64(val.PredictedPrice)

	if needs.BudgetPressure == analysis.PressureHigh {
		if m := 0.9 * float64(needs.MustSpendPerSlot); m > s {
			s = m
		}
	}
	if lo := float64(val.MinPrice); s < lo {
		s = lo
	}
	if hi := 0.9 * float64(val.MaxPrice); s > hi {
		s = hi
	}
	if floor := 1.5 * float64(basePrice); s < floor {
		s = floor
	}
	return valuation.CeilToUnit(s, unit)
}

func analyzeMarket(snap auction.Snapshot, playerID string, val valuation.Score) MarketAnalysis {
	entries := snap.Ledger[playerID]
	m := MarketAnalysis{
		CurrentBid: snap.CurrentBidAmount(playerID),
		BidCount:   len(entries),
	}
	if len(entries) == 0 {
		// No history yet: the valuation anchors the market.
		m.Anchor = val.PredictedPrice
		return m
	}
	var sum int64
	for _, entry := range entries {
		sum += entry.Amount
		if entry.Amount > m.HighestBid {
			m.HighestBid = entry.Amount
		}
	}
	m.AverageBid = sum / int64(len(entries))
	m.Anchor = m.HighestBid
	return m
}

func competitionLevel(likely []LikelyBidder) string {
	strong := 0
	for _, lb := range likely {
		if lb.Probability >= 0.5 {
			strong++
		}
	}
	switch {
	case strong >= 3:
		return "high"
	case strong >= 1:
		return "medium"
	default:
		return "low"
	}
}

func upcomingHighValue(snap auction.Snapshot, excludePlayerID string, unit int64) []UpcomingPlayer {
	var out []UpcomingPlayer
	for _, p := range snap.AvailablePlayers() {
		if p.ID == excludePlayerID {
			continue
		}
		s := valuation.Compute(p.Attributes, p.BasePrice, unit)
		if s.OverallRating < highValueRating {
			continue
		}
		out = append(out, UpcomingPlayer{
			PlayerID:       p.ID,
			Name:           p.Name,
			Rating:         s.OverallRating,
			PredictedPrice: s.PredictedPrice,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	if len(out) > upcomingLimit {
		out = out[:upcomingLimit]
	}
	return out
}

// reserveFor mirrors the validator's feasibility reserve from the pieces the
// needs analysis already carries.
func reserveFor(needs analysis.Needs, rules auction.Rules) int64 {
	remaining := needs.RemainingSlots - 1
	if remaining < 0 {
		remaining = 0
	}
	return int64(remaining) * rules.MinPerPlayerReserve
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

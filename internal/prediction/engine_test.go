package prediction_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/rahulvdm/auction-engine/internal/auction"
	"github.com/rahulvdm/auction-engine/internal/config"
	"github.com/rahulvdm/auction-engine/internal/prediction"
	"github.com/rahulvdm/auction-engine/internal/store"
	"github.com/rahulvdm/auction-engine/internal/valuation"
)

func newEngine(t *testing.T, enhancer prediction.Enhancer) *prediction.Engine {
	t.Helper()
	return prediction.NewEngine(config.Defaults().Prediction, enhancer, nil, noop.NewTracerProvider())
}

func starAllrounder() store.AttributeBag {
	return store.AttributeBag{
		"matches":         "170",
		"runs":            "3600",
		"batting_average": "39",
		"strike_rate":     "140",
		"wickets":         "130",
		"economy":         "7.2",
		"bowling_average": "23",
		"recent_runs":     "250",
		"recent_wickets":  "11",
	}
}

func journeymanBatsman() store.AttributeBag {
	return store.AttributeBag{
		"matches":         "40",
		"runs":            "700",
		"batting_average": "24",
		"strike_rate":     "118",
	}
}

// testSnapshot builds a live auction with one open lot and three bidders on
// untouched purses.
func testSnapshot(rules auction.Rules) auction.Snapshot {
	players := []store.Player{
		{ID: "p1", Name: "Open Lot", BasePrice: 2000, Status: store.PlayerAvailable, Attributes: starAllrounder()},
		{ID: "p2", Name: "Later Lot", BasePrice: 1000, Status: store.PlayerAvailable, Attributes: journeymanBatsman()},
	}
	bidders := []store.Bidder{
		{ID: "b1", Name: "Strikers", InitialPurse: rules.TotalPurse, RemainingPurse: rules.TotalPurse},
		{ID: "b2", Name: "Royals", InitialPurse: rules.TotalPurse, RemainingPurse: rules.TotalPurse},
		{ID: "b3", Name: "Titans", InitialPurse: rules.TotalPurse, RemainingPurse: rules.TotalPurse},
	}
	return auction.Snapshot{
		AuctionID:       "a1",
		Status:          auction.StatusLive,
		Rules:           rules,
		CurrentPlayerID: "p1",
		Players:         players,
		Bidders:         bidders,
		Ledger:          map[string][]auction.LedgerEntry{},
	}
}

func TestPredictProbabilityBounds(t *testing.T) {
	rules := auction.RulesFromConfig(config.Defaults().Auction)
	snap := testSnapshot(rules)
	eng := newEngine(t, nil)

	res, err := eng.Predict(context.Background(), snap, "p1", "b1", prediction.Options{})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(res.LikelyBidders) == 0 {
		t.Fatal("expected at least one likely bidder on full purses")
	}
	for _, lb := range res.LikelyBidders {
		if lb.Probability <= 0 || lb.Probability > 0.95 {
			t.Errorf("bidder %s probability %.3f out of (0, 0.95]", lb.BidderID, lb.Probability)
		}
		if lb.CeilingPrice%rules.MinBidIncrement != 0 {
			t.Errorf("bidder %s ceiling %d not a whole increment", lb.BidderID, lb.CeilingPrice)
		}
	}
}

func TestPredictSuggestedPriceInvariants(t *testing.T) {
	rules := auction.RulesFromConfig(config.Defaults().Auction)
	snap := testSnapshot(rules)
	eng := newEngine(t, nil)

	res, err := eng.Predict(context.Background(), snap, "p1", "b1", prediction.Options{})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	suggested := res.Recommendation.SuggestedBuyPrice
	if suggested%rules.MinBidIncrement != 0 {
		t.Errorf("suggested price %d not a whole increment", suggested)
	}
	base := int64(2000)
	if float64(suggested) < 1.5*float64(base) {
		t.Errorf("suggested price %d below 1.5x base %d", suggested, base)
	}
}

func TestPredictBrokeBidderExcluded(t *testing.T) {
	rules := auction.RulesFromConfig(config.Defaults().Auction)
	snap := testSnapshot(rules)
	snap.Bidders[2].RemainingPurse = rules.MinBidIncrement / 2

	eng := newEngine(t, nil)
	res, err := eng.Predict(context.Background(), snap, "p1", "b1", prediction.Options{})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	for _, lb := range res.LikelyBidders {
		if lb.BidderID == "b3" {
			t.Errorf("bidder without funds for the next increment listed with probability %.3f", lb.Probability)
		}
	}
}

func TestPredictPassWhenPriceRunsAway(t *testing.T) {
	rules := auction.RulesFromConfig(config.Defaults().Auction)
	snap := testSnapshot(rules)
	eng := newEngine(t, nil)

	base, err := eng.Predict(context.Background(), snap, "p1", "b1", prediction.Options{})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	// Push the live bid 15% past the computed target.
	runaway := int64(float64(base.Recommendation.SuggestedBuyPrice) * 1.15)
	snap.Ledger["p1"] = []auction.LedgerEntry{
		{ID: "e1", PlayerID: "p1", BidderID: "b2", Amount: runaway, LogicalTime: 1},
	}

	res, err := eng.Predict(context.Background(), snap, "p1", "b1", prediction.Options{})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if res.Recommendation.Action != prediction.ActionPass {
		t.Fatalf("action = %s, want pass at 15%% over target", res.Recommendation.Action)
	}
	if res.Recommendation.RecommendedBid != 0 {
		t.Errorf("pass carried a recommended bid of %d", res.Recommendation.RecommendedBid)
	}
}

func TestPredictBidRecommendsMinimumIncrement(t *testing.T) {
	rules := auction.RulesFromConfig(config.Defaults().Auction)
	snap := testSnapshot(rules)
	snap.Ledger["p1"] = []auction.LedgerEntry{
		{ID: "e1", PlayerID: "p1", BidderID: "b2", Amount: 3000, LogicalTime: 1},
	}
	// Thin the field so competition stays below high.
	snap.Bidders = snap.Bidders[:2]

	eng := newEngine(t, nil)
	res, err := eng.Predict(context.Background(), snap, "p1", "b1", prediction.Options{})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if res.Recommendation.Action != prediction.ActionBid {
		t.Fatalf("action = %s, want bid under target with low competition", res.Recommendation.Action)
	}
	want := rules.MinimumNextBid(3000)
	if res.Recommendation.RecommendedBid != want {
		t.Errorf("recommended bid = %d, want minimum next bid %d", res.Recommendation.RecommendedBid, want)
	}
}

func TestPredictUnknownPlayer(t *testing.T) {
	rules := auction.RulesFromConfig(config.Defaults().Auction)
	snap := testSnapshot(rules)
	eng := newEngine(t, nil)

	_, err := eng.Predict(context.Background(), snap, "nope", "b1", prediction.Options{})
	if !errors.Is(err, auction.ErrPlayerNotFound) {
		t.Fatalf("err = %v, want ErrPlayerNotFound", err)
	}
}

type failingEnhancer struct{}

func (failingEnhancer) Enhance(context.Context, prediction.Result) (prediction.Result, error) {
	return prediction.Result{}, errors.New("service unavailable")
}

func TestPredictEnhancerFailureFallsBack(t *testing.T) {
	rules := auction.RulesFromConfig(config.Defaults().Auction)
	snap := testSnapshot(rules)

	plain, err := newEngine(t, nil).Predict(context.Background(), snap, "p1", "b1", prediction.Options{})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	res, err := newEngine(t, failingEnhancer{}).Predict(context.Background(), snap, "p1", "b1",
		prediction.Options{UseExternalEnhancement: true})
	if err != nil {
		t.Fatalf("Predict with failing enhancer: %v", err)
	}
	if res.Enhanced {
		t.Error("result marked enhanced after enhancer failure")
	}
	if res.Recommendation != plain.Recommendation {
		t.Errorf("recommendation drifted on enhancer failure: %+v != %+v", res.Recommendation, plain.Recommendation)
	}
}

type rewritingEnhancer struct {
	out prediction.Result
}

func (r rewritingEnhancer) Enhance(context.Context, prediction.Result) (prediction.Result, error) {
	return r.out, nil
}

func TestPredictEnhancerNumericSanitizing(t *testing.T) {
	rules := auction.RulesFromConfig(config.Defaults().Auction)
	snap := testSnapshot(rules)

	plain, err := newEngine(t, nil).Predict(context.Background(), snap, "p1", "b1", prediction.Options{})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	tampered := plain
	tampered.Recommendation.Rationale = "rewritten narrative"
	tampered.Recommendation.SuggestedBuyPrice = plain.Recommendation.SuggestedBuyPrice + 7 // not a whole increment
	tampered.LikelyBidders = append([]prediction.LikelyBidder(nil), plain.LikelyBidders...)
	tampered.LikelyBidders[0].Probability = 1.4

	res, err := newEngine(t, rewritingEnhancer{out: tampered}).Predict(context.Background(), snap, "p1", "b1",
		prediction.Options{UseExternalEnhancement: true})
	if err != nil {
		t.Fatalf("Predict with rewriting enhancer: %v", err)
	}
	if !res.Enhanced {
		t.Error("result not marked enhanced")
	}
	if res.Recommendation.Rationale != "rewritten narrative" {
		t.Errorf("rationale = %q, want enhanced prose", res.Recommendation.Rationale)
	}
	if res.Recommendation.SuggestedBuyPrice != plain.Recommendation.SuggestedBuyPrice {
		t.Errorf("off-increment suggested price accepted: %d", res.Recommendation.SuggestedBuyPrice)
	}
	if got := res.LikelyBidders[0].Probability; got > 0.95 {
		t.Errorf("probability %.3f escaped the cap", got)
	}
}

func TestUpcomingHighValueExcludesCurrentLot(t *testing.T) {
	rules := auction.RulesFromConfig(config.Defaults().Auction)
	snap := testSnapshot(rules)
	// Make the later lot high-value too.
	snap.Players[1].Attributes = starAllrounder()

	eng := newEngine(t, nil)
	res, err := eng.Predict(context.Background(), snap, "p1", "b1", prediction.Options{})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	for _, u := range res.UpcomingHighValue {
		if u.PlayerID == "p1" {
			t.Error("current lot listed among upcoming players")
		}
	}
	if len(res.UpcomingHighValue) != 1 || res.UpcomingHighValue[0].PlayerID != "p2" {
		t.Fatalf("upcoming = %+v, want just p2", res.UpcomingHighValue)
	}
	if s := valuation.Compute(snap.Players[1].Attributes, snap.Players[1].BasePrice, rules.MinBidIncrement); res.UpcomingHighValue[0].PredictedPrice != s.PredictedPrice {
		t.Errorf("upcoming predicted price %d, want %d", res.UpcomingHighValue[0].PredictedPrice, s.PredictedPrice)
	}
}

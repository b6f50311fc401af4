package analysis_test

import (
	"testing"

	"github.com/rahulvdm/auction-engine/internal/analysis"
	"github.com/rahulvdm/auction-engine/internal/auction"
	"github.com/rahulvdm/auction-engine/internal/config"
	"github.com/rahulvdm/auction-engine/internal/store"
	"github.com/rahulvdm/auction-engine/internal/valuation"
)

func soldBatsman(id, bidderID string) store.Player {
	p := availableBatsman(id)
	p.Status = store.PlayerSold
	p.SoldTo = &bidderID
	return p
}

func TestAnalyzeNeedsEmptyRoster(t *testing.T) {
	rules := auction.RulesFromConfig(config.Defaults().Auction)
	bidder := store.Bidder{ID: "b1", InitialPurse: rules.TotalPurse, RemainingPurse: rules.TotalPurse}

	n := analysis.AnalyzeNeeds(bidder, nil, rules)

	if n.RemainingSlots != rules.MandatoryTeamSize {
		t.Errorf("RemainingSlots = %d, want %d", n.RemainingSlots, rules.MandatoryTeamSize)
	}
	for _, role := range []valuation.Role{
		valuation.RoleBatsman, valuation.RoleBowler, valuation.RoleAllrounder, valuation.RoleWicketKeeper,
	} {
		if !n.NeedsRole(role) {
			t.Errorf("empty roster should need %s", role)
		}
	}
	// Full purse spread over all slots sits at the even-spread budget.
	if n.BudgetPressure != analysis.PressureMedium {
		t.Errorf("BudgetPressure = %s, want medium on an untouched purse", n.BudgetPressure)
	}
}

func TestAnalyzeNeedsRoleFilled(t *testing.T) {
	rules := auction.RulesFromConfig(config.Defaults().Auction)
	bidder := store.Bidder{ID: "b1", InitialPurse: rules.TotalPurse, RemainingPurse: rules.TotalPurse / 2}

	var roster []store.Player
	for i := 0; i < 4; i++ {
		roster = append(roster, soldBatsman(string(rune('a'+i)), bidder.ID))
	}
	n := analysis.AnalyzeNeeds(bidder, roster, rules)

	if n.NeedsRole(valuation.RoleBatsman) {
		t.Error("four batsmen should satisfy the batting target")
	}
	if !n.NeedsRole(valuation.RoleBowler) {
		t.Error("bowlers are still missing")
	}
	if n.RemainingSlots != rules.MandatoryTeamSize-4 {
		t.Errorf("RemainingSlots = %d, want %d", n.RemainingSlots, rules.MandatoryTeamSize-4)
	}
}

func TestAnalyzeNeedsBudgetPressure(t *testing.T) {
	rules := auction.RulesFromConfig(config.Defaults().Auction)
	avg := rules.AveragePerSlotBudget()

	cases := []struct {
		name      string
		remaining int64
		roster    int
		want      analysis.Pressure
	}{
		{
			// Barely spent with few slots left: money piling up.
			name:      "hoarder",
			remaining: rules.TotalPurse - 2*rules.MinBidIncrement,
			roster:    8,
			want:      analysis.PressureHigh,
		},
		{
			// Most of the purse gone early.
			name:      "overspender",
			remaining: avg * 2,
			roster:    2,
			want:      analysis.PressureLow,
		},
		{
			name:      "on budget",
			remaining: avg * 5,
			roster:    rules.MandatoryTeamSize - 5,
			want:      analysis.PressureMedium,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bidder := store.Bidder{ID: "b1", InitialPurse: rules.TotalPurse, RemainingPurse: tc.remaining}
			var roster []store.Player
			for i := 0; i < tc.roster; i++ {
				roster = append(roster, soldBatsman(string(rune('a'+i)), bidder.ID))
			}
			n := analysis.AnalyzeNeeds(bidder, roster, rules)
			if n.BudgetPressure != tc.want {
				t.Errorf("BudgetPressure = %s, want %s (must-spend %d, avg %d)",
					n.BudgetPressure, tc.want, n.MustSpendPerSlot, avg)
			}
		})
	}
}

func TestAnalyzeNeedsUrgencyBounds(t *testing.T) {
	rules := auction.RulesFromConfig(config.Defaults().Auction)

	// Worst case: everything missing, high pressure, purse nearly gone.
	broke := store.Bidder{ID: "b1", InitialPurse: rules.TotalPurse, RemainingPurse: rules.MinPerPlayerReserve}
	if n := analysis.AnalyzeNeeds(broke, nil, rules); n.Urgency < 0 || n.Urgency > 10 {
		t.Errorf("Urgency = %d, out of [0, 10]", n.Urgency)
	}

	// Full roster: no slots, nothing to be urgent about roles already filled.
	var roster []store.Player
	for i := 0; i < rules.MandatoryTeamSize; i++ {
		roster = append(roster, soldBatsman(string(rune('a'+i)), "b2"))
	}
	full := store.Bidder{ID: "b2", InitialPurse: rules.TotalPurse, RemainingPurse: 0}
	n := analysis.AnalyzeNeeds(full, roster, rules)
	if n.RemainingSlots != 0 {
		t.Errorf("RemainingSlots = %d, want 0 on a full roster", n.RemainingSlots)
	}
	if n.Urgency < 0 || n.Urgency > 10 {
		t.Errorf("Urgency = %d, out of [0, 10]", n.Urgency)
	}
}

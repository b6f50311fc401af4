package analysis

import (
	"github.com/rahulvdm/auction-engine/internal/auction"
	"github.com/rahulvdm/auction-engine/internal/store"
	"github.com/rahulvdm/auction-engine/internal/valuation"
)

// Pressure classifies how hard a bidder must spend per remaining slot
// relative to the even-spread budget. HIGH means money is piling up: the
// bidder holds more per slot than average and leftover purse is wasted purse.
type Pressure string

const (
	PressureHigh   Pressure = "high"
	PressureMedium Pressure = "medium"
	PressureLow    Pressure = "low"
)

// Needs is a bidder's squad-composition gap analysis.
type Needs struct {
	// Missing lists the roles the roster is still short on.
	Missing []valuation.Role
	// Urgency grades how badly the bidder needs the next purchase, 0-10.
	Urgency int
	// RemainingSlots is how many players may still be bought.
	RemainingSlots int
	// MustSpendPerSlot is remaining purse spread over remaining slots.
	MustSpendPerSlot int64
	// BudgetPressure compares MustSpendPerSlot to the even-spread budget.
	BudgetPressure Pressure
}

// NeedsRole reports whether role is among the missing ones.
func (n Needs) NeedsRole(role valuation.Role) bool {
	for _, r := range n.Missing {
		if r == role {
			return true
		}
	}
	return false
}

// AnalyzeNeeds computes the gap analysis for one bidder from the current
// roster. Callers must re-run it after every sale; it is never cached.
func AnalyzeNeeds(bidder store.Bidder, roster []store.Player, rules auction.Rules) Needs {
	byRole := make(map[valuation.Role]int, 4)
	for _, p := range roster {
		byRole[valuation.DeriveRole(p.Attributes)]++
	}

	slots := rules.PurchasableSlots(len(roster))
	if slots < 0 {
		slots = 0
	}

	n := Needs{
		RemainingSlots:   slots,
		MustSpendPerSlot: bidder.RemainingPurse / int64(max(slots, 1)),
	}

	for role, target := range roleTargets(rules.MandatoryTeamSize) {
		if byRole[role] < target {
			n.Missing = append(n.Missing, role)
		}
	}

	avg := rules.AveragePerSlotBudget()
	switch {
	case avg <= 0 || n.MustSpendPerSlot > avg+avg/5:
		n.BudgetPressure = PressureHigh
	case n.MustSpendPerSlot < avg-avg/5:
		n.BudgetPressure = PressureLow
	default:
		n.BudgetPressure = PressureMedium
	}

	urgency := 2 * len(n.Missing)
	if urgency > 6 {
		urgency = 6
	}
	switch n.BudgetPressure {
	case PressureHigh:
		urgency += 3
	case PressureMedium:
		urgency++
	}
	// A nearly empty purse leaves no room to be picky.
	if bidder.RemainingPurse < 2*rules.MinPerPlayerReserve {
		urgency--
	}
	if urgency < 0 {
		urgency = 0
	}
	if urgency > 10 {
		urgency = 10
	}
	n.Urgency = urgency
	return n
}

// roleTargets is the desired squad mix for a full mandatory roster: roughly
// 40% batsmen, 40% bowlers, plus one allrounder and one keeper.
func roleTargets(teamSize int) map[valuation.Role]int {
	purchases := teamSize
	if purchases < 1 {
		purchases = 1
	}
	batting := purchases * 2 / 5
	if batting < 1 {
		batting = 1
	}
	return map[valuation.Role]int{
		valuation.RoleBatsman:      batting,
		valuation.RoleBowler:       batting,
		valuation.RoleAllrounder:   1,
		valuation.RoleWicketKeeper: 1,
	}
}

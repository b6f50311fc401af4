// Package analysis derives aggregate supply/demand signals and per-bidder
// squad gaps from an auction snapshot. Everything here is pure and cheap
// enough to recompute on every sale; nothing is cached across roster changes.
package analysis

import (
	"github.com/rahulvdm/auction-engine/internal/store"
	"github.com/rahulvdm/auction-engine/internal/valuation"
)

// Impact classifies how scarce a role is in the remaining pool.
type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

// Scarcity thresholds: remaining same-role availability at or below these
// counts raises the impact tier.
const (
	scarcityHigh   = 2
	scarcityMedium = 5
)

// PoolReport summarizes remaining supply per derived role.
type PoolReport struct {
	AvailableByRole map[valuation.Role]int
	TotalAvailable  int
}

// AnalyzePool counts available players per derived role. O(n) over players.
func AnalyzePool(players []store.Player) PoolReport {
	r := PoolReport{AvailableByRole: make(map[valuation.Role]int)}
	for _, p := range players {
		if p.Status != store.PlayerAvailable {
			continue
		}
		r.AvailableByRole[valuation.DeriveRole(p.Attributes)]++
		r.TotalAvailable++
	}
	return r
}

// SupplyImpact classifies the scarcity of a role in the remaining pool.
func (r PoolReport) SupplyImpact(role valuation.Role) Impact {
	switch n := r.AvailableByRole[role]; {
	case n <= scarcityHigh:
		return ImpactHigh
	case n <= scarcityMedium:
		return ImpactMedium
	default:
		return ImpactLow
	}
}

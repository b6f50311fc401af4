package auction

import "github.com/rahulvdm/auction-engine/internal/config"

// Rules are the monetary and squad constraints of one auction. Amounts are
// whole currency units.
type Rules struct {
	MinBidIncrement        int64
	IncrementTierThreshold int64
	TierBidIncrement       int64
	MandatoryTeamSize      int
	MinPerPlayerReserve    int64
	TotalPurse             int64
}

// RulesFromConfig builds Rules from the configured defaults.
func RulesFromConfig(cfg config.AuctionConfig) Rules {
	return Rules{
		MinBidIncrement:        cfg.MinBidIncrement,
		IncrementTierThreshold: cfg.IncrementTierThreshold,
		TierBidIncrement:       cfg.TierBidIncrement,
		MandatoryTeamSize:      cfg.MandatoryTeamSize,
		MinPerPlayerReserve:    cfg.MinPerPlayerReserve,
		TotalPurse:             cfg.TotalPurse,
	}
}

// Increment returns the bid step that applies on top of currentBid. The step
// widens to TierBidIncrement as soon as the base step would reach the tier
// threshold, so with a threshold of 10000 and steps 1000/2000 the minimum
// valid bid over 9000 is 11000, not 10000.
func (r Rules) Increment(currentBid int64) int64 {
	if currentBid+r.MinBidIncrement >= r.IncrementTierThreshold {
		return r.TierBidIncrement
	}
	return r.MinBidIncrement
}

// MinimumNextBid returns the lowest acceptable bid over currentBid.
func (r Rules) MinimumNextBid(currentBid int64) int64 {
	return currentBid + r.Increment(currentBid)
}

// PurchasableSlots is how many players a bidder with rosterCount purchases
// may still buy to reach the mandatory team size.
func (r Rules) PurchasableSlots(rosterCount int) int {
	return r.MandatoryTeamSize - rosterCount
}

// ReserveAfter returns the minimum purse that must remain after winning one
// more player, so every slot still open afterwards stays affordable at the
// per-player reserve. With a team size of 12, 10 players owned and a reserve
// of 1000, one slot remains beyond the current lot, so 1000 must survive the
// bid.
func (r Rules) ReserveAfter(rosterCount int) int64 {
	remaining := r.PurchasableSlots(rosterCount) - 1
	if remaining < 0 {
		remaining = 0
	}
	return int64(remaining) * r.MinPerPlayerReserve
}

// AveragePerSlotBudget is the purse a bidder would spend per mandatory
// purchase if money were spread evenly.
func (r Rules) AveragePerSlotBudget() int64 {
	slots := r.MandatoryTeamSize
	if slots < 1 {
		slots = 1
	}
	return r.TotalPurse / int64(slots)
}

// Package valuation maps a player's raw performance attributes to a
// normalized rating and a predicted price band. Everything in here is pure:
// the same attribute bag always yields the same Score, and malformed or
// missing attributes degrade to neutral defaults instead of failing.
package valuation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Role is a player's speciality, derived from stats. Free-text role fields in
// the attribute bag are unreliable user input and are treated as a display
// hint only, never as the source of truth.
type Role string

const (
	RoleBatsman      Role = "batsman"
	RoleBowler       Role = "bowler"
	RoleAllrounder   Role = "allrounder"
	RoleWicketKeeper Role = "wicketkeeper"
)

// Attribute keys recognized by the model. Anything else in the bag is ignored.
const (
	attrMatches        = "matches"
	attrRuns           = "runs"
	attrBattingAverage = "batting_average"
	attrStrikeRate     = "strike_rate"
	attrWickets        = "wickets"
	attrEconomy        = "economy"
	attrBowlingAverage = "bowling_average"
	attrRecentRuns     = "recent_runs"
	attrRecentWickets  = "recent_wickets"
	attrStumpings      = "stumpings"
)

// Sub-score weights for the overall rating.
const (
	weightBatting    = 0.35
	weightBowling    = 0.30
	weightExperience = 0.15
	weightForm       = 0.20

	allrounderThreshold = 55.0
	allrounderBonus     = 8.0
	keeperBonus         = 5.0

	priceBandLow  = 0.80
	priceBandHigh = 1.25
)

// Score is the derived valuation of a player. It is recomputed on demand and
// never persisted authoritatively.
type Score struct {
	OverallRating   float64
	BattingScore    float64
	BowlingScore    float64
	ExperienceScore float64
	FormScore       float64
	Bonuses         float64
	Role            Role
	PredictedPrice  int64
	MinPrice        int64
	MaxPrice        int64
	Reasoning       string
}

// Compute derives a Score from a raw attribute bag. basePrice is the lot's
// reserve price; unit is the bid increment to which all monetary outputs are
// rounded. It never returns an error: unparseable fields fall back to neutral
// defaults.
func Compute(attrs map[string]string, basePrice, unit int64) Score {
	if unit <= 0 {
		unit = 1
	}
	if basePrice < 0 {
		basePrice = 0
	}

	batting := battingScore(attrs)
	bowling := bowlingScore(attrs)
	experience := experienceScore(attrs)
	form := formScore(attrs)

	var bonuses float64
	if batting >= allrounderThreshold && bowling >= allrounderThreshold {
		bonuses += allrounderBonus
	}
	keeper := attrFloat(attrs, attrStumpings, 0) >= 1
	if keeper && batting >= 40 {
		bonuses += keeperBonus
	}

	overall := clamp(
		weightBatting*batting+
			weightBowling*bowling+
			weightExperience*experience+
			weightForm*form+
			bonuses,
		0, 100)

	predicted := predictedPrice(overall, basePrice, unit)
	minPrice := floorToUnit(priceBandLow*float64(predicted), unit)
	if minPrice < basePrice {
		minPrice = basePrice
	}
	if minPrice > predicted {
		minPrice = predicted
	}
	maxPrice := ceilToUnit(priceBandHigh*float64(predicted), unit)
	if maxPrice < predicted {
		maxPrice = predicted
	}

	role := deriveRole(batting, bowling, keeper)

	return Score{
		OverallRating:   overall,
		BattingScore:    batting,
		BowlingScore:    bowling,
		ExperienceScore: experience,
		FormScore:       form,
		Bonuses:         bonuses,
		Role:            role,
		PredictedPrice:  predicted,
		MinPrice:        minPrice,
		MaxPrice:        maxPrice,
		Reasoning:       reasoning(role, batting, bowling, form, bonuses),
	}
}

// DeriveRole derives the speciality from stats alone.
func DeriveRole(attrs map[string]string) Role {
	batting := battingScore(attrs)
	bowling := bowlingScore(attrs)
	keeper := attrFloat(attrs, attrStumpings, 0) >= 1
	return deriveRole(batting, bowling, keeper)
}

func deriveRole(batting, bowling float64, keeper bool) Role {
	switch {
	case batting >= allrounderThreshold && bowling >= allrounderThreshold:
		return RoleAllrounder
	case keeper:
		return RoleWicketKeeper
	case bowling > batting:
		return RoleBowler
	default:
		return RoleBatsman
	}
}

// battingScore grades run volume, average and strike rate into [0,100].
// All three transforms are monotonically increasing in the raw stat.
func battingScore(attrs map[string]string) float64 {
	runs := attrFloat(attrs, attrRuns, 0)
	avg := attrFloat(attrs, attrBattingAverage, 20)
	sr := attrFloat(attrs, attrStrikeRate, 100)

	return clamp(
		ratio(runs, 3000)*40+
			ratio(avg, 50)*35+
			ratio(sr, 150)*25,
		0, 100)
}

// bowlingScore grades wicket volume, economy and bowling average into [0,100].
// Economy and average are inverted: lower raw values score higher.
func bowlingScore(attrs map[string]string) float64 {
	wickets := attrFloat(attrs, attrWickets, 0)
	economy := attrFloat(attrs, attrEconomy, 8)
	avg := attrFloat(attrs, attrBowlingAverage, 32)

	return clamp(
		ratio(wickets, 150)*45+
			ratio(12-economy, 8)*30+
			ratio(40-avg, 25)*25,
		0, 100)
}

func experienceScore(attrs map[string]string) float64 {
	matches := attrFloat(attrs, attrMatches, 0)
	return clamp(ratio(matches, 200)*100, 0, 100)
}

func formScore(attrs map[string]string) float64 {
	recentRuns := attrFloat(attrs, attrRecentRuns, 0)
	recentWickets := attrFloat(attrs, attrRecentWickets, 0)
	return clamp(ratio(recentRuns, 300)*60+ratio(recentWickets, 15)*40, 0, 100)
}

// predictedPrice maps the overall rating through a piecewise exponential
// curve. The multiplier is continuous and strictly non-decreasing in the
// rating, and the result never drops below basePrice.
func predictedPrice(rating float64, basePrice, unit int64) int64 {
	var mult float64
	switch {
	case rating < 40:
		mult = 1.0 + rating/40*0.5 // 1.0 .. 1.5
	case rating < 60:
		mult = 1.5 * math.Pow(2, (rating-40)/10) // 1.5 .. 6
	case rating < 80:
		mult = 6 * math.Pow(2, (rating-60)/10) // 6 .. 24
	default:
		mult = 24 * math.Pow(2, (rating-80)/10) // 24 .. 96
	}

	base := float64(basePrice)
	if base == 0 {
		base = float64(unit)
	}
	p := roundToUnit(base*mult, unit)
	if p < basePrice {
		p = basePrice
	}
	return p
}

func reasoning(role Role, batting, bowling, form float64, bonuses float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s rated on batting %.0f / bowling %.0f", role, batting, bowling)
	if form >= 60 {
		b.WriteString(", in strong recent form")
	} else if form <= 20 {
		b.WriteString(", recent form is thin")
	}
	if bonuses > 0 {
		fmt.Fprintf(&b, " (+%.0f speciality bonus)", bonuses)
	}
	return b.String()
}

// attrFloat parses attrs[key] leniently, tolerating surrounding whitespace
// and stray symbols like "%" or "*". def is the neutral default used when
// the field is missing or unparseable.
func attrFloat(attrs map[string]string, key string, def float64) float64 {
	raw, ok := attrs[key]
	if !ok {
		return def
	}
	raw = strings.TrimSpace(strings.Trim(raw, "%*"))
	if raw == "" || raw == "-" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

// ratio returns v/max clamped to [0,1]; max must be positive.
func ratio(v, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return clamp(v/max, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RoundToUnit rounds v to the nearest multiple of unit (half away from zero).
func RoundToUnit(v float64, unit int64) int64 { return roundToUnit(v, unit) }

// CeilToUnit rounds v up to the next multiple of unit.
func CeilToUnit(v float64, unit int64) int64 { return ceilToUnit(v, unit) }

// FloorToUnit rounds v down to a multiple of unit.
func FloorToUnit(v float64, unit int64) int64 { return floorToUnit(v, unit) }

func roundToUnit(v float64, unit int64) int64 {
	if unit <= 0 {
		unit = 1
	}
	return int64(math.Round(v/float64(unit))) * unit
}

func ceilToUnit(v float64, unit int64) int64 {
	if unit <= 0 {
		unit = 1
	}
	return int64(math.Ceil(v/float64(unit))) * unit
}

func floorToUnit(v float64, unit int64) int64 {
	if unit <= 0 {
		unit = 1
	}
	return int64(math.Floor(v/float64(unit))) * unit
}

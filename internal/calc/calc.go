// Package calc holds the pure domain formulas. Nothing here touches
// storage, clocks or randomness; probabilistic choices live with the
// scheduler's injected RNG.
package calc

import "math"

// GrowTime returns the growth duration in milliseconds for a crop on
// land with the given time reduction percentage. Never below 1s.
func GrowTime(baseMs int64, timeReductionPct int) int64 {
	ms := int64(math.Floor(float64(baseMs) * (1 - float64(timeReductionPct)/100)))
	if ms < 1000 {
		return 1000
	}
	return ms
}

// YieldQty returns the harvest yield after quality bonus and pest
// penalty. Always at least 1.
func YieldQty(baseYield, productionBonusPct int, hasPests bool, pestReductionPct int) int {
	qualityMult := 1 + float64(productionBonusPct)/100
	pestPenalty := 1.0
	if hasPests {
		pestPenalty = 1 - float64(pestReductionPct)/100
	}
	qty := int(math.Floor(float64(baseYield) * qualityMult * pestPenalty))
	if qty < 1 {
		return 1
	}
	return qty
}

// CropExp returns the per-harvest experience after the quality bonus.
// Experience is per harvest, not per unit.
func CropExp(baseExp int64, expBonusPct int) int64 {
	exp := int64(math.Floor(float64(baseExp) * (1 + float64(expBonusPct)/100)))
	if exp < 1 {
		return 1
	}
	return exp
}

// LevelFor returns the largest level whose threshold is <= exp.
// levels maps level -> required total experience; level 1 is implicit.
func LevelFor(exp int64, thresholds map[int]int64) int {
	best := 1
	for level, required := range thresholds {
		if required <= exp && level > best {
			best = level
		}
	}
	return best
}

// LevelProgress returns (current, next) thresholds for progress
// display. When no next entry exists, next is synthesised as
// current + 1000.
func LevelProgress(level int, thresholds map[int]int64) (current, next int64) {
	current = thresholds[level]
	if n, ok := thresholds[level+1]; ok {
		return current, n
	}
	return current, current + 1000
}

// ShopOp selects the price direction.
type ShopOp int

const (
	OpBuy ShopOp = iota
	OpSell
)

// ShopPrice returns the total price for qty units. Level grants up to
// 10% (1% per 10 levels); bulk grants up to 5% (0.5% per 10 units),
// halved on sells. Buys discount the price, sells raise the payout.
func ShopPrice(basePrice int64, qty int, op ShopOp, playerLevel int) int64 {
	levelDiscount := math.Min(0.10, math.Floor(float64(playerLevel)/10)*0.01)
	bulkDiscount := math.Min(0.05, math.Floor(float64(qty)/10)*0.005)

	var unit float64
	switch op {
	case OpBuy:
		unit = float64(basePrice) * (1 - levelDiscount) * (1 - bulkDiscount)
	case OpSell:
		unit = float64(basePrice) * (1 + levelDiscount) * (1 + bulkDiscount/2)
	}
	total := int64(math.Floor(unit)) * int64(qty)
	if total < 0 {
		return 0
	}
	return total
}

// BaseSupply returns the rolling supply baseline: the arithmetic mean
// of the history entries, clamped from below to minBaseSupply. Empty
// history returns minBaseSupply.
func BaseSupply(history []int64, minBaseSupply int64) float64 {
	if len(history) == 0 {
		return float64(minBaseSupply)
	}
	var sum int64
	for _, s := range history {
		sum += s
	}
	mean := float64(sum) / float64(len(history))
	if mean < float64(minBaseSupply) {
		return float64(minBaseSupply)
	}
	return mean
}

// FloatingPrice recomputes an item price from observed supply against
// the baseline: oversupply pushes the price down, scarcity up, within
// [0.5, 1.5] of base. Never below 1.
func FloatingPrice(basePrice int64, supply24h int64, baseSupply float64) int64 {
	if baseSupply <= 0 {
		return basePrice
	}
	factor := 1.5 - 0.5*(float64(supply24h)/baseSupply)
	if factor < 0.5 {
		factor = 0.5
	} else if factor > 1.5 {
		factor = 1.5
	}
	price := int64(math.Floor(float64(basePrice) * factor))
	if price < 1 {
		return 1
	}
	return price
}

// StealShare splits a steal: the share grows with the level gap and
// land quality, clamped to [0.10, 0.30]. The owner loses 1.5x what the
// stealer gains.
func StealShare(baseYield, productionBonusPct, stealerLvl, ownerLvl int) (gained, ownerLoss int) {
	share := 0.20 + 0.01*float64(stealerLvl-ownerLvl) + float64(productionBonusPct)/200
	if share < 0.10 {
		share = 0.10
	} else if share > 0.30 {
		share = 0.30
	}
	gained = int(math.Floor(float64(baseYield) * share))
	ownerLoss = int(math.Floor(float64(gained) * 1.5))
	return gained, ownerLoss
}

// DefenseSuccessRate returns the percent chance a defense holds,
// clamped to [5, 95].
func DefenseSuccessRate(defenseBonus, attackPower int) int {
	rate := int(math.Round(50 + float64(defenseBonus) - math.Max(0, float64(attackPower-100)/10)))
	if rate < 5 {
		return 5
	}
	if rate > 95 {
		return 95
	}
	return rate
}

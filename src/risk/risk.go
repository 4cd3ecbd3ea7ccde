package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"tradeledger/src/model"
)

// StopRule maps an entry-price band to a stop-loss distance. Rules are
// evaluated in order and the first matching band wins, so overlapping bands
// are resolved by position in the list.
type StopRule struct {
	PriceBelow *float64 `yaml:"price_below,omitempty" json:"price_below,omitempty"`
	PriceAbove *float64 `yaml:"price_above,omitempty" json:"price_above,omitempty"`
	Amount     float64  `yaml:"amount" json:"amount"`
}

// Matches reports whether the entry price falls inside the rule's band.
func (r StopRule) Matches(entryPrice float64) bool {
	if r.PriceBelow != nil && entryPrice < *r.PriceBelow {
		return true
	}
	if r.PriceAbove != nil && entryPrice >= *r.PriceAbove {
		return true
	}
	return false
}

// ResolveStopDistance returns the stop-loss distance for an entry price, or
// false when no rule matches.
func ResolveStopDistance(entryPrice float64, rules []StopRule) (float64, bool) {
	for _, rule := range rules {
		if rule.Matches(entryPrice) {
			return rule.Amount, true
		}
	}
	return 0, false
}

// StopPrice places the stop on the losing side of the entry: below it for
// bullish trades, above it for bearish ones.
func StopPrice(direction string, entryPrice, distance float64) float64 {
	entry := decimal.NewFromFloat(entryPrice)
	dist := decimal.NewFromFloat(distance)

	if direction == model.DirectionBearish {
		return entry.Add(dist).InexactFloat64()
	}
	return entry.Sub(dist).InexactFloat64()
}

// TakeProfitPrice places the target rrGoal times the stop distance on the
// winning side of the entry.
func TakeProfitPrice(direction string, entryPrice, stopPrice, rrGoal float64) float64 {
	entry := decimal.NewFromFloat(entryPrice)
	stop := decimal.NewFromFloat(stopPrice)
	goal := decimal.NewFromFloat(rrGoal)

	if direction == model.DirectionBearish {
		reward := stop.Sub(entry).Mul(goal)
		return entry.Sub(reward).InexactFloat64()
	}
	reward := entry.Sub(stop).Mul(goal)
	return entry.Add(reward).InexactFloat64()
}

// RiskFraction derives the fraction of account capital a trade put at risk:
// risk per share times quantity over the capital. Returns false when the
// inputs cannot produce a meaningful fraction.
func RiskFraction(riskPerShare, quantity, accountCapital float64) (float64, bool) {
	capital := decimal.NewFromFloat(accountCapital)
	if capital.LessThanOrEqual(decimal.Zero) {
		return 0, false
	}
	if riskPerShare <= 0 || quantity <= 0 {
		return 0, false
	}

	riskAmount := decimal.NewFromFloat(riskPerShare).Mul(decimal.NewFromFloat(quantity))
	return riskAmount.Div(capital).InexactFloat64(), true
}

// Market close window, exchange time. Exits landing here are usually
// time-based flattening rather than stop or target hits.
var (
	marketCloseStart = 15*time.Hour + 50*time.Minute
	marketCloseEnd   = 16 * time.Hour
)

// InMarketCloseWindow reports whether t falls in the 15:50-16:00 window,
// judged on the clock time of t in its own location.
func InMarketCloseWindow(t time.Time) bool {
	sinceMidnight := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second

	return sinceMidnight >= marketCloseStart && sinceMidnight <= marketCloseEnd
}

package aggregator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradeledger/src/model"
	"tradeledger/src/risk"
	"tradeledger/src/strategy"
	"tradeledger/src/utils"
)

// Batch invariant violations. Any of these aborts aggregation: they mean the
// input contract was broken upstream, and metrics computed from such a batch
// would be misleading rather than merely incomplete.
var (
	ErrNoEntries         = errors.New("no entry executions found")
	ErrMissingTradeID    = errors.New("execution has no trade id")
	ErrZeroQuantityEntry = errors.New("entry execution has zero quantity")
	ErrNetPosition       = errors.New("net position contradicts trade direction")
	ErrExitBeforeEntry   = errors.New("exit timestamp precedes entry timestamp")
)

// priceTolerance separates "at the stop" from "near the stop" when
// classifying exits. One cent absorbs partial-fill rounding.
const priceTolerance = 0.01

// Engine reduces identified executions to one trade row per trade id. Pricing
// is volume weighted; risk metrics come from per-execution stop levels when
// the fills carry them, falling back to the strategy parameters otherwise.
type Engine struct {
	log    *logger.Entry
	params *strategy.Params
}

// New builds an Engine. params may be nil when no strategy configuration is
// available; risk metrics then depend entirely on per-execution fields.
func New(log *logger.Entry, params *strategy.Params) *Engine {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &Engine{log: log, params: params}
}

// Aggregate builds one Trade per trade id found in execs. Fields that cannot
// be computed yet, like the exit price of a still-open trade, stay nil so a
// consumer can tell "zero" apart from "not determinable".
//
// The input slice is not modified. An empty input yields no trades and no
// error; a non-empty input without a single entry execution is an error,
// because every trade id must have opened somewhere.
func (e *Engine) Aggregate(execs []model.Execution) ([]model.Trade, error) {
	if len(execs) == 0 {
		return []model.Trade{}, nil
	}

	rows := make([]model.Execution, len(execs))
	copy(rows, execs)
	sort.SliceStable(rows, func(a, b int) bool {
		return rows[a].ExecutedAt.Before(rows[b].ExecutedAt)
	})

	hasEntries := false
	groups := make(map[int64][]model.Execution)
	for i := range rows {
		if rows[i].TradeID == nil {
			return nil, fmt.Errorf("%w: %s %s at %s", ErrMissingTradeID,
				rows[i].Symbol, rows[i].Side, rows[i].ExecutedAt.Format(utils.TimeOfDayLayout))
		}
		if rows[i].IsEntry {
			hasEntries = true
		}
		groups[*rows[i].TradeID] = append(groups[*rows[i].TradeID], rows[i])
	}
	if !hasEntries {
		return nil, ErrNoEntries
	}

	ids := make([]int64, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

	trades := make([]model.Trade, 0, len(ids))
	for _, id := range ids {
		trade, ok, err := e.buildTrade(id, groups[id])
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		trades = append(trades, trade)
	}

	return trades, nil
}

// buildTrade reduces the executions of one trade id to a Trade row. ok is
// false when the group carries no entry execution, which happens when a
// partial batch holds only the tail of a trade; such groups are skipped, not
// fatal, since re-aggregation with the full history will cover them.
func (e *Engine) buildTrade(id int64, group []model.Execution) (model.Trade, bool, error) {
	var entryExec *model.Execution
	for i := range group {
		if group[i].IsEntry {
			entryExec = &group[i]
			break
		}
	}
	if entryExec == nil {
		e.log.WithFields(map[string]interface{}{
			"trade_id": id,
			"symbol":   group[0].Symbol,
		}).Warn("Trade has no entry execution, skipping")
		return model.Trade{}, false, nil
	}

	initial := entryExec.SignedQuantity()
	if initial == 0 {
		return model.Trade{}, false, fmt.Errorf("%w: trade %d (%s)", ErrZeroQuantityEntry, id, entryExec.Symbol)
	}

	direction := model.DirectionBullish
	if initial < 0 {
		direction = model.DirectionBearish
	}

	// Re-partition every execution of the trade by its economic role. The
	// upstream entry/exit flags mark zero crossings only; partial fills in
	// between carry no flag yet still belong to one side of the trade.
	var entries, exits []model.Execution
	var net, commission float64
	for i := range group {
		q := group[i].SignedQuantity()
		net += q
		commission += group[i].Commission

		switch {
		case q > 0 && direction == model.DirectionBullish, q < 0 && direction == model.DirectionBearish:
			entries = append(entries, group[i])
		case q < 0 && direction == model.DirectionBullish, q > 0 && direction == model.DirectionBearish:
			exits = append(exits, group[i])
		}
	}

	status := model.TradeStatusClosed
	switch {
	case net == 0:
	case (net > 0 && direction == model.DirectionBullish) || (net < 0 && direction == model.DirectionBearish):
		status = model.TradeStatusOpen
	default:
		return model.Trade{}, false, fmt.Errorf("%w: trade %d has net quantity %v while %s",
			ErrNetPosition, id, net, direction)
	}

	entryPrice, quantity := vwapAndVolume(entries)
	exitPrice, _ := vwapAndVolume(exits)

	trade := model.Trade{
		TradeID:       id,
		Symbol:        group[0].Symbol,
		Direction:     direction,
		Status:        status,
		NumExecutions: len(group),
		Quantity:      quantity,
		ExitPrice:     exitPrice,
		Commission:    commission,
	}
	if e.params != nil {
		trade.Strategy = e.params.Name
	}
	if entryPrice != nil {
		trade.EntryPrice = *entryPrice
		trade.CapitalRequired = decimal.NewFromFloat(quantity).
			Mul(decimal.NewFromFloat(*entryPrice)).InexactFloat64()
	}

	trade.StopPrice = e.resolveStopPrice(entryExec, direction, entryPrice)
	if entryPrice != nil && trade.StopPrice != nil {
		perShare := decimal.NewFromFloat(*entryPrice).
			Sub(decimal.NewFromFloat(*trade.StopPrice)).Abs().InexactFloat64()
		trade.RiskAmountPerShare = &perShare
	}
	trade.TakeProfitPrice = e.resolveTakeProfitPrice(entryExec, direction, entryPrice, trade.StopPrice)

	if entryPrice != nil && exitPrice != nil {
		if trade.StopPrice != nil {
			if rr, ok := riskRewardRatio(direction, *entryPrice, *exitPrice, *trade.StopPrice); ok {
				trade.RiskReward = &rr
			}
		} else if ret, ok := plainReturn(direction, *entryPrice, *exitPrice); ok {
			// No stop to measure risk against; the plain price return is the
			// best available stand-in for the ratio.
			trade.RiskReward = &ret
		}
	}

	winner := 0
	if trade.RiskReward != nil && *trade.RiskReward > 0 {
		winner = 1
	}
	trade.IsWinner = &winner

	trade.RiskPerTrade = e.resolveRiskFraction(entryExec, trade.RiskAmountPerShare, quantity)

	if trade.RiskPerTrade != nil && trade.RiskReward != nil {
		ret := decimal.NewFromFloat(*trade.RiskPerTrade).
			Mul(decimal.NewFromFloat(*trade.RiskReward)).InexactFloat64()
		trade.PercReturn = &ret
	} else if entryPrice != nil && exitPrice != nil {
		if ret, ok := plainReturn(direction, *entryPrice, *exitPrice); ok {
			trade.PercReturn = &ret
		}
	}

	if len(entries) > 0 {
		first := entries[0]
		trade.StartDate = first.Date
		trade.StartTime = first.TimeOfDay

		if len(exits) > 0 {
			last := exits[len(exits)-1]
			if last.ExecutedAt.Before(first.ExecutedAt) {
				return model.Trade{}, false, fmt.Errorf("%w: trade %d exits at %s before entry at %s",
					ErrExitBeforeEntry, id, last.ExecutedAt, first.ExecutedAt)
			}

			endDate, endTime := last.Date, last.TimeOfDay
			trade.EndDate = &endDate
			trade.EndTime = &endTime
			hours := utils.HoursBetween(first.ExecutedAt, last.ExecutedAt)
			trade.DurationHours = &hours
		}
	}

	if status == model.TradeStatusClosed && exitPrice != nil && trade.StopPrice != nil {
		exitType := classifyExit(direction, *exitPrice, *trade.StopPrice, trade.TakeProfitPrice)
		trade.ExitType = &exitType

		if exitType == model.ExitTypeOther && len(exits) > 0 &&
			risk.InMarketCloseWindow(exits[len(exits)-1].ExecutedAt) {
			e.log.WithFields(map[string]interface{}{
				"trade_id": id,
				"symbol":   trade.Symbol,
			}).Info("Trade flattened inside the market close window")
		}
	}

	return trade, true, nil
}

// resolveStopPrice prefers the stop recorded on the trade's first entry fill;
// backtest fills carry one, broker fills do not. Without it the strategy's
// stop rules place the stop relative to the entry VWAP.
func (e *Engine) resolveStopPrice(entryExec *model.Execution, direction string, entryPrice *float64) *float64 {
	if entryExec.StopLossPrice != nil {
		v := *entryExec.StopLossPrice
		return &v
	}
	if e.params == nil || entryPrice == nil {
		return nil
	}
	if distance, ok := e.params.StopDistance(*entryPrice); ok {
		v := risk.StopPrice(direction, *entryPrice, distance)
		return &v
	}
	return nil
}

func (e *Engine) resolveTakeProfitPrice(entryExec *model.Execution, direction string, entryPrice, stopPrice *float64) *float64 {
	if entryExec.TakeProfitPrice != nil {
		v := *entryExec.TakeProfitPrice
		return &v
	}
	if e.params == nil || e.params.RiskReward <= 0 || entryPrice == nil || stopPrice == nil {
		return nil
	}
	v := risk.TakeProfitPrice(direction, *entryPrice, *stopPrice, e.params.RiskReward)
	return &v
}

// resolveRiskFraction settles the fraction of account capital the trade
// risked: the value recorded on the entry fill wins, then the strategy's
// fixed fraction, then a derivation from the stop distance and the account
// capital. nil when none of the three is available.
func (e *Engine) resolveRiskFraction(entryExec *model.Execution, riskPerShare *float64, quantity float64) *float64 {
	if entryExec.RiskPerTrade != nil {
		v := *entryExec.RiskPerTrade
		return &v
	}
	if e.params == nil {
		return nil
	}
	if e.params.RiskPerTrade > 0 {
		v := e.params.RiskPerTrade
		return &v
	}
	if riskPerShare != nil {
		if v, ok := risk.RiskFraction(*riskPerShare, quantity, e.params.AccountCapital); ok {
			return &v
		}
	}
	return nil
}

// vwapAndVolume returns the volume-weighted average price over execs and the
// total absolute volume. The price is nil for an empty subset or zero volume.
func vwapAndVolume(execs []model.Execution) (*float64, float64) {
	if len(execs) == 0 {
		return nil, 0
	}

	notional := decimal.Zero
	volume := decimal.Zero
	for i := range execs {
		qty := decimal.NewFromFloat(execs[i].Quantity).Abs()
		notional = notional.Add(decimal.NewFromFloat(execs[i].Price).Mul(qty))
		volume = volume.Add(qty)
	}
	if volume.IsZero() {
		return nil, 0
	}

	price := notional.Div(volume).InexactFloat64()
	return &price, volume.InexactFloat64()
}

// riskRewardRatio measures the realized reward against the planned risk. A
// non-positive risk means the stop sits on the wrong side of the entry, so no
// ratio is reported.
func riskRewardRatio(direction string, entryPrice, exitPrice, stopPrice float64) (float64, bool) {
	entry := decimal.NewFromFloat(entryPrice)
	exit := decimal.NewFromFloat(exitPrice)
	stop := decimal.NewFromFloat(stopPrice)

	var reward, riskAmount decimal.Decimal
	if direction == model.DirectionBearish {
		reward = entry.Sub(exit)
		riskAmount = stop.Sub(entry)
	} else {
		reward = exit.Sub(entry)
		riskAmount = entry.Sub(stop)
	}

	if riskAmount.LessThanOrEqual(decimal.Zero) {
		return 0, false
	}
	return reward.Div(riskAmount).InexactFloat64(), true
}

// plainReturn is the price return on the favorable axis of the trade: a
// bearish trade that exits below its entry earns a positive return.
func plainReturn(direction string, entryPrice, exitPrice float64) (float64, bool) {
	entry := decimal.NewFromFloat(entryPrice)
	if entry.IsZero() {
		return 0, false
	}

	ratio := decimal.NewFromFloat(exitPrice).Div(entry)
	if direction == model.DirectionBearish {
		return decimal.NewFromInt(1).Sub(ratio).InexactFloat64(), true
	}
	return ratio.Sub(decimal.NewFromInt(1)).InexactFloat64(), true
}

func classifyExit(direction string, exitPrice, stopPrice float64, takeProfitPrice *float64) string {
	if direction == model.DirectionBearish {
		if exitPrice >= stopPrice-priceTolerance {
			return model.ExitTypeStop
		}
		if takeProfitPrice != nil && exitPrice <= *takeProfitPrice+priceTolerance {
			return model.ExitTypeTakeProfit
		}
		return model.ExitTypeOther
	}

	if exitPrice <= stopPrice+priceTolerance {
		return model.ExitTypeStop
	}
	if takeProfitPrice != nil && exitPrice >= *takeProfitPrice-priceTolerance {
		return model.ExitTypeTakeProfit
	}
	return model.ExitTypeOther
}

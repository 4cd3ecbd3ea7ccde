package identifier

import (
	"errors"
	"fmt"
	"sort"

	logger "github.com/sirupsen/logrus"

	"tradeledger/src/model"
)

// ErrMissingTradeID reports the batch invariant violation: an execution
// survived identification without being rejected, yet carries no trade id.
var ErrMissingTradeID = errors.New("some executions have no trade id assigned")

// Seed carries the open state left behind by previous runs so an incremental
// batch continues where the stored executions stopped. A nil seed starts from
// scratch: the counter begins at zero and the first trade gets id 1.
//
// OpenPositions hold economic signed volumes exactly as the store sums them
// (buys positive, sells negative); Identify converts them to the strategy's
// own view, so a seeded short reads as positive open volume under a sell
// strategy.
type Seed struct {
	MaxTradeID    int64
	OpenPositions []model.OpenPosition
}

// Result is the outcome of one identification pass.
type Result struct {
	Accepted []model.Execution
	Rejected []model.RejectedExecution

	// Open holds the positions still open when the batch ended, sorted by
	// symbol. Ending with open positions is legal; it only means the exits
	// have not arrived yet.
	Open []model.OpenPosition

	// MaxTradeID is the highest trade id assigned so far, including seeded ids.
	MaxTradeID int64
}

// PositionTracker walks executions chronologically and groups them into
// trades by watching each symbol's open volume cross zero: leaving zero opens
// a trade, returning to zero closes it.
type PositionTracker struct {
	log *logger.Entry
}

func New(log *logger.Entry) *PositionTracker {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &PositionTracker{log: log}
}

// Identify assigns trade ids, open volumes and entry/exit flags to execs.
// Rows whose side is unknown for the strategy, or that try to close a symbol
// with nothing open, are diverted to Rejected and processing continues.
// The input slice is not modified; rows are re-sorted by execution timestamp
// with the given order preserved between equal timestamps.
func (t *PositionTracker) Identify(execs []model.Execution, strategySide string, seed *Seed) (*Result, error) {
	if strategySide != model.StrategySideBuy && strategySide != model.StrategySideSell {
		return nil, fmt.Errorf("unknown strategy side %q", strategySide)
	}

	rows := make([]model.Execution, len(execs))
	copy(rows, execs)
	sort.SliceStable(rows, func(a, b int) bool {
		return rows[a].ExecutedAt.Before(rows[b].ExecutedAt)
	})

	var counter int64
	openVolumes := make(map[string]float64)
	openTradeIDs := make(map[string]int64)

	if seed != nil {
		counter = seed.MaxTradeID
		for _, p := range seed.OpenPositions {
			volume := p.Quantity
			if strategySide == model.StrategySideSell {
				volume = -volume
			}
			openVolumes[p.Symbol] = volume
			openTradeIDs[p.Symbol] = p.TradeID

			t.log.WithFields(map[string]interface{}{
				"symbol":   p.Symbol,
				"quantity": p.Quantity,
				"trade_id": p.TradeID,
			}).Info("Seeded open position from store")
		}
	}

	result := &Result{
		Accepted: make([]model.Execution, 0, len(rows)),
	}

	for idx := range rows {
		row := rows[idx]
		symbol := row.Symbol
		side := row.Side

		if !model.IsKnownSide(side) {
			reason := fmt.Sprintf(model.RejectReasonUnknownSide, side, strategySide)
			result.Rejected = append(result.Rejected, model.NewRejectedExecution(row, reason))

			t.log.WithFields(map[string]interface{}{
				"symbol": symbol,
				"side":   side,
			}).Warn("Rejected execution with unknown side")
			continue
		}

		prev := openVolumes[symbol]

		if prev == 0 && model.IsClosingSide(side, strategySide) {
			reason := fmt.Sprintf(model.RejectReasonNoOpenPosition, symbol, side)
			result.Rejected = append(result.Rejected, model.NewRejectedExecution(row, reason))

			t.log.WithFields(map[string]interface{}{
				"symbol": symbol,
				"side":   side,
			}).Warn("Rejected closing execution with no open position")
			continue
		}

		openVolumes[symbol] = prev + row.PositionDelta(strategySide)
		volume := openVolumes[symbol]

		// Leaving zero opens a new trade.
		if prev == 0 && volume != 0 {
			counter++
			openTradeIDs[symbol] = counter
			row.IsEntry = true

			t.log.WithFields(map[string]interface{}{
				"trade_id": counter,
				"symbol":   symbol,
				"side":     side,
				"quantity": row.Quantity,
			}).Info("New trade started")
		}

		if id, ok := openTradeIDs[symbol]; ok {
			assigned := id
			row.TradeID = &assigned
		}
		row.OpenVolume = volume

		// Returning to zero closes the trade.
		if prev != 0 && volume == 0 {
			row.IsExit = true

			t.log.WithFields(map[string]interface{}{
				"trade_id": openTradeIDs[symbol],
				"symbol":   symbol,
			}).Info("Trade closed")

			delete(openTradeIDs, symbol)
		}

		// Closing more than is open flips the volume to the other sign. The
		// trade id keeps going; the imbalance is worth a warning, not a reject.
		if (prev > 0 && volume < 0) || (prev < 0 && volume > 0) {
			t.log.WithFields(map[string]interface{}{
				"trade_id":    openTradeIDs[symbol],
				"symbol":      symbol,
				"open_volume": volume,
			}).Warn("Position over-closed, open volume flipped sign")
		}

		result.Accepted = append(result.Accepted, row)
	}

	symbols := make([]string, 0, len(openVolumes))
	for symbol := range openVolumes {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		volume := openVolumes[symbol]
		if volume == 0 {
			continue
		}

		t.log.WithFields(map[string]interface{}{
			"symbol":      symbol,
			"open_volume": volume,
			"trade_id":    openTradeIDs[symbol],
		}).Warnf("Ending with open position of %v for %s", volume, symbol)

		quantity := volume
		if strategySide == model.StrategySideSell {
			quantity = -quantity
		}
		result.Open = append(result.Open, model.OpenPosition{
			Symbol:   symbol,
			Quantity: quantity,
			TradeID:  openTradeIDs[symbol],
		})
	}

	missing := 0
	for idx := range result.Accepted {
		if result.Accepted[idx].TradeID == nil {
			missing++
		}
	}
	if missing > 0 {
		return nil, fmt.Errorf("%w: %d row(s)", ErrMissingTradeID, missing)
	}

	result.MaxTradeID = counter
	return result, nil
}

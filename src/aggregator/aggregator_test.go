package aggregator

import (
	"errors"
	"math"
	"testing"
	"time"

	"tradeledger/src/model"
	"tradeledger/src/risk"
	"tradeledger/src/strategy"
	"tradeledger/src/utils"
)

var testBase = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

type fillOpts struct {
	stop         *float64
	takeProfit   *float64
	riskPerTrade *float64
	commission   float64
	entry        bool
	exit         bool
}

func fill(symbol, side string, qty, price float64, minute int, tradeID int64, opts fillOpts) model.Execution {
	at := testBase.Add(time.Duration(minute) * time.Minute)
	date, timeOfDay := utils.SplitTimestamp(at)

	id := tradeID
	return model.Execution{
		Symbol:          symbol,
		Side:            side,
		Quantity:        qty,
		Price:           price,
		Commission:      opts.commission,
		ExecutedAt:      at,
		Date:            date,
		TimeOfDay:       timeOfDay,
		StopLossPrice:   opts.stop,
		TakeProfitPrice: opts.takeProfit,
		RiskPerTrade:    opts.riskPerTrade,
		TradeID:         &id,
		IsEntry:         opts.entry,
		IsExit:          opts.exit,
	}
}

func fptr(v float64) *float64 { return &v }

func almostEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("%s mismatch. got=%v want=%v", name, got, want)
	}
}

func TestAggregateRoundTrip(t *testing.T) {
	execs := []model.Execution{
		fill("X", model.SideBuy, 100, 10, 0, 1, fillOpts{entry: true, commission: 1}),
		fill("X", model.SideBuy, 50, 11, 30, 1, fillOpts{commission: 0.5}),
		fill("X", model.SideSell, 150, 12, 90, 1, fillOpts{exit: true, commission: 1.5}),
	}

	trades, err := New(nil, nil).Aggregate(execs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}

	trade := trades[0]
	if trade.TradeID != 1 {
		t.Errorf("trade id mismatch. got=%d", trade.TradeID)
	}
	if trade.Symbol != "X" {
		t.Errorf("symbol mismatch. got=%s", trade.Symbol)
	}
	if trade.Direction != model.DirectionBullish {
		t.Errorf("direction mismatch. got=%s", trade.Direction)
	}
	if trade.Status != model.TradeStatusClosed {
		t.Errorf("status mismatch. got=%s", trade.Status)
	}
	if trade.NumExecutions != 3 {
		t.Errorf("num executions mismatch. got=%d", trade.NumExecutions)
	}
	if trade.Quantity != 150 {
		t.Errorf("quantity mismatch. got=%v", trade.Quantity)
	}

	almostEqual(t, "entry price", trade.EntryPrice, (100*10+50*11)/150.0)
	if trade.ExitPrice == nil {
		t.Fatal("expected exit price")
	}
	almostEqual(t, "exit price", *trade.ExitPrice, 12)
	almostEqual(t, "capital required", trade.CapitalRequired, 1550)
	almostEqual(t, "commission", trade.Commission, 3)

	if trade.StartDate != "2024-03-04" || trade.StartTime != "09:30:00" {
		t.Errorf("start mismatch. got=%s %s", trade.StartDate, trade.StartTime)
	}
	if trade.EndDate == nil || *trade.EndDate != "2024-03-04" {
		t.Errorf("end date mismatch. got=%v", trade.EndDate)
	}
	if trade.EndTime == nil || *trade.EndTime != "11:00:00" {
		t.Errorf("end time mismatch. got=%v", trade.EndTime)
	}
	if trade.DurationHours == nil {
		t.Fatal("expected duration")
	}
	almostEqual(t, "duration hours", *trade.DurationHours, 1.5)

	// No stop anywhere, so the ratio falls back to the plain price return.
	if trade.StopPrice != nil || trade.TakeProfitPrice != nil || trade.RiskAmountPerShare != nil {
		t.Errorf("expected no risk reference prices, got stop=%v tp=%v per_share=%v",
			trade.StopPrice, trade.TakeProfitPrice, trade.RiskAmountPerShare)
	}
	if trade.RiskReward == nil {
		t.Fatal("expected fallback risk reward")
	}
	almostEqual(t, "risk reward", *trade.RiskReward, 12.0/(1550.0/150.0)-1)
	if trade.IsWinner == nil || *trade.IsWinner != 1 {
		t.Errorf("is winner mismatch. got=%v", trade.IsWinner)
	}
	if trade.PercReturn == nil {
		t.Fatal("expected fallback perc return")
	}
	almostEqual(t, "perc return", *trade.PercReturn, 12.0/(1550.0/150.0)-1)
	if trade.ExitType != nil {
		t.Errorf("expected no exit type without a stop, got %v", *trade.ExitType)
	}
}

func TestAggregateBullishTakeProfit(t *testing.T) {
	execs := []model.Execution{
		fill("AAPL", model.SideBuy, 10, 100, 0, 1, fillOpts{
			entry:        true,
			stop:         fptr(90),
			takeProfit:   fptr(120),
			riskPerTrade: fptr(0.005),
		}),
		fill("AAPL", model.SideSell, 10, 120, 60, 1, fillOpts{exit: true}),
	}

	trades, err := New(nil, nil).Aggregate(execs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	trade := trades[0]

	if trade.StopPrice == nil || *trade.StopPrice != 90 {
		t.Fatalf("stop price mismatch. got=%v", trade.StopPrice)
	}
	if trade.RiskAmountPerShare == nil {
		t.Fatal("expected risk amount per share")
	}
	almostEqual(t, "risk per share", *trade.RiskAmountPerShare, 10)
	if trade.RiskReward == nil {
		t.Fatal("expected risk reward")
	}
	almostEqual(t, "risk reward", *trade.RiskReward, 2.0)
	if trade.IsWinner == nil || *trade.IsWinner != 1 {
		t.Errorf("is winner mismatch. got=%v", trade.IsWinner)
	}
	if trade.RiskPerTrade == nil || *trade.RiskPerTrade != 0.005 {
		t.Errorf("risk per trade mismatch. got=%v", trade.RiskPerTrade)
	}
	if trade.PercReturn == nil {
		t.Fatal("expected perc return")
	}
	almostEqual(t, "perc return", *trade.PercReturn, 0.01)
	if trade.ExitType == nil || *trade.ExitType != model.ExitTypeTakeProfit {
		t.Errorf("exit type mismatch. got=%v", trade.ExitType)
	}
}

func TestAggregateBearishRoundTrip(t *testing.T) {
	execs := []model.Execution{
		fill("TSLA", model.SideSellShort, 10, 100, 0, 1, fillOpts{
			entry:      true,
			stop:       fptr(110),
			takeProfit: fptr(80),
		}),
		fill("TSLA", model.SideBuyToCover, 10, 80, 45, 1, fillOpts{exit: true}),
	}

	trades, err := New(nil, nil).Aggregate(execs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	trade := trades[0]

	if trade.Direction != model.DirectionBearish {
		t.Fatalf("direction mismatch. got=%s", trade.Direction)
	}
	if trade.Status != model.TradeStatusClosed {
		t.Errorf("status mismatch. got=%s", trade.Status)
	}
	if trade.RiskReward == nil {
		t.Fatal("expected risk reward")
	}
	almostEqual(t, "risk reward", *trade.RiskReward, 2.0)
	if trade.IsWinner == nil || *trade.IsWinner != 1 {
		t.Errorf("is winner mismatch. got=%v", trade.IsWinner)
	}
	if trade.ExitType == nil || *trade.ExitType != model.ExitTypeTakeProfit {
		t.Errorf("exit type mismatch. got=%v", trade.ExitType)
	}
}

func TestAggregateDerivesRiskFromParams(t *testing.T) {
	params := &strategy.Params{
		Name: "long_tightness",
		Side: model.StrategySideBuy,
		StopLossRules: []risk.StopRule{
			{PriceBelow: fptr(200), Amount: 0.8},
		},
		RiskReward:     2,
		AccountCapital: 10000,
	}

	execs := []model.Execution{
		fill("AAPL", model.SideBuy, 10, 100, 0, 1, fillOpts{entry: true}),
		fill("AAPL", model.SideSell, 10, 101, 30, 1, fillOpts{exit: true}),
	}

	trades, err := New(nil, params).Aggregate(execs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	trade := trades[0]

	if trade.Strategy != "long_tightness" {
		t.Errorf("strategy mismatch. got=%s", trade.Strategy)
	}
	if trade.StopPrice == nil {
		t.Fatal("expected derived stop price")
	}
	almostEqual(t, "stop price", *trade.StopPrice, 99.2)
	if trade.TakeProfitPrice == nil {
		t.Fatal("expected derived take profit price")
	}
	almostEqual(t, "take profit", *trade.TakeProfitPrice, 101.6)
	if trade.RiskReward == nil {
		t.Fatal("expected risk reward")
	}
	almostEqual(t, "risk reward", *trade.RiskReward, 1.25)
	if trade.RiskPerTrade == nil {
		t.Fatal("expected derived risk fraction")
	}
	almostEqual(t, "risk per trade", *trade.RiskPerTrade, 0.0008)
	if trade.PercReturn == nil {
		t.Fatal("expected perc return")
	}
	almostEqual(t, "perc return", *trade.PercReturn, 0.001)
	if trade.ExitType == nil || *trade.ExitType != model.ExitTypeOther {
		t.Errorf("exit type mismatch. got=%v", trade.ExitType)
	}
}

func TestAggregateOpenTrade(t *testing.T) {
	execs := []model.Execution{
		fill("AAPL", model.SideBuy, 100, 10, 0, 1, fillOpts{entry: true, stop: fptr(9.5)}),
	}

	trades, err := New(nil, nil).Aggregate(execs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	trade := trades[0]

	if trade.Status != model.TradeStatusOpen {
		t.Fatalf("status mismatch. got=%s", trade.Status)
	}
	if trade.ExitPrice != nil || trade.EndDate != nil || trade.EndTime != nil || trade.DurationHours != nil {
		t.Errorf("open trade must not carry exit fields: %+v", trade)
	}
	if trade.RiskReward != nil || trade.PercReturn != nil || trade.ExitType != nil {
		t.Errorf("open trade must not carry realized metrics: %+v", trade)
	}
	if trade.IsWinner == nil || *trade.IsWinner != 0 {
		t.Errorf("is winner mismatch for open trade. got=%v", trade.IsWinner)
	}
}

func TestAggregateRepartitionsBySign(t *testing.T) {
	// Partial fills on both sides carry no flags; the engine still has to
	// price them into the correct VWAP.
	execs := []model.Execution{
		fill("X", model.SideBuy, 100, 10, 0, 1, fillOpts{entry: true}),
		fill("X", model.SideBuy, 50, 11, 10, 1, fillOpts{}),
		fill("X", model.SideSell, 75, 12, 20, 1, fillOpts{}),
		fill("X", model.SideSell, 75, 12.5, 30, 1, fillOpts{exit: true}),
	}

	trades, err := New(nil, nil).Aggregate(execs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	trade := trades[0]

	almostEqual(t, "entry price", trade.EntryPrice, (100*10+50*11)/150.0)
	if trade.ExitPrice == nil {
		t.Fatal("expected exit price")
	}
	almostEqual(t, "exit price", *trade.ExitPrice, 12.25)
	if trade.Quantity != 150 {
		t.Errorf("quantity mismatch. got=%v", trade.Quantity)
	}
	if trade.Status != model.TradeStatusClosed {
		t.Errorf("status mismatch. got=%s", trade.Status)
	}
}

func TestAggregateStopExitTolerance(t *testing.T) {
	tests := []struct {
		name      string
		exitPrice float64
		want      string
	}{
		{name: "at the stop", exitPrice: 90, want: model.ExitTypeStop},
		{name: "within tolerance", exitPrice: 90.005, want: model.ExitTypeStop},
		{name: "past tolerance", exitPrice: 90.02, want: model.ExitTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			execs := []model.Execution{
				fill("AAPL", model.SideBuy, 10, 100, 0, 1, fillOpts{entry: true, stop: fptr(90)}),
				fill("AAPL", model.SideSell, 10, tt.exitPrice, 30, 1, fillOpts{exit: true}),
			}

			trades, err := New(nil, nil).Aggregate(execs)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if trades[0].ExitType == nil || *trades[0].ExitType != tt.want {
				t.Fatalf("exit type mismatch. got=%v want=%s", trades[0].ExitType, tt.want)
			}
		})
	}
}

func TestAggregateNonPositiveRisk(t *testing.T) {
	// Stop above entry for a bullish trade: the ratio is undefined and the
	// return falls back to the plain price return.
	execs := []model.Execution{
		fill("AAPL", model.SideBuy, 10, 100, 0, 1, fillOpts{entry: true, stop: fptr(110)}),
		fill("AAPL", model.SideSell, 10, 105, 30, 1, fillOpts{exit: true}),
	}

	trades, err := New(nil, nil).Aggregate(execs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	trade := trades[0]

	if trade.RiskReward != nil {
		t.Errorf("expected undefined risk reward, got %v", *trade.RiskReward)
	}
	if trade.IsWinner == nil || *trade.IsWinner != 0 {
		t.Errorf("is winner mismatch. got=%v", trade.IsWinner)
	}
	if trade.PercReturn == nil {
		t.Fatal("expected fallback perc return")
	}
	almostEqual(t, "perc return", *trade.PercReturn, 0.05)
}

func TestAggregateMultipleTrades(t *testing.T) {
	execs := []model.Execution{
		fill("MSFT", model.SideBuy, 10, 300, 40, 2, fillOpts{entry: true}),
		fill("AAPL", model.SideBuy, 10, 100, 0, 1, fillOpts{entry: true}),
		fill("AAPL", model.SideSell, 10, 101, 30, 1, fillOpts{exit: true}),
	}

	trades, err := New(nil, nil).Aggregate(execs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if trades[0].TradeID != 1 || trades[1].TradeID != 2 {
		t.Fatalf("trades out of order: %d, %d", trades[0].TradeID, trades[1].TradeID)
	}
	if trades[0].Status != model.TradeStatusClosed || trades[1].Status != model.TradeStatusOpen {
		t.Fatalf("status mismatch: %s, %s", trades[0].Status, trades[1].Status)
	}
}

func TestAggregateSkipsGroupWithoutEntry(t *testing.T) {
	// A partial batch can hold only the tail of an older trade. That group
	// is skipped; full re-aggregation covers it later.
	execs := []model.Execution{
		fill("AAPL", model.SideSell, 10, 101, 0, 1, fillOpts{exit: true}),
		fill("MSFT", model.SideBuy, 10, 300, 10, 2, fillOpts{entry: true}),
	}

	trades, err := New(nil, nil).Aggregate(execs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].TradeID != 2 {
		t.Fatalf("trade id mismatch. got=%d", trades[0].TradeID)
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	trades, err := New(nil, nil).Aggregate(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 0 {
		t.Fatalf("expected no trades, got %d", len(trades))
	}
}

func TestAggregateInvariantViolations(t *testing.T) {
	t.Run("no entries at all", func(t *testing.T) {
		execs := []model.Execution{
			fill("AAPL", model.SideSell, 10, 101, 0, 1, fillOpts{exit: true}),
		}
		_, err := New(nil, nil).Aggregate(execs)
		if !errors.Is(err, ErrNoEntries) {
			t.Fatalf("expected ErrNoEntries, got %v", err)
		}
	})

	t.Run("missing trade id", func(t *testing.T) {
		exec := fill("AAPL", model.SideBuy, 10, 100, 0, 1, fillOpts{entry: true})
		exec.TradeID = nil
		_, err := New(nil, nil).Aggregate([]model.Execution{exec})
		if !errors.Is(err, ErrMissingTradeID) {
			t.Fatalf("expected ErrMissingTradeID, got %v", err)
		}
	})

	t.Run("zero quantity entry", func(t *testing.T) {
		execs := []model.Execution{
			fill("AAPL", model.SideBuy, 0, 100, 0, 1, fillOpts{entry: true}),
		}
		_, err := New(nil, nil).Aggregate(execs)
		if !errors.Is(err, ErrZeroQuantityEntry) {
			t.Fatalf("expected ErrZeroQuantityEntry, got %v", err)
		}
	})

	t.Run("net contradicts direction", func(t *testing.T) {
		execs := []model.Execution{
			fill("AAPL", model.SideBuy, 100, 10, 0, 1, fillOpts{entry: true}),
			fill("AAPL", model.SideSell, 150, 11, 30, 1, fillOpts{}),
		}
		_, err := New(nil, nil).Aggregate(execs)
		if !errors.Is(err, ErrNetPosition) {
			t.Fatalf("expected ErrNetPosition, got %v", err)
		}
	})

	t.Run("exit before entry", func(t *testing.T) {
		execs := []model.Execution{
			fill("AAPL", model.SideSell, 100, 12, 0, 1, fillOpts{}),
			fill("AAPL", model.SideBuy, 100, 10, 30, 1, fillOpts{entry: true}),
		}
		_, err := New(nil, nil).Aggregate(execs)
		if !errors.Is(err, ErrExitBeforeEntry) {
			t.Fatalf("expected ErrExitBeforeEntry, got %v", err)
		}
	})
}

func TestAggregateIdempotent(t *testing.T) {
	execs := []model.Execution{
		fill("X", model.SideBuy, 100, 10, 0, 1, fillOpts{entry: true, stop: fptr(9.8)}),
		fill("X", model.SideSell, 100, 12, 90, 1, fillOpts{exit: true}),
	}

	first, err := New(nil, nil).Aggregate(execs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := New(nil, nil).Aggregate(execs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected 1 trade per run, got %d and %d", len(first), len(second))
	}
	if first[0].TradeID != second[0].TradeID ||
		first[0].EntryPrice != second[0].EntryPrice ||
		*first[0].RiskReward != *second[0].RiskReward {
		t.Fatalf("runs differ: %+v vs %+v", first[0], second[0])
	}
}

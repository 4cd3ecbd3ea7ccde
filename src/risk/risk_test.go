package risk

import (
	"testing"
	"time"

	"tradeledger/src/model"
)

func fptr(v float64) *float64 { return &v }

func TestResolveStopDistance(t *testing.T) {
	rules := []StopRule{
		{PriceBelow: fptr(50), Amount: 0.4},
		{PriceBelow: fptr(200), Amount: 0.8},
		{PriceAbove: fptr(200), Amount: 1.5},
	}

	tests := []struct {
		name         string
		entryPrice   float64
		wantAmount   float64
		wantResolved bool
	}{
		{name: "cheap symbol", entryPrice: 32.5, wantAmount: 0.4, wantResolved: true},
		{name: "mid band", entryPrice: 120, wantAmount: 0.8, wantResolved: true},
		{name: "expensive symbol", entryPrice: 480, wantAmount: 1.5, wantResolved: true},
		{name: "band boundary belongs to price_above", entryPrice: 200, wantAmount: 1.5, wantResolved: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveStopDistance(tt.entryPrice, rules)
			if ok != tt.wantResolved {
				t.Fatalf("resolved mismatch. got=%v want=%v", ok, tt.wantResolved)
			}
			if got != tt.wantAmount {
				t.Fatalf("amount mismatch. got=%v want=%v", got, tt.wantAmount)
			}
		})
	}

	t.Run("no matching rule", func(t *testing.T) {
		if _, ok := ResolveStopDistance(100, []StopRule{{PriceBelow: fptr(50), Amount: 0.4}}); ok {
			t.Fatal("expected no rule to match")
		}
	})

	t.Run("first match wins", func(t *testing.T) {
		overlapping := []StopRule{
			{PriceBelow: fptr(300), Amount: 1.0},
			{PriceBelow: fptr(300), Amount: 9.9},
		}
		got, ok := ResolveStopDistance(100, overlapping)
		if !ok || got != 1.0 {
			t.Fatalf("expected first rule to win. got=%v ok=%v", got, ok)
		}
	})
}

func TestStopPrice(t *testing.T) {
	if got := StopPrice(model.DirectionBullish, 100, 0.8); got != 99.2 {
		t.Fatalf("bullish stop mismatch. got=%v want=99.2", got)
	}
	if got := StopPrice(model.DirectionBearish, 100, 0.8); got != 100.8 {
		t.Fatalf("bearish stop mismatch. got=%v want=100.8", got)
	}
}

func TestTakeProfitPrice(t *testing.T) {
	// Bullish: risking 10 with a 2:1 goal targets entry + 20.
	if got := TakeProfitPrice(model.DirectionBullish, 100, 90, 2); got != 120 {
		t.Fatalf("bullish take profit mismatch. got=%v want=120", got)
	}
	// Bearish: risking 10 with a 2:1 goal targets entry - 20.
	if got := TakeProfitPrice(model.DirectionBearish, 100, 110, 2); got != 80 {
		t.Fatalf("bearish take profit mismatch. got=%v want=80", got)
	}
}

func TestRiskFraction(t *testing.T) {
	got, ok := RiskFraction(0.5, 100, 10000)
	if !ok {
		t.Fatal("expected fraction to be derivable")
	}
	if got != 0.005 {
		t.Fatalf("fraction mismatch. got=%v want=0.005", got)
	}

	if _, ok := RiskFraction(0.5, 100, 0); ok {
		t.Fatal("zero capital must not produce a fraction")
	}
	if _, ok := RiskFraction(0, 100, 10000); ok {
		t.Fatal("zero risk per share must not produce a fraction")
	}
	if _, ok := RiskFraction(0.5, 0, 10000); ok {
		t.Fatal("zero quantity must not produce a fraction")
	}
}

func TestInMarketCloseWindow(t *testing.T) {
	day := func(hour, minute, second int) time.Time {
		return time.Date(2024, 3, 4, hour, minute, second, 0, time.UTC)
	}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{name: "window start", at: day(15, 50, 0), want: true},
		{name: "inside window", at: day(15, 55, 30), want: true},
		{name: "window end", at: day(16, 0, 0), want: true},
		{name: "just before", at: day(15, 49, 59), want: false},
		{name: "just after", at: day(16, 0, 1), want: false},
		{name: "morning", at: day(9, 30, 0), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InMarketCloseWindow(tt.at); got != tt.want {
				t.Fatalf("window mismatch at %v. got=%v want=%v", tt.at, got, tt.want)
			}
		})
	}
}

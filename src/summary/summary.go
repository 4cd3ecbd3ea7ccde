package summary

import (
	"fmt"
	"sort"
	"time"

	"tradeledger/src/model"
	"tradeledger/src/utils"
)

// Period selects the bucketing for a metrics report.
type Period string

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

// ParsePeriod validates a raw period string, typically a query parameter.
func ParsePeriod(raw string) (Period, error) {
	switch Period(raw) {
	case PeriodWeekly, PeriodMonthly, PeriodYearly:
		return Period(raw), nil
	}
	return "", fmt.Errorf("unknown period %q: must be weekly, monthly or yearly", raw)
}

// Row is one line of a period report. Metric fields are preformatted the way
// reports display them: percentages with two decimals, total return signed.
type Row struct {
	Period       string `json:"period"`
	Trades       int    `json:"trades"`
	Accuracy     string `json:"accuracy"`
	RiskPerTrade string `json:"risk_per_trade"`
	AvgWin       string `json:"avg_win"`
	AvgLoss      string `json:"avg_loss"`
	AvgReturn    string `json:"avg_return"`
	TotalReturn  string `json:"total_return"`
}

type bucket struct {
	label  string
	sortBy int
	trades []model.Trade
}

// Build groups closed trades into period buckets keyed on their start date
// and computes one metrics row per bucket, chronologically ordered, followed
// by a TOTAL row across every closed trade. Open trades are ignored: their
// returns are not realized yet.
func Build(trades []model.Trade, period Period) ([]Row, error) {
	if _, err := ParsePeriod(string(period)); err != nil {
		return nil, err
	}

	closed := make([]model.Trade, 0, len(trades))
	for _, trade := range trades {
		if trade.Status == model.TradeStatusClosed {
			closed = append(closed, trade)
		}
	}
	if len(closed) == 0 {
		return []Row{}, nil
	}

	buckets := make(map[int]*bucket)
	for _, trade := range closed {
		startedAt, err := time.Parse(utils.DateLayout, trade.StartDate)
		if err != nil {
			return nil, fmt.Errorf("trade %d has unparseable start date %q: %w", trade.TradeID, trade.StartDate, err)
		}

		key, label := bucketFor(startedAt, period)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{label: label, sortBy: key}
			buckets[key] = b
		}
		b.trades = append(b.trades, trade)
	}

	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(a, b int) bool { return ordered[a].sortBy < ordered[b].sortBy })

	rows := make([]Row, 0, len(ordered)+1)
	for _, b := range ordered {
		rows = append(rows, metricsRow(b.label, b.trades))
	}
	rows = append(rows, metricsRow("TOTAL", closed))

	return rows, nil
}

// bucketFor keys a start date into its period bucket. Weeks follow ISO 8601,
// including the ISO year, so the days around New Year land in the week they
// belong to rather than splitting one week across two rows.
func bucketFor(startedAt time.Time, period Period) (int, string) {
	switch period {
	case PeriodWeekly:
		isoYear, isoWeek := startedAt.ISOWeek()
		return isoYear*100 + isoWeek, fmt.Sprintf("Week %d, %d", isoWeek, isoYear)
	case PeriodMonthly:
		return startedAt.Year()*100 + int(startedAt.Month()),
			fmt.Sprintf("%s %d", startedAt.Month(), startedAt.Year())
	default:
		return startedAt.Year(), fmt.Sprintf("%d", startedAt.Year())
	}
}

func metricsRow(label string, trades []model.Trade) Row {
	var winners int
	var winSum, winCount, lossSum, lossCount float64
	var returnSum, returnCount float64
	var riskSum, riskCount float64

	for _, trade := range trades {
		isWinner := trade.IsWinner != nil && *trade.IsWinner == 1
		if isWinner {
			winners++
		}

		if trade.RiskReward != nil {
			if isWinner {
				winSum += *trade.RiskReward
				winCount++
			} else {
				lossSum += *trade.RiskReward
				lossCount++
			}
		}
		if trade.PercReturn != nil {
			returnSum += *trade.PercReturn
			returnCount++
		}
		if trade.RiskPerTrade != nil {
			riskSum += *trade.RiskPerTrade
			riskCount++
		}
	}

	accuracy := 0.0
	if len(trades) > 0 {
		accuracy = float64(winners) / float64(len(trades)) * 100
	}

	avgWin, avgLoss := 0.0, 0.0
	if winCount > 0 {
		avgWin = winSum / winCount
	}
	if lossCount > 0 {
		avgLoss = lossSum / lossCount
	}

	avgReturn := 0.0
	if returnCount > 0 {
		avgReturn = returnSum / returnCount * 100
	}
	riskPerTrade := 0.0
	if riskCount > 0 {
		riskPerTrade = riskSum / riskCount * 100
	}

	return Row{
		Period:       label,
		Trades:       len(trades),
		Accuracy:     fmt.Sprintf("%.2f%%", accuracy),
		RiskPerTrade: fmt.Sprintf("%.2f%%", riskPerTrade),
		AvgWin:       fmt.Sprintf("%.2f", avgWin),
		AvgLoss:      fmt.Sprintf("%.2f", avgLoss),
		AvgReturn:    fmt.Sprintf("%.2f%%", avgReturn),
		TotalReturn:  fmt.Sprintf("%+.2f%%", returnSum*100),
	}
}

package exporting

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"tradeledger/src/model"
	"tradeledger/src/utils"
)

// Exports are report artifacts: domain columns only, no surrogate ids or
// bookkeeping timestamps. Nil pointers become empty cells so a spreadsheet
// tells "not determinable" apart from zero.

var tradeHeader = []string{
	"trade_id", "symbol", "strategy", "direction", "status",
	"num_executions", "quantity", "entry_price", "exit_price",
	"stop_price", "take_profit_price",
	"risk_reward", "risk_amount_per_share", "risk_per_trade",
	"is_winner", "perc_return", "exit_type",
	"start_date", "start_time", "end_date", "end_time",
	"duration_hours", "capital_required", "commission",
}

var executionHeader = []string{
	"account_id", "external_id", "order_id", "symbol", "side",
	"quantity", "price", "net_cash_with_billable", "commission",
	"executed_at", "date", "time_of_day",
	"stop_loss_price", "take_profit_price", "risk_per_trade",
	"trade_id", "open_volume", "is_entry", "is_exit",
}

var rejectedHeader = []string{
	"run_id", "account_id", "external_id", "symbol", "side",
	"quantity", "price", "executed_at", "reason",
}

const timestampLayout = utils.DateLayout + " " + utils.TimeOfDayLayout

// WriteTrades writes one CSV row per trade, sorted however the caller sorted
// them.
func WriteTrades(w io.Writer, trades []model.Trade) error {
	out := csv.NewWriter(w)
	defer out.Flush()

	if err := out.Write(tradeHeader); err != nil {
		return err
	}
	for i := range trades {
		t := &trades[i]
		rec := []string{
			strconv.FormatInt(t.TradeID, 10),
			t.Symbol,
			t.Strategy,
			t.Direction,
			t.Status,
			strconv.Itoa(t.NumExecutions),
			formatFloat(t.Quantity),
			formatFloat(t.EntryPrice),
			formatFloatPtr(t.ExitPrice),
			formatFloatPtr(t.StopPrice),
			formatFloatPtr(t.TakeProfitPrice),
			formatFloatPtr(t.RiskReward),
			formatFloatPtr(t.RiskAmountPerShare),
			formatFloatPtr(t.RiskPerTrade),
			formatIntPtr(t.IsWinner),
			formatFloatPtr(t.PercReturn),
			orEmpty(t.ExitType),
			t.StartDate,
			t.StartTime,
			orEmpty(t.EndDate),
			orEmpty(t.EndTime),
			formatFloatPtr(t.DurationHours),
			formatFloat(t.CapitalRequired),
			formatFloat(t.Commission),
		}
		if err := out.Write(rec); err != nil {
			return err
		}
	}

	out.Flush()
	return out.Error()
}

// WriteExecutions writes one CSV row per execution, including the fields the
// identification pass filled in.
func WriteExecutions(w io.Writer, execs []model.Execution) error {
	out := csv.NewWriter(w)
	defer out.Flush()

	if err := out.Write(executionHeader); err != nil {
		return err
	}
	for i := range execs {
		e := &execs[i]
		rec := []string{
			e.AccountID,
			e.ExternalID,
			e.OrderID,
			e.Symbol,
			e.Side,
			formatFloat(e.Quantity),
			formatFloat(e.Price),
			formatFloat(e.NetCash),
			formatFloat(e.Commission),
			e.ExecutedAt.Format(timestampLayout),
			e.Date,
			e.TimeOfDay,
			formatFloatPtr(e.StopLossPrice),
			formatFloatPtr(e.TakeProfitPrice),
			formatFloatPtr(e.RiskPerTrade),
			formatInt64Ptr(e.TradeID),
			formatFloat(e.OpenVolume),
			strconv.FormatBool(e.IsEntry),
			strconv.FormatBool(e.IsExit),
		}
		if err := out.Write(rec); err != nil {
			return err
		}
	}

	out.Flush()
	return out.Error()
}

// WriteRejected writes one CSV row per diverted execution with the reason it
// was rejected.
func WriteRejected(w io.Writer, rejected []model.RejectedExecution) error {
	out := csv.NewWriter(w)
	defer out.Flush()

	if err := out.Write(rejectedHeader); err != nil {
		return err
	}
	for i := range rejected {
		r := &rejected[i]
		rec := []string{
			r.RunID,
			r.AccountID,
			r.ExternalID,
			r.Symbol,
			r.Side,
			formatFloat(r.Quantity),
			formatFloat(r.Price),
			r.ExecutedAt.Format(timestampLayout),
			r.Reason,
		}
		if err := out.Write(rec); err != nil {
			return err
		}
	}

	out.Flush()
	return out.Error()
}

// TradesToFile writes trades to a CSV file at path, truncating it if it
// exists.
func TradesToFile(path string, trades []model.Trade) error {
	return toFile(path, func(w io.Writer) error { return WriteTrades(w, trades) })
}

// ExecutionsToFile writes executions to a CSV file at path.
func ExecutionsToFile(path string, execs []model.Execution) error {
	return toFile(path, func(w io.Writer) error { return WriteExecutions(w, execs) })
}

// RejectedToFile writes rejected executions to a CSV file at path.
func RejectedToFile(path string, rejected []model.RejectedExecution) error {
	return toFile(path, func(w io.Writer) error { return WriteRejected(w, rejected) })
}

func toFile(path string, write func(io.Writer) error) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := write(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatInt64Ptr(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatIntPtr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func orEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

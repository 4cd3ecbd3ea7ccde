package normalizer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	logger "github.com/sirupsen/logrus"

	"tradeledger/src/externalmodel"
	"tradeledger/src/model"
	"tradeledger/src/utils"
)

// Normalizer turns raw statement and backtest files into the uniform
// execution schema the identifier consumes: validated numeric fields, UTC
// timestamps, rows sorted ascending by execution time.
type Normalizer struct {
	log *logger.Entry
}

func New(log *logger.Entry) *Normalizer {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &Normalizer{log: log}
}

// record addresses one CSV row by column name. Statement templates let the
// owner reorder columns, and IBKR emits two header dialects for the same
// field (TradeID vs tradeID, Date/Time vs dateTime), so position-based access
// would be fragile.
type record struct {
	cols map[string]int
	row  []string
}

func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols
}

// get returns the first of the named columns present in the row. Names must
// already be lowercase.
func (r record) get(names ...string) (string, bool) {
	for _, name := range names {
		if i, ok := r.cols[name]; ok && i < len(r.row) {
			return strings.TrimSpace(r.row[i]), true
		}
	}
	return "", false
}

func (r record) requireFloat(names ...string) (float64, error) {
	s, ok := r.get(names...)
	if !ok || s == "" {
		return 0, fmt.Errorf("column %q is empty", names[0])
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("column %q: invalid number %q", names[0], s)
	}
	return v, nil
}

// optionalFloat treats a missing column or an empty cell as zero but still
// rejects garbage in a populated cell.
func (r record) optionalFloat(names ...string) (float64, error) {
	s, ok := r.get(names...)
	if !ok || s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("column %q: invalid number %q", names[0], s)
	}
	return v, nil
}

// optionalFloatPtr distinguishes "column absent or empty" (nil) from a real
// zero, which matters for the backtest-only risk fields.
func (r record) optionalFloatPtr(names ...string) (*float64, error) {
	s, ok := r.get(names...)
	if !ok || s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("column %q: invalid number %q", names[0], s)
	}
	return &v, nil
}

// ParseFlexStatement reads the CSV body of a Flex trade confirmation report
// into raw statement rows. Quantity keeps its sign and Date/Time stays a raw
// string; FromFlexRows does the conversion into executions.
func (n *Normalizer) ParseFlexStatement(r io.Reader) ([]externalmodel.FlexTradeRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read flex statement: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("flex statement is empty")
	}

	cols := headerIndex(records[0])
	for _, required := range []string{"symbol", "quantity", "price", "tradeid"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("flex statement missing column %q", required)
		}
	}
	if _, ok := cols["date/time"]; !ok {
		if _, ok := cols["datetime"]; !ok {
			return nil, errors.New(`flex statement missing column "Date/Time"`)
		}
	}

	rows := make([]externalmodel.FlexTradeRow, 0, len(records)-1)
	for i, raw := range records[1:] {
		rec := record{cols: cols, row: raw}

		var row externalmodel.FlexTradeRow
		row.Symbol, _ = rec.get("symbol")
		row.TradeID, _ = rec.get("tradeid")
		row.OrderID, _ = rec.get("orderid")
		row.AccountID, _ = rec.get("clientaccountid", "accountid")
		row.DateTime, _ = rec.get("date/time", "datetime")

		if row.Quantity, err = rec.requireFloat("quantity"); err != nil {
			return nil, fmt.Errorf("flex statement row %d: %w", i+2, err)
		}
		if row.Price, err = rec.requireFloat("price"); err != nil {
			return nil, fmt.Errorf("flex statement row %d: %w", i+2, err)
		}
		if row.NetCash, err = rec.optionalFloat("netcashwithbillable", "netcash"); err != nil {
			return nil, fmt.Errorf("flex statement row %d: %w", i+2, err)
		}
		if row.Commission, err = rec.optionalFloat("commission", "ibcommission"); err != nil {
			return nil, fmt.Errorf("flex statement row %d: %w", i+2, err)
		}

		rows = append(rows, row)
	}
	return rows, nil
}

// FromFlexRows converts statement rows into executions for accountID, leaving
// out rows whose TradeID the store already holds. The broker restates the
// whole lookback window on every pull, so re-seen ids are routine, not errors.
//
// The statement reports quantity signed; the execution schema carries a
// positive magnitude plus a side, so the side is read off the sign.
func (n *Normalizer) FromFlexRows(rows []externalmodel.FlexTradeRow, accountID string, knownExternalIDs map[string]struct{}) ([]model.Execution, error) {
	execs := make([]model.Execution, 0, len(rows))
	skipped := 0

	for _, row := range rows {
		if _, ok := knownExternalIDs[row.TradeID]; ok {
			skipped++
			continue
		}

		ts, err := utils.ParseExecutionTimestamp(row.DateTime)
		if err != nil {
			return nil, fmt.Errorf("flex row %s (%s): %w", row.TradeID, row.Symbol, err)
		}

		side := model.SideSell
		if row.Quantity > 0 {
			side = model.SideBuy
		}

		account := row.AccountID
		if account == "" {
			account = accountID
		}

		date, timeOfDay := utils.SplitTimestamp(ts)
		execs = append(execs, model.Execution{
			AccountID:  account,
			ExternalID: row.TradeID,
			OrderID:    row.OrderID,
			Symbol:     row.Symbol,
			Side:       side,
			Quantity:   math.Abs(row.Quantity),
			Price:      row.Price,
			NetCash:    row.NetCash,
			Commission: row.Commission,
			ExecutedAt: ts,
			Date:       date,
			TimeOfDay:  timeOfDay,
		})
	}

	if skipped > 0 {
		n.log.WithFields(logger.Fields{
			"account": accountID,
			"skipped": skipped,
		}).Info("Filtered out executions already in database")
	}

	sort.SliceStable(execs, func(a, b int) bool {
		return execs[a].ExecutedAt.Before(execs[b].ExecutedAt)
	})
	return execs, nil
}

// ParseBacktestCSV reads a strategy fill log into executions. Backtest rows
// carry an explicit side from the full order vocabulary and may carry the
// stop, take-profit and risk-fraction the strategy used for the fill.
//
// Rows whose filled_quantity is not greater than zero are diverted to the
// rejected set and parsing continues; other malformed cells abort, since a
// backtest file is produced in one piece and a bad cell means the file is
// broken, not the market data.
func (n *Normalizer) ParseBacktestCSV(r io.Reader) ([]model.Execution, []model.RejectedExecution, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read backtest file: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, errors.New("backtest file is empty")
	}

	cols := headerIndex(records[0])
	for _, required := range []string{"time", "symbol", "side", "filled_quantity", "price"} {
		if _, ok := cols[required]; !ok {
			return nil, nil, fmt.Errorf("backtest file missing column %q", required)
		}
	}

	execs := make([]model.Execution, 0, len(records)-1)
	var rejected []model.RejectedExecution

	for i, raw := range records[1:] {
		rec := record{cols: cols, row: raw}
		line := i + 2

		rawTime, _ := rec.get("time")
		ts, err := utils.ParseExecutionTimestamp(rawTime)
		if err != nil {
			return nil, nil, fmt.Errorf("backtest row %d: %w", line, err)
		}

		quantity, err := rec.requireFloat("filled_quantity")
		if err != nil {
			return nil, nil, fmt.Errorf("backtest row %d: %w", line, err)
		}
		price, err := rec.requireFloat("price")
		if err != nil {
			return nil, nil, fmt.Errorf("backtest row %d: %w", line, err)
		}
		commission, err := rec.optionalFloat("commission")
		if err != nil {
			return nil, nil, fmt.Errorf("backtest row %d: %w", line, err)
		}
		stopLoss, err := rec.optionalFloatPtr("stop_loss_price")
		if err != nil {
			return nil, nil, fmt.Errorf("backtest row %d: %w", line, err)
		}
		takeProfit, err := rec.optionalFloatPtr("take_profit_price")
		if err != nil {
			return nil, nil, fmt.Errorf("backtest row %d: %w", line, err)
		}
		riskPerTrade, err := rec.optionalFloatPtr("risk_per_trade")
		if err != nil {
			return nil, nil, fmt.Errorf("backtest row %d: %w", line, err)
		}

		symbol, _ := rec.get("symbol")
		side, _ := rec.get("side")
		orderID, _ := rec.get("order_id")

		date, timeOfDay := utils.SplitTimestamp(ts)
		exec := model.Execution{
			OrderID:         orderID,
			Symbol:          symbol,
			Side:            strings.ToLower(side),
			Quantity:        quantity,
			Price:           price,
			Commission:      commission,
			ExecutedAt:      ts,
			Date:            date,
			TimeOfDay:       timeOfDay,
			StopLossPrice:   stopLoss,
			TakeProfitPrice: takeProfit,
			RiskPerTrade:    riskPerTrade,
		}

		if quantity <= 0 {
			rejected = append(rejected, model.NewRejectedExecution(exec, model.RejectReasonZeroQuantity))
			continue
		}
		execs = append(execs, exec)
	}

	if len(rejected) > 0 {
		n.log.WithFields(logger.Fields{
			"rejected": len(rejected),
		}).Warn("Filtered out rows where filled_quantity is not greater than zero")
	}

	sort.SliceStable(execs, func(a, b int) bool {
		return execs[a].ExecutedAt.Before(execs[b].ExecutedAt)
	})
	return execs, rejected, nil
}

package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradeledger/src/database"
	"tradeledger/src/model"
)

// TradeSearchOptions narrows a trade listing. Nil pointer fields are not
// applied. Date bounds are inclusive and compare against start_date, which is
// stored as YYYY-MM-DD and therefore orders lexicographically.
type TradeSearchOptions struct {
	Symbol    *string
	Status    *string
	Direction *string
	Strategy  *string

	StartDateFrom *string
	StartDateTo   *string

	Limit  int
	Offset int
}

// TradeRepository handles read/write operations for aggregated trades.
type TradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new repository instance using the main read/write database.
func NewTradeRepository() *TradeRepository {
	logger.WithField("component", "TradeRepository").
		Info("Creating new TradeRepository with MainDB")

	return &TradeRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *TradeRepository) WithDB(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// tradeUpdateColumns are the columns refreshed when an already-stored trade
// id is aggregated again, which happens every time an open trade receives
// further executions.
var tradeUpdateColumns = []string{
	"symbol",
	"strategy",
	"direction",
	"status",
	"num_executions",
	"quantity",
	"entry_price",
	"exit_price",
	"stop_price",
	"take_profit_price",
	"risk_reward",
	"risk_amount_per_share",
	"risk_per_trade",
	"is_winner",
	"perc_return",
	"exit_type",
	"start_date",
	"start_time",
	"end_date",
	"end_time",
	"duration_hours",
	"capital_required",
	"commission",
	"updated_at",
}

// Upsert stores aggregated trades, updating every metric column when the
// trade id already exists.
func (r *TradeRepository) Upsert(
	ctx context.Context,
	trades []model.Trade,
) error {

	if len(trades) == 0 {
		return nil
	}

	logger.WithFields(map[string]interface{}{
		"repo": "TradeRepository",
		"op":   "Upsert",
		"rows": len(trades),
	}).Debug("Upserting trades")

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "trade_id"}},
			DoUpdates: clause.AssignmentColumns(tradeUpdateColumns),
		}).
		Create(&trades).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TradeRepository",
			"op":   "Upsert",
			"rows": len(trades),
		}).WithError(err).Error("Failed to upsert trades")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo": "TradeRepository",
		"op":   "Upsert",
		"rows": len(trades),
	}).Info("Trades upserted")

	return nil
}

// FindByTradeID fetches a single trade by its trade id.
// Returns (nil, nil) if the trade is not found.
func (r *TradeRepository) FindByTradeID(
	ctx context.Context,
	tradeID int64,
) (*model.Trade, error) {

	logger.WithFields(map[string]interface{}{
		"repo":     "TradeRepository",
		"op":       "FindByTradeID",
		"trade_id": tradeID,
	}).Debug("Fetching trade by trade id")

	var trade model.Trade

	err := r.db.WithContext(ctx).
		Where("trade_id = ?", tradeID).
		First(&trade).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo":     "TradeRepository",
				"op":       "FindByTradeID",
				"trade_id": tradeID,
			}).Info("Trade not found")

			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRepository",
			"op":       "FindByTradeID",
			"trade_id": tradeID,
		}).WithError(err).Error("Failed to fetch trade by trade id")

		return nil, err
	}

	return &trade, nil
}

// Search lists trades matching the given options, newest first.
func (r *TradeRepository) Search(
	ctx context.Context,
	opts TradeSearchOptions,
) ([]model.Trade, error) {

	logger.WithFields(map[string]interface{}{
		"repo": "TradeRepository",
		"op":   "Search",
	}).Debug("Searching trades")

	query := r.db.WithContext(ctx).Model(&model.Trade{})

	if opts.Symbol != nil {
		query = query.Where("symbol = ?", *opts.Symbol)
	}
	if opts.Status != nil {
		query = query.Where("status = ?", *opts.Status)
	}
	if opts.Direction != nil {
		query = query.Where("direction = ?", *opts.Direction)
	}
	if opts.Strategy != nil {
		query = query.Where("strategy = ?", *opts.Strategy)
	}
	if opts.StartDateFrom != nil {
		query = query.Where("start_date >= ?", *opts.StartDateFrom)
	}
	if opts.StartDateTo != nil {
		query = query.Where("start_date <= ?", *opts.StartDateTo)
	}

	query = query.Order("start_date DESC, trade_id DESC")

	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}

	var trades []model.Trade
	if err := query.Find(&trades).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TradeRepository",
			"op":   "Search",
		}).WithError(err).Error("Failed to search trades")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "TradeRepository",
		"op":          "Search",
		"rows_return": len(trades),
	}).Info("Trades fetched")

	return trades, nil
}

// ListClosed returns all closed trades in chronological order, the input the
// summary tables are built from.
func (r *TradeRepository) ListClosed(ctx context.Context) ([]model.Trade, error) {
	logger.WithFields(map[string]interface{}{
		"repo": "TradeRepository",
		"op":   "ListClosed",
	}).Debug("Fetching closed trades")

	var trades []model.Trade

	err := r.db.WithContext(ctx).
		Where("status = ?", model.TradeStatusClosed).
		Order("start_date ASC, trade_id ASC").
		Find(&trades).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TradeRepository",
			"op":   "ListClosed",
		}).WithError(err).Error("Failed to fetch closed trades")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "TradeRepository",
		"op":          "ListClosed",
		"rows_return": len(trades),
	}).Info("Closed trades fetched")

	return trades, nil
}

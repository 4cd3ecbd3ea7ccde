package repository

import (
	"context"
	"database/sql"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradeledger/src/database"
	"tradeledger/src/model"
)

// openPositionsSQL reconstructs the open seed state from stored executions:
// one row per (symbol, trade_id) whose signed quantities do not net to zero.
// Quantity is stored as a magnitude, so the sign is recovered from the side
// family here.
const openPositionsSQL = `SELECT symbol, SUM(CASE WHEN side IN ('buy','buy_to_cover','buy_to_close') THEN quantity ELSE -quantity END) AS quantity, trade_id FROM executions WHERE trade_id IS NOT NULL GROUP BY symbol, trade_id HAVING SUM(CASE WHEN side IN ('buy','buy_to_cover','buy_to_close') THEN quantity ELSE -quantity END) <> 0`

// ExecutionRepository handles read/write operations for executions and the
// derived seed state incremental runs start from.
type ExecutionRepository struct {
	db *gorm.DB
}

// NewExecutionRepository creates a new repository instance using the main read/write database.
func NewExecutionRepository() *ExecutionRepository {
	logger.WithField("component", "ExecutionRepository").
		Info("Creating new ExecutionRepository with MainDB")

	return &ExecutionRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *ExecutionRepository) WithDB(db *gorm.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

// CreateBatch inserts identified executions. The given rows are updated with
// generated IDs and timestamps.
func (r *ExecutionRepository) CreateBatch(
	ctx context.Context,
	execs []model.Execution,
) error {

	if len(execs) == 0 {
		return nil
	}

	logger.WithFields(map[string]interface{}{
		"repo": "ExecutionRepository",
		"op":   "CreateBatch",
		"rows": len(execs),
	}).Debug("Inserting execution batch")

	err := r.db.WithContext(ctx).CreateInBatches(&execs, 500).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "ExecutionRepository",
			"op":   "CreateBatch",
			"rows": len(execs),
		}).WithError(err).Error("Failed to insert execution batch")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo": "ExecutionRepository",
		"op":   "CreateBatch",
		"rows": len(execs),
	}).Info("Execution batch inserted")

	return nil
}

// ExistingExternalIDs returns the broker fill ids already stored for an
// account, used to drop restated statement rows before identification.
func (r *ExecutionRepository) ExistingExternalIDs(
	ctx context.Context,
	accountID string,
) (map[string]struct{}, error) {

	logger.WithFields(map[string]interface{}{
		"repo":    "ExecutionRepository",
		"op":      "ExistingExternalIDs",
		"account": accountID,
	}).Debug("Fetching stored external ids")

	var ids []string

	err := r.db.WithContext(ctx).
		Model(&model.Execution{}).
		Where("account_id = ? AND external_id <> ''", accountID).
		Pluck("external_id", &ids).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "ExecutionRepository",
			"op":      "ExistingExternalIDs",
			"account": accountID,
		}).WithError(err).Error("Failed to fetch stored external ids")

		return nil, err
	}

	known := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		known[id] = struct{}{}
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "ExecutionRepository",
		"op":          "ExistingExternalIDs",
		"account":     accountID,
		"rows_return": len(known),
	}).Debug("Stored external ids fetched")

	return known, nil
}

// MaxTradeID returns the highest trade id assigned so far, zero when no
// execution has one yet.
func (r *ExecutionRepository) MaxTradeID(ctx context.Context) (int64, error) {
	logger.WithFields(map[string]interface{}{
		"repo": "ExecutionRepository",
		"op":   "MaxTradeID",
	}).Debug("Fetching max trade id")

	var max sql.NullInt64

	row := r.db.WithContext(ctx).
		Model(&model.Execution{}).
		Select("MAX(trade_id)").
		Row()
	if err := row.Scan(&max); err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "ExecutionRepository",
			"op":   "MaxTradeID",
		}).WithError(err).Error("Failed to fetch max trade id")

		return 0, err
	}

	if !max.Valid {
		return 0, nil
	}
	return max.Int64, nil
}

// OpenPositions returns the symbols whose stored executions do not net to
// zero, with their signed open volume and the trade id the volume belongs to.
func (r *ExecutionRepository) OpenPositions(ctx context.Context) ([]model.OpenPosition, error) {
	logger.WithFields(map[string]interface{}{
		"repo": "ExecutionRepository",
		"op":   "OpenPositions",
	}).Debug("Fetching open positions")

	var positions []model.OpenPosition

	err := r.db.WithContext(ctx).Raw(openPositionsSQL).Scan(&positions).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "ExecutionRepository",
			"op":   "OpenPositions",
		}).WithError(err).Error("Failed to fetch open positions")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "ExecutionRepository",
		"op":          "OpenPositions",
		"rows_return": len(positions),
	}).Info("Open positions fetched")

	return positions, nil
}

// FindByTradeIDs fetches all executions of the given trades in execution
// order, the shape the aggregation engine expects.
func (r *ExecutionRepository) FindByTradeIDs(
	ctx context.Context,
	tradeIDs []int64,
) ([]model.Execution, error) {

	if len(tradeIDs) == 0 {
		return nil, nil
	}

	logger.WithFields(map[string]interface{}{
		"repo":   "ExecutionRepository",
		"op":     "FindByTradeIDs",
		"trades": len(tradeIDs),
	}).Debug("Fetching executions by trade ids")

	var execs []model.Execution

	err := r.db.WithContext(ctx).
		Where("trade_id IN ?", tradeIDs).
		Order("executed_at ASC, id ASC").
		Find(&execs).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "ExecutionRepository",
			"op":     "FindByTradeIDs",
			"trades": len(tradeIDs),
		}).WithError(err).Error("Failed to fetch executions by trade ids")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "ExecutionRepository",
		"op":          "FindByTradeIDs",
		"trades":      len(tradeIDs),
		"rows_return": len(execs),
	}).Debug("Executions fetched by trade ids")

	return execs, nil
}

// ListAll returns every stored execution in chronological order. Meant for
// exports; the result is the whole table.
func (r *ExecutionRepository) ListAll(ctx context.Context) ([]model.Execution, error) {
	logger.WithFields(map[string]interface{}{
		"repo": "ExecutionRepository",
		"op":   "ListAll",
	}).Debug("Fetching all executions")

	var execs []model.Execution

	err := r.db.WithContext(ctx).
		Order("executed_at ASC, id ASC").
		Find(&execs).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "ExecutionRepository",
			"op":   "ListAll",
		}).WithError(err).Error("Failed to fetch all executions")

		return nil, err
	}

	return execs, nil
}

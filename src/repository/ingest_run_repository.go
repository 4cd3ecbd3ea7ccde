package repository

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradeledger/src/database"
	"tradeledger/src/model"
)

// IngestRunRepository persists the audit row of each processing run.
type IngestRunRepository struct {
	db *gorm.DB
}

// NewIngestRunRepository creates a new repository instance using the main read/write database.
func NewIngestRunRepository() *IngestRunRepository {
	logger.WithField("component", "IngestRunRepository").
		Info("Creating new IngestRunRepository with MainDB")

	return &IngestRunRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *IngestRunRepository) WithDB(db *gorm.DB) *IngestRunRepository {
	return &IngestRunRepository{db: db}
}

// Create inserts the run row at batch start, before any outcome is known.
func (r *IngestRunRepository) Create(
	ctx context.Context,
	run *model.IngestRun,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":   "IngestRunRepository",
		"op":     "Create",
		"run_id": run.RunID,
		"mode":   run.Mode,
	}).Debug("Creating ingest run")

	err := r.db.WithContext(ctx).Create(run).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "IngestRunRepository",
			"op":     "Create",
			"run_id": run.RunID,
		}).WithError(err).Error("Failed to create ingest run")

		return err
	}

	return nil
}

// Finish stamps the counters and the finish time on an existing run row.
func (r *IngestRunRepository) Finish(
	ctx context.Context,
	run *model.IngestRun,
) error {

	now := time.Now().UTC()
	run.FinishedAt = &now

	logger.WithFields(map[string]interface{}{
		"repo":     "IngestRunRepository",
		"op":       "Finish",
		"run_id":   run.RunID,
		"accepted": run.Accepted,
		"rejected": run.Rejected,
	}).Debug("Finishing ingest run")

	err := r.db.WithContext(ctx).
		Model(&model.IngestRun{}).
		Where("run_id = ?", run.RunID).
		Updates(map[string]interface{}{
			"executions_in":   run.ExecutionsIn,
			"accepted":        run.Accepted,
			"rejected":        run.Rejected,
			"trades_upserted": run.TradesUpserted,
			"max_trade_id":    run.MaxTradeID,
			"finished_at":     run.FinishedAt,
		}).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "IngestRunRepository",
			"op":     "Finish",
			"run_id": run.RunID,
		}).WithError(err).Error("Failed to finish ingest run")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":            "IngestRunRepository",
		"op":              "Finish",
		"run_id":          run.RunID,
		"executions_in":   run.ExecutionsIn,
		"accepted":        run.Accepted,
		"rejected":        run.Rejected,
		"trades_upserted": run.TradesUpserted,
	}).Info("Ingest run finished")

	return nil
}

// FindLatest returns the most recent runs, newest first.
func (r *IngestRunRepository) FindLatest(
	ctx context.Context,
	limit int,
) ([]model.IngestRun, error) {

	if limit <= 0 {
		limit = 20
	}

	logger.WithFields(map[string]interface{}{
		"repo":  "IngestRunRepository",
		"op":    "FindLatest",
		"limit": limit,
	}).Debug("Fetching latest ingest runs")

	var runs []model.IngestRun

	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&runs).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "IngestRunRepository",
			"op":    "FindLatest",
			"limit": limit,
		}).WithError(err).Error("Failed to fetch latest ingest runs")

		return nil, err
	}

	return runs, nil
}

package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradeledger/src/database"
	"tradeledger/src/model"
)

// RejectedExecutionRepository persists the audit trail of fills that were
// diverted during identification or normalization.
type RejectedExecutionRepository struct {
	db *gorm.DB
}

// NewRejectedExecutionRepository creates a new repository instance using the main read/write database.
func NewRejectedExecutionRepository() *RejectedExecutionRepository {
	logger.WithField("component", "RejectedExecutionRepository").
		Info("Creating new RejectedExecutionRepository with MainDB")

	return &RejectedExecutionRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *RejectedExecutionRepository) WithDB(db *gorm.DB) *RejectedExecutionRepository {
	return &RejectedExecutionRepository{db: db}
}

// CreateBatch inserts rejected executions, each stamped with the run that
// produced them.
func (r *RejectedExecutionRepository) CreateBatch(
	ctx context.Context,
	runID string,
	rejected []model.RejectedExecution,
) error {

	if len(rejected) == 0 {
		return nil
	}

	for i := range rejected {
		rejected[i].RunID = runID
	}

	logger.WithFields(map[string]interface{}{
		"repo":   "RejectedExecutionRepository",
		"op":     "CreateBatch",
		"run_id": runID,
		"rows":   len(rejected),
	}).Debug("Inserting rejected executions")

	err := r.db.WithContext(ctx).CreateInBatches(&rejected, 500).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "RejectedExecutionRepository",
			"op":     "CreateBatch",
			"run_id": runID,
		}).WithError(err).Error("Failed to insert rejected executions")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":   "RejectedExecutionRepository",
		"op":     "CreateBatch",
		"run_id": runID,
		"rows":   len(rejected),
	}).Warn("Rejected executions recorded")

	return nil
}

// ListByRun returns the rejections of one run in insertion order.
func (r *RejectedExecutionRepository) ListByRun(
	ctx context.Context,
	runID string,
) ([]model.RejectedExecution, error) {

	logger.WithFields(map[string]interface{}{
		"repo":   "RejectedExecutionRepository",
		"op":     "ListByRun",
		"run_id": runID,
	}).Debug("Fetching rejected executions for run")

	var rejected []model.RejectedExecution

	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("id ASC").
		Find(&rejected).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "RejectedExecutionRepository",
			"op":     "ListByRun",
			"run_id": runID,
		}).WithError(err).Error("Failed to fetch rejected executions")

		return nil, err
	}

	return rejected, nil
}

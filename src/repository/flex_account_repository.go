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

// FlexAccountRepository stores the broker accounts the sync loop polls,
// together with their encrypted Flex tokens.
type FlexAccountRepository struct {
	db *gorm.DB
}

// NewFlexAccountRepository creates a new repository instance using the main read/write database.
func NewFlexAccountRepository() *FlexAccountRepository {
	logger.WithField("component", "FlexAccountRepository").
		Info("Creating new FlexAccountRepository with MainDB")

	return &FlexAccountRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *FlexAccountRepository) WithDB(db *gorm.DB) *FlexAccountRepository {
	return &FlexAccountRepository{db: db}
}

// Upsert creates a new FlexAccount or refreshes the credentials when the
// name already exists.
func (r *FlexAccountRepository) Upsert(
	ctx context.Context,
	account *model.FlexAccount,
) error {

	logger.WithFields(map[string]interface{}{
		"repo": "FlexAccountRepository",
		"op":   "Upsert",
		"name": account.Name,
	}).Debug("Upserting flex account")

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"account_id",
				"token",
				"query_id",
				"active",
				"updated_at",
			}),
		}).
		Create(account).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "FlexAccountRepository",
			"op":   "Upsert",
			"name": account.Name,
		}).WithError(err).Error("Failed to upsert flex account")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo": "FlexAccountRepository",
		"op":   "Upsert",
		"name": account.Name,
	}).Info("Flex account upserted")

	return nil
}

// GetByName fetches a flex account by its unique name.
// Returns (nil, nil) if the account is not found.
func (r *FlexAccountRepository) GetByName(
	ctx context.Context,
	name string,
) (*model.FlexAccount, error) {

	logger.WithFields(map[string]interface{}{
		"repo": "FlexAccountRepository",
		"op":   "GetByName",
		"name": name,
	}).Debug("Fetching flex account by name")

	var account model.FlexAccount

	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		First(&account).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo": "FlexAccountRepository",
				"op":   "GetByName",
				"name": name,
			}).Info("Flex account not found")

			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "FlexAccountRepository",
			"op":   "GetByName",
			"name": name,
		}).WithError(err).Error("Failed to fetch flex account")

		return nil, err
	}

	return &account, nil
}

// ListActive returns the accounts the sync loop should poll.
func (r *FlexAccountRepository) ListActive(ctx context.Context) ([]model.FlexAccount, error) {
	logger.WithFields(map[string]interface{}{
		"repo": "FlexAccountRepository",
		"op":   "ListActive",
	}).Debug("Fetching active flex accounts")

	var accounts []model.FlexAccount

	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("name ASC").
		Find(&accounts).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "FlexAccountRepository",
			"op":   "ListActive",
		}).WithError(err).Error("Failed to fetch active flex accounts")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "FlexAccountRepository",
		"op":          "ListActive",
		"rows_return": len(accounts),
	}).Debug("Active flex accounts fetched")

	return accounts, nil
}

// SetActive flips the polling flag of one account.
func (r *FlexAccountRepository) SetActive(
	ctx context.Context,
	name string,
	active bool,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":   "FlexAccountRepository",
		"op":     "SetActive",
		"name":   name,
		"active": active,
	}).Debug("Updating flex account active flag")

	result := r.db.WithContext(ctx).
		Model(&model.FlexAccount{}).
		Where("name = ?", name).
		Update("active", active)

	if result.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "FlexAccountRepository",
			"op":   "SetActive",
			"name": name,
		}).WithError(result.Error).Error("Failed to update flex account active flag")

		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	logger.WithFields(map[string]interface{}{
		"repo":   "FlexAccountRepository",
		"op":     "SetActive",
		"name":   name,
		"active": active,
	}).Info("Flex account active flag updated")

	return nil
}

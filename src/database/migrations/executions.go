package migrations

import "gorm.io/gorm"

// backfillExecutionDateColumns fills the derived date and time_of_day columns
// for rows imported before those columns existed.
func backfillExecutionDateColumns(db *gorm.DB) error {
	if err := db.Exec(
		`UPDATE executions SET date = to_char(executed_at, 'YYYY-MM-DD') WHERE date IS NULL OR date = ''`,
	).Error; err != nil {
		return err
	}

	return db.Exec(
		`UPDATE executions SET time_of_day = to_char(executed_at, 'HH24:MI:SS') WHERE time_of_day IS NULL OR time_of_day = ''`,
	).Error
}

// normalizeSideVocabulary lowercases stored sides. Early broker imports kept
// the statement's BUY/SELL spelling; identification expects the lowercase
// vocabulary.
func normalizeSideVocabulary(db *gorm.DB) error {
	return db.Exec(`UPDATE executions SET side = LOWER(side) WHERE side <> LOWER(side)`).Error
}

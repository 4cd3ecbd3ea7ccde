package migrations

import (
	"database/sql"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// PrepareWinnerColumn normalizes schemas that previously stored is_winner as
// a boolean so that AutoMigrate can keep the 0/1 integer column without
// failing to cast legacy values.
func PrepareWinnerColumn(db *gorm.DB) error {
	columnType, exists, err := lookupColumnType(db, "trades", "is_winner")
	if err != nil {
		return fmt.Errorf("inspect trades.is_winner: %w", err)
	}

	if !exists || !isBoolean(columnType) {
		return nil
	}

	if err := db.Exec(
		`ALTER TABLE trades ALTER COLUMN is_winner TYPE bigint USING (CASE WHEN is_winner THEN 1 ELSE 0 END)`,
	).Error; err != nil {
		return fmt.Errorf("convert trades.is_winner to integer: %w", err)
	}

	return nil
}

func lookupColumnType(db *gorm.DB, table, column string) (dataType string, exists bool, err error) {
	row := db.Raw(
		`SELECT data_type FROM information_schema.columns WHERE table_name = ? AND column_name = ?`,
		table,
		column,
	).Row()

	if scanErr := row.Scan(&dataType); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, scanErr
	}

	return dataType, true, nil
}

func isBoolean(dataType string) bool {
	return strings.Contains(strings.ToLower(dataType), "bool")
}

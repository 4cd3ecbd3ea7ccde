package export

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"tradeledger/src/database"
	"tradeledger/src/exporting"
	"tradeledger/src/repository"
)

// Export dumps the trade and execution tables to CSV files, from the main
// store or from a local backtest database.
type Export struct {
	Log *logrus.Entry
}

func (e *Export) Start(ctx context.Context) error {
	config := GetConfig()

	if config.Local {
		if err := database.InitLocalDB(""); err != nil {
			e.Log.WithError(err).Error("Failed to open local database")
			return err
		}
	} else {
		if err := database.InitMainDB(); err != nil {
			e.Log.WithError(err).Error("Failed to connect to main database")
			return err
		}
	}

	trades, err := repository.NewTradeRepository().Search(ctx, repository.TradeSearchOptions{})
	if err != nil {
		return err
	}

	execs, err := repository.NewExecutionRepository().ListAll(ctx)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		e.Log.WithError(err).WithField("dir", config.OutputDir).Error("Failed to create output directory")
		return err
	}

	if err := exporting.TradesToFile(filepath.Join(config.OutputDir, "trades.csv"), trades); err != nil {
		e.Log.WithError(err).Error("Failed to write trades export")
		return err
	}
	if err := exporting.ExecutionsToFile(filepath.Join(config.OutputDir, "executions.csv"), execs); err != nil {
		e.Log.WithError(err).Error("Failed to write executions export")
		return err
	}

	e.Log.WithFields(logrus.Fields{
		"trades":     len(trades),
		"executions": len(execs),
		"output_dir": config.OutputDir,
	}).Info("Store exported")

	return nil
}

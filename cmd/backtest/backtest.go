package backtest

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"tradeledger/src/database"
	"tradeledger/src/exporting"
	"tradeledger/src/normalizer"
	"tradeledger/src/pipeline"
	"tradeledger/src/strategy"
)

// Backtest replays a strategy fill log through the reconstruction pipeline
// against a local sqlite store and writes the results out as CSV reports.
type Backtest struct {
	Log *logrus.Entry
}

func (b *Backtest) Start(ctx context.Context, inputPath string) error {
	config := GetConfig()

	params, err := strategy.LoadParams(config.StrategyParams)
	if err != nil {
		b.Log.WithError(err).
			WithField("path", config.StrategyParams).
			Error("Failed to load strategy parameters")
		return err
	}

	if err := database.InitLocalDB(""); err != nil {
		b.Log.WithError(err).Error("Failed to open local database")
		return err
	}

	in, err := os.Open(inputPath)
	if err != nil {
		b.Log.WithError(err).WithField("path", inputPath).Error("Failed to open fill log")
		return err
	}
	defer in.Close()

	execs, preRejected, err := normalizer.New(b.Log).ParseBacktestCSV(in)
	if err != nil {
		b.Log.WithError(err).Error("Failed to parse fill log")
		return err
	}

	report, err := pipeline.NewDefault(params).ProcessBacktest(ctx, execs, preRejected)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		b.Log.WithError(err).WithField("dir", config.OutputDir).Error("Failed to create output directory")
		return err
	}

	if err := exporting.TradesToFile(filepath.Join(config.OutputDir, "trades.csv"), report.Trades); err != nil {
		b.Log.WithError(err).Error("Failed to write trades export")
		return err
	}
	if err := exporting.ExecutionsToFile(filepath.Join(config.OutputDir, "executions.csv"), report.Accepted); err != nil {
		b.Log.WithError(err).Error("Failed to write executions export")
		return err
	}
	if err := exporting.RejectedToFile(filepath.Join(config.OutputDir, "rejected.csv"), report.Rejected); err != nil {
		b.Log.WithError(err).Error("Failed to write rejected export")
		return err
	}

	b.Log.WithFields(logrus.Fields{
		"run_id":         report.Run.RunID,
		"executions_in":  report.Run.ExecutionsIn,
		"trades":         len(report.Trades),
		"open_positions": len(report.Open),
		"rejected":       len(report.Rejected),
		"output_dir":     config.OutputDir,
	}).Info("Backtest processed")

	return nil
}

package executors

import (
	"context"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradeledger/src/connectors"
	"tradeledger/src/model"
	"tradeledger/src/normalizer"
	"tradeledger/src/pipeline"
	"tradeledger/src/repository"
	"tradeledger/src/security"
	"tradeledger/src/strategy"
)

type flexAccountLister interface {
	ListActive(ctx context.Context) ([]model.FlexAccount, error)
}

type externalIDLister interface {
	ExistingExternalIDs(ctx context.Context, accountID string) (map[string]struct{}, error)
}

// Seams for tests. Production wiring lives in the defaults.
var (
	decryptToken = security.DecryptString

	fetchFlexStatement = func(token, queryID string) (string, error) {
		cfg := connectors.GetConfig()
		client := connectors.NewFlexClient(cfg.FlexBaseURL, cfg.FlexGenerationWait, cfg.FlexStatementTries)
		return client.FetchStatement(token, queryID)
	}

	processBatch = func(ctx context.Context, params *strategy.Params, execs []model.Execution) (*pipeline.Report, error) {
		return pipeline.NewDefault(params).ProcessIncremental(ctx, execs)
	}
)

// StartLoop pulls Flex statements for every active account on a fixed period
// and feeds the new fills through the reconstruction pipeline. The first pass
// runs immediately; waiting a full period before the first pull helps nobody.
func StartLoop(ctx context.Context) error {
	config := GetConfig()

	params, err := strategy.LoadParams(config.StrategyParams)
	if err != nil {
		logger.WithError(err).
			WithField("path", config.StrategyParams).
			Error("Failed to load strategy parameters")
		return err
	}

	accountRep := repository.NewFlexAccountRepository()
	executionRep := repository.NewExecutionRepository()

	ticker := time.NewTicker(config.LoopPeriod)
	defer ticker.Stop()

	logger.WithFields(map[string]interface{}{
		"period":   config.LoopPeriod.String(),
		"strategy": params.Name,
	}).Info("Broker sync loop starting")

	if err := runSync(ctx, accountRep, executionRep, params); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("Broker sync loop stopped")
			return nil

		case <-ticker.C:
			logger.Info("Broker sync tick")
			if err := runSync(ctx, accountRep, executionRep, params); err != nil {
				return err
			}
		}
	}
}

// runSync is one pass over the active accounts. A failing account is logged
// and skipped; only failing to list the accounts at all aborts the pass.
func runSync(
	ctx context.Context,
	accounts flexAccountLister,
	executions externalIDLister,
	params *strategy.Params,
) error {
	active, err := accounts.ListActive(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to list active flex accounts")
		return err
	}
	if len(active) == 0 {
		logger.Warn("No active flex accounts configured, nothing to sync")
		return nil
	}

	for i := range active {
		if err := syncAccount(ctx, executions, active[i], params); err != nil {
			logger.WithError(err).
				WithField("account", active[i].Name).
				Error("Account sync failed, continuing with the next account")
		}
	}
	return nil
}

func syncAccount(
	ctx context.Context,
	executions externalIDLister,
	account model.FlexAccount,
	params *strategy.Params,
) error {
	log := logger.WithFields(map[string]interface{}{
		"account":    account.Name,
		"account_id": account.AccountID,
	})

	token, err := decryptToken(account.TokenHash)
	if err != nil {
		log.WithError(err).Error("Failed to decrypt flex token")
		return err
	}

	statement, err := fetchFlexStatement(token, account.QueryID)
	if err != nil {
		log.WithError(err).Error("Failed to fetch flex statement")
		return err
	}

	norm := normalizer.New(log)
	rows, err := norm.ParseFlexStatement(strings.NewReader(statement))
	if err != nil {
		log.WithError(err).Error("Failed to parse flex statement")
		return err
	}

	known, err := executions.ExistingExternalIDs(ctx, account.AccountID)
	if err != nil {
		return err
	}

	execs, err := norm.FromFlexRows(rows, account.AccountID, known)
	if err != nil {
		log.WithError(err).Error("Failed to normalize flex rows")
		return err
	}

	if len(execs) == 0 {
		log.Info("No new executions in statement")
		return nil
	}

	report, err := processBatch(ctx, params, execs)
	if err != nil {
		return err
	}

	log.WithFields(map[string]interface{}{
		"run_id":          report.Run.RunID,
		"accepted":        report.Run.Accepted,
		"rejected":        report.Run.Rejected,
		"trades_upserted": report.Run.TradesUpserted,
	}).Info("Account synced")
	return nil
}

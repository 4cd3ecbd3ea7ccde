package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"tradeledger/src/aggregator"
	"tradeledger/src/identifier"
	"tradeledger/src/model"
	"tradeledger/src/repository"
	"tradeledger/src/strategy"
)

type executionStore interface {
	CreateBatch(ctx context.Context, execs []model.Execution) error
	MaxTradeID(ctx context.Context) (int64, error)
	OpenPositions(ctx context.Context) ([]model.OpenPosition, error)
	FindByTradeIDs(ctx context.Context, tradeIDs []int64) ([]model.Execution, error)
}

type tradeStore interface {
	Upsert(ctx context.Context, trades []model.Trade) error
}

type rejectedStore interface {
	CreateBatch(ctx context.Context, runID string, rejected []model.RejectedExecution) error
}

type runStore interface {
	Create(ctx context.Context, run *model.IngestRun) error
	Finish(ctx context.Context, run *model.IngestRun) error
}

// Report is what one pipeline run hands back to its caller: the audit row,
// the identified executions and trades written by this run, the positions
// still open afterwards and the rows that were diverted.
type Report struct {
	Run      *model.IngestRun
	Accepted []model.Execution
	Trades   []model.Trade
	Open     []model.OpenPosition
	Rejected []model.RejectedExecution
}

// Pipeline runs the two-stage reconstruction, identification followed by
// aggregation, and persists every artifact it produces: the accepted
// executions, the diverted rows, the trade rows and the run audit row.
type Pipeline struct {
	log        *logger.Entry
	params     *strategy.Params
	executions executionStore
	trades     tradeStore
	rejected   rejectedStore
	runs       runStore
}

// New builds a pipeline on explicit stores. params must carry at least the
// strategy name and side; identification cannot run without a side.
func New(
	params *strategy.Params,
	executions executionStore,
	trades tradeStore,
	rejected rejectedStore,
	runs runStore,
) *Pipeline {
	return &Pipeline{
		log:        logger.WithField("component", "pipeline"),
		params:     params,
		executions: executions,
		trades:     trades,
		rejected:   rejected,
		runs:       runs,
	}
}

// NewDefault wires the pipeline to the production repositories. The database
// must be initialized first.
func NewDefault(params *strategy.Params) *Pipeline {
	return New(
		params,
		repository.NewExecutionRepository(),
		repository.NewTradeRepository(),
		repository.NewRejectedExecutionRepository(),
		repository.NewIngestRunRepository(),
	)
}

// ProcessBacktest reconstructs trades from a complete backtest export.
// Identification starts from scratch, so the export must hold the full fill
// history of the run. preRejected carries rows the reader already diverted,
// typically zero-quantity fills, so they land in the same audit run.
func (p *Pipeline) ProcessBacktest(
	ctx context.Context,
	execs []model.Execution,
	preRejected []model.RejectedExecution,
) (*Report, error) {
	return p.process(ctx, model.RunModeBacktest, execs, preRejected, nil)
}

// ProcessIncremental reconstructs trades from a broker statement batch.
// Identification is seeded with the stored open positions and the highest
// trade id assigned so far, and only the trades this batch touches are
// re-aggregated, over their full stored history.
func (p *Pipeline) ProcessIncremental(
	ctx context.Context,
	execs []model.Execution,
) (*Report, error) {
	maxID, err := p.executions.MaxTradeID(ctx)
	if err != nil {
		p.log.WithError(err).Error("Failed to load max trade id for seeding")
		return nil, err
	}

	open, err := p.executions.OpenPositions(ctx)
	if err != nil {
		p.log.WithError(err).Error("Failed to load open positions for seeding")
		return nil, err
	}

	seed := &identifier.Seed{MaxTradeID: maxID, OpenPositions: open}
	return p.process(ctx, model.RunModeBroker, execs, nil, seed)
}

// process is the shared run body. A run that aborts here leaves its audit
// row without finished_at, which is how unfinished runs are found later.
func (p *Pipeline) process(
	ctx context.Context,
	mode string,
	execs []model.Execution,
	preRejected []model.RejectedExecution,
	seed *identifier.Seed,
) (*Report, error) {

	run := &model.IngestRun{
		RunID:        uuid.NewString(),
		Mode:         mode,
		Strategy:     p.params.Name,
		ExecutionsIn: len(execs) + len(preRejected),
		StartedAt:    time.Now().UTC(),
	}

	log := p.log.WithFields(map[string]interface{}{
		"run_id":   run.RunID,
		"mode":     mode,
		"strategy": run.Strategy,
	})
	log.WithField("executions_in", run.ExecutionsIn).Info("Pipeline run starting")

	if err := p.runs.Create(ctx, run); err != nil {
		return nil, err
	}

	result, err := identifier.New(log).Identify(execs, p.params.Side, seed)
	if err != nil {
		log.WithError(err).Error("Identification failed")
		return nil, err
	}

	if err := p.executions.CreateBatch(ctx, result.Accepted); err != nil {
		return nil, err
	}

	rejected := append(preRejected, result.Rejected...)
	if err := p.rejected.CreateBatch(ctx, run.RunID, rejected); err != nil {
		return nil, err
	}

	// Backtest batches carry their whole history already. Broker batches see
	// only the newest fills, so the touched trades are re-read in full before
	// aggregation; partial groups would otherwise produce wrong prices.
	rows := result.Accepted
	if seed != nil {
		rows, err = p.loadAffectedHistory(ctx, result.Accepted)
		if err != nil {
			return nil, err
		}
	}

	trades, err := aggregator.New(log, p.params).Aggregate(rows)
	if err != nil {
		log.WithError(err).Error("Aggregation failed")
		return nil, err
	}

	if err := p.trades.Upsert(ctx, trades); err != nil {
		return nil, err
	}

	run.Accepted = len(result.Accepted)
	run.Rejected = len(rejected)
	run.TradesUpserted = len(trades)
	run.MaxTradeID = result.MaxTradeID
	if err := p.runs.Finish(ctx, run); err != nil {
		return nil, err
	}

	log.WithFields(map[string]interface{}{
		"accepted":        run.Accepted,
		"rejected":        run.Rejected,
		"trades_upserted": run.TradesUpserted,
		"max_trade_id":    run.MaxTradeID,
		"open_positions":  len(result.Open),
	}).Info("Pipeline run finished")

	return &Report{
		Run:      run,
		Accepted: result.Accepted,
		Trades:   trades,
		Open:     result.Open,
		Rejected: rejected,
	}, nil
}

// loadAffectedHistory fetches the full stored history of every trade id seen
// in the accepted batch. The batch itself is persisted before this runs, so
// the store view already includes it.
func (p *Pipeline) loadAffectedHistory(
	ctx context.Context,
	accepted []model.Execution,
) ([]model.Execution, error) {

	seen := make(map[int64]struct{}, len(accepted))
	ids := make([]int64, 0, len(accepted))
	for i := range accepted {
		if accepted[i].TradeID == nil {
			continue
		}
		id := *accepted[i].TradeID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

	rows, err := p.executions.FindByTradeIDs(ctx, ids)
	if err != nil {
		p.log.WithError(err).Error("Failed to load execution history for touched trades")
		return nil, err
	}
	return rows, nil
}

package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"tradeledger/src/model"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestIngestRunRepositoryCreateAndFinish(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := &IngestRunRepository{db: mockDB}

	run := &model.IngestRun{
		RunID:     "0f8fad5b-d9cb-469f-a165-70867728950e",
		Mode:      model.RunModeBacktest,
		Strategy:  "momentum_v1",
		StartedAt: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "ingest_runs" \(.+\) VALUES \(.+\) RETURNING "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	if err := repo.Create(context.Background(), run); err != nil {
		t.Fatalf("unexpected error creating ingest run: %v", err)
	}

	run.ExecutionsIn = 7
	run.Accepted = 5
	run.Rejected = 2
	run.TradesUpserted = 3
	run.MaxTradeID = 42

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "ingest_runs" SET "accepted"=$1,"executions_in"=$2,"finished_at"=$3,"max_trade_id"=$4,"rejected"=$5,"trades_upserted"=$6 WHERE run_id = $7`)).
		WithArgs(5, 7, sqlmock.AnyArg(), int64(42), 2, 3, run.RunID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Finish(context.Background(), run); err != nil {
		t.Fatalf("unexpected error finishing ingest run: %v", err)
	}

	if run.FinishedAt == nil {
		t.Fatal("expected finish time to be stamped on the run")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestIngestRunRepositoryFindLatest(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := &IngestRunRepository{db: mockDB}

	mockRows := sqlmock.NewRows([]string{"id", "run_id", "mode", "accepted"}).
		AddRow(2, "run-2", model.RunModeBroker, 5).
		AddRow(1, "run-1", model.RunModeBacktest, 9)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "ingest_runs" ORDER BY id DESC LIMIT $1`)).
		WithArgs(2).
		WillReturnRows(mockRows)

	runs, err := repo.FindLatest(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error listing ingest runs: %v", err)
	}

	if len(runs) != 2 {
		t.Fatalf("expected 2 ingest runs, got %d", len(runs))
	}

	if runs[0].RunID != "run-2" || runs[1].RunID != "run-1" {
		t.Fatalf("ingest runs not returned newest first: %+v", runs)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"tradeledger/src/model"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRejectedExecutionRepositoryCreateBatch(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := &RejectedExecutionRepository{db: mockDB}

	executedAt := time.Date(2024, 3, 4, 9, 31, 2, 0, time.UTC)
	rejected := []model.RejectedExecution{
		model.NewRejectedExecution(model.Execution{Symbol: "AAPL", Side: model.SideSell, Quantity: 0, Price: 182.5, ExecutedAt: executedAt}, model.RejectReasonZeroQuantity),
		model.NewRejectedExecution(model.Execution{Symbol: "TSLA", Side: model.SideSell, Quantity: 50, Price: 201, ExecutedAt: executedAt}, "No open position for TSLA, cannot sell"),
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "rejected_executions" \(.+\) VALUES \(.+\) RETURNING "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	mock.ExpectCommit()

	runID := "0f8fad5b-d9cb-469f-a165-70867728950e"
	if err := repo.CreateBatch(context.Background(), runID, rejected); err != nil {
		t.Fatalf("unexpected error inserting rejected executions: %v", err)
	}

	for i, row := range rejected {
		if row.RunID != runID {
			t.Fatalf("row %d not stamped with run id: %+v", i, row)
		}
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestRejectedExecutionRepositoryCreateBatchEmpty(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := &RejectedExecutionRepository{db: mockDB}

	if err := repo.CreateBatch(context.Background(), "run-1", nil); err != nil {
		t.Fatalf("unexpected error for empty batch: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("empty batch should not touch the database: %v", err)
	}
}

func TestRejectedExecutionRepositoryListByRun(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := &RejectedExecutionRepository{db: mockDB}

	runID := "0f8fad5b-d9cb-469f-a165-70867728950e"
	mockRows := sqlmock.NewRows([]string{"id", "run_id", "symbol", "side", "quantity", "reason"}).
		AddRow(1, runID, "AAPL", model.SideSell, 0.0, model.RejectReasonZeroQuantity).
		AddRow(2, runID, "TSLA", model.SideSell, 50.0, "No open position for TSLA, cannot sell")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "rejected_executions" WHERE run_id = $1 ORDER BY id ASC`)).
		WithArgs(runID).
		WillReturnRows(mockRows)

	rejected, err := repo.ListByRun(context.Background(), runID)
	if err != nil {
		t.Fatalf("unexpected error listing rejected executions: %v", err)
	}

	if len(rejected) != 2 {
		t.Fatalf("expected 2 rejected executions, got %d", len(rejected))
	}

	if rejected[0].Reason != model.RejectReasonZeroQuantity {
		t.Fatalf("unexpected first rejection: %+v", rejected[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"tradeledger/src/model"
	"tradeledger/src/repository"
	"tradeledger/src/summary"

	logger "github.com/sirupsen/logrus"
)

type closedTradesLister interface {
	ListClosed(ctx context.Context) ([]model.Trade, error)
}

// TradesSummaryHandler returns a handler that serves period performance
// tables over closed trades. period=weekly|monthly|yearly, default weekly.
func TradesSummaryHandler(repo closedTradesLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		period := summary.PeriodWeekly
		if raw := r.URL.Query().Get("period"); raw != "" {
			parsed, err := summary.ParsePeriod(raw)
			if err != nil {
				http.Error(w, "invalid period", http.StatusBadRequest)
				return
			}
			period = parsed
		}

		trades, err := repo.ListClosed(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to load closed trades")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		rows, err := summary.Build(trades, period)
		if err != nil {
			logger.WithError(err).Error("failed to build trades summary")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(rows); err != nil {
			logger.WithError(err).Error("failed to encode trades summary response")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}

// DefaultTradesSummaryHandler wires the handler to the production repository implementation.
func DefaultTradesSummaryHandler() http.HandlerFunc {
	return TradesSummaryHandler(repository.NewTradeRepository())
}

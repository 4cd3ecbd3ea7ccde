package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"tradeledger/src/model"
	"tradeledger/src/repository"
	"tradeledger/src/utils"

	logger "github.com/sirupsen/logrus"
)

type tradeSearcher interface {
	Search(ctx context.Context, options repository.TradeSearchOptions) ([]model.Trade, error)
}

// SearchTradesHandler returns a handler that lists reconstructed trades.
// Supports pagination and filters (symbol, status, direction, strategy, from, to).
func SearchTradesHandler(repo tradeSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var symbol *string
		if symbolParam := r.URL.Query().Get("symbol"); symbolParam != "" {
			symbol = &symbolParam
		}

		var status *string
		if statusParam := r.URL.Query().Get("status"); statusParam != "" {
			if statusParam != model.TradeStatusOpen && statusParam != model.TradeStatusClosed {
				http.Error(w, "invalid status", http.StatusBadRequest)
				return
			}
			status = &statusParam
		}

		var direction *string
		if directionParam := r.URL.Query().Get("direction"); directionParam != "" {
			if directionParam != model.DirectionBullish && directionParam != model.DirectionBearish {
				http.Error(w, "invalid direction", http.StatusBadRequest)
				return
			}
			direction = &directionParam
		}

		var strategy *string
		if strategyParam := r.URL.Query().Get("strategy"); strategyParam != "" {
			strategy = &strategyParam
		}

		var from, to *string
		if fromParam := r.URL.Query().Get("from"); fromParam != "" {
			if _, err := time.Parse(utils.DateLayout, fromParam); err != nil {
				http.Error(w, "invalid from", http.StatusBadRequest)
				return
			}
			from = &fromParam
		}

		if toParam := r.URL.Query().Get("to"); toParam != "" {
			if _, err := time.Parse(utils.DateLayout, toParam); err != nil {
				http.Error(w, "invalid to", http.StatusBadRequest)
				return
			}
			to = &toParam
		}

		page := 1
		if pageParam := r.URL.Query().Get("page"); pageParam != "" {
			parsedPage, err := strconv.Atoi(pageParam)
			if err != nil || parsedPage <= 0 {
				http.Error(w, "invalid page", http.StatusBadRequest)
				return
			}
			page = parsedPage
		}

		pageSize := 20
		if sizeParam := r.URL.Query().Get("pageSize"); sizeParam != "" {
			parsedSize, err := strconv.Atoi(sizeParam)
			if err != nil || parsedSize <= 0 {
				http.Error(w, "invalid pageSize", http.StatusBadRequest)
				return
			}
			pageSize = parsedSize
		}

		offset := (page - 1) * pageSize

		trades, err := repo.Search(r.Context(), repository.TradeSearchOptions{
			Symbol:        symbol,
			Status:        status,
			Direction:     direction,
			Strategy:      strategy,
			StartDateFrom: from,
			StartDateTo:   to,
			Limit:         pageSize,
			Offset:        offset,
		})
		if err != nil {
			logger.WithError(err).Error("failed to search trades")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(trades); err != nil {
			logger.WithError(err).Error("failed to encode trade search response")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}

// DefaultSearchTradesHandler wires the handler to the production repository implementation.
func DefaultSearchTradesHandler() http.HandlerFunc {
	return SearchTradesHandler(repository.NewTradeRepository())
}

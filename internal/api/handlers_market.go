package api

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/okx-folio/internal/service"
)

// handleQuote resolves two symbols and fetches a swap quote. The amount is
// given in human units of the from token and converted to smallest units
// for the upstream; the returned amounts are converted back.
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fromSymbol := q.Get("from")
	toSymbol := q.Get("to")
	amount := q.Get("amount")
	if fromSymbol == "" || toSymbol == "" || amount == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "from, to, and amount are required")
		return
	}

	chainID := 1
	if raw := q.Get("chainId"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid chainId")
			return
		}
		chainID = parsed
	}

	fromToken, err := s.tokens.Resolve(r.Context(), fromSymbol)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
		return
	}
	toToken, err := s.tokens.Resolve(r.Context(), toSymbol)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
		return
	}

	rawAmount, err := service.NormalizeRawAmount(amount, fromToken.Decimals)
	if err != nil || rawAmount.IsZero() {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid amount")
		return
	}

	quote, err := s.quotes.GetQuote(r.Context(), fromToken.Address, toToken.Address, rawAmount.String(), chainID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	toAmount, err := decimal.NewFromString(quote.ToAmount)
	if err != nil {
		respondError(w, http.StatusBadGateway, ErrCodeUpstreamError, "unparseable quote amount")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"chainId":    chainID,
		"fromSymbol": fromToken.Symbol,
		"toSymbol":   toToken.Symbol,
		"fromAmount": amount,
		"toAmount":   toAmount.Shift(-toToken.Decimals),
	})
}

func (s *Server) handleBreakerStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.breaker.Snapshots())
}

package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okx-folio/internal/logging"
	"github.com/okx-folio/internal/models"
	"github.com/okx-folio/internal/storage"
)

// balancedEpsilon is the allocation drift, in percentage points, below
// which a symbol is considered on target.
var balancedEpsilon = decimal.RequireFromString("0.01")

// HoldingsReader reads the stored holdings for a user
type HoldingsReader interface {
	HoldingsByExternalUser(ctx context.Context, externalID int64) ([]models.Holding, *time.Time, error)
}

// PriceSource fetches a historical price series for a token
type PriceSource interface {
	GetHistoricalPrice(ctx context.Context, token *models.Token, period string, limit int) ([]models.PricePoint, error)
}

// TokenSource resolves symbols to canonical tokens
type TokenSource interface {
	Resolve(ctx context.Context, symbol string) (*models.Token, error)
}

// AnalyticsService computes valued views of stored holdings. These are read
// paths behind user-facing displays: missing or empty data yields zero-valued
// results, never errors. All money math is exact decimal arithmetic.
type AnalyticsService struct {
	holdings HoldingsReader
	prices   PriceSource
	tokens   TokenSource
	cache    *storage.PriceCache
}

// NewAnalyticsService creates an analytics service. cache may be nil.
func NewAnalyticsService(holdings HoldingsReader, prices PriceSource, tokens TokenSource, cache *storage.PriceCache) *AnalyticsService {
	return &AnalyticsService{holdings: holdings, prices: prices, tokens: tokens, cache: cache}
}

// position is one symbol's aggregate across wallets and chains
type position struct {
	symbol   string
	quantity decimal.Decimal
	valueUSD decimal.Decimal
}

// aggregate folds holdings into per-symbol positions, ordered by USD value
// descending
func aggregate(holdings []models.Holding) ([]position, decimal.Decimal) {
	index := make(map[string]int)
	var positions []position
	total := decimal.Zero

	for i := range holdings {
		h := &holdings[i]
		j, ok := index[h.Symbol]
		if !ok {
			j = len(positions)
			index[h.Symbol] = j
			positions = append(positions, position{symbol: h.Symbol})
		}
		positions[j].quantity = positions[j].quantity.Add(h.Quantity())
		positions[j].valueUSD = positions[j].valueUSD.Add(h.ValueUSD)
		total = total.Add(h.ValueUSD)
	}

	sort.SliceStable(positions, func(a, b int) bool {
		return positions[a].valueUSD.GreaterThan(positions[b].valueUSD)
	})
	return positions, total
}

// read loads and aggregates a user's holdings. A user or portfolio that does
// not exist reads as empty.
func (s *AnalyticsService) read(ctx context.Context, externalID int64) ([]position, decimal.Decimal, error) {
	holdings, _, err := s.holdings.HoldingsByExternalUser(ctx, externalID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, decimal.Zero, nil
		}
		return nil, decimal.Zero, err
	}
	positions, total := aggregate(holdings)
	return positions, total, nil
}

// Snapshot returns the valued view of the user's current holdings. The
// total is always the exact sum of the asset values.
func (s *AnalyticsService) Snapshot(ctx context.Context, externalID int64) (*models.PortfolioSnapshot, error) {
	positions, total, err := s.read(ctx, externalID)
	if err != nil {
		return nil, err
	}

	snapshot := &models.PortfolioSnapshot{
		TotalValueUSD: total,
		Assets:        make([]models.AssetValue, 0, len(positions)),
	}
	for _, p := range positions {
		snapshot.Assets = append(snapshot.Assets, models.AssetValue{
			Symbol:   p.symbol,
			Quantity: p.quantity,
			ValueUSD: p.valueUSD,
		})
	}
	return snapshot, nil
}

// Diversification returns each asset's share of the portfolio in percent,
// rounded to two places. An empty or zero-valued portfolio yields an empty
// map, never a division by zero.
func (s *AnalyticsService) Diversification(ctx context.Context, externalID int64) (map[string]decimal.Decimal, error) {
	positions, total, err := s.read(ctx, externalID)
	if err != nil {
		return nil, err
	}

	out := make(map[string]decimal.Decimal)
	if total.IsZero() {
		return out, nil
	}

	hundred := decimal.NewFromInt(100)
	for _, p := range positions {
		out[p.symbol] = p.valueUSD.Mul(hundred).Div(total).Round(2)
	}
	return out, nil
}

// ROI computes a holdings-weighted return over the window: each held
// asset's current quantity is valued at the earliest price in the window,
// summed into a past total, and compared with the current total. Assets
// with no price history simply contribute nothing; a zero or unavailable
// past total yields 0.
func (s *AnalyticsService) ROI(ctx context.Context, externalID int64, windowDays int) (float64, error) {
	positions, currentTotal, err := s.read(ctx, externalID)
	if err != nil {
		return 0, err
	}
	if len(positions) == 0 || windowDays <= 0 {
		return 0, nil
	}

	pastTotal := decimal.Zero
	for _, p := range positions {
		if p.quantity.IsZero() {
			continue
		}

		points, err := s.priceSeries(ctx, p.symbol, "1D", windowDays)
		if err != nil {
			logging.WithError(err).WithField("symbol", p.symbol).Warn("price history unavailable, skipping asset")
			continue
		}
		if len(points) == 0 {
			continue
		}

		pastTotal = pastTotal.Add(points[0].Price.Mul(p.quantity))
	}

	if pastTotal.IsZero() {
		return 0, nil
	}

	roi := currentTotal.Sub(pastTotal).Div(pastTotal).Round(4)
	v, _ := roi.Float64()
	return v, nil
}

// priceSeries fetches a token's price history through the cache
func (s *AnalyticsService) priceSeries(ctx context.Context, symbol, period string, limit int) ([]models.PricePoint, error) {
	if points, ok := s.cache.Get(ctx, symbol, period, limit); ok {
		return points, nil
	}

	token, err := s.tokens.Resolve(ctx, symbol)
	if err != nil {
		return nil, err
	}

	points, err := s.prices.GetHistoricalPrice(ctx, token, period, limit)
	if err != nil {
		return nil, err
	}

	s.cache.Put(ctx, symbol, period, limit, points)
	return points, nil
}

// SuggestRebalance proposes single-hop trades moving each overweight
// symbol's excess USD value into the single most-underweight symbol. With
// no target given, equal weight across held symbols is assumed; target
// percentages that do not sum to 100 are normalized first. A portfolio
// already on target yields no trades.
func (s *AnalyticsService) SuggestRebalance(ctx context.Context, externalID int64, target map[string]decimal.Decimal) ([]models.RebalanceTrade, error) {
	positions, total, err := s.read(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if total.IsZero() {
		return []models.RebalanceTrade{}, nil
	}

	hundred := decimal.NewFromInt(100)

	if len(target) == 0 {
		target = make(map[string]decimal.Decimal, len(positions))
		equal := hundred.Div(decimal.NewFromInt(int64(len(positions))))
		for _, p := range positions {
			target[p.symbol] = equal
		}
	} else {
		sum := decimal.Zero
		for _, pct := range target {
			sum = sum.Add(pct)
		}
		if sum.IsZero() {
			return []models.RebalanceTrade{}, nil
		}
		if !sum.Equal(hundred) {
			normalized := make(map[string]decimal.Decimal, len(target))
			for sym, pct := range target {
				normalized[sym] = pct.Mul(hundred).Div(sum)
			}
			target = normalized
		}
	}

	current := make(map[string]position, len(positions))
	for _, p := range positions {
		current[p.symbol] = p
	}

	// diff > 0 is overweight, diff < 0 underweight. Symbols in the target
	// but not held are fully underweight.
	type weighted struct {
		symbol string
		diff   decimal.Decimal
	}
	var overweight, underweight []weighted

	seen := make(map[string]bool, len(positions)+len(target))
	consider := func(symbol string) {
		if seen[symbol] {
			return
		}
		seen[symbol] = true

		currentPct := decimal.Zero
		if p, ok := current[symbol]; ok {
			currentPct = p.valueUSD.Mul(hundred).Div(total)
		}
		targetPct := decimal.Zero
		if pct, ok := target[symbol]; ok {
			targetPct = pct
		}

		diff := currentPct.Sub(targetPct)
		switch {
		case diff.GreaterThan(balancedEpsilon):
			overweight = append(overweight, weighted{symbol: symbol, diff: diff})
		case diff.LessThan(balancedEpsilon.Neg()):
			underweight = append(underweight, weighted{symbol: symbol, diff: diff})
		}
	}

	for _, p := range positions {
		consider(p.symbol)
	}

	targetSymbols := make([]string, 0, len(target))
	for sym := range target {
		targetSymbols = append(targetSymbols, sym)
	}
	sort.Strings(targetSymbols)
	for _, sym := range targetSymbols {
		consider(sym)
	}

	if len(overweight) == 0 || len(underweight) == 0 {
		return []models.RebalanceTrade{}, nil
	}

	sink := underweight[0]
	for _, w := range underweight[1:] {
		if w.diff.LessThan(sink.diff) {
			sink = w
		}
	}

	sort.SliceStable(overweight, func(a, b int) bool {
		return overweight[a].diff.GreaterThan(overweight[b].diff)
	})

	trades := make([]models.RebalanceTrade, 0, len(overweight))
	for _, w := range overweight {
		p := current[w.symbol]
		if p.quantity.IsZero() {
			continue
		}

		usdExcess := w.diff.Mul(total).Div(hundred)
		unitPrice := p.valueUSD.Div(p.quantity)
		if unitPrice.IsZero() {
			continue
		}

		trades = append(trades, models.RebalanceTrade{
			FromSymbol: w.symbol,
			ToSymbol:   sink.symbol,
			FromAmount: usdExcess.Div(unitPrice).Round(8),
			USDAmount:  usdExcess.Round(2),
		})
	}

	return trades, nil
}

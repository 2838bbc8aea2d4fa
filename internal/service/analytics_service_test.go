package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okx-folio/internal/models"
	"github.com/okx-folio/internal/storage"
)

type mockHoldings struct {
	holdings []models.Holding
	err      error
}

func (m *mockHoldings) HoldingsByExternalUser(ctx context.Context, externalID int64) ([]models.Holding, *time.Time, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.holdings, nil, nil
}

type mockPrices struct {
	series map[string][]models.PricePoint
	err    error
}

func (m *mockPrices) GetHistoricalPrice(ctx context.Context, token *models.Token, period string, limit int) ([]models.PricePoint, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.series[token.Symbol], nil
}

type mockTokens struct{}

func (m *mockTokens) Resolve(ctx context.Context, symbol string) (*models.Token, error) {
	return &models.Token{Symbol: symbol, ChainID: 1}, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func holding(symbol, raw string, decimals int32, valueUSD string) models.Holding {
	return models.Holding{
		Symbol:    symbol,
		RawAmount: dec(raw),
		Decimals:  decimals,
		ValueUSD:  dec(valueUSD),
	}
}

func newAnalytics(holdings []models.Holding) *AnalyticsService {
	return NewAnalyticsService(&mockHoldings{holdings: holdings}, &mockPrices{}, &mockTokens{}, nil)
}

func TestSnapshotEthUsdc(t *testing.T) {
	svc := newAnalytics([]models.Holding{
		holding("ETH", "1000000000000000000", 18, "2000"),
		holding("USDC", "1000000", 6, "1"),
	})

	snap, err := svc.Snapshot(context.Background(), 42)
	require.NoError(t, err)

	assert.True(t, snap.TotalValueUSD.Equal(dec("2001")), "got %s", snap.TotalValueUSD)
	require.Len(t, snap.Assets, 2)

	assert.Equal(t, "ETH", snap.Assets[0].Symbol)
	assert.True(t, snap.Assets[0].Quantity.Equal(dec("1")))
	assert.True(t, snap.Assets[0].ValueUSD.Equal(dec("2000")))

	assert.Equal(t, "USDC", snap.Assets[1].Symbol)
	assert.True(t, snap.Assets[1].Quantity.Equal(dec("1")))
	assert.True(t, snap.Assets[1].ValueUSD.Equal(dec("1")))
}

func TestSnapshotTotalEqualsAssetSum(t *testing.T) {
	svc := newAnalytics([]models.Holding{
		holding("ETH", "3141592653589793238", 18, "6283.19"),
		holding("WBTC", "12345678", 8, "7777.77"),
		holding("DAI", "999999999999999999999", 18, "999.99"),
	})

	snap, err := svc.Snapshot(context.Background(), 42)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, a := range snap.Assets {
		sum = sum.Add(a.ValueUSD)
	}
	assert.True(t, snap.TotalValueUSD.Equal(sum))
}

func TestSnapshotAggregatesAcrossWallets(t *testing.T) {
	svc := newAnalytics([]models.Holding{
		{Symbol: "ETH", WalletAddress: "0xa", RawAmount: dec("1000000000000000000"), Decimals: 18, ValueUSD: dec("2000")},
		{Symbol: "ETH", WalletAddress: "0xb", RawAmount: dec("500000000000000000"), Decimals: 18, ValueUSD: dec("1000")},
	})

	snap, err := svc.Snapshot(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, snap.Assets, 1)
	assert.True(t, snap.Assets[0].Quantity.Equal(dec("1.5")))
	assert.True(t, snap.TotalValueUSD.Equal(dec("3000")))
}

func TestSnapshotEmptyPortfolio(t *testing.T) {
	svc := newAnalytics(nil)

	snap, err := svc.Snapshot(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, snap.TotalValueUSD.IsZero())
	assert.Empty(t, snap.Assets)
}

func TestSnapshotUnknownUserReadsEmpty(t *testing.T) {
	svc := NewAnalyticsService(&mockHoldings{err: storage.ErrNotFound}, &mockPrices{}, &mockTokens{}, nil)

	snap, err := svc.Snapshot(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, snap.TotalValueUSD.IsZero())
}

func TestDiversificationSumsToHundred(t *testing.T) {
	svc := newAnalytics([]models.Holding{
		holding("ETH", "1000000000000000000", 18, "2000"),
		holding("USDC", "1000000", 6, "1"),
		holding("WBTC", "100000000", 8, "40000"),
	})

	pct, err := svc.Diversification(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, pct, 3)

	sum := decimal.Zero
	for _, p := range pct {
		sum = sum.Add(p)
	}
	diff := sum.Sub(dec("100")).Abs()
	assert.True(t, diff.LessThanOrEqual(dec("0.03")), "sum %s drifted beyond rounding", sum)
}

func TestDiversificationZeroTotal(t *testing.T) {
	svc := newAnalytics([]models.Holding{
		holding("DUST", "1", 18, "0"),
	})

	pct, err := svc.Diversification(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, pct)
}

func TestROI(t *testing.T) {
	holdings := []models.Holding{
		holding("ETH", "1000000000000000000", 18, "3000"),
	}
	prices := &mockPrices{series: map[string][]models.PricePoint{
		"ETH": {
			{Timestamp: time.Now().AddDate(0, 0, -30), Price: dec("2000")},
			{Timestamp: time.Now(), Price: dec("3000")},
		},
	}}
	svc := NewAnalyticsService(&mockHoldings{holdings: holdings}, prices, &mockTokens{}, nil)

	roi, err := svc.ROI(context.Background(), 42, 30)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, roi, 1e-9)
}

func TestROIZeroWhenHistoryUnavailable(t *testing.T) {
	holdings := []models.Holding{holding("ETH", "1000000000000000000", 18, "3000")}
	svc := NewAnalyticsService(&mockHoldings{holdings: holdings}, &mockPrices{err: errors.New("circuit open")}, &mockTokens{}, nil)

	roi, err := svc.ROI(context.Background(), 42, 30)
	require.NoError(t, err)
	assert.Zero(t, roi)
}

func TestROIZeroOnEmptyPortfolio(t *testing.T) {
	svc := newAnalytics(nil)

	roi, err := svc.ROI(context.Background(), 42, 30)
	require.NoError(t, err)
	assert.Zero(t, roi)
}

func TestSuggestRebalanceBtcToEth(t *testing.T) {
	// BTC 800 of 1000 (80%), ETH 200 (20%), target 50/50:
	// BTC excess 30% = 300 USD, at unit price 40000 that is 0.0075 BTC
	svc := newAnalytics([]models.Holding{
		holding("BTC", "2000000", 8, "800"),
		holding("ETH", "100000000000000000", 18, "200"),
	})

	trades, err := svc.SuggestRebalance(context.Background(), 42, map[string]decimal.Decimal{
		"BTC": dec("50"),
		"ETH": dec("50"),
	})
	require.NoError(t, err)
	require.Len(t, trades, 1)

	assert.Equal(t, "BTC", trades[0].FromSymbol)
	assert.Equal(t, "ETH", trades[0].ToSymbol)
	assert.True(t, trades[0].USDAmount.Equal(dec("300")), "usd %s", trades[0].USDAmount)
	assert.True(t, trades[0].FromAmount.Equal(dec("0.0075")), "amount %s", trades[0].FromAmount)
}

func TestSuggestRebalanceAlreadyBalanced(t *testing.T) {
	svc := newAnalytics([]models.Holding{
		holding("BTC", "2000000", 8, "500"),
		holding("ETH", "100000000000000000", 18, "500"),
	})

	trades, err := svc.SuggestRebalance(context.Background(), 42, map[string]decimal.Decimal{
		"BTC": dec("50"),
		"ETH": dec("50"),
	})
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestSuggestRebalanceDefaultsToEqualWeight(t *testing.T) {
	svc := newAnalytics([]models.Holding{
		holding("BTC", "2000000", 8, "800"),
		holding("ETH", "100000000000000000", 18, "200"),
	})

	trades, err := svc.SuggestRebalance(context.Background(), 42, nil)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "BTC", trades[0].FromSymbol)
	assert.Equal(t, "ETH", trades[0].ToSymbol)
	assert.True(t, trades[0].USDAmount.Equal(dec("300")))
}

func TestSuggestRebalanceNormalizesTarget(t *testing.T) {
	svc := newAnalytics([]models.Holding{
		holding("BTC", "2000000", 8, "800"),
		holding("ETH", "100000000000000000", 18, "200"),
	})

	// 5/5 normalizes to 50/50
	trades, err := svc.SuggestRebalance(context.Background(), 42, map[string]decimal.Decimal{
		"BTC": dec("5"),
		"ETH": dec("5"),
	})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].USDAmount.Equal(dec("300")))
}

func TestSuggestRebalanceUnheldTargetSymbol(t *testing.T) {
	svc := newAnalytics([]models.Holding{
		holding("ETH", "1000000000000000000", 18, "1000"),
	})

	trades, err := svc.SuggestRebalance(context.Background(), 42, map[string]decimal.Decimal{
		"ETH":  dec("50"),
		"USDC": dec("50"),
	})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "ETH", trades[0].FromSymbol)
	assert.Equal(t, "USDC", trades[0].ToSymbol)
	assert.True(t, trades[0].USDAmount.Equal(dec("500")))
}

func TestSuggestRebalanceEmptyPortfolio(t *testing.T) {
	svc := newAnalytics(nil)

	trades, err := svc.SuggestRebalance(context.Background(), 42, nil)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

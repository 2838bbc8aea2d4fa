package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okx-folio/internal/logging"
	"github.com/okx-folio/internal/models"
	"github.com/okx-folio/internal/storage"
)

// UserGetter resolves the front-end identifier to a stored user
type UserGetter interface {
	GetByExternalID(ctx context.Context, externalID int64) (*models.User, error)
}

// HoldingsReplacer atomically rewrites a user's holdings
type HoldingsReplacer interface {
	ReplaceHoldings(ctx context.Context, userID int64, build storage.HoldingsBuilder) error
}

// BalanceFetcher fetches token balances for an address across chains
type BalanceFetcher interface {
	GetBalances(ctx context.Context, address string, chains []int) ([]models.ChainBalances, error)
}

// ValuationRecorder records one total-value observation per successful sync
type ValuationRecorder interface {
	Record(ctx context.Context, externalID int64, syncedAt time.Time, totalValueUSD float64) error
}

// SyncService pulls balances for every wallet of a user and rewrites the
// stored holdings. A sync is all-or-nothing per user: any failure rolls the
// transaction back and the previous holdings survive.
type SyncService struct {
	users      UserGetter
	portfolios HoldingsReplacer
	fetcher    BalanceFetcher
	valuations ValuationRecorder
}

// NewSyncService creates a synchronizer. valuations may be nil to disable
// history recording.
func NewSyncService(users UserGetter, portfolios HoldingsReplacer, fetcher BalanceFetcher, valuations ValuationRecorder) *SyncService {
	return &SyncService{users: users, portfolios: portfolios, fetcher: fetcher, valuations: valuations}
}

// Sync refreshes the holdings for the user identified by externalID.
// Returns true only when the full refresh committed. An unknown user is a
// failure; users are created by the consuming layer, never here.
func (s *SyncService) Sync(ctx context.Context, externalID int64) bool {
	log := logging.FromContext(ctx).WithField("external_id", externalID)

	user, err := s.users.GetByExternalID(ctx, externalID)
	if err != nil {
		log.WithError(err).Warn("sync aborted, user lookup failed")
		return false
	}

	var total decimal.Decimal
	err = s.portfolios.ReplaceHoldings(ctx, user.ID, func(wallets []models.Wallet) ([]models.Holding, error) {
		holdings, sum, err := s.fetchHoldings(ctx, wallets)
		if err != nil {
			return nil, err
		}
		total = sum
		return holdings, nil
	})
	if err != nil {
		log.WithError(err).Error("sync failed, holdings rolled back")
		return false
	}

	if s.valuations != nil {
		// History is best-effort; the committed sync still counts
		v, _ := total.Float64()
		if err := s.valuations.Record(ctx, externalID, time.Now().UTC(), v); err != nil {
			log.WithError(err).Warn("valuation recording failed")
		}
	}

	log.WithField("total_value_usd", total.String()).Info("sync complete")
	return true
}

// fetchHoldings pulls fresh balances for the wallets and normalizes them.
// Wallets sharing an address are batched into one upstream call covering
// all of their chains.
func (s *SyncService) fetchHoldings(ctx context.Context, wallets []models.Wallet) ([]models.Holding, decimal.Decimal, error) {
	byAddress := make(map[string][]int)
	var order []string
	for _, w := range wallets {
		if _, seen := byAddress[w.Address]; !seen {
			order = append(order, w.Address)
		}
		byAddress[w.Address] = append(byAddress[w.Address], w.ChainID)
	}

	var holdings []models.Holding
	total := decimal.Zero
	for _, address := range order {
		chains := byAddress[address]

		balances, err := s.fetcher.GetBalances(ctx, address, chains)
		if err != nil {
			return nil, decimal.Zero, err
		}

		for _, cb := range balances {
			for _, asset := range cb.Assets {
				h, err := normalizeHolding(address, cb.ChainID, asset)
				if err != nil {
					return nil, decimal.Zero, err
				}
				if h.RawAmount.IsZero() {
					continue
				}
				holdings = append(holdings, *h)
				total = total.Add(h.ValueUSD)
			}
		}
	}

	return holdings, total, nil
}

// normalizeHolding converts one upstream asset entry into a holding row.
// The upstream balance is a human-readable decimal string; it is shifted
// into the integral smallest-unit representation so quantity recovery is
// exact. Precision beyond the token's decimals is truncated.
func normalizeHolding(address string, chainID int, asset models.TokenBalance) (*models.Holding, error) {
	raw, err := NormalizeRawAmount(asset.Balance, asset.Decimals)
	if err != nil {
		return nil, fmt.Errorf("asset %s on chain %d: %w", asset.Symbol, chainID, err)
	}

	value := decimal.Zero
	if asset.PriceUSD != "" {
		price, err := decimal.NewFromString(asset.PriceUSD)
		if err != nil {
			return nil, fmt.Errorf("asset %s on chain %d: invalid price %q: %w", asset.Symbol, chainID, asset.PriceUSD, err)
		}
		value = raw.Shift(-asset.Decimals).Mul(price)
	}

	return &models.Holding{
		WalletAddress: address,
		ChainID:       chainID,
		TokenAddress:  asset.TokenAddress,
		Symbol:        asset.Symbol,
		RawAmount:     raw,
		Decimals:      asset.Decimals,
		ValueUSD:      value,
	}, nil
}

// NormalizeRawAmount converts a human-readable balance string into the
// integral smallest-unit amount for a token with the given decimal count.
func NormalizeRawAmount(balance string, decimals int32) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid balance %q: %w", balance, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative balance %q", balance)
	}
	return d.Shift(decimals).Truncate(0), nil
}

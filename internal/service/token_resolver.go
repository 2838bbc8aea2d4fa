// Package service implements portfolio synchronization and analytics on top
// of the market data client and the storage layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okx-folio/internal/logging"
	"github.com/okx-folio/internal/models"
	"github.com/okx-folio/internal/storage"
)

// defaultTokens seeds the token registry with the common mainnet tokens.
// BTC is represented by WBTC on-chain; candle lookups for it go through the
// BTC-USDT instrument.
var defaultTokens = []models.Token{
	{Symbol: "ETH", ChainID: 1, Address: "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee", Decimals: 18, Instrument: "ETH-USDT"},
	{Symbol: "USDC", ChainID: 1, Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", Decimals: 6, Instrument: ""},
	{Symbol: "USDT", ChainID: 1, Address: "0xdac17f958d2ee523a2206206994597c13d831ec7", Decimals: 6, Instrument: ""},
	{Symbol: "WBTC", ChainID: 1, Address: "0x2260fac5e5542a773aa44fbcfedf7c193bc2c599", Decimals: 8, Instrument: "BTC-USDT"},
	{Symbol: "DAI", ChainID: 1, Address: "0x6b175474e89094c44da98b954eedeac495271d0f", Decimals: 18, Instrument: ""},
	{Symbol: "MATIC", ChainID: 1, Address: "0x7d1afa7b718fb893db30a3abc0cfc608aacfebb0", Decimals: 18, Instrument: "MATIC-USDT"},
}

// TokenRegistry is the persistence surface the resolver needs
type TokenRegistry interface {
	GetBySymbol(ctx context.Context, symbol string) (*models.Token, error)
	Seed(ctx context.Context, tokens []models.Token) error
}

// TokenResolver maps user-facing symbols to canonical tokens. BTC is
// normalized to WBTC for on-chain contexts. The database registry wins;
// the built-in constants are the fallback so a fresh database still
// resolves the majors.
type TokenResolver struct {
	registry TokenRegistry
}

// NewTokenResolver creates a resolver backed by the token registry
func NewTokenResolver(registry TokenRegistry) *TokenResolver {
	return &TokenResolver{registry: registry}
}

// SeedDefaults registers the built-in tokens, keeping any operator edits
func (r *TokenResolver) SeedDefaults(ctx context.Context) error {
	return r.registry.Seed(ctx, defaultTokens)
}

// Resolve returns the canonical token for a symbol
func (r *TokenResolver) Resolve(ctx context.Context, symbol string) (*models.Token, error) {
	lookup := strings.ToUpper(strings.TrimSpace(symbol))
	if lookup == "BTC" {
		lookup = "WBTC"
	}

	token, err := r.registry.GetBySymbol(ctx, lookup)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		logging.WithError(err).WithField("symbol", lookup).Warn("token registry lookup failed, using constants")
	}

	for i := range defaultTokens {
		if defaultTokens[i].Symbol == lookup {
			t := defaultTokens[i]
			return &t, nil
		}
	}

	return nil, fmt.Errorf("unknown token symbol: %s", symbol)
}

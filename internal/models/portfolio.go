package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio groups a user's holdings. One portfolio per user.
type Portfolio struct {
	ID         int64      `json:"id" db:"id"`
	UserID     int64      `json:"userId" db:"user_id"`
	LastSynced *time.Time `json:"lastSynced,omitempty" db:"last_synced"`
	CreatedAt  time.Time  `json:"createdAt" db:"created_at"`
}

// Holding is one token balance belonging to one wallet on one chain.
// RawAmount is the integral smallest-unit amount; the human quantity is
// always RawAmount / 10^Decimals, exactly.
type Holding struct {
	ID            int64           `json:"id" db:"id"`
	PortfolioID   int64           `json:"portfolioId" db:"portfolio_id"`
	WalletAddress string          `json:"walletAddress" db:"wallet_address"`
	ChainID       int             `json:"chainId" db:"chain_id"`
	TokenAddress  string          `json:"tokenAddress" db:"token_address"`
	Symbol        string          `json:"symbol" db:"symbol"`
	RawAmount     decimal.Decimal `json:"rawAmount" db:"raw_amount"`
	Decimals      int32           `json:"decimals" db:"decimals"`
	ValueUSD      decimal.Decimal `json:"valueUsd" db:"value_usd"`
}

// Quantity returns the human-readable token quantity
func (h *Holding) Quantity() decimal.Decimal {
	return h.RawAmount.Shift(-h.Decimals)
}

// AssetValue is one line of a portfolio snapshot
type AssetValue struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	ValueUSD decimal.Decimal `json:"valueUsd"`
}

// PortfolioSnapshot is a valued view of the current holdings. TotalValueUSD
// is always the exact sum of the asset values.
type PortfolioSnapshot struct {
	TotalValueUSD decimal.Decimal `json:"totalValueUsd"`
	Assets        []AssetValue    `json:"assets"`
}

// RebalanceTrade is one proposed single-hop trade moving an overweight
// asset's excess USD value into the most-underweight asset.
type RebalanceTrade struct {
	FromSymbol string          `json:"from"`
	ToSymbol   string          `json:"to"`
	FromAmount decimal.Decimal `json:"fromAmount"`
	USDAmount  decimal.Decimal `json:"usdAmount"`
}

// ValuationPoint is one historical total-value observation for a user
type ValuationPoint struct {
	SyncedAt      time.Time `json:"syncedAt"`
	TotalValueUSD float64   `json:"totalValueUsd"`
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Token describes a known token on one chain. Instrument is the exchange
// instrument ID used for candle lookups ("BTC-USDT"); empty when price
// history must come from the token-address endpoint instead.
type Token struct {
	Symbol     string `json:"symbol" db:"symbol"`
	ChainID    int    `json:"chainId" db:"chain_id"`
	Address    string `json:"address" db:"address"`
	Decimals   int32  `json:"decimals" db:"decimals"`
	Instrument string `json:"instrument,omitempty" db:"instrument"`
}

// TokenBalance is one asset entry returned by the upstream balances call.
// Balance is the human-readable decimal string exactly as received; it is
// normalized into smallest units during synchronization.
type TokenBalance struct {
	TokenAddress string `json:"tokenAddress"`
	Symbol       string `json:"symbol"`
	Balance      string `json:"balance"`
	Decimals     int32  `json:"decimals,omitempty"`
	PriceUSD     string `json:"priceUsd,omitempty"`
}

// ChainBalances groups the balance entries of one chain for one address
type ChainBalances struct {
	ChainID int            `json:"chainId"`
	Assets  []TokenBalance `json:"assets"`
}

// Quote is a swap quote from the upstream aggregator. Amounts are
// smallest-unit strings as returned by the API.
type Quote struct {
	ChainID    int    `json:"chainId"`
	FromToken  string `json:"fromToken"`
	ToToken    string `json:"toToken"`
	FromAmount string `json:"fromAmount"`
	ToAmount   string `json:"toAmount"`
}

// PricePoint is one normalized historical price observation
type PricePoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}

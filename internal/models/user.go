// Package models provides the data models for the portfolio service.
package models

import (
	"time"
)

// User represents a tracked account. ExternalID is the identifier the
// consuming front-end (chat layer, scheduler) uses to refer to the user.
type User struct {
	ID         int64     `json:"id" db:"id"`
	ExternalID int64     `json:"externalId" db:"external_id"`
	Username   string    `json:"username,omitempty" db:"username"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// Wallet is one on-chain address owned by a user. Private keys are never
// stored or touched here.
type Wallet struct {
	ID      int64  `json:"id" db:"id"`
	UserID  int64  `json:"userId" db:"user_id"`
	Address string `json:"address" db:"address"`
	ChainID int    `json:"chainId" db:"chain_id"`
	Label   string `json:"label,omitempty" db:"label"`
}

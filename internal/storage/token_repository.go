package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/okx-folio/internal/apierrors"
	"github.com/okx-folio/internal/models"
)

// TokenRepository handles the known-token registry. The registry maps a
// user-facing symbol to a canonical on-chain token and, where one exists,
// an exchange instrument for candle lookups.
type TokenRepository struct {
	db *PostgresDB
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *PostgresDB) *TokenRepository {
	return &TokenRepository{db: db}
}

// GetBySymbol retrieves a token by symbol, case-insensitively
func (r *TokenRepository) GetBySymbol(ctx context.Context, symbol string) (*models.Token, error) {
	query := `
		SELECT symbol, chain_id, address, decimals, instrument
		FROM tokens
		WHERE symbol = $1
	`

	var t models.Token
	err := r.db.Pool().QueryRow(ctx, query, strings.ToUpper(symbol)).Scan(
		&t.Symbol,
		&t.ChainID,
		&t.Address,
		&t.Decimals,
		&t.Instrument,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("token %s: %w", symbol, ErrNotFound)
		}
		return nil, apierrors.NewDatabaseError("get token", err)
	}

	return &t, nil
}

// Seed inserts tokens that are not already registered. Existing rows win so
// operator edits are never clobbered on restart.
func (r *TokenRepository) Seed(ctx context.Context, tokens []models.Token) error {
	for _, t := range tokens {
		_, err := r.db.Pool().Exec(ctx, `
			INSERT INTO tokens (symbol, chain_id, address, decimals, instrument)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (symbol) DO NOTHING
		`,
			strings.ToUpper(t.Symbol),
			t.ChainID,
			t.Address,
			t.Decimals,
			t.Instrument,
		)
		if err != nil {
			return apierrors.NewDatabaseError("seed token", err)
		}
	}
	return nil
}

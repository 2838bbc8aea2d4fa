package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/okx-folio/internal/apierrors"
	"github.com/okx-folio/internal/models"
)

// HoldingsBuilder produces the fresh holdings for a user's wallets. It runs
// inside the replace transaction, between reading the wallets and rewriting
// the holdings, so a builder failure rolls everything back and the previous
// holdings survive untouched.
type HoldingsBuilder func(wallets []models.Wallet) ([]models.Holding, error)

// PortfolioRepository handles portfolio and holding persistence
type PortfolioRepository struct {
	db *PostgresDB
}

// NewPortfolioRepository creates a new portfolio repository
func NewPortfolioRepository(db *PostgresDB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// EnsureForUser returns the user's portfolio, creating it if missing
func (r *PortfolioRepository) EnsureForUser(ctx context.Context, userID int64) (*models.Portfolio, error) {
	query := `
		INSERT INTO portfolios (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, user_id, last_synced, created_at
	`

	var p models.Portfolio
	err := r.db.Pool().QueryRow(ctx, query, userID).Scan(&p.ID, &p.UserID, &p.LastSynced, &p.CreatedAt)
	if err != nil {
		return nil, apierrors.NewDatabaseError("ensure portfolio", err)
	}

	return &p, nil
}

// ReplaceHoldings atomically rewrites a user's holdings with the output of
// build. The old holdings are deleted and the new ones inserted in one
// transaction; any error, including a build error, rolls the whole thing
// back. A user with no wallets commits an empty holdings set.
func (r *PortfolioRepository) ReplaceHoldings(ctx context.Context, userID int64, build HoldingsBuilder) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return apierrors.NewDatabaseError("begin replace holdings", err)
	}
	defer tx.Rollback(ctx)

	var portfolioID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO portfolios (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id
	`, userID).Scan(&portfolioID)
	if err != nil {
		return apierrors.NewDatabaseError("ensure portfolio", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT id, user_id, address, chain_id, label
		FROM wallets
		WHERE user_id = $1
		ORDER BY id
	`, userID)
	if err != nil {
		return apierrors.NewDatabaseError("read wallets", err)
	}

	var wallets []models.Wallet
	for rows.Next() {
		var w models.Wallet
		if err := rows.Scan(&w.ID, &w.UserID, &w.Address, &w.ChainID, &w.Label); err != nil {
			rows.Close()
			return apierrors.NewDatabaseError("scan wallet", err)
		}
		wallets = append(wallets, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return apierrors.NewDatabaseError("iterate wallets", err)
	}

	holdings := []models.Holding{}
	if len(wallets) > 0 {
		holdings, err = build(wallets)
		if err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM holdings WHERE portfolio_id = $1`, portfolioID); err != nil {
		return apierrors.NewDatabaseError("clear holdings", err)
	}

	for i := range holdings {
		h := &holdings[i]
		_, err := tx.Exec(ctx, `
			INSERT INTO holdings (portfolio_id, wallet_address, chain_id, token_address, symbol, raw_amount, decimals, value_usd)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			portfolioID,
			h.WalletAddress,
			h.ChainID,
			h.TokenAddress,
			h.Symbol,
			h.RawAmount.String(),
			h.Decimals,
			h.ValueUSD.String(),
		)
		if err != nil {
			return apierrors.NewDatabaseError("insert holding", err)
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE portfolios SET last_synced = $2 WHERE id = $1`, portfolioID, time.Now().UTC()); err != nil {
		return apierrors.NewDatabaseError("touch last_synced", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return apierrors.NewDatabaseError("commit replace holdings", err)
	}

	return nil
}

// HoldingsByExternalUser returns the stored holdings for a user identified
// by the front-end identifier, along with the portfolio's last sync time.
// Numeric columns are read as text and parsed into exact decimals.
func (r *PortfolioRepository) HoldingsByExternalUser(ctx context.Context, externalID int64) ([]models.Holding, *time.Time, error) {
	var portfolioID int64
	var lastSynced *time.Time
	err := r.db.Pool().QueryRow(ctx, `
		SELECT p.id, p.last_synced
		FROM portfolios p
		JOIN users u ON u.id = p.user_id
		WHERE u.external_id = $1
	`, externalID).Scan(&portfolioID, &lastSynced)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, apierrors.NewDatabaseError("get portfolio", err)
	}

	rows, err := r.db.Pool().Query(ctx, `
		SELECT id, portfolio_id, wallet_address, chain_id, token_address, symbol,
		       raw_amount::text, decimals, value_usd::text
		FROM holdings
		WHERE portfolio_id = $1
		ORDER BY value_usd DESC, symbol
	`, portfolioID)
	if err != nil {
		return nil, nil, apierrors.NewDatabaseError("list holdings", err)
	}
	defer rows.Close()

	var holdings []models.Holding
	for rows.Next() {
		var h models.Holding
		var rawAmount, valueUSD string
		err := rows.Scan(
			&h.ID,
			&h.PortfolioID,
			&h.WalletAddress,
			&h.ChainID,
			&h.TokenAddress,
			&h.Symbol,
			&rawAmount,
			&h.Decimals,
			&valueUSD,
		)
		if err != nil {
			return nil, nil, apierrors.NewDatabaseError("scan holding", err)
		}

		if h.RawAmount, err = decimal.NewFromString(rawAmount); err != nil {
			return nil, nil, apierrors.NewDatabaseError("parse raw_amount", err)
		}
		if h.ValueUSD, err = decimal.NewFromString(valueUSD); err != nil {
			return nil, nil, apierrors.NewDatabaseError("parse value_usd", err)
		}

		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, apierrors.NewDatabaseError("iterate holdings", err)
	}

	return holdings, lastSynced, nil
}

package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/okx-folio/internal/apierrors"
	"github.com/okx-folio/internal/models"
)

// WalletRepository handles wallet address persistence
type WalletRepository struct {
	db *PostgresDB
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *PostgresDB) *WalletRepository {
	return &WalletRepository{db: db}
}

// ValidateAddress checks that an address is a well-formed EVM address.
// Addresses are stored lowercased so lookups are case-insensitive.
func ValidateAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid address: %s", address)
	}
	return strings.ToLower(address), nil
}

// Add registers a wallet address for a user on one chain. Adding the same
// address and chain twice is a no-op.
func (r *WalletRepository) Add(ctx context.Context, wallet *models.Wallet) error {
	addr, err := ValidateAddress(wallet.Address)
	if err != nil {
		return err
	}
	wallet.Address = addr

	query := `
		INSERT INTO wallets (user_id, address, chain_id, label)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, address, chain_id) DO UPDATE SET label = EXCLUDED.label
		RETURNING id
	`

	err = r.db.Pool().QueryRow(ctx, query,
		wallet.UserID,
		wallet.Address,
		wallet.ChainID,
		wallet.Label,
	).Scan(&wallet.ID)
	if err != nil {
		return apierrors.NewDatabaseError("add wallet", err)
	}

	return nil
}

// Remove deletes a wallet address for a user on one chain
func (r *WalletRepository) Remove(ctx context.Context, userID int64, address string, chainID int) error {
	addr, err := ValidateAddress(address)
	if err != nil {
		return err
	}

	query := `DELETE FROM wallets WHERE user_id = $1 AND address = $2 AND chain_id = $3`

	result, err := r.db.Pool().Exec(ctx, query, userID, addr, chainID)
	if err != nil {
		return apierrors.NewDatabaseError("remove wallet", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("wallet %s on chain %d: %w", addr, chainID, ErrNotFound)
	}

	return nil
}

// ListByUser returns every wallet registered for a user
func (r *WalletRepository) ListByUser(ctx context.Context, userID int64) ([]models.Wallet, error) {
	query := `
		SELECT id, user_id, address, chain_id, label
		FROM wallets
		WHERE user_id = $1
		ORDER BY id
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, apierrors.NewDatabaseError("list wallets", err)
	}
	defer rows.Close()

	var wallets []models.Wallet
	for rows.Next() {
		var w models.Wallet
		if err := rows.Scan(&w.ID, &w.UserID, &w.Address, &w.ChainID, &w.Label); err != nil {
			return nil, apierrors.NewDatabaseError("scan wallet", err)
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, apierrors.NewDatabaseError("iterate wallets", err)
	}

	return wallets, nil
}

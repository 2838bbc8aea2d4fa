package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/okx-folio/internal/apierrors"
	"github.com/okx-folio/internal/models"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// UserRepository handles user persistence
type UserRepository struct {
	db *PostgresDB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *PostgresDB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert creates the user for an external identifier, or refreshes the
// username if the user already exists. Returns the stored user either way.
func (r *UserRepository) Upsert(ctx context.Context, externalID int64, username string) (*models.User, error) {
	query := `
		INSERT INTO users (external_id, username)
		VALUES ($1, $2)
		ON CONFLICT (external_id)
		DO UPDATE SET username = EXCLUDED.username
		RETURNING id, external_id, username, created_at
	`

	var user models.User
	err := r.db.Pool().QueryRow(ctx, query, externalID, username).Scan(
		&user.ID,
		&user.ExternalID,
		&user.Username,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, apierrors.NewDatabaseError("upsert user", err)
	}

	return &user, nil
}

// GetByExternalID retrieves a user by the front-end identifier
func (r *UserRepository) GetByExternalID(ctx context.Context, externalID int64) (*models.User, error) {
	query := `
		SELECT id, external_id, username, created_at
		FROM users
		WHERE external_id = $1
	`

	var user models.User
	err := r.db.Pool().QueryRow(ctx, query, externalID).Scan(
		&user.ID,
		&user.ExternalID,
		&user.Username,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", externalID, ErrNotFound)
		}
		return nil, apierrors.NewDatabaseError("get user", err)
	}

	return &user, nil
}

// ListExternalIDs returns the external identifiers of every tracked user.
// The background sync loop uses this to build its work queue.
func (r *UserRepository) ListExternalIDs(ctx context.Context) ([]int64, error) {
	query := `SELECT external_id FROM users ORDER BY id`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, apierrors.NewDatabaseError("list users", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, apierrors.NewDatabaseError("scan user id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apierrors.NewDatabaseError("iterate users", err)
	}

	return ids, nil
}

// Count returns the total number of users
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, apierrors.NewDatabaseError("count users", err)
	}
	return count, nil
}

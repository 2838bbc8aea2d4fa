package storage

import (
	"context"
	"time"

	"github.com/okx-folio/internal/apierrors"
	"github.com/okx-folio/internal/models"
)

// ValuationHistory records one total-value observation per user per sync in
// ClickHouse, giving a time series the stored holdings snapshot cannot. A
// nil ValuationHistory disables recording; sync proceeds without it.
type ValuationHistory struct {
	db *ClickHouseDB
}

// NewValuationHistory creates a valuation history store
func NewValuationHistory(db *ClickHouseDB) *ValuationHistory {
	return &ValuationHistory{db: db}
}

// EnsureSchema creates the valuations table if it does not exist
func (v *ValuationHistory) EnsureSchema(ctx context.Context) error {
	err := v.db.Conn().Exec(ctx, `
		CREATE TABLE IF NOT EXISTS portfolio_valuations (
			external_id     Int64,
			synced_at       DateTime('UTC'),
			total_value_usd Float64
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(synced_at)
		ORDER BY (external_id, synced_at)
		TTL synced_at + INTERVAL 2 YEAR
	`)
	if err != nil {
		return apierrors.NewDatabaseError("create valuations table", err)
	}
	return nil
}

// Record appends one valuation observation
func (v *ValuationHistory) Record(ctx context.Context, externalID int64, syncedAt time.Time, totalValueUSD float64) error {
	if v == nil || v.db == nil {
		return nil
	}

	err := v.db.Conn().Exec(ctx, `
		INSERT INTO portfolio_valuations (external_id, synced_at, total_value_usd)
		VALUES (?, ?, ?)
	`, externalID, syncedAt.UTC(), totalValueUSD)
	if err != nil {
		return apierrors.NewDatabaseError("record valuation", err)
	}
	return nil
}

// Series returns a user's valuation observations since the cutoff, oldest
// first
func (v *ValuationHistory) Series(ctx context.Context, externalID int64, since time.Time) ([]models.ValuationPoint, error) {
	if v == nil || v.db == nil {
		return nil, nil
	}

	rows, err := v.db.Conn().Query(ctx, `
		SELECT synced_at, total_value_usd
		FROM portfolio_valuations
		WHERE external_id = ? AND synced_at >= ?
		ORDER BY synced_at
	`, externalID, since.UTC())
	if err != nil {
		return nil, apierrors.NewDatabaseError("query valuations", err)
	}
	defer rows.Close()

	var points []models.ValuationPoint
	for rows.Next() {
		var p models.ValuationPoint
		if err := rows.Scan(&p.SyncedAt, &p.TotalValueUSD); err != nil {
			return nil, apierrors.NewDatabaseError("scan valuation", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apierrors.NewDatabaseError("iterate valuations", err)
	}

	return points, nil
}

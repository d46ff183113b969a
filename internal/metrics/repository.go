package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Postgres error code for foreign key violations.
const pgForeignKeyViolation = "23503"

// Repository provides PostgreSQL backed persistence for metric facts.
// The business_metrics table carries a unique constraint on
// (business_id, name, period_type, period) so every write is an upsert.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a metric fact repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert inserts or overwrites one metric fact in place.
func (r *Repository) Upsert(ctx context.Context, metric Metric) error {
	const query = `
		INSERT INTO business_metrics (business_id, name, period_type, period, value, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (business_id, name, period_type, period)
		DO UPDATE SET value = EXCLUDED.value`

	_, err := r.pool.Exec(ctx, query,
		metric.BusinessID, metric.Name, metric.PeriodType, shared.MonthStart(metric.Period), metric.Value)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return fmt.Errorf("%w: business %s", shared.ErrNotFound, metric.BusinessID)
		}
		return fmt.Errorf("%w: upsert metric %s: %v", shared.ErrDatabase, metric.Name, err)
	}
	return nil
}

// GetByName reads a single metric fact by its full key.
func (r *Repository) GetByName(ctx context.Context, businessID uuid.UUID, name, periodType string, period time.Time) (Metric, error) {
	const query = `
		SELECT business_id, name, period_type, period, value, created_at
		FROM business_metrics
		WHERE business_id = $1 AND name = $2 AND period_type = $3 AND period = $4`

	var m Metric
	err := r.pool.QueryRow(ctx, query, businessID, name, periodType, shared.MonthStart(period)).
		Scan(&m.BusinessID, &m.Name, &m.PeriodType, &m.Period, &m.Value, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Metric{}, fmt.Errorf("%w: metric %s for %s", shared.ErrNotFound, name, period.Format("2006-01"))
		}
		return Metric{}, fmt.Errorf("%w: get metric %s: %v", shared.ErrDatabase, name, err)
	}
	return m, nil
}

// GetMonthly reads every monthly metric fact persisted for the period.
func (r *Repository) GetMonthly(ctx context.Context, businessID uuid.UUID, period time.Time) ([]Metric, error) {
	const query = `
		SELECT business_id, name, period_type, period, value, created_at
		FROM business_metrics
		WHERE business_id = $1 AND period_type = $2 AND period = $3
		ORDER BY name`

	rows, err := r.pool.Query(ctx, query, businessID, shared.PeriodTypeMonthly, shared.MonthStart(period))
	if err != nil {
		return nil, fmt.Errorf("%w: list monthly metrics: %v", shared.ErrDatabase, err)
	}
	defer rows.Close()

	var facts []Metric
	for rows.Next() {
		var m Metric
		if err := rows.Scan(&m.BusinessID, &m.Name, &m.PeriodType, &m.Period, &m.Value, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan metric: %v", shared.ErrDatabase, err)
		}
		facts = append(facts, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list monthly metrics: %v", shared.ErrDatabase, err)
	}
	return facts, nil
}

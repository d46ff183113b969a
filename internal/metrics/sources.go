package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// PGTransactionSource reads period transactions with their product pricing.
type PGTransactionSource struct {
	pool *pgxpool.Pool
}

// NewTransactionSource constructs a transaction reader.
func NewTransactionSource(pool *pgxpool.Pool) *PGTransactionSource {
	return &PGTransactionSource{pool: pool}
}

// GetByInterval lists transactions booked in [start, end). The product join
// is a LEFT JOIN on purpose: a transaction whose product row is gone comes
// back with a nil Product and the calculator excludes it.
func (s *PGTransactionSource) GetByInterval(ctx context.Context, businessID uuid.UUID, start, end time.Time) ([]Transaction, error) {
	const query = `
		SELECT t.id, t.type, t.quantity, p.id, p.price, p.cost_price
		FROM transactions t
		LEFT JOIN products p ON p.id = t.product_id
		WHERE t.business_id = $1 AND t.created_at >= $2 AND t.created_at < $3
		ORDER BY t.created_at`

	rows, err := s.pool.Query(ctx, query, businessID, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions: %v", shared.ErrDatabase, err)
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		var (
			tx        Transaction
			productID *uuid.UUID
			price     *float64
			costPrice *float64
		)
		if err := rows.Scan(&tx.ID, &tx.Type, &tx.Quantity, &productID, &price, &costPrice); err != nil {
			return nil, fmt.Errorf("%w: scan transaction: %v", shared.ErrDatabase, err)
		}
		if productID != nil {
			product := Product{ID: *productID}
			if price != nil {
				product.Price = *price
			}
			if costPrice != nil {
				product.CostPrice = *costPrice
			}
			tx.Product = &product
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list transactions: %v", shared.ErrDatabase, err)
	}
	return transactions, nil
}

// PGExpenseSource reads period expenses.
type PGExpenseSource struct {
	pool *pgxpool.Pool
}

// NewExpenseSource constructs an expense reader.
func NewExpenseSource(pool *pgxpool.Pool) *PGExpenseSource {
	return &PGExpenseSource{pool: pool}
}

// GetByInterval lists expenses booked in [start, end). Amounts are stored
// as numeric text and parsed through decimal; an unparseable amount counts
// as zero rather than failing the whole fetch.
func (s *PGExpenseSource) GetByInterval(ctx context.Context, businessID uuid.UUID, start, end time.Time) ([]Expense, error) {
	const query = `
		SELECT id, amount::text, reference
		FROM expenses
		WHERE business_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, businessID, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: list expenses: %v", shared.ErrDatabase, err)
	}
	defer rows.Close()

	var expenses []Expense
	for rows.Next() {
		var (
			e   Expense
			raw string
		)
		if err := rows.Scan(&e.ID, &raw, &e.Reference); err != nil {
			return nil, fmt.Errorf("%w: scan expense: %v", shared.ErrDatabase, err)
		}
		if amount, err := decimal.NewFromString(raw); err == nil {
			e.Amount = amount.InexactFloat64()
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list expenses: %v", shared.ErrDatabase, err)
	}
	return expenses, nil
}

// PGStockSource reads the current warehouse items for a business.
type PGStockSource struct {
	pool *pgxpool.Pool
}

// NewStockSource constructs a stock reader.
func NewStockSource(pool *pgxpool.Pool) *PGStockSource {
	return &PGStockSource{pool: pool}
}

// GetCurrentItems lists on-hand quantities joined with unit cost.
func (s *PGStockSource) GetCurrentItems(ctx context.Context, businessID uuid.UUID) ([]StockItem, error) {
	const query = `
		SELECT w.quantity, COALESCE(p.cost_price, 0)
		FROM warehouse_items w
		LEFT JOIN products p ON p.id = w.product_id
		WHERE w.business_id = $1`

	rows, err := s.pool.Query(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("%w: list stock items: %v", shared.ErrDatabase, err)
	}
	defer rows.Close()

	var items []StockItem
	for rows.Next() {
		var item StockItem
		if err := rows.Scan(&item.Quantity, &item.CostPrice); err != nil {
			return nil, fmt.Errorf("%w: scan stock item: %v", shared.ErrDatabase, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list stock items: %v", shared.ErrDatabase, err)
	}
	return items, nil
}

// PGBusinessSource resolves business directory entries.
type PGBusinessSource struct {
	pool *pgxpool.Pool
}

// NewBusinessSource constructs a business directory reader.
func NewBusinessSource(pool *pgxpool.Pool) *PGBusinessSource {
	return &PGBusinessSource{pool: pool}
}

// GetBusiness fetches one business by id.
func (s *PGBusinessSource) GetBusiness(ctx context.Context, id uuid.UUID) (Business, error) {
	const query = `SELECT id, name, created_at FROM businesses WHERE id = $1`

	var b Business
	err := s.pool.QueryRow(ctx, query, id).Scan(&b.ID, &b.Name, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Business{}, fmt.Errorf("%w: business %s", shared.ErrNotFound, id)
		}
		return Business{}, fmt.Errorf("%w: get business: %v", shared.ErrDatabase, err)
	}
	return b, nil
}

// ListActive lists businesses eligible for the scheduled monthly sync.
func (s *PGBusinessSource) ListActive(ctx context.Context) ([]Business, error) {
	const query = `SELECT id, name, created_at FROM businesses WHERE status = 'ACTIVE' ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list businesses: %v", shared.ErrDatabase, err)
	}
	defer rows.Close()

	var businesses []Business
	for rows.Next() {
		var b Business
		if err := rows.Scan(&b.ID, &b.Name, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan business: %v", shared.ErrDatabase, err)
		}
		businesses = append(businesses, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list businesses: %v", shared.ErrDatabase, err)
	}
	return businesses, nil
}

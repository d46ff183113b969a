package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type mockBusinessSource struct {
	business Business
	active   []Business
	err      error
}

func (m *mockBusinessSource) GetBusiness(ctx context.Context, id uuid.UUID) (Business, error) {
	if m.err != nil {
		return Business{}, m.err
	}
	if m.business.ID != id {
		return Business{}, fmt.Errorf("%w: business %s", shared.ErrNotFound, id)
	}
	return m.business, nil
}

func (m *mockBusinessSource) ListActive(ctx context.Context) ([]Business, error) {
	return m.active, m.err
}

type mockTransactionSource struct {
	transactions []Transaction
	err          error
}

func (m *mockTransactionSource) GetByInterval(ctx context.Context, businessID uuid.UUID, start, end time.Time) ([]Transaction, error) {
	return m.transactions, m.err
}

type mockExpenseSource struct {
	expenses []Expense
	err      error
}

func (m *mockExpenseSource) GetByInterval(ctx context.Context, businessID uuid.UUID, start, end time.Time) ([]Expense, error) {
	return m.expenses, m.err
}

type mockStockSource struct {
	items []StockItem
	err   error
}

func (m *mockStockSource) GetCurrentItems(ctx context.Context, businessID uuid.UUID) ([]StockItem, error) {
	return m.items, m.err
}

type orchestratorFixture struct {
	orchestrator *Orchestrator
	businessID   uuid.UUID
	store        *mockMetricStore
	businesses   *mockBusinessSource
	transactions *mockTransactionSource
	expenses     *mockExpenseSource
	stock        *mockStockSource
}

// newOrchestratorFixture wires an orchestrator over mocks with the clock
// pinned to 2025-08-15 and a business created in January 2025.
func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()

	businessID := uuid.New()
	f := &orchestratorFixture{
		businessID: businessID,
		store:      newMockMetricStore(),
		businesses: &mockBusinessSource{business: Business{
			ID:        businessID,
			Name:      "Acme Trading",
			CreatedAt: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		}},
		transactions: &mockTransactionSource{},
		expenses:     &mockExpenseSource{},
		stock:        &mockStockSource{},
	}

	o := NewOrchestrator(f.businesses, f.transactions, f.expenses, f.stock, f.store, slog.Default())
	now := func() time.Time { return time.Date(2025, 8, 15, 9, 0, 0, 0, time.UTC) }
	o.clock = now
	o.calculator.clock = now
	f.orchestrator = o
	return f
}

func TestRunRequiresBusinessID(t *testing.T) {
	f := newOrchestratorFixture(t)

	_, err := f.orchestrator.Run(context.Background(), uuid.Nil, testPeriod)
	assert.ErrorIs(t, err, shared.ErrMissingInput)
}

func TestRunUnknownBusiness(t *testing.T) {
	f := newOrchestratorFixture(t)

	_, err := f.orchestrator.Run(context.Background(), uuid.New(), testPeriod)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRunRejectsInvalidPeriods(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		period time.Time
	}{
		{"current month", time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)},
		{"future month", time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)},
		{"before business creation", time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)},
		{"zero period", time.Time{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.orchestrator.Run(ctx, f.businessID, tc.period)
			assert.ErrorIs(t, err, shared.ErrBadRequest)
		})
	}
}

func TestRunHappyPath(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.transactions.transactions = []Transaction{
		saleTx(-10, 100),
		{
			ID:       uuid.New(),
			Type:     TransactionPurchase,
			Quantity: 20,
			Product:  &Product{ID: uuid.New(), CostPrice: 60},
		},
	}
	f.expenses.expenses = []Expense{{ID: uuid.New(), Amount: 500}}
	f.stock.items = []StockItem{{Quantity: 20, CostPrice: 60}, {Quantity: 10, CostPrice: 40}}

	// June's closing stock becomes July's opening stock.
	june := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.store.Upsert(context.Background(), Metric{
		BusinessID: f.businessID,
		Name:       MetricNameClosingStock,
		PeriodType: shared.PeriodTypeMonthly,
		Period:     june,
		Value:      "1000",
	}))

	result, err := f.orchestrator.Run(context.Background(), f.businessID, testPeriod)

	require.NoError(t, err)
	require.NotNil(t, result.Metrics)
	assert.NoError(t, result.SyncErr)

	assert.Equal(t, 1000.0, result.Metrics.GrossRevenue)
	assert.Equal(t, 1000.0, result.Metrics.OpeningStock)
	assert.Equal(t, 1600.0, result.Metrics.ClosingStock)
	assert.Equal(t, 600.0, result.Metrics.CostOfGoodsSold)
	assert.Equal(t, 400.0, result.Metrics.GrossProfit)

	// The full catalog was persisted for July, on top of the seeded June fact.
	assert.Len(t, result.Sync.Successful, len(Catalog))
	assert.Equal(t, len(Catalog)+1, f.store.rowCount())
	assert.Equal(t, "1600", f.store.value(f.businessID, MetricNameClosingStock, testPeriod))
}

func TestRunMissingPriorClosingStock(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.stock.items = []StockItem{{Quantity: 5, CostPrice: 100}}

	result, err := f.orchestrator.Run(context.Background(), f.businessID, testPeriod)

	require.NoError(t, err)
	assert.Zero(t, result.Metrics.OpeningStock)
	assert.Equal(t, 500.0, result.Metrics.ClosingStock)
}

func TestRunUnparseableClosingStockDefaultsToZero(t *testing.T) {
	f := newOrchestratorFixture(t)
	june := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.store.Upsert(context.Background(), Metric{
		BusinessID: f.businessID,
		Name:       MetricNameClosingStock,
		PeriodType: shared.PeriodTypeMonthly,
		Period:     june,
		Value:      "not-a-number",
	}))

	result, err := f.orchestrator.Run(context.Background(), f.businessID, testPeriod)

	require.NoError(t, err)
	assert.Zero(t, result.Metrics.OpeningStock)
}

func TestRunFetchFailureAborts(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.transactions.err = fmt.Errorf("%w: transactions query", shared.ErrDatabase)

	result, err := f.orchestrator.Run(context.Background(), f.businessID, testPeriod)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, shared.ErrDatabase)
	assert.Zero(t, f.store.rowCount())
}

func TestRunSyncFailureStillReturnsMetrics(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.transactions.transactions = []Transaction{saleTx(-4, 25)}
	f.store.failMetrics["grossRevenue"] = errors.New("write rejected")

	result, err := f.orchestrator.Run(context.Background(), f.businessID, testPeriod)

	require.NoError(t, err)
	require.NotNil(t, result.Metrics)
	assert.Equal(t, 100.0, result.Metrics.GrossRevenue)
	assert.ErrorIs(t, result.SyncErr, shared.ErrPartialSuccess)
	require.Len(t, result.Sync.Failed, 1)
	assert.Equal(t, "grossRevenue", result.Sync.Failed[0].Metric)
}

func TestRunRecoversFromPanic(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.orchestrator.clock = nil // forces a nil deref inside the pipeline

	result, err := f.orchestrator.Run(context.Background(), f.businessID, testPeriod)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, shared.ErrFailedRequest)
}

package metrics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// ============================================================================
// MOCK METRIC STORE
// ============================================================================

type storeKey struct {
	businessID uuid.UUID
	name       string
	periodType string
	period     time.Time
}

type mockMetricStore struct {
	mu    sync.Mutex
	facts map[storeKey]Metric

	// Error injection
	failMetrics map[string]error
	failAll     error
	upsertCalls int
}

func newMockMetricStore() *mockMetricStore {
	return &mockMetricStore{
		facts:       make(map[storeKey]Metric),
		failMetrics: make(map[string]error),
	}
}

func (m *mockMetricStore) Upsert(ctx context.Context, metric Metric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	if m.failAll != nil {
		return m.failAll
	}
	if err, ok := m.failMetrics[metric.Name]; ok {
		return err
	}
	key := storeKey{metric.BusinessID, metric.Name, metric.PeriodType, metric.Period}
	metric.CreatedAt = time.Now()
	m.facts[key] = metric
	return nil
}

func (m *mockMetricStore) GetByName(ctx context.Context, businessID uuid.UUID, name, periodType string, period time.Time) (Metric, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fact, ok := m.facts[storeKey{businessID, name, periodType, shared.MonthStart(period)}]
	if !ok {
		return Metric{}, fmt.Errorf("%w: metric %s", shared.ErrNotFound, name)
	}
	return fact, nil
}

func (m *mockMetricStore) GetMonthly(ctx context.Context, businessID uuid.UUID, period time.Time) ([]Metric, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var facts []Metric
	for key, fact := range m.facts {
		if key.businessID == businessID && key.periodType == shared.PeriodTypeMonthly && key.period.Equal(shared.MonthStart(period)) {
			facts = append(facts, fact)
		}
	}
	return facts, nil
}

func (m *mockMetricStore) rowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.facts)
}

func (m *mockMetricStore) value(businessID uuid.UUID, name string, period time.Time) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.facts[storeKey{businessID, name, shared.PeriodTypeMonthly, shared.MonthStart(period)}].Value
}

// ============================================================================
// TESTS
// ============================================================================

var testPeriod = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

func sampleSet() *MetricSet {
	return &MetricSet{
		GrossRevenue:      1000,
		NetRevenue:        800,
		CostOfGoodsSold:   600,
		GrossProfit:       200,
		OperatingExpenses: 150.5,
		TransactionCount:  12,
	}
}

func TestSyncRequiresInputs(t *testing.T) {
	s := NewSyncer(newMockMetricStore(), nil)

	_, err := s.Sync(context.Background(), uuid.Nil, testPeriod, sampleSet())
	assert.ErrorIs(t, err, shared.ErrMissingInput)

	_, err = s.Sync(context.Background(), uuid.New(), time.Time{}, sampleSet())
	assert.ErrorIs(t, err, shared.ErrMissingInput)

	_, err = s.Sync(context.Background(), uuid.New(), testPeriod, nil)
	assert.ErrorIs(t, err, shared.ErrMissingInput)
}

func TestSyncPersistsEveryCatalogField(t *testing.T) {
	store := newMockMetricStore()
	s := NewSyncer(store, nil)
	businessID := uuid.New()

	outcome, err := s.Sync(context.Background(), businessID, testPeriod, sampleSet())

	require.NoError(t, err)
	assert.Len(t, outcome.Successful, len(Catalog))
	assert.Empty(t, outcome.Failed)
	assert.Equal(t, len(Catalog), store.rowCount())

	assert.Equal(t, "1000", store.value(businessID, "grossRevenue", testPeriod))
	assert.Equal(t, "150.5", store.value(businessID, "operatingExpenses", testPeriod))
	assert.Equal(t, "12", store.value(businessID, "transactionCount", testPeriod))
}

func TestSyncIsIdempotent(t *testing.T) {
	store := newMockMetricStore()
	s := NewSyncer(store, nil)
	businessID := uuid.New()

	first := sampleSet()
	_, err := s.Sync(context.Background(), businessID, testPeriod, first)
	require.NoError(t, err)

	second := sampleSet()
	second.GrossRevenue = 2500
	_, err = s.Sync(context.Background(), businessID, testPeriod, second)
	require.NoError(t, err)

	// Still exactly one row per metric name, holding the second run's value.
	assert.Equal(t, len(Catalog), store.rowCount())
	assert.Equal(t, "2500", store.value(businessID, "grossRevenue", testPeriod))
}

func TestSyncPartialFailure(t *testing.T) {
	store := newMockMetricStore()
	store.failMetrics["netRevenue"] = errors.New("connection reset")
	s := NewSyncer(store, nil)

	outcome, err := s.Sync(context.Background(), uuid.New(), testPeriod, sampleSet())

	assert.ErrorIs(t, err, shared.ErrPartialSuccess)
	assert.Len(t, outcome.Successful, len(Catalog)-1)
	require.Len(t, outcome.Failed, 1)
	assert.Equal(t, "netRevenue", outcome.Failed[0].Metric)
	assert.EqualError(t, outcome.Failed[0].Err, "connection reset")
}

func TestSyncAllFieldsFail(t *testing.T) {
	store := newMockMetricStore()
	store.failAll = errors.New("database down")
	s := NewSyncer(store, nil)

	outcome, err := s.Sync(context.Background(), uuid.New(), testPeriod, sampleSet())

	assert.ErrorIs(t, err, shared.ErrDatabase)
	assert.Empty(t, outcome.Successful)
	assert.Len(t, outcome.Failed, len(Catalog))
}

func TestSyncFailureAccounting(t *testing.T) {
	store := newMockMetricStore()
	store.failMetrics["grossRevenue"] = errors.New("boom")
	store.failMetrics["daysOnHand"] = errors.New("boom")
	store.failMetrics["workingCapital"] = errors.New("boom")
	s := NewSyncer(store, nil)

	outcome, err := s.Sync(context.Background(), uuid.New(), testPeriod, sampleSet())

	assert.ErrorIs(t, err, shared.ErrPartialSuccess)
	assert.Len(t, outcome.Failed, 3)
	assert.Len(t, outcome.Successful, len(Catalog)-3)
}

func TestSyncNormalizesPeriodToMonthStart(t *testing.T) {
	store := newMockMetricStore()
	s := NewSyncer(store, nil)
	businessID := uuid.New()

	midMonth := time.Date(2025, 7, 19, 14, 30, 0, 0, time.UTC)
	_, err := s.Sync(context.Background(), businessID, midMonth, sampleSet())
	require.NoError(t, err)

	assert.Equal(t, "1000", store.value(businessID, "grossRevenue", testPeriod))
}

func TestNormalizeValue(t *testing.T) {
	cases := []struct {
		name  string
		in    any
		want  string
		store bool
	}{
		{"float", 12.5, "12.5", true},
		{"float integral", 1000.0, "1000", true},
		{"int", 7, "7", true},
		{"string", "monthly", "monthly", true},
		{"bool", true, "true", true},
		{"nil", nil, "", false},
		{"nan", math.NaN(), "", false},
		{"inf", math.Inf(1), "", false},
		{"object", map[string]int{"a": 1}, `{"a":1}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := normalizeValue(tc.in)
			assert.Equal(t, tc.store, ok)
			if tc.store {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

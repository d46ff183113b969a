package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RunResult is the outcome of one orchestration run. Metrics is always
// populated when the calculation itself succeeded; SyncErr carries the
// best-effort persistence outcome without invalidating the computation.
type RunResult struct {
	Metrics *MetricSet  `json:"metrics"`
	Sync    SyncOutcome `json:"sync"`
	SyncErr error       `json:"-"`
}

// Orchestrator drives the monthly metrics pipeline for one business and
// period: validate the period, fetch raw inputs concurrently, resolve
// opening stock from the prior month's persisted closing stock, value
// current stock, compute the KPI set and sync it best-effort.
type Orchestrator struct {
	businesses   BusinessSource
	transactions TransactionSource
	expenses     ExpenseSource
	stock        StockSource
	store        MetricStore
	calculator   *Calculator
	syncer       *Syncer
	logger       *slog.Logger
	clock        func() time.Time
}

// NewOrchestrator wires the pipeline collaborators.
func NewOrchestrator(
	businesses BusinessSource,
	transactions TransactionSource,
	expenses ExpenseSource,
	stock StockSource,
	store MetricStore,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		businesses:   businesses,
		transactions: transactions,
		expenses:     expenses,
		stock:        stock,
		store:        store,
		calculator:   NewCalculator(),
		syncer:       NewSyncer(store, logger),
		logger:       logger,
		clock:        func() time.Time { return time.Now().UTC() },
	}
}

// Run executes the pipeline for the business's target month. A fetch or
// validation failure returns a nil result with the collaborator's error;
// a sync failure is reported through RunResult.SyncErr while the computed
// metrics are still returned.
func (o *Orchestrator) Run(ctx context.Context, businessID uuid.UUID, targetMonth time.Time) (result *RunResult, err error) {
	if businessID == uuid.Nil {
		return nil, fmt.Errorf("%w: business id required", shared.ErrMissingInput)
	}

	// Unexpected panics anywhere in the pipeline surface as a failed
	// request instead of tearing down the caller.
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("metrics run panicked",
				slog.String("business_id", businessID.String()),
				slog.Any("panic", r))
			result = nil
			err = fmt.Errorf("%w: %v", shared.ErrFailedRequest, r)
		}
	}()

	business, err := o.businesses.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if err := shared.ValidateTargetMonth(targetMonth, business.CreatedAt, o.clock()); err != nil {
		return nil, err
	}

	month := shared.MonthStart(targetMonth)
	start, end := shared.MonthRange(month)

	var (
		transactions []Transaction
		expenses     []Expense
		items        []StockItem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		transactions, err = o.transactions.GetByInterval(gctx, businessID, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = o.expenses.GetByInterval(gctx, businessID, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = o.stock.GetCurrentItems(gctx, businessID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	opening, err := o.resolveOpeningStock(ctx, businessID, month)
	if err != nil {
		return nil, err
	}
	closing := valueStock(items)

	set := o.calculator.Calculate(transactions, expenses, &opening, &closing)

	outcome, syncErr := o.syncer.Sync(ctx, businessID, month, &set)
	if syncErr != nil {
		o.logger.Warn("metric sync incomplete",
			slog.String("business_id", businessID.String()),
			slog.String("period", shared.FormatMonth(month)),
			slog.Int("failed", len(outcome.Failed)),
			slog.Any("error", syncErr))
	}

	return &RunResult{Metrics: &set, Sync: outcome, SyncErr: syncErr}, nil
}

// resolveOpeningStock reads the prior month's persisted closing stock.
// A missing fact is not an error: the business simply has no valuation
// history yet and opens at zero.
func (o *Orchestrator) resolveOpeningStock(ctx context.Context, businessID uuid.UUID, month time.Time) (float64, error) {
	prior := shared.PrevMonth(month)
	fact, err := o.store.GetByName(ctx, businessID, MetricNameClosingStock, shared.PeriodTypeMonthly, prior)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	value, err := decimal.NewFromString(fact.Value)
	if err != nil {
		o.logger.Warn("unparseable closing stock fact, defaulting to zero",
			slog.String("business_id", businessID.String()),
			slog.String("period", shared.FormatMonth(prior)),
			slog.String("value", fact.Value))
		return 0, nil
	}
	return value.InexactFloat64(), nil
}

// valueStock sums quantity times unit cost over the current warehouse items.
func valueStock(items []StockItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Quantity * item.CostPrice
	}
	return total
}

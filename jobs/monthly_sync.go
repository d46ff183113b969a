package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
	"github.com/meridian-erp/meridian-erp/internal/metrics"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// MonthlySyncJob recomputes and persists the metric set for one business
// month. The sweep handler fans it out across every active business on the
// first day of each month.
type MonthlySyncJob struct {
	Orchestrator *metrics.Orchestrator
	Businesses   metrics.BusinessSource
	Cache        *metrics.Cache
	Client       *Client
	Logger       *slog.Logger
	Metrics      *jobmetrics.Metrics
	clock        func() time.Time
}

// NewMonthlySyncJob wires dependencies for the sync handlers.
func NewMonthlySyncJob(
	orchestrator *metrics.Orchestrator,
	businesses metrics.BusinessSource,
	cache *metrics.Cache,
	client *Client,
	logger *slog.Logger,
	jm *jobmetrics.Metrics,
) *MonthlySyncJob {
	return &MonthlySyncJob{
		Orchestrator: orchestrator,
		Businesses:   businesses,
		Cache:        cache,
		Client:       client,
		Logger:       logger,
		Metrics:      jm,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// HandleSync processes one business-month sync task.
func (j *MonthlySyncJob) HandleSync(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Orchestrator == nil {
		return errors.New("monthly sync: handler not configured")
	}
	var payload MonthlySyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskMetricsMonthlySync)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	period, err := j.resolvePeriod(payload.Period)
	if err != nil {
		return asynq.SkipRetry
	}

	logger := j.logger().With(
		slog.String("business_id", payload.BusinessID.String()),
		slog.String("period", shared.FormatMonth(period)))
	logger.Info("starting monthly metrics sync")

	result, err := j.Orchestrator.Run(ctx, payload.BusinessID, period)
	if err != nil {
		if errors.Is(err, shared.ErrBadRequest) || errors.Is(err, shared.ErrNotFound) {
			// Retrying will not fix an invalid period or missing business.
			logger.Warn("monthly sync rejected", slog.Any("error", err))
			return asynq.SkipRetry
		}
		resultErr = err
		logger.Error("monthly sync failed", slog.Any("error", err))
		return resultErr
	}

	if result.SyncErr != nil {
		// Partial persistence: retry the task so the failed fields get
		// another pass; succeeded fields are idempotent upserts.
		resultErr = result.SyncErr
		logger.Warn("monthly sync incomplete",
			slog.Int("failed_fields", len(result.Sync.Failed)),
			slog.Any("error", result.SyncErr))
		return resultErr
	}

	if err := j.Cache.Bump(ctx); err != nil {
		logger.Warn("metric cache bump failed", slog.Any("error", err))
	}
	logger.Info("completed monthly metrics sync",
		slog.Int("fields", len(result.Sync.Successful)))
	return resultErr
}

// HandleSweep enqueues a sync task per active business for the target month.
func (j *MonthlySyncJob) HandleSweep(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Businesses == nil || j.Client == nil {
		return errors.New("metrics sweep: handler not configured")
	}
	var payload SweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskMetricsSweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	period, err := j.resolvePeriod(payload.Period)
	if err != nil {
		return asynq.SkipRetry
	}

	logger := j.logger().With(slog.String("period", shared.FormatMonth(period)))
	logger.Info("starting metrics sweep")

	businesses, err := j.Businesses.ListActive(ctx)
	if err != nil {
		resultErr = err
		logger.Error("list active businesses", slog.Any("error", err))
		return resultErr
	}

	enqueued := 0
	for _, business := range businesses {
		if shared.MonthStart(business.CreatedAt).After(period) {
			continue
		}
		_, err := j.Client.EnqueueMonthlySync(ctx, MonthlySyncPayload{
			BusinessID: business.ID,
			Period:     shared.FormatMonth(period),
		})
		if err != nil {
			resultErr = err
			logger.Error("enqueue monthly sync",
				slog.String("business_id", business.ID.String()),
				slog.Any("error", err))
			return resultErr
		}
		enqueued++
	}

	logger.Info("completed metrics sweep", slog.Int("enqueued", enqueued))
	return resultErr
}

// resolvePeriod parses the payload period, defaulting to the month before now.
func (j *MonthlySyncJob) resolvePeriod(period string) (time.Time, error) {
	if period == "" {
		return shared.PrevMonth(j.now()), nil
	}
	return shared.ParseMonth(period)
}

func (j *MonthlySyncJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *MonthlySyncJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *MonthlySyncJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

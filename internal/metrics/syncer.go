package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// maxConcurrentUpserts bounds the syncer's write fan-out.
const maxConcurrentUpserts = 8

// FieldFailure records one metric field that could not be persisted.
type FieldFailure struct {
	Metric string `json:"metric"`
	Err    error  `json:"-"`
}

// MarshalJSON renders the failure with the error flattened to a string.
func (f FieldFailure) MarshalJSON() ([]byte, error) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		Metric string `json:"metric"`
		Error  string `json:"error"`
	}{Metric: f.Metric, Error: msg})
}

// SyncOutcome aggregates the per-field results of one sync run.
type SyncOutcome struct {
	Successful []string       `json:"successful"`
	Failed     []FieldFailure `json:"failed"`
}

// Syncer writes a computed metric set through the MetricStore one keyed
// upsert per catalog field. Field writes run concurrently; the outcome is
// produced only after every attempted write has finished, so a single
// field's failure never aborts the others.
type Syncer struct {
	store  MetricStore
	logger *slog.Logger
}

// NewSyncer wires a syncer over the given store.
func NewSyncer(store MetricStore, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{store: store, logger: logger}
}

// Sync persists every catalog field of the set for (businessID, period).
// The returned error is nil when every attempted write succeeded,
// shared.ErrPartialSuccess when some failed, and shared.ErrDatabase when
// all did. The outcome lists both sides either way.
func (s *Syncer) Sync(ctx context.Context, businessID uuid.UUID, period time.Time, set *MetricSet) (SyncOutcome, error) {
	if businessID == uuid.Nil {
		return SyncOutcome{}, fmt.Errorf("%w: business id required", shared.ErrMissingInput)
	}
	if period.IsZero() {
		return SyncOutcome{}, fmt.Errorf("%w: period required", shared.ErrMissingInput)
	}
	if set == nil {
		return SyncOutcome{}, fmt.Errorf("%w: metric set required", shared.ErrMissingInput)
	}

	month := shared.MonthStart(period)

	type attempt struct {
		name  string
		value string
	}
	attempts := make([]attempt, 0, len(Catalog))
	for _, field := range Catalog {
		value, ok := normalizeValue(field.Extract(set))
		if !ok {
			s.logger.Debug("skipping unstorable metric field", slog.String("metric", field.Name))
			continue
		}
		attempts = append(attempts, attempt{name: field.Name, value: value})
	}

	// Join semantics: every attempted write runs to completion and reports
	// into its own slot before the outcome is assembled.
	results := make([]error, len(attempts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUpserts)
	for i, a := range attempts {
		g.Go(func() error {
			results[i] = s.store.Upsert(gctx, Metric{
				BusinessID: businessID,
				Name:       a.name,
				PeriodType: shared.PeriodTypeMonthly,
				Period:     month,
				Value:      a.value,
			})
			return nil
		})
	}
	_ = g.Wait()

	outcome := SyncOutcome{Successful: make([]string, 0, len(attempts))}
	for i, a := range attempts {
		if err := results[i]; err != nil {
			outcome.Failed = append(outcome.Failed, FieldFailure{Metric: a.name, Err: err})
			continue
		}
		outcome.Successful = append(outcome.Successful, a.name)
	}

	switch {
	case len(attempts) == 0 || len(outcome.Failed) == 0:
		return outcome, nil
	case len(outcome.Successful) == 0:
		return outcome, fmt.Errorf("%w: all %d metric fields failed to persist", shared.ErrDatabase, len(outcome.Failed))
	default:
		return outcome, fmt.Errorf("%w: %d of %d metric fields failed to persist", shared.ErrPartialSuccess, len(outcome.Failed), len(attempts))
	}
}

// normalizeValue converts a metric value into its storable string form.
// Numbers become decimal strings, booleans "true"/"false", strings pass
// through, anything else is JSON-serialized. NaN and infinite values are
// not storable and report false.
func normalizeValue(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return "", false
		}
		return decimal.NewFromFloat(val).String(), true
	case float32:
		return normalizeValue(float64(val))
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return "", false
		}
		return string(raw), true
	}
}

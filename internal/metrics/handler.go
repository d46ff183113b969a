package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler exposes the metrics engine over HTTP.
type Handler struct {
	logger       *slog.Logger
	orchestrator *Orchestrator
	store        MetricStore
	cache        *Cache
	obs          *observability.Metrics
	validate     *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, orchestrator *Orchestrator, store MetricStore, cache *Cache, obs *observability.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:       logger,
		orchestrator: orchestrator,
		store:        store,
		cache:        cache,
		obs:          obs,
		validate:     validator.New(),
	}
}

// MountRoutes registers metrics routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/businesses/{businessID}/metrics/monthly/{period}/sync", h.syncMonthly)
	r.Get("/businesses/{businessID}/metrics/monthly/{period}", h.getMonthly)
}

type metricsRouteParams struct {
	BusinessID string `validate:"required,uuid"`
	Period     string `validate:"required,len=7"`
}

type syncResponse struct {
	Metrics   *MetricSet  `json:"metrics"`
	Sync      SyncOutcome `json:"sync"`
	SyncError string      `json:"sync_error,omitempty"`
}

func (h *Handler) syncMonthly(w http.ResponseWriter, r *http.Request) {
	businessID, period, ok := h.routeParams(w, r)
	if !ok {
		return
	}

	result, err := h.orchestrator.Run(r.Context(), businessID, period)
	if err != nil {
		h.obs.ObserveSyncRun("error", 0)
		h.logger.Error("monthly metrics sync failed",
			slog.String("business_id", businessID.String()),
			slog.String("period", shared.FormatMonth(period)),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.obs.ObserveSyncRun(syncOutcomeLabel(result.SyncErr), len(result.Sync.Failed))

	if result.SyncErr == nil && h.cache != nil {
		if err := h.cache.Bump(r.Context()); err != nil {
			h.logger.Warn("metric cache bump failed", slog.Any("error", err))
		}
	}

	resp := syncResponse{Metrics: result.Metrics, Sync: result.Sync}
	if result.SyncErr != nil {
		resp.SyncError = result.SyncErr.Error()
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type monthlyResponse struct {
	BusinessID uuid.UUID `json:"business_id"`
	Period     string    `json:"period"`
	Metrics    []Metric  `json:"metrics"`
}

func (h *Handler) getMonthly(w http.ResponseWriter, r *http.Request) {
	businessID, period, ok := h.routeParams(w, r)
	if !ok {
		return
	}

	loader := func(ctx context.Context) (interface{}, error) {
		facts, err := h.store.GetMonthly(ctx, businessID, period)
		if err != nil {
			return nil, err
		}
		return monthlyResponse{
			BusinessID: businessID,
			Period:     shared.FormatMonth(period),
			Metrics:    facts,
		}, nil
	}

	var resp monthlyResponse
	if h.cache != nil {
		key, err := h.cache.BuildKey(r.Context(), keyMonthly(businessID, shared.FormatMonth(period)))
		if err == nil {
			if err := h.cache.FetchJSON(r.Context(), key, &resp, loader); err != nil {
				httpx.RespondError(w, err)
				return
			}
			httpx.JSON(w, http.StatusOK, resp)
			return
		}
		h.logger.Warn("metric cache key build failed", slog.Any("error", err))
	}

	value, err := loader(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, value)
}

func syncOutcomeLabel(syncErr error) string {
	if syncErr == nil {
		return "success"
	}
	return "partial"
}

// routeParams validates and parses the business id and period path segments.
func (h *Handler) routeParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, time.Time, bool) {
	params := metricsRouteParams{
		BusinessID: chi.URLParam(r, "businessID"),
		Period:     chi.URLParam(r, "period"),
	}
	if err := h.validate.Struct(params); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "business id must be a UUID and period must be YYYY-MM")
		return uuid.Nil, time.Time{}, false
	}
	businessID, err := uuid.Parse(params.BusinessID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid business id")
		return uuid.Nil, time.Time{}, false
	}
	period, err := shared.ParseMonth(params.Period)
	if err != nil {
		httpx.RespondError(w, err)
		return uuid.Nil, time.Time{}, false
	}
	return businessID, period, true
}

package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"equitrail/internal/audit"
	dErrors "equitrail/pkg/domain-errors"
	"equitrail/pkg/platform/httputil"
	"equitrail/pkg/requestcontext"
)

// defaultLimit is applied when the caller does not pass ?limit.
const defaultLimit = 100

// Handler serves the admin audit read surface.
type Handler struct {
	store  audit.Store
	logger *slog.Logger
}

// New constructs an audit handler with its dependencies.
func New(store audit.Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/audit/stats", h.HandleStats)
	r.Get("/admin/audit/recent", h.HandleRecent)
	r.Get("/admin/audit/companies/{id}", h.trailHandler(audit.TargetCompany))
	r.Get("/admin/audit/investors/{id}", h.trailHandler(audit.TargetUser))
	r.Get("/admin/audit/investments/{id}", h.trailHandler(audit.TargetInvestment))
}

// HandleStats handles GET /admin/audit/stats requests.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.store.Stats(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit stats query failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "load audit stats"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// HandleRecent handles GET /admin/audit/recent requests.
func (h *Handler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, err := limitParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.store.ListRecent(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit recent query failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "load recent entries"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, trailResponse{Entries: entries, Count: len(entries)})
}

// trailHandler builds the per-entity trail endpoint for one target type.
func (h *Handler) trailHandler(targetType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		rawID := chi.URLParam(r, "id")
		if _, err := uuid.Parse(rawID); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "id must be a UUID"))
			return
		}

		limit, err := limitParam(r)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}

		entries, err := h.store.ListByTarget(ctx, targetType, rawID, limit)
		if err != nil {
			h.logger.ErrorContext(ctx, "audit trail query failed",
				"request_id", requestcontext.RequestID(ctx),
				"target_type", targetType,
				"target_id", rawID,
				"error", err,
			)
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "load audit trail"))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, trailResponse{Entries: entries, Count: len(entries)})
	}
}

type trailResponse struct {
	Entries []audit.Entry `json:"entries"`
	Count   int           `json:"count"`
}

func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer")
	}
	return limit, nil
}

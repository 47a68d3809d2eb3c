package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"equitrail/internal/snapshot"
	id "equitrail/pkg/domain"
	dErrors "equitrail/pkg/domain-errors"
	"equitrail/pkg/platform/httputil"
	"equitrail/pkg/requestcontext"
)

// Service defines the interface for snapshot operations.
type Service interface {
	Capture(ctx context.Context, investmentID id.InvestmentID, state snapshot.State) (*snapshot.Snapshot, error)
	Compare(ctx context.Context, investmentID id.InvestmentID) (*snapshot.Comparison, error)
}

// Handler serves snapshot comparison requests.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a snapshot handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts snapshot endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/investments/{id}/snapshot", h.HandleCapture)
	r.Get("/investments/{id}/snapshot-comparison", h.HandleComparison)
}

// HandleCapture handles POST /investments/{id}/snapshot. The purchase flow
// calls it once at investment time; later calls refresh the live side of the
// comparison.
func (h *Handler) HandleCapture(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	investmentID, err := id.ParseInvestmentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "id must be a UUID"))
		return
	}

	var state snapshot.State
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "body must be a state document"))
		return
	}

	snap, err := h.service.Capture(ctx, investmentID, state)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "snapshot capture failed",
				"request_id", requestcontext.RequestID(ctx),
				"investment_id", investmentID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, snap)
}

// HandleComparison handles GET /investments/{id}/snapshot-comparison.
func (h *Handler) HandleComparison(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	investmentID, err := id.ParseInvestmentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "id must be a UUID"))
		return
	}

	comparison, err := h.service.Compare(ctx, investmentID)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "snapshot comparison failed",
				"request_id", requestcontext.RequestID(ctx),
				"investment_id", investmentID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, comparison)
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"badgegate/internal/people"
	dErrors "badgegate/pkg/domain-errors"
	"badgegate/pkg/platform/httputil"
	"badgegate/pkg/requestcontext"
)

// Service resolves badge scans and lists registered people.
type Service interface {
	Resolve(ctx context.Context, badgeID string) (people.Person, error)
	List(ctx context.Context) ([]people.Person, error)
}

// PersonResponse is the wire form of a registered person.
type PersonResponse struct {
	ID       uuid.UUID `json:"id"`
	BadgeID  string    `json:"badgeId"`
	FullName string    `json:"fullName"`
	Role     string    `json:"role"`
	Active   bool      `json:"active"`
}

func toPersonResponse(p people.Person) PersonResponse {
	return PersonResponse{
		ID:       p.ID,
		BadgeID:  p.BadgeID,
		FullName: p.FullName,
		Role:     p.Role,
		Active:   p.Active,
	}
}

// Handler serves the people endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a people Handler.
func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register registers the people routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/people", h.handleListPeople)
	r.Get("/api/people/", h.handleGetPerson)
	r.Get("/api/people/{badgeId}", h.handleGetPerson)
}

// handleGetPerson resolves one badge scan. Every successful resolution emits an
// access event, whether access is granted or denied.
func (h *Handler) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	badgeID, err := badgeIDParam(r)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed badge id"))
		return
	}
	if err := people.ValidateBadgeID(badgeID); err != nil {
		h.logger.WarnContext(ctx, "rejected badge id",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	person, err := h.service.Resolve(ctx, badgeID)
	if err != nil && ctx.Err() != nil {
		// client is gone; nobody reads the response
		h.logger.InfoContext(ctx, "badge scan abandoned by client",
			"request_id", requestID,
			"badge_id", badgeID,
			"error", err.Error(),
		)
		return
	}
	if err != nil {
		h.logResolveError(ctx, requestID, badgeID, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toPersonResponse(person))
}

// badgeIDParam returns the badge id decoded exactly once. chi matches against
// r.URL.RawPath when it is set (the path held an escaped '/' or similar) and
// against the already decoded r.URL.Path otherwise.
func badgeIDParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "badgeId")
	if r.URL.RawPath == "" {
		return raw, nil
	}
	return url.PathUnescape(raw)
}

func (h *Handler) handleListPeople(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	all, err := h.service.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list people",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	resp := make([]PersonResponse, 0, len(all))
	for _, p := range all {
		resp = append(resp, toPersonResponse(p))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) logResolveError(ctx context.Context, requestID, badgeID string, err error) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeNotFound:
		h.logger.InfoContext(ctx, "badge not registered",
			"request_id", requestID,
			"badge_id", badgeID,
		)
	case dErrors.CodeBadRequest, dErrors.CodeValidation:
		h.logger.WarnContext(ctx, "rejected badge id",
			"request_id", requestID,
			"error", err.Error(),
		)
	default:
		h.logger.ErrorContext(ctx, "failed to resolve badge",
			"request_id", requestID,
			"badge_id", badgeID,
			"error", err.Error(),
		)
	}
}

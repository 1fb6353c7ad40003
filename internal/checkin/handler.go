package checkin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fkhayef/eventcheckin/pkg/middleware"
	"github.com/fkhayef/eventcheckin/pkg/request"
	"github.com/fkhayef/eventcheckin/pkg/response"
)

// Handler handles HTTP requests for check-ins
type Handler struct {
	service *Service
	authn   func(http.Handler) http.Handler
	logger  *zap.Logger
}

// NewHandler creates a new check-in handler
func NewHandler(service *Service, authn func(http.Handler) http.Handler, logger *zap.Logger) *Handler {
	return &Handler{service: service, authn: authn, logger: logger}
}

// Routes returns the router for check-in endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.authn)

	r.With(middleware.AllowManager).Get("/", h.List)
	r.With(middleware.AllowManager).Put("/{id}/approve", h.Approve)
	r.With(middleware.AllowManager).Put("/{id}/reject", h.Reject)

	r.With(middleware.AllowStudent).Get("/of-user", h.Mine)
	r.With(middleware.AllowStudent).Post("/of-event/{eventId}", h.Checkin)

	return r
}

// Checkin handles POST /checkins/of-event/{eventId}
// @Summary      Check in to an event
// @Description  Uploads an attendance photo. Fails when not registered, blocked, out of attempts, or a previous attempt is pending or accepted.
// @Tags         checkins
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        eventId path int true "Event ID"
// @Param        file formData file true "JPEG image"
// @Success      201 {object} response.APIResponse{data=CheckinResponse}
// @Failure      404 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /checkins/of-event/{eventId} [post]
func (h *Handler) Checkin(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	eventID, err := request.URLInt64(r, "eventId")
	if err != nil {
		response.BadRequest(w, "Invalid event ID")
		return
	}

	data, err := request.File(w, r, "file", int64(h.service.opts.ImageLimitKB)*1024)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	c, err := h.service.Checkin(r.Context(), userID, eventID, data)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to check in")
		return
	}

	response.JSON(w, http.StatusCreated, c.ToResponse())
}

// List handles GET /checkins
// @Summary      List check-ins
// @Tags         checkins
// @Produce      json
// @Security     BearerAuth
// @Param        user_id query int false "User ID"
// @Param        event_id query int false "Event ID"
// @Param        status query string false "PENDING, APPROVED or REJECTED"
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]CheckinResponse}
// @Router       /checkins [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	if filter.UserID, ok = queryID(w, r, "user_id"); !ok {
		return
	}
	h.list(w, r, filter)
}

// Mine handles GET /checkins/of-user
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	filter.UserID = &userID
	h.list(w, r, filter)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, filter Filter) {
	page, perPage := response.PageParams(r)

	items, total, err := h.service.List(r.Context(), filter, page, perPage)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to list check-ins")
		return
	}

	response.JSONWithMeta(w, http.StatusOK, toResponses(items), response.NewMeta(page, perPage, total))
}

func parseFilter(w http.ResponseWriter, r *http.Request) (Filter, bool) {
	var filter Filter
	var ok bool
	if filter.EventID, ok = queryID(w, r, "event_id"); !ok {
		return filter, false
	}
	if filter.State, ok = parseStatus(r.URL.Query().Get("status")); !ok {
		response.BadRequest(w, "Invalid status")
		return filter, false
	}
	return filter, true
}

func queryID(w http.ResponseWriter, r *http.Request, name string) (*int64, bool) {
	v, err := request.QueryInt64(r, name)
	if err != nil {
		response.BadRequest(w, "Invalid "+name)
		return nil, false
	}
	return v, true
}

// Approve handles PUT /checkins/{id}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.Approve)
}

// Reject handles PUT /checkins/{id}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.Reject)
}

type reviewFunc func(ctx context.Context, id int64, score *float64) (*CheckinImage, error)

func (h *Handler) review(w http.ResponseWriter, r *http.Request, fn reviewFunc) {
	id, err := request.URLInt64(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid check-in ID")
		return
	}

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid request body")
		return
	}

	c, err := fn(r.Context(), id, req.Score)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to review check-in")
		return
	}

	response.JSON(w, http.StatusOK, c.ToResponse())
}

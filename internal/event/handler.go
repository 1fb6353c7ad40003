package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fkhayef/eventcheckin/pkg/middleware"
	"github.com/fkhayef/eventcheckin/pkg/request"
	"github.com/fkhayef/eventcheckin/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler handles HTTP requests for events and registrations
type Handler struct {
	service *Service
	authn   func(http.Handler) http.Handler
	logger  *zap.Logger
}

// NewHandler creates a new event handler
func NewHandler(service *Service, authn func(http.Handler) http.Handler, logger *zap.Logger) *Handler {
	return &Handler{service: service, authn: authn, logger: logger}
}

// Routes returns the router for event endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.authn)

	r.With(middleware.AllowAnyRole).Get("/", h.List)
	r.With(middleware.AllowStudent).Get("/of-user", h.MyEvents)
	r.With(middleware.AllowManager).Get("/of-user/{userId}", h.EventsOfUser)
	r.With(middleware.AllowManager).Post("/", h.Create)

	r.Route("/{id}", func(r chi.Router) {
		r.With(middleware.AllowAnyRole).Get("/", h.GetByID)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AllowStudent)
			r.Get("/register-status", h.RegisterStatus)
			r.Post("/register", h.Register)
			r.Put("/unregister", h.Unregister)
			r.Put("/feedback", h.Feedback)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.AllowManager)
			r.Put("/", h.Update)
			r.Delete("/", h.Delete)
			r.Get("/participants", h.Participants)
			r.Get("/participants/export", h.Export)
			r.Post("/register/{userId}", h.AddParticipant)
			r.Put("/unregister/{userId}", h.RemoveParticipant)
			r.Put("/block/{userId}", h.Block)
			r.Put("/limit-groups/{groupId}", h.AddLimitGroup)
			r.Delete("/limit-groups/{groupId}", h.RemoveLimitGroup)
		})
	})

	return r
}

func eventID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := request.URLInt64(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid event ID")
		return 0, false
	}
	return id, true
}

func eventAndParam(w http.ResponseWriter, r *http.Request, param, label string) (int64, int64, bool) {
	id, ok := eventID(w, r)
	if !ok {
		return 0, 0, false
	}
	other, err := request.URLInt64(r, param)
	if err != nil {
		response.BadRequest(w, "Invalid "+label+" ID")
		return 0, 0, false
	}
	return id, other, true
}

// decodeOptional decodes an optional JSON body; an empty body is allowed
func decodeOptional(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Create handles POST /events
// @Summary      Create an event
// @Tags         events
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateEventRequest true "Event"
// @Success      201 {object} response.APIResponse{data=EventResponse}
// @Failure      422 {object} response.APIResponse
// @Router       /events [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	managerID, _ := middleware.GetUserID(r.Context())

	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	e, err := h.service.Create(r.Context(), managerID, &req)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to create event")
		return
	}

	response.JSON(w, http.StatusCreated, e.ToResponse())
}

// GetByID handles GET /events/{id}
// @Summary      Get an event
// @Tags         events
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Event ID"
// @Success      200 {object} response.APIResponse{data=EventDetailResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /events/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := eventID(w, r)
	if !ok {
		return
	}

	v, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to get event")
		return
	}

	response.JSON(w, http.StatusOK, v.ToResponse())
}

// List handles GET /events
// @Summary      Search events
// @Tags         events
// @Produce      json
// @Security     BearerAuth
// @Param        keyword query string false "Matches title or place"
// @Param        from query string false "Starts at or after (RFC3339 or YYYY-MM-DD)"
// @Param        to query string false "Starts at or before (RFC3339 or YYYY-MM-DD)"
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]EventResponse}
// @Router       /events [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := response.PageParams(r)

	filter := Filter{Keyword: r.URL.Query().Get("keyword")}
	var err error
	if filter.From, err = request.QueryTime(r, "from"); err != nil {
		response.BadRequest(w, "Invalid from date")
		return
	}
	if filter.To, err = request.QueryTime(r, "to"); err != nil {
		response.BadRequest(w, "Invalid to date")
		return
	}

	events, total, err := h.service.Search(r.Context(), filter, page, perPage)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to list events")
		return
	}

	out := make([]*EventResponse, len(events))
	for i, e := range events {
		out[i] = e.ToResponse()
	}

	response.JSONWithMeta(w, http.StatusOK, out, response.NewMeta(page, perPage, total))
}

// Update handles PUT /events/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := eventID(w, r)
	if !ok {
		return
	}

	var req UpdateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	e, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to update event")
		return
	}

	response.JSON(w, http.StatusOK, e.ToResponse())
}

// Delete handles DELETE /events/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := eventID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		response.Fail(w, h.logger, err, "Failed to delete event")
		return
	}

	response.Message(w, "Event deleted successfully")
}

// MyEvents handles GET /events/of-user
func (h *Handler) MyEvents(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	h.registrationsOf(w, r, userID)
}

// EventsOfUser handles GET /events/of-user/{userId}
func (h *Handler) EventsOfUser(w http.ResponseWriter, r *http.Request) {
	userID, err := request.URLInt64(r, "userId")
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}
	h.registrationsOf(w, r, userID)
}

func (h *Handler) registrationsOf(w http.ResponseWriter, r *http.Request, userID int64) {
	eventFilter, err := request.QueryInt64(r, "event_id")
	if err != nil {
		response.BadRequest(w, "Invalid event ID")
		return
	}

	regs, err := h.service.RegistrationsOfUser(r.Context(), userID, eventFilter)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to list events")
		return
	}

	response.JSON(w, http.StatusOK, registrationResponses(regs))
}

// RegisterStatus handles GET /events/{id}/register-status
func (h *Handler) RegisterStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	id, ok := eventID(w, r)
	if !ok {
		return
	}

	reg, err := h.service.RegisterStatus(r.Context(), id, userID)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to get registration")
		return
	}

	response.JSON(w, http.StatusOK, reg.ToResponse())
}

// Participants handles GET /events/{id}/participants
func (h *Handler) Participants(w http.ResponseWriter, r *http.Request) {
	id, ok := eventID(w, r)
	if !ok {
		return
	}

	regs, err := h.service.Participants(r.Context(), id)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to list participants")
		return
	}

	response.JSON(w, http.StatusOK, registrationResponses(regs))
}

// Export handles GET /events/{id}/participants/export
// @Summary      Export participants
// @Tags         events
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security     BearerAuth
// @Param        id path int true "Event ID"
// @Success      200 {file} file
// @Failure      404 {object} response.APIResponse
// @Router       /events/{id}/participants/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	id, ok := eventID(w, r)
	if !ok {
		return
	}

	e, data, err := h.service.ExportParticipants(r.Context(), id)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to export participants")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="event_%d_participants.xlsx"`, e.ID))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("failed to write export", zap.Int64("event_id", id), zap.Error(err))
	}
}

// Register handles POST /events/{id}/register
// @Summary      Register for an event
// @Tags         events
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Event ID"
// @Success      201 {object} response.APIResponse{data=RegistrationResponse}
// @Failure      404 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /events/{id}/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	id, ok := eventID(w, r)
	if !ok {
		return
	}

	reg, err := h.service.Register(r.Context(), id, userID, nil, nil)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to register")
		return
	}

	response.JSON(w, http.StatusCreated, reg.ToResponse())
}

// AddParticipant handles POST /events/{id}/register/{userId}
func (h *Handler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	managerID, _ := middleware.GetUserID(r.Context())
	id, userID, ok := eventAndParam(w, r, "userId", "user")
	if !ok {
		return
	}

	var req NoteRequest
	if err := decodeOptional(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	reg, err := h.service.Register(r.Context(), id, userID, &managerID, req.Note)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to register participant")
		return
	}

	response.JSON(w, http.StatusCreated, reg.ToResponse())
}

// Unregister handles PUT /events/{id}/unregister
func (h *Handler) Unregister(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	id, ok := eventID(w, r)
	if !ok {
		return
	}

	if err := h.service.Unregister(r.Context(), id, userID); err != nil {
		response.Fail(w, h.logger, err, "Failed to unregister")
		return
	}

	response.Message(w, "Unregistered successfully")
}

// RemoveParticipant handles PUT /events/{id}/unregister/{userId}
func (h *Handler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	id, userID, ok := eventAndParam(w, r, "userId", "user")
	if !ok {
		return
	}

	if err := h.service.Unregister(r.Context(), id, userID); err != nil {
		response.Fail(w, h.logger, err, "Failed to unregister participant")
		return
	}

	response.Message(w, "Participant unregistered successfully")
}

// Feedback handles PUT /events/{id}/feedback
func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	id, ok := eventID(w, r)
	if !ok {
		return
	}

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.service.Feedback(r.Context(), id, userID, req.Content); err != nil {
		response.Fail(w, h.logger, err, "Failed to send feedback")
		return
	}

	response.Message(w, "Feedback sent successfully")
}

// Block handles PUT /events/{id}/block/{userId}
// @Summary      Block a participant
// @Description  Creates the registration when missing; eligibility rules do not apply
// @Tags         events
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Event ID"
// @Param        userId path int true "User ID"
// @Param        request body NoteRequest false "Reason"
// @Success      200 {object} response.APIResponse{data=RegistrationResponse}
// @Router       /events/{id}/block/{userId} [put]
func (h *Handler) Block(w http.ResponseWriter, r *http.Request) {
	id, userID, ok := eventAndParam(w, r, "userId", "user")
	if !ok {
		return
	}

	var req NoteRequest
	if err := decodeOptional(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	reg, err := h.service.Block(r.Context(), id, userID, req.Note)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to block participant")
		return
	}

	response.JSON(w, http.StatusOK, reg.ToResponse())
}

// AddLimitGroup handles PUT /events/{id}/limit-groups/{groupId}
func (h *Handler) AddLimitGroup(w http.ResponseWriter, r *http.Request) {
	id, groupID, ok := eventAndParam(w, r, "groupId", "group")
	if !ok {
		return
	}

	if err := h.service.AddLimitGroup(r.Context(), id, groupID); err != nil {
		response.Fail(w, h.logger, err, "Failed to add limit group")
		return
	}

	response.Message(w, "Limit group added successfully")
}

// RemoveLimitGroup handles DELETE /events/{id}/limit-groups/{groupId}
func (h *Handler) RemoveLimitGroup(w http.ResponseWriter, r *http.Request) {
	id, groupID, ok := eventAndParam(w, r, "groupId", "group")
	if !ok {
		return
	}

	if err := h.service.RemoveLimitGroup(r.Context(), id, groupID); err != nil {
		response.Fail(w, h.logger, err, "Failed to remove limit group")
		return
	}

	response.Message(w, "Limit group removed successfully")
}

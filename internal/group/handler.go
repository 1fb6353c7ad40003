package group

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fkhayef/eventcheckin/pkg/approval"
	"github.com/fkhayef/eventcheckin/pkg/middleware"
	"github.com/fkhayef/eventcheckin/pkg/request"
	"github.com/fkhayef/eventcheckin/pkg/response"
)

// Handler handles HTTP requests for groups and memberships
type Handler struct {
	service *Service
	authn   func(http.Handler) http.Handler
	logger  *zap.Logger
}

// NewHandler creates a new group handler
func NewHandler(service *Service, authn func(http.Handler) http.Handler, logger *zap.Logger) *Handler {
	return &Handler{service: service, authn: authn, logger: logger}
}

// Routes returns the router for group endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.authn)

	r.With(middleware.AllowAnyRole).Get("/", h.List)
	r.With(middleware.AllowStudent).Get("/joined", h.Joined)
	r.With(middleware.AllowManager).Get("/of-user/{userId}", h.OfUser)
	r.With(middleware.AllowManager).Post("/", h.Create)

	r.Route("/{id}", func(r chi.Router) {
		r.With(middleware.AllowAnyRole).Get("/", h.GetByID)
		r.With(middleware.AllowManager).Put("/", h.Update)
		r.With(middleware.AllowManager).Delete("/", h.Delete)

		r.With(middleware.AllowStudent).Post("/join", h.Join)
		r.With(middleware.AllowStudent).Put("/leave", h.Leave)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AllowManager)
			r.Get("/members", h.Members)
			r.Post("/members/{userId}", h.AddMember)
			r.Put("/members/{userId}/approve", h.Approve)
			r.Put("/members/{userId}/reject", h.Reject)
			r.Delete("/members/{userId}", h.RemoveMember)
		})
	})

	return r
}

func membershipResponses(ms []*Membership) []*MemberResponse {
	out := make([]*MemberResponse, len(ms))
	for i, m := range ms {
		out[i] = m.ToResponse()
	}
	return out
}

// groupAndUser parses the {id} and {userId} path parameters
func groupAndUser(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	groupID, err := request.URLInt64(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return 0, 0, false
	}
	userID, err := request.URLInt64(r, "userId")
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return 0, 0, false
	}
	return groupID, userID, true
}

// Create handles POST /groups
// @Summary      Create a group
// @Tags         groups
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateGroupRequest true "Group"
// @Success      201 {object} response.APIResponse{data=GroupResponse}
// @Failure      422 {object} response.APIResponse
// @Router       /groups [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	g, err := h.service.Create(r.Context(), &req)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to create group")
		return
	}

	response.JSON(w, http.StatusCreated, g.ToResponse())
}

// GetByID handles GET /groups/{id}
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := request.URLInt64(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	g, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to get group")
		return
	}

	response.JSON(w, http.StatusOK, g.ToResponse())
}

// List handles GET /groups
// @Summary      Search groups
// @Tags         groups
// @Produce      json
// @Security     BearerAuth
// @Param        keyword query string false "Name filter"
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]GroupResponse}
// @Router       /groups [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := response.PageParams(r)

	groups, total, err := h.service.Search(r.Context(), r.URL.Query().Get("keyword"), page, perPage)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to list groups")
		return
	}

	out := make([]*GroupResponse, len(groups))
	for i, g := range groups {
		out[i] = g.ToResponse()
	}

	response.JSONWithMeta(w, http.StatusOK, out, response.NewMeta(page, perPage, total))
}

// Update handles PUT /groups/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.URLInt64(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	var req UpdateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	g, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to update group")
		return
	}

	response.JSON(w, http.StatusOK, g.ToResponse())
}

// Delete handles DELETE /groups/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.URLInt64(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		response.Fail(w, h.logger, err, "Failed to delete group")
		return
	}

	response.Message(w, "Group deleted successfully")
}

// Joined handles GET /groups/joined
func (h *Handler) Joined(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	ms, err := h.service.GroupsOfUser(r.Context(), userID)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to list groups")
		return
	}

	response.JSON(w, http.StatusOK, membershipResponses(ms))
}

// OfUser handles GET /groups/of-user/{userId}
func (h *Handler) OfUser(w http.ResponseWriter, r *http.Request) {
	userID, err := request.URLInt64(r, "userId")
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	ms, err := h.service.GroupsOfUser(r.Context(), userID)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to list groups")
		return
	}

	response.JSON(w, http.StatusOK, membershipResponses(ms))
}

// Members handles GET /groups/{id}/members
func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	id, err := request.URLInt64(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	ms, err := h.service.Members(r.Context(), id)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to list members")
		return
	}

	response.JSON(w, http.StatusOK, membershipResponses(ms))
}

// Join handles POST /groups/{id}/join
// @Summary      Join a group
// @Description  Approval-required groups leave the membership pending
// @Tags         groups
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Group ID"
// @Success      201 {object} response.APIResponse{data=MemberResponse}
// @Failure      404 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /groups/{id}/join [post]
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	groupID, err := request.URLInt64(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	m, err := h.service.Join(r.Context(), groupID, userID, nil, approval.Pending)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to join group")
		return
	}

	response.JSON(w, http.StatusCreated, m.ToResponse())
}

// Leave handles PUT /groups/{id}/leave
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	groupID, err := request.URLInt64(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	if err := h.service.Remove(r.Context(), groupID, userID); err != nil {
		response.Fail(w, h.logger, err, "Failed to leave group")
		return
	}

	response.Message(w, "Left group successfully")
}

// AddMember handles POST /groups/{id}/members/{userId}
// @Summary      Add a student to a group
// @Tags         groups
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Group ID"
// @Param        userId path int true "User ID"
// @Param        request body AddMemberRequest false "Initial approval, defaults to true"
// @Success      201 {object} response.APIResponse{data=MemberResponse}
// @Failure      422 {object} response.APIResponse
// @Router       /groups/{id}/members/{userId} [post]
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	managerID, _ := middleware.GetUserID(r.Context())
	groupID, userID, ok := groupAndUser(w, r)
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid request body")
		return
	}

	m, err := h.service.Join(r.Context(), groupID, userID, &managerID, req.State())
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to add member")
		return
	}

	response.JSON(w, http.StatusCreated, m.ToResponse())
}

// Approve handles PUT /groups/{id}/members/{userId}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	groupID, userID, ok := groupAndUser(w, r)
	if !ok {
		return
	}

	if err := h.service.Approve(r.Context(), groupID, userID); err != nil {
		response.Fail(w, h.logger, err, "Failed to approve member")
		return
	}

	response.Message(w, "Member approved successfully")
}

// Reject handles PUT /groups/{id}/members/{userId}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	groupID, userID, ok := groupAndUser(w, r)
	if !ok {
		return
	}

	if err := h.service.Reject(r.Context(), groupID, userID); err != nil {
		response.Fail(w, h.logger, err, "Failed to reject member")
		return
	}

	response.Message(w, "Member rejected successfully")
}

// RemoveMember handles DELETE /groups/{id}/members/{userId}
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	groupID, userID, ok := groupAndUser(w, r)
	if !ok {
		return
	}

	if err := h.service.Remove(r.Context(), groupID, userID); err != nil {
		response.Fail(w, h.logger, err, "Failed to remove member")
		return
	}

	response.Message(w, "Member removed successfully")
}

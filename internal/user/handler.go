package user

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fkhayef/eventcheckin/pkg/middleware"
	"github.com/fkhayef/eventcheckin/pkg/request"
	"github.com/fkhayef/eventcheckin/pkg/response"
)

// Handler handles HTTP requests for student accounts
type Handler struct {
	service     *Service
	authn       func(http.Handler) http.Handler
	avatarLimit int64
	logger      *zap.Logger
}

// NewHandler creates a new user handler with service dependency injected
func NewHandler(service *Service, authn func(http.Handler) http.Handler, logger *zap.Logger) *Handler {
	return &Handler{
		service:     service,
		authn:       authn,
		avatarLimit: int64(service.avatars.LimitKB) * 1024,
		logger:      logger,
	}
}

// Routes returns the router for user endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)

	r.Group(func(r chi.Router) {
		r.Use(h.authn)

		r.With(middleware.AllowStudent).Get("/profile", h.Profile)
		r.With(middleware.AllowStudent).Put("/", h.UpdateProfile)
		r.With(middleware.AllowStudent).Put("/change-password", h.ChangePassword)
		r.With(middleware.AllowStudent).Put("/update-avatar", h.UpdateAvatar)

		r.With(middleware.AllowManager).Get("/", h.List)
		r.With(middleware.AllowManager).Get("/{id}", h.GetByID)
		r.With(middleware.AllowManager).Put("/{id}", h.Update)
		r.With(middleware.AllowManager).Put("/{id}/change-password", h.SetPassword)
		r.With(middleware.AllowAdmin).Delete("/{id}", h.Delete)
	})

	return r
}

// Create handles POST /users
// @Summary      Sign up
// @Description  Create a student account
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body CreateUserRequest true "User creation request"
// @Success      201 {object} response.APIResponse{data=UserResponse}
// @Failure      422 {object} response.APIResponse
// @Router       /users [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	u, err := h.service.Create(r.Context(), &req)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to create user")
		return
	}

	response.JSON(w, http.StatusCreated, u.ToResponse())
}

// Profile handles GET /users/profile
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	u, err := h.service.GetByID(r.Context(), userID)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to get profile")
		return
	}

	response.JSON(w, http.StatusOK, u.ToResponse())
}

// GetByID handles GET /users/{id}
// @Summary      Get user by ID
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "User ID"
// @Success      200 {object} response.APIResponse{data=UserResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /users/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	u, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to get user")
		return
	}

	response.JSON(w, http.StatusOK, u.ToResponse())
}

// List handles GET /users
// @Summary      Search users
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        keyword query string false "Matches fullname, username, student ID or phone"
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]UserResponse}
// @Router       /users [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := response.PageParams(r)

	users, total, err := h.service.Search(r.Context(), r.URL.Query().Get("keyword"), page, perPage)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to list users")
		return
	}

	userResponses := make([]*UserResponse, len(users))
	for i, u := range users {
		userResponses[i] = u.ToResponse()
	}

	response.JSONWithMeta(w, http.StatusOK, userResponses, response.NewMeta(page, perPage, total))
}

// UpdateProfile handles PUT /users
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	u, err := h.service.Update(r.Context(), userID, &ManagerUpdateUserRequest{UpdateUserRequest: req})
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to update profile")
		return
	}

	response.JSON(w, http.StatusOK, u.ToResponse())
}

// Update handles PUT /users/{id}
// @Summary      Update a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "User ID"
// @Param        request body ManagerUpdateUserRequest true "Fields to change"
// @Success      200 {object} response.APIResponse{data=UserResponse}
// @Failure      404 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /users/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.URLInt64(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	var req ManagerUpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	u, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to update user")
		return
	}

	response.JSON(w, http.StatusOK, u.ToResponse())
}

// ChangePassword handles PUT /users/change-password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.service.ChangePassword(r.Context(), userID, &req); err != nil {
		response.Fail(w, h.logger, err, "Failed to change password")
		return
	}

	response.Message(w, "Password changed successfully")
}

// SetPassword handles PUT /users/{id}/change-password
func (h *Handler) SetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := request.URLInt64(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	var req SetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.service.SetPassword(r.Context(), id, req.NewPassword); err != nil {
		response.Fail(w, h.logger, err, "Failed to change password")
		return
	}

	response.Message(w, "Password changed successfully")
}

// UpdateAvatar handles PUT /users/update-avatar
// @Summary      Upload avatar
// @Tags         users
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file formData file true "JPEG image"
// @Success      200 {object} response.APIResponse{data=AvatarResponse}
// @Failure      422 {object} response.APIResponse
// @Router       /users/update-avatar [put]
func (h *Handler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	data, err := request.File(w, r, "file", h.avatarLimit)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	url, err := h.service.UpdateAvatar(r.Context(), userID, data)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to update avatar")
		return
	}

	response.JSON(w, http.StatusOK, &AvatarResponse{URL: url})
}

// Delete handles DELETE /users/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.URLInt64(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		response.Fail(w, h.logger, err, "Failed to delete user")
		return
	}

	response.Message(w, "User deleted successfully")
}

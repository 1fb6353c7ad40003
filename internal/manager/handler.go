package manager

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fkhayef/eventcheckin/pkg/middleware"
	"github.com/fkhayef/eventcheckin/pkg/request"
	"github.com/fkhayef/eventcheckin/pkg/response"
)

// Handler handles HTTP requests for manager accounts
type Handler struct {
	service *Service
	authn   func(http.Handler) http.Handler
	logger  *zap.Logger
}

// NewHandler creates a new manager handler
func NewHandler(service *Service, authn func(http.Handler) http.Handler, logger *zap.Logger) *Handler {
	return &Handler{service: service, authn: authn, logger: logger}
}

// Routes returns the router for manager endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.authn)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AllowManager)
		r.Get("/profile", h.Profile)
		r.Put("/", h.UpdateProfile)
		r.Put("/change-password", h.ChangePassword)
		r.Put("/update-avatar", h.UpdateAvatar)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.AllowAdmin)
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.GetByID)
		r.Put("/{id}", h.Update)
		r.Put("/{id}/change-password", h.SetPassword)
	})

	return r
}

// Create handles POST /managers
// @Summary      Create a manager
// @Tags         managers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateManagerRequest true "Manager creation request"
// @Success      201 {object} response.APIResponse{data=ManagerResponse}
// @Failure      422 {object} response.APIResponse
// @Router       /managers [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateManagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	m, err := h.service.Create(r.Context(), &req)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to create manager")
		return
	}

	response.JSON(w, http.StatusCreated, m.ToResponse())
}

// Profile handles GET /managers/profile
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.GetUserID(r.Context())

	m, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to get profile")
		return
	}

	response.JSON(w, http.StatusOK, m.ToResponse())
}

// GetByID handles GET /managers/{id}
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := request.URLInt64(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid manager ID")
		return
	}

	m, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to get manager")
		return
	}

	response.JSON(w, http.StatusOK, m.ToResponse())
}

// List handles GET /managers
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := response.PageParams(r)

	managers, total, err := h.service.Search(r.Context(), r.URL.Query().Get("keyword"), page, perPage)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to list managers")
		return
	}

	out := make([]*ManagerResponse, len(managers))
	for i, m := range managers {
		out[i] = m.ToResponse()
	}

	response.JSONWithMeta(w, http.StatusOK, out, response.NewMeta(page, perPage, total))
}

// UpdateProfile handles PUT /managers
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetPrincipal(r.Context())
	h.update(w, r, actor, actor.ID)
}

// Update handles PUT /managers/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetPrincipal(r.Context())
	id, err := request.URLInt64(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid manager ID")
		return
	}
	h.update(w, r, actor, id)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, actor middleware.Principal, id int64) {
	var req UpdateManagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	m, err := h.service.Update(r.Context(), actor, id, &req)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to update manager")
		return
	}

	response.JSON(w, http.StatusOK, m.ToResponse())
}

// ChangePassword handles PUT /managers/change-password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.GetUserID(r.Context())

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.service.ChangePassword(r.Context(), id, &req); err != nil {
		response.Fail(w, h.logger, err, "Failed to change password")
		return
	}

	response.Message(w, "Password changed successfully")
}

// SetPassword handles PUT /managers/{id}/change-password
func (h *Handler) SetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := request.URLInt64(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid manager ID")
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

// UpdateAvatar handles PUT /managers/update-avatar
func (h *Handler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.GetUserID(r.Context())

	data, err := request.File(w, r, "file", int64(h.service.avatars.LimitKB)*1024)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	url, err := h.service.UpdateAvatar(r.Context(), id, data)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to update avatar")
		return
	}

	response.JSON(w, http.StatusOK, &AvatarResponse{URL: url})
}

package location

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fkhayef/eventcheckin/pkg/middleware"
	"github.com/fkhayef/eventcheckin/pkg/request"
	"github.com/fkhayef/eventcheckin/pkg/response"
)

// Handler handles HTTP requests for locations
type Handler struct {
	service *Service
	authn   func(http.Handler) http.Handler
	logger  *zap.Logger
}

// NewHandler creates a new location handler
func NewHandler(service *Service, authn func(http.Handler) http.Handler, logger *zap.Logger) *Handler {
	return &Handler{service: service, authn: authn, logger: logger}
}

// Routes returns the router for location endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.authn)

	r.With(middleware.AllowAnyRole).Get("/", h.List)
	r.With(middleware.AllowAnyRole).Get("/{id}", h.GetByID)
	r.With(middleware.AllowManager).Post("/", h.Create)
	r.With(middleware.AllowManager).Put("/{id}", h.Update)
	r.With(middleware.AllowManager).Delete("/{id}", h.Delete)

	return r
}

// Create handles POST /locations
// @Summary      Create a location
// @Tags         locations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateLocationRequest true "Location"
// @Success      201 {object} response.APIResponse{data=Location}
// @Failure      422 {object} response.APIResponse
// @Router       /locations [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	l, err := h.service.Create(r.Context(), &req)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to create location")
		return
	}

	response.JSON(w, http.StatusCreated, l)
}

// GetByID handles GET /locations/{id}
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := request.URLInt64(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid location ID")
		return
	}

	l, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to get location")
		return
	}

	response.JSON(w, http.StatusOK, l)
}

// List handles GET /locations
// @Summary      Search locations
// @Tags         locations
// @Produce      json
// @Security     BearerAuth
// @Param        keyword query string false "Name filter"
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]Location}
// @Router       /locations [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := response.PageParams(r)

	locations, total, err := h.service.Search(r.Context(), r.URL.Query().Get("keyword"), page, perPage)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to list locations")
		return
	}
	if locations == nil {
		locations = []*Location{}
	}

	response.JSONWithMeta(w, http.StatusOK, locations, response.NewMeta(page, perPage, total))
}

// Update handles PUT /locations/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.URLInt64(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid location ID")
		return
	}

	var req UpdateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	l, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to update location")
		return
	}

	response.JSON(w, http.StatusOK, l)
}

// Delete handles DELETE /locations/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.URLInt64(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid location ID")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		response.Fail(w, h.logger, err, "Failed to delete location")
		return
	}

	response.Message(w, "Location deleted successfully")
}

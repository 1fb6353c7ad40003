package identityimage

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fkhayef/eventcheckin/pkg/middleware"
	"github.com/fkhayef/eventcheckin/pkg/request"
	"github.com/fkhayef/eventcheckin/pkg/response"
)

// Handler handles HTTP requests for identity images
type Handler struct {
	service *Service
	authn   func(http.Handler) http.Handler
	logger  *zap.Logger
}

// NewHandler creates a new identity image handler
func NewHandler(service *Service, authn func(http.Handler) http.Handler, logger *zap.Logger) *Handler {
	return &Handler{service: service, authn: authn, logger: logger}
}

// Routes returns the router for identity image endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.authn)

	r.With(middleware.AllowManager).Get("/", h.List)
	r.With(middleware.AllowStudent).Get("/of-user", h.Mine)
	r.With(middleware.AllowStudent).Post("/", h.Add)

	r.With(middleware.AllowAnyRole).Get("/{id}", h.Read)
	r.With(middleware.AllowAnyRole).Delete("/{id}", h.Remove)
	r.With(middleware.AllowManager).Put("/{id}/approve", h.Approve)
	r.With(middleware.AllowManager).Put("/{id}/reject", h.Reject)

	return r
}

// Add handles POST /identity-images
// @Summary      Upload an identity image
// @Tags         identity-images
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file formData file true "JPEG image"
// @Success      201 {object} response.APIResponse{data=IdentityImageResponse}
// @Failure      422 {object} response.APIResponse
// @Router       /identity-images [post]
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	data, err := request.File(w, r, "file", int64(h.service.limitKB)*1024)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	img, err := h.service.Add(r.Context(), userID, data)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to upload identity image")
		return
	}

	response.JSON(w, http.StatusCreated, img.ToResponse())
}

// List handles GET /identity-images
// @Summary      List identity images
// @Tags         identity-images
// @Produce      json
// @Security     BearerAuth
// @Param        user_id query int false "User ID"
// @Param        from query string false "Uploaded at or after"
// @Param        to query string false "Uploaded at or before"
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]IdentityImageResponse}
// @Router       /identity-images [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var filter Filter
	var err error
	if filter.UserID, err = request.QueryInt64(r, "user_id"); err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}
	if filter.From, err = request.QueryTime(r, "from"); err != nil {
		response.BadRequest(w, "Invalid from date")
		return
	}
	if filter.To, err = request.QueryTime(r, "to"); err != nil {
		response.BadRequest(w, "Invalid to date")
		return
	}
	h.list(w, r, filter)
}

// Mine handles GET /identity-images/of-user
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	h.list(w, r, Filter{UserID: &userID})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, filter Filter) {
	page, perPage := response.PageParams(r)

	items, total, err := h.service.List(r.Context(), filter, page, perPage)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to list identity images")
		return
	}

	response.JSONWithMeta(w, http.StatusOK, toResponses(items), response.NewMeta(page, perPage, total))
}

// Read handles GET /identity-images/{id} and serves the image file
func (h *Handler) Read(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.GetPrincipal(r.Context())
	id, err := request.URLInt64(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid image ID")
		return
	}

	_, data, err := h.service.Read(r.Context(), id, p)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to read identity image")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("failed to write identity image", zap.Int64("image_id", id), zap.Error(err))
	}
}

// Remove handles DELETE /identity-images/{id}
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.GetPrincipal(r.Context())
	id, err := request.URLInt64(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid image ID")
		return
	}

	if err := h.service.Remove(r.Context(), id, p); err != nil {
		response.Fail(w, h.logger, err, "Failed to delete identity image")
		return
	}

	response.Message(w, "Identity image deleted successfully")
}

// Approve handles PUT /identity-images/{id}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.Approve)
}

// Reject handles PUT /identity-images/{id}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.Reject)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id int64) (*IdentityImage, error)) {
	id, err := request.URLInt64(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid image ID")
		return
	}

	img, err := fn(r.Context(), id)
	if err != nil {
		response.Fail(w, h.logger, err, "Failed to review identity image")
		return
	}

	response.JSON(w, http.StatusOK, img.ToResponse())
}

package bike

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"bikerental/internal/middleware"
	"bikerental/internal/pkg/querybuilder"
	"bikerental/internal/pkg/response"
)

type Handler struct {
	service *Service
	debug   bool
}

func NewHandler(service *Service, debug bool) *Handler {
	return &Handler{service: service, debug: debug}
}

func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	bikes := r.Group("/bikes")
	{
		bikes.GET("", h.List)
		bikes.GET("/:id", h.Get)
		bikes.GET("/:id/busy-slots", h.BusySlots)
	}
}

// RegisterOwnerRoutes expects a group already guarded by JWTAuth.
func (h *Handler) RegisterOwnerRoutes(protected *gin.RouterGroup) {
	owner := protected.Group("", middleware.RequireRole("owner", "admin"))
	{
		owner.GET("/owner/bikes", h.ListOwned)
		owner.POST("/bikes", h.Create)
		owner.PUT("/bikes/:id", h.Update)
		owner.DELETE("/bikes/:id", h.Delete)
		owner.POST("/bikes/:id/image", h.UploadImage)
	}
}

// List godoc
// GET /bikes?search=&filters=&sortBy=&order=&page=&limit=&cursor=&select=
func (h *Handler) List(c *gin.Context) {
	params, err := querybuilder.FromValues(c.Request.URL.Query())
	if err != nil {
		response.ListError(c, err, h.debug)
		return
	}
	res, err := h.service.List(c.Request.Context(), params)
	if err != nil {
		response.ListError(c, err, h.debug)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) ListOwned(c *gin.Context) {
	params, err := querybuilder.FromValues(c.Request.URL.Query())
	if err != nil {
		response.ListError(c, err, h.debug)
		return
	}
	res, err := h.service.ListOwned(c.Request.Context(), middleware.UserID(c), params)
	if err != nil {
		response.ListError(c, err, h.debug)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

func (h *Handler) BusySlots(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	from := time.Now().UTC()
	to := from.AddDate(0, 3, 0)
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "from must be RFC3339")
			return
		}
		from = t.UTC()
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "to must be RFC3339")
			return
		}
		to = t.UTC()
	}

	slots, err := h.service.BusySlots(c.Request.Context(), id, from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"bike_id": id, "busy": slots})
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateBikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}
	b, err := h.service.Create(c.Request.Context(), actor(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, b)
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req UpdateBikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}
	b, err := h.service.Update(c.Request.Context(), actor(c), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor(c), id); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": id})
}

func (h *Handler) UploadImage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxImageSize+1<<20)

	fh, err := c.FormFile("image")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "image file is required")
		return
	}
	if fh.Size > MaxImageSize {
		response.Error(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Image exceeds 10MB")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Cannot read image")
		return
	}
	defer f.Close()

	url, err := h.service.UploadImage(c.Request.Context(), actor(c), id, fh.Filename, f)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"id": id, "image_url": url})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Bike not found")
	case errors.Is(err, ErrForbidden):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "Not the owner of this bike")
	case errors.Is(err, ErrValidation):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input")
	case errors.Is(err, ErrInvalidImage):
		response.Error(c, http.StatusBadRequest, "INVALID_IMAGE", "Only JPEG, PNG or WebP images up to 10MB")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func actor(c *gin.Context) Actor {
	return Actor{UserID: middleware.UserID(c), Role: middleware.Role(c)}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid id")
		return 0, false
	}
	return id, true
}

package user

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bikerental/internal/middleware"
	"bikerental/internal/pkg/querybuilder"
	"bikerental/internal/pkg/response"
)

type Handler struct {
	service *Service
	debug   bool
}

// NewHandler creates the user handler. debug exposes raw list query errors.
func NewHandler(service *Service, debug bool) *Handler {
	return &Handler{service: service, debug: debug}
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	me := protected.Group("/users/me")
	{
		me.GET("", h.GetMe)
		me.PUT("", h.UpdateMe)
		me.GET("/addresses", h.ListAddresses)
		me.POST("/addresses", h.AddAddress)
		me.PUT("/addresses/:id/primary", h.SetPrimary)
		me.DELETE("/addresses/:id", h.DeleteAddress)
	}
}

func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.GET("/users", h.ListUsers)
}

func (h *Handler) GetMe(c *gin.Context) {
	u, err := h.service.GetProfile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, u)
}

func (h *Handler) UpdateMe(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	u, err := h.service.UpdateProfile(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, u)
}

func (h *Handler) ListAddresses(c *gin.Context) {
	out, err := h.service.ListAddresses(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, out)
}

func (h *Handler) AddAddress(c *gin.Context) {
	var req AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	a, err := h.service.AddAddress(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, a)
}

func (h *Handler) SetPrimary(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.SetPrimaryAddress(c.Request.Context(), middleware.UserID(c), id); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"id": id, "is_primary": true})
}

func (h *Handler) DeleteAddress(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteAddress(c.Request.Context(), middleware.UserID(c), id); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": id})
}

func (h *Handler) ListUsers(c *gin.Context) {
	params, err := querybuilder.FromValues(c.Request.URL.Query())
	if err != nil {
		response.ListError(c, err, h.debug)
		return
	}
	res, err := h.service.ListUsers(c.Request.Context(), params)
	if err != nil {
		response.ListError(c, err, h.debug)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Not found")
	case errors.Is(err, ErrValidation):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid id")
		return 0, false
	}
	return id, true
}

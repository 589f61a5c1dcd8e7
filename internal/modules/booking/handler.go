package booking

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bikerental/internal/middleware"
	"bikerental/internal/pkg/querybuilder"
	"bikerental/internal/pkg/response"
)

const (
	maxWebhookBody  = 64 << 10
	signatureHeader = "Stripe-Signature"
)

type Handler struct {
	service *Service
	debug   bool
}

// NewHandler creates the booking handler. debug exposes raw list query errors.
func NewHandler(service *Service, debug bool) *Handler {
	return &Handler{service: service, debug: debug}
}

func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/payments/webhook", h.PaymentWebhook)
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	bookings := protected.Group("/bookings")
	{
		bookings.POST("", h.CreateBooking)
		bookings.GET("/my", h.ListMy)
		bookings.GET("/:id", h.GetBooking)
		bookings.GET("/:id/invoice", h.DownloadInvoice)
	}
}

func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.GET("/bookings", h.ListAll)
	admin.POST("/bookings/expire", h.ExpireAbandoned)
	admin.POST("/bookings/:id/confirm", h.ConfirmBooking)
}

func (h *Handler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	res, err := h.service.CreateBooking(c.Request.Context(), req, middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, res)
}

// PaymentWebhook reads the body untouched; the signature covers the raw bytes.
func (h *Handler) PaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Cannot read body")
		return
	}
	if err := h.service.HandlePaymentWebhook(c.Request.Context(), payload, c.GetHeader(signatureHeader)); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"received": true})
}

func (h *Handler) GetBooking(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b, err := h.service.GetBooking(c.Request.Context(), id, middleware.UserID(c), middleware.Role(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

func (h *Handler) ListMy(c *gin.Context) {
	params, err := querybuilder.FromValues(c.Request.URL.Query())
	if err != nil {
		response.ListError(c, err, h.debug)
		return
	}
	res, err := h.service.ListMy(c.Request.Context(), middleware.UserID(c), params)
	if err != nil {
		response.ListError(c, err, h.debug)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) ListAll(c *gin.Context) {
	params, err := querybuilder.FromValues(c.Request.URL.Query())
	if err != nil {
		response.ListError(c, err, h.debug)
		return
	}
	res, err := h.service.ListAll(c.Request.Context(), params)
	if err != nil {
		response.ListError(c, err, h.debug)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) DownloadInvoice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	pdf, filename, err := h.service.DownloadInvoice(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, invoiceContentType, pdf)
}

func (h *Handler) ConfirmBooking(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b, err := h.service.ConfirmBooking(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

func (h *Handler) ExpireAbandoned(c *gin.Context) {
	n, err := h.service.ExpireAbandonedBookings(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"expired": n})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Booking not found")
	case errors.Is(err, ErrConflict):
		response.Error(c, http.StatusConflict, "BOOKING_CONFLICT", ErrConflict.Error())
	case errors.Is(err, ErrNotAvailable):
		response.Error(c, http.StatusConflict, "BIKE_NOT_AVAILABLE", "Bike is not available for booking")
	case errors.Is(err, ErrInvalidState):
		response.Error(c, http.StatusConflict, "INVALID_STATE", ErrInvalidState.Error())
	case errors.Is(err, ErrValidation):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid booking request")
	case errors.Is(err, ErrInvalidAmount):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Total amount must be positive")
	case errors.Is(err, ErrUnauthorized):
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
	case errors.Is(err, ErrForbidden):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "Access denied")
	case errors.Is(err, ErrInvoiceUnavailable):
		response.Error(c, http.StatusConflict, "INVOICE_UNAVAILABLE", ErrInvoiceUnavailable.Error())
	case errors.Is(err, ErrWebhookVerification):
		response.Error(c, http.StatusBadRequest, "WEBHOOK_VERIFICATION_FAILED", "Webhook signature verification failed")
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

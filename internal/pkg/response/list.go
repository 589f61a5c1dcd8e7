package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bikerental/internal/pkg/querybuilder"
)

// ListError writes the envelope for a failed list query. The raw database
// message is only included when debug is set.
func ListError(c *gin.Context, err error, debug bool) {
	if errors.Is(err, querybuilder.ErrInvalidQuery) {
		Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	_ = c.Error(err)
	if debug && errors.Is(err, querybuilder.ErrQueryFailed) {
		ErrorWithDetails(c, http.StatusInternalServerError, "QUERY_FAILED", "Failed to fetch records", err.Error())
		return
	}
	Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch records")
}

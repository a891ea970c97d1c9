package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"quant-observer/src/helpers"

	"github.com/gin-gonic/gin"
)

var maxTime = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// -----------------------------------------------------------------------------

// respondError maps validation failures to 400, an empty query window to
// 404 and anything else to 500.
func respondError(c *gin.Context, err error) {
	var vErr *helpers.ValidationError
	if errors.As(err, &vErr) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": vErr.Error(),
			"field": vErr.Field,
		})
		return
	}
	var dErr *helpers.InsufficientDataError
	if errors.As(err, &dErr) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"error":     dErr.Error(),
			"required":  dErr.Required,
			"available": dErr.Available,
		})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// -----------------------------------------------------------------------------

func intQuery(c *gin.Context, name string, def, lo, hi int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, helpers.NewValidationError(name, "%s must be an integer, got %q", name, raw)
	}
	if v < lo || v > hi {
		return 0, helpers.NewValidationError(name, "%s must be between %d and %d, got %d", name, lo, hi, v)
	}
	return v, nil
}

// -----------------------------------------------------------------------------

func timeQuery(c *gin.Context, name string, def time.Time) (time.Time, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, helpers.NewValidationError(name, "%s must be RFC3339, got %q", name, raw)
	}
	return t, nil
}

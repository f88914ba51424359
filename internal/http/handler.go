package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"go.ngs.io/geothermophone/internal/adapter/store"
	"go.ngs.io/geothermophone/internal/domain"
	"go.ngs.io/geothermophone/internal/usecase"
)

// Handler handles HTTP requests for octant series.
type Handler struct {
	octantUC *usecase.OctantUseCase
	clock    clockwork.Clock
}

// NewHandler creates a new HTTP handler.
func NewHandler(octantUC *usecase.OctantUseCase, clock clockwork.Clock) *Handler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Handler{
		octantUC: octantUC,
		clock:    clock,
	}
}

// GetOctants handles GET /v1/octants/:variable.
func (h *Handler) GetOctants(c *gin.Context) {
	req := h.octantUC.NewRequest(c.Param("variable"))

	// Parse time window.
	if s := c.Query("start"); s != "" {
		start, err := parseTime(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid start time: %v", err)})
			return
		}
		req.Start = start
	}
	if s := c.Query("end"); s != "" {
		end, err := parseTime(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid end time: %v", err)})
			return
		}
		req.End = end
	}

	// Parse normalization parameters.
	if s := c.Query("mode"); s != "" {
		mode, err := domain.ParseMode(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.Mode = mode
	}
	if s := c.Query("type"); s != "" {
		vt, err := domain.ParseValueType(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.ValueType = vt
	}
	if s := c.Query("min"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid min: %v", err)})
			return
		}
		req.Min = v
	}
	if s := c.Query("max"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid max: %v", err)})
			return
		}
		req.Max = v
	}

	// Execute use case.
	response, err := h.octantUC.Execute(req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetVariables handles GET /v1/variables.
func (h *Handler) GetVariables(c *gin.Context) {
	vars, err := h.octantUC.Variables()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"variables": vars,
		"count":     len(vars),
	})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   h.clock.Now().UTC().Format(time.RFC3339),
	})
}

// statusFor maps use case errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, usecase.ErrUnknownVariable), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidRange),
		errors.Is(err, domain.ErrInvalidCoordinate),
		errors.Is(err, domain.ErrEmptyGroup),
		errors.Is(err, domain.ErrDegenerateRange),
		errors.Is(err, domain.ErrTimeOverflow):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// parseTime accepts a date (YYYY-MM-DD) or an RFC3339 timestamp.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD or RFC3339, got %q", s)
	}
	return t.UTC(), nil
}

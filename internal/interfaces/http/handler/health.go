package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/erp/pdfpreview/internal/interfaces/http/dto"
)

const healthTimeout = 2 * time.Second

// HealthHandler reports whether the primary context still answers
type HealthHandler struct {
	BaseHandler
	service PreviewService
}

// NewHealthHandler creates a HealthHandler
func NewHealthHandler(service PreviewService) *HealthHandler {
	return &HealthHandler{service: service}
}

// Health answers GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	resp := dto.HealthResponse{Status: "healthy", Time: time.Now().Format(time.RFC3339)}
	ids, err := h.service.Pending(ctx)
	if err != nil {
		resp.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, dto.Response{Success: false, Data: resp})
		return
	}
	resp.Pending = len(ids)
	h.Success(c, resp)
}

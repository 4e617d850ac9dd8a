package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"lora-studio-backend/internal/models"
	"lora-studio-backend/internal/response"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store Pinger
}

func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// Check godoc
// @Summary     Health check
// @Description Returns the health status of the API and its record store
// @Tags        health
// @Produce     json
// @Success     200 {object} models.HealthResponse
// @Router      /health [get]
func (h *HealthHandler) Check(c *gin.Context) (response.Reply, error) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := models.HealthResponse{Status: "healthy", Store: "ok"}
	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			status.Store = "error"
		}
	}
	return response.OK(status), nil
}

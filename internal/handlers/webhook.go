package handlers

import (
	"github.com/gin-gonic/gin"
	"lora-studio-backend/internal/apperror"
	"lora-studio-backend/internal/models"
	"lora-studio-backend/internal/response"
	"lora-studio-backend/internal/services"
)

type WebhookHandler struct {
	training *services.TrainingService
}

func NewWebhookHandler(training *services.TrainingService) *WebhookHandler {
	return &WebhookHandler{training: training}
}

// Training godoc
// @Summary     Training provider callback
// @Description Receives the result of a queued training job. Authenticated by the token query parameter.
// @Tags        webhooks
// @Accept      json
// @Produce     json
// @Param       modelId query string true "Model ID"
// @Param       token   query string true "Webhook token"
// @Success     200 {object} map[string]bool
// @Failure     400 {object} response.Envelope
// @Failure     401 {object} response.Envelope
// @Router      /webhooks/training [post]
func (h *WebhookHandler) Training(c *gin.Context) (response.Reply, error) {
	var payload models.TrainingWebhook
	if err := c.ShouldBindJSON(&payload); err != nil {
		return response.Reply{}, apperror.InvalidBody()
	}
	applied, err := h.training.HandleWebhook(c.Request.Context(), c.Query("modelId"), c.Query("token"), payload)
	if err != nil {
		return response.Reply{}, err
	}
	return response.OK(map[string]bool{"received": true, "applied": applied}), nil
}

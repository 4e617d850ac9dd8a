package handlers

import (
	"github.com/gin-gonic/gin"
	"lora-studio-backend/internal/middleware"
	"lora-studio-backend/internal/response"
	"lora-studio-backend/internal/services"
)

type SettingsHandler struct {
	accounts *services.AccountService
}

func NewSettingsHandler(accounts *services.AccountService) *SettingsHandler {
	return &SettingsHandler{accounts: accounts}
}

func (h *SettingsHandler) Get(c *gin.Context) (response.Reply, error) {
	userID, err := callerID(c)
	if err != nil {
		return response.Reply{}, err
	}
	settings, err := h.accounts.Settings(c.Request.Context(), userID)
	if err != nil {
		return response.Reply{}, err
	}
	return response.OK(settings), nil
}

// Update godoc
// @Summary     Update settings
// @Description apiKeys values are encrypted before storage and never returned; an empty value removes a key
// @Tags        settings
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.Settings
// @Failure     400 {object} response.Envelope
// @Router      /settings [put]
func (h *SettingsHandler) Update(c *gin.Context) (response.Reply, error) {
	userID, err := callerID(c)
	if err != nil {
		return response.Reply{}, err
	}
	settings, err := h.accounts.UpdateSettings(c.Request.Context(), userID, middleware.Body(c))
	if err != nil {
		return response.Reply{}, err
	}
	return response.OK(settings), nil
}

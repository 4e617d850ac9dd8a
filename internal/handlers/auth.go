package handlers

import (
	"github.com/gin-gonic/gin"
	"lora-studio-backend/internal/middleware"
	"lora-studio-backend/internal/models"
	"lora-studio-backend/internal/response"
	"lora-studio-backend/internal/services"
)

type AuthHandler struct {
	accounts *services.AccountService
}

func NewAuthHandler(accounts *services.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

// Register godoc
// @Summary     Register an account
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body models.RegisterRequest true "Credentials"
// @Success     201 {object} models.AuthResponse
// @Failure     400 {object} response.Envelope
// @Failure     409 {object} response.Envelope
// @Router      /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) (response.Reply, error) {
	req, err := decodeBody[models.RegisterRequest](c)
	if err != nil {
		return response.Reply{}, err
	}
	res, err := h.accounts.Register(c.Request.Context(), req)
	if err != nil {
		return response.Reply{}, err
	}
	return response.Created(res), nil
}

// Login godoc
// @Summary     Log in
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body models.LoginRequest true "Credentials"
// @Success     200 {object} models.AuthResponse
// @Failure     401 {object} response.Envelope
// @Router      /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) (response.Reply, error) {
	req, err := decodeBody[models.LoginRequest](c)
	if err != nil {
		return response.Reply{}, err
	}
	res, err := h.accounts.Login(c.Request.Context(), req)
	if err != nil {
		return response.Reply{}, err
	}
	return response.OK(res), nil
}

func (h *AuthHandler) Profile(c *gin.Context) (response.Reply, error) {
	userID, err := callerID(c)
	if err != nil {
		return response.Reply{}, err
	}
	user, err := h.accounts.Profile(c.Request.Context(), userID)
	if err != nil {
		return response.Reply{}, err
	}
	return response.OK(user), nil
}

// UpdateProfile accepts displayName, avatarUrl and preferences; everything
// else in the body is ignored.
func (h *AuthHandler) UpdateProfile(c *gin.Context) (response.Reply, error) {
	userID, err := callerID(c)
	if err != nil {
		return response.Reply{}, err
	}
	user, err := h.accounts.UpdateProfile(c.Request.Context(), userID, middleware.Body(c))
	if err != nil {
		return response.Reply{}, err
	}
	return response.OK(user), nil
}

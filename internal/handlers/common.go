package handlers

import (
	"github.com/gin-gonic/gin"
	"lora-studio-backend/internal/apperror"
	"lora-studio-backend/internal/middleware"
	"lora-studio-backend/internal/response"
	"lora-studio-backend/internal/store"
)

// callerID returns the authenticated user. Routes built without
// RequireAuth never call it.
func callerID(c *gin.Context) (string, error) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return "", apperror.Unauthorized("")
	}
	return identity.ID, nil
}

// decodeBody converts the validated body document into T.
func decodeBody[T any](c *gin.Context) (T, error) {
	var req T
	if err := store.Decode(middleware.Body(c), &req); err != nil {
		return req, apperror.InvalidBody()
	}
	return req, nil
}

func methodNotAllowed(*gin.Context) (response.Reply, error) {
	return response.Reply{}, apperror.MethodNotAllowed()
}

func routeNotFound(*gin.Context) (response.Reply, error) {
	return response.Reply{}, apperror.NotFound("Route not found")
}

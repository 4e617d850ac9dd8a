package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"lora-studio-backend/internal/response"
)

// CORS answers preflight requests immediately. The header set itself is
// attached to every reply when it is written.
func CORS() Wrapper {
	return func(next Handler) Handler {
		return func(c *gin.Context) (response.Reply, error) {
			if c.Request.Method == http.MethodOptions {
				return response.Preflight(), nil
			}
			return next(c)
		}
	}
}

package middleware

import (
	"github.com/gin-gonic/gin"
	"lora-studio-backend/internal/apperror"
	"lora-studio-backend/internal/ratelimit"
	"lora-studio-backend/internal/response"
)

// RateLimit throttles one route per client address.
type RateLimit struct {
	Scope   string
	Limiter ratelimit.Limiter
}

func RateLimited(rl RateLimit) Wrapper {
	return func(next Handler) Handler {
		return func(c *gin.Context) (response.Reply, error) {
			if rl.Limiter == nil {
				return next(c)
			}
			allowed, err := rl.Limiter.Allow(c.Request.Context(), rl.Scope+":"+c.ClientIP())
			if err != nil {
				return response.Reply{}, apperror.Internal(err)
			}
			if !allowed {
				return response.Reply{}, apperror.RateLimited()
			}
			return next(c)
		}
	}
}

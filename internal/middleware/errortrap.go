package middleware

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"lora-studio-backend/internal/apperror"
	"lora-studio-backend/internal/logger"
	"lora-studio-backend/internal/response"
	"lora-studio-backend/internal/store"
)

// ErrorTrap turns returned errors and panics into error envelopes. Internal
// details go to the log, never to the client.
func ErrorTrap(log *logger.Logger) Wrapper {
	return func(next Handler) Handler {
		return func(c *gin.Context) (reply response.Reply, err error) {
			defer func() {
				if r := recover(); r != nil {
					reply = response.InternalError()
					err = nil
					log.Error("panic recovered",
						"request_id", reply.RequestID(),
						"method", c.Request.Method,
						"path", c.Request.URL.Path,
						"panic", fmt.Sprint(r),
						"stack", string(debug.Stack()),
					)
				}
			}()

			reply, err = next(c)
			if err == nil {
				return reply, nil
			}

			reply = Classify(err)
			if reply.Status >= 500 {
				log.Error("request failed",
					"request_id", reply.RequestID(),
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"error", err,
				)
			}
			return reply, nil
		}
	}
}

// Classify maps an error onto the reply the caller should see.
func Classify(err error) response.Reply {
	if appErr, ok := apperror.As(err); ok {
		return response.FromError(appErr)
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return response.FromError(apperror.NotFound(""))
	case errors.Is(err, store.ErrAlreadyExists):
		return response.FromError(apperror.Conflict("Resource already exists"))
	}
	return response.InternalError()
}

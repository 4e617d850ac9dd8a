package response

import (
	"strings"

	"github.com/gin-gonic/gin"
	"lora-studio-backend/internal/apperror"
)

type CORSConfig struct {
	AllowOrigin  string
	AllowMethods []string
	AllowHeaders []string
}

func DefaultCORS() CORSConfig {
	return CORSConfig{
		AllowOrigin:  "*",
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization", "X-Api-Key", "X-Requested-With"},
	}
}

// Apply sets the CORS header set on the outgoing response.
func (cfg CORSConfig) Apply(c *gin.Context) {
	h := c.Writer.Header()
	h.Set("Access-Control-Allow-Origin", cfg.AllowOrigin)
	h.Set("Access-Control-Allow-Methods", strings.Join(cfg.AllowMethods, ", "))
	h.Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowHeaders, ", "))
}

// FromError renders a classified error as an error envelope.
func FromError(err *apperror.Error) Reply {
	return Error(err.Message, err.Status(), err.Code, err.Details)
}

// Write emits reply with the CORS headers attached, whatever its status.
func Write(c *gin.Context, reply Reply, cors CORSConfig) {
	cors.Apply(c)
	if reply.Preflight || reply.Envelope == nil {
		c.Header("Access-Control-Max-Age", "86400")
		c.Status(reply.Status)
		c.Writer.WriteHeaderNow()
		return
	}
	c.JSON(reply.Status, reply.Envelope)
}

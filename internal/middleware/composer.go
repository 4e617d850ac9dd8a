package middleware

import (
	"github.com/gin-gonic/gin"
	"lora-studio-backend/internal/auth"
	"lora-studio-backend/internal/logger"
	"lora-studio-backend/internal/response"
)

const RequestIDKey = "request_id"

// Handler produces the reply for one request. Returning an error hands
// classification over to the error trap.
type Handler func(c *gin.Context) (response.Reply, error)

// Wrapper decorates a Handler.
type Wrapper func(Handler) Handler

type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// Options selects which wrappers surround a handler. The application order
// is fixed: error trap, CORS, rate limit, authentication, body validation.
type Options struct {
	CORS         bool
	RequireAuth  bool
	ValidateBody Validator
	RateLimit    *RateLimit
}

type Composer struct {
	tokens TokenVerifier
	cors   response.CORSConfig
	log    *logger.Logger
}

func NewComposer(tokens TokenVerifier, cors response.CORSConfig, log *logger.Logger) *Composer {
	return &Composer{tokens: tokens, cors: cors, log: log}
}

func (m *Composer) CORSConfig() response.CORSConfig {
	return m.cors
}

// Build composes h with the wrappers named in opts into a gin handler.
func (m *Composer) Build(opts Options, h Handler) gin.HandlerFunc {
	wrapped := h
	if opts.ValidateBody != nil {
		wrapped = BodyValidation(opts.ValidateBody)(wrapped)
	}
	if opts.RequireAuth {
		wrapped = Authenticate(m.tokens)(wrapped)
	}
	if opts.RateLimit != nil {
		wrapped = RateLimited(*opts.RateLimit)(wrapped)
	}
	if opts.CORS {
		wrapped = CORS()(wrapped)
	}
	wrapped = ErrorTrap(m.log)(wrapped)

	return func(c *gin.Context) {
		// The error trap converts every failure into a reply.
		reply, _ := wrapped(c)
		if id := reply.RequestID(); id != "" {
			c.Set(RequestIDKey, id)
		}
		response.Write(c, reply, m.cors)
	}
}

package middleware

import (
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"lora-studio-backend/internal/apperror"
	"lora-studio-backend/internal/auth"
	"lora-studio-backend/internal/response"
)

const (
	UserIDKey   = "user_id"
	IdentityKey = "identity"
)

// Authenticate requires a valid bearer token and injects the caller identity
// into both the gin context and the request context.
func Authenticate(tokens TokenVerifier) Wrapper {
	return func(next Handler) Handler {
		return func(c *gin.Context) (response.Reply, error) {
			tokenString, ok := bearerToken(c.GetHeader("Authorization"))
			if !ok {
				return response.Reply{}, apperror.Unauthorized("Missing or invalid authorization header")
			}

			identity, err := tokens.Verify(tokenString)
			if err != nil {
				return response.Reply{}, apperror.Unauthorized("Invalid or expired token")
			}

			c.Set(UserIDKey, identity.ID)
			c.Set(IdentityKey, identity)
			c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), identity))
			return next(c)
		}
	}
}

// CurrentIdentity returns the identity injected by Authenticate.
func CurrentIdentity(c *gin.Context) (auth.Identity, bool) {
	if v, exists := c.Get(IdentityKey); exists {
		if identity, ok := v.(auth.Identity); ok && identity.ID != "" {
			return identity, true
		}
	}
	return auth.IdentityFromContext(c.Request.Context())
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	// Try URL decoding in case the token was URL-encoded
	if decoded, err := url.QueryUnescape(token); err == nil {
		token = decoded
	}
	return token, true
}

package middleware

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"
	"lora-studio-backend/internal/apperror"
	"lora-studio-backend/internal/response"
	"lora-studio-backend/internal/store"
)

const BodyKey = "body"

// maxBodyBytes bounds what the validator will buffer. Image bytes never
// travel through the API, only metadata.
const maxBodyBytes = 1 << 20

// BodyValidation parses the request body as a JSON object and runs validate
// on it. The raw bytes are put back so handlers can bind them again.
func BodyValidation(validate Validator) Wrapper {
	return func(next Handler) Handler {
		return func(c *gin.Context) (response.Reply, error) {
			raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
			if err != nil || len(raw) > maxBodyBytes {
				return response.Reply{}, apperror.InvalidBody()
			}

			body := store.Document{}
			if len(bytes.TrimSpace(raw)) > 0 {
				if err := json.Unmarshal(raw, &body); err != nil || body == nil {
					return response.Reply{}, apperror.InvalidBody()
				}
			}

			if result := validate(body); !result.Valid {
				return response.Reply{}, apperror.Validation("Request validation failed", result.Errors)
			}

			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
			c.Set(BodyKey, body)
			return next(c)
		}
	}
}

// Body returns the document parsed by BodyValidation.
func Body(c *gin.Context) store.Document {
	if v, ok := c.Get(BodyKey); ok {
		if doc, ok := v.(store.Document); ok {
			return doc
		}
	}
	return store.Document{}
}

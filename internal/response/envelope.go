// Package response builds the JSON envelope every API response is wrapped in.
package response

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Meta struct {
	Timestamp string `json:"timestamp"`
	RequestID string `json:"requestId"`
}

type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
	Meta    Meta       `json:"meta"`
}

// Reply is a fully built response waiting to be written. A nil Envelope
// means the response has no body (CORS preflight).
type Reply struct {
	Status    int
	Envelope  *Envelope
	Preflight bool
}

// RequestID returns the correlation id carried in the envelope, if any.
func (r Reply) RequestID() string {
	if r.Envelope == nil {
		return ""
	}
	return r.Envelope.Meta.RequestID
}

func newMeta() Meta {
	return Meta{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		RequestID: NewRequestID(),
	}
}

// NewRequestID returns an opaque id of the form req_<unix millis>_<suffix>.
func NewRequestID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return "req_" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + suffix
}

func Success(data any, status int) Reply {
	if status == 0 {
		status = http.StatusOK
	}
	return Reply{
		Status:   status,
		Envelope: &Envelope{Success: true, Data: data, Meta: newMeta()},
	}
}

func OK(data any) Reply {
	return Success(data, http.StatusOK)
}

func Created(data any) Reply {
	return Success(data, http.StatusCreated)
}

func Accepted(data any) Reply {
	return Success(data, http.StatusAccepted)
}

func Error(message string, status int, code string, details any) Reply {
	if status == 0 {
		status = http.StatusBadRequest
	}
	return Reply{
		Status: status,
		Envelope: &Envelope{
			Success: false,
			Error:   &ErrorBody{Message: message, Code: code, Details: details},
			Meta:    newMeta(),
		},
	}
}

func Unauthorized(message string) Reply {
	if message == "" {
		message = "Unauthorized"
	}
	return Error(message, http.StatusUnauthorized, "UNAUTHORIZED", nil)
}

func Forbidden(message string) Reply {
	if message == "" {
		message = "Access denied"
	}
	return Error(message, http.StatusForbidden, "FORBIDDEN", nil)
}

func NotFound(message string) Reply {
	if message == "" {
		message = "Resource not found"
	}
	return Error(message, http.StatusNotFound, "NOT_FOUND", nil)
}

func ValidationError(message string, details any) Reply {
	return Error(message, http.StatusBadRequest, "VALIDATION_ERROR", details)
}

func InternalError() Reply {
	return Error("Internal server error", http.StatusInternalServerError, "INTERNAL_ERROR", nil)
}

func MethodNotAllowed() Reply {
	return Error("Method not allowed", http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", nil)
}

// Preflight answers an OPTIONS request: 200, CORS headers, no body.
func Preflight() Reply {
	return Reply{Status: http.StatusOK, Preflight: true}
}

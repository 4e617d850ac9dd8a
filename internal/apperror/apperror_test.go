package apperror_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lora-studio-backend/internal/apperror"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err    *apperror.Error
		status int
		code   string
	}{
		{apperror.Validation("bad", nil), http.StatusBadRequest, apperror.CodeValidation},
		{apperror.InvalidBody(), http.StatusBadRequest, apperror.CodeInvalidBody},
		{apperror.Unauthorized(""), http.StatusUnauthorized, apperror.CodeUnauthorized},
		{apperror.Forbidden(""), http.StatusForbidden, apperror.CodeForbidden},
		{apperror.NotFound("Model not found"), http.StatusNotFound, apperror.CodeNotFound},
		{apperror.MethodNotAllowed(), http.StatusMethodNotAllowed, apperror.CodeMethodNotAllowed},
		{apperror.Conflict("dup"), http.StatusConflict, apperror.CodeConflict},
		{apperror.RateLimited(), http.StatusTooManyRequests, apperror.CodeRateLimited},
		{apperror.Unavailable("File storage is not configured"), http.StatusServiceUnavailable, apperror.CodeUnavailable},
		{apperror.Internal(errors.New("db down")), http.StatusInternalServerError, apperror.CodeInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, tc.err.Status(), tc.err.Message)
		assert.Equal(t, tc.code, tc.err.Code)
	}
}

func TestAsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("failed to load model: %w", apperror.NotFound("Model not found"))

	appErr, ok := apperror.As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "Model not found", appErr.Message)
	assert.True(t, apperror.IsKind(wrapped, apperror.KindNotFound))
	assert.False(t, apperror.IsKind(errors.New("plain"), apperror.KindNotFound))
}

func TestInternalHidesCause(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := apperror.Internal(cause)

	assert.Equal(t, "Internal server error", err.Message)
	assert.ErrorIs(t, err, cause)
}

func TestWithCodeKeepsKind(t *testing.T) {
	err := apperror.Validation("Invalid status transition", nil).WithCode("INVALID_STATUS_TRANSITION")
	assert.Equal(t, "INVALID_STATUS_TRANSITION", err.Code)
	assert.Equal(t, http.StatusBadRequest, err.Status())
}

package response_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lora-studio-backend/internal/apperror"
	"lora-studio-backend/internal/response"
)

var requestIDPattern = regexp.MustCompile(`^req_\d+_[0-9a-f]{9}$`)

func TestSuccessEnvelope(t *testing.T) {
	reply := response.Success(map[string]string{"id": "m1"}, 0)

	assert.Equal(t, http.StatusOK, reply.Status)
	require.NotNil(t, reply.Envelope)
	assert.True(t, reply.Envelope.Success)
	assert.Nil(t, reply.Envelope.Error)
	assert.Regexp(t, requestIDPattern, reply.RequestID())

	_, err := time.Parse(time.RFC3339, reply.Envelope.Meta.Timestamp)
	assert.NoError(t, err)
}

func TestErrorEnvelopeDefaults(t *testing.T) {
	reply := response.Error("bad input", 0, "", nil)
	assert.Equal(t, http.StatusBadRequest, reply.Status)
	assert.False(t, reply.Envelope.Success)
	assert.Equal(t, "bad input", reply.Envelope.Error.Message)

	assert.Equal(t, http.StatusUnauthorized, response.Unauthorized("").Status)
	assert.Equal(t, http.StatusForbidden, response.Forbidden("").Status)
	assert.Equal(t, http.StatusNotFound, response.NotFound("").Status)
	assert.Equal(t, http.StatusBadRequest, response.ValidationError("x", nil).Status)
	assert.Equal(t, http.StatusInternalServerError, response.InternalError().Status)
	assert.Equal(t, http.StatusMethodNotAllowed, response.MethodNotAllowed().Status)
}

func TestRequestIDsAreFresh(t *testing.T) {
	a := response.OK(nil).RequestID()
	b := response.OK(nil).RequestID()
	assert.NotEqual(t, a, b)
}

func TestFromError(t *testing.T) {
	reply := response.FromError(apperror.Validation("Request validation failed", map[string]string{"email": "required"}))
	assert.Equal(t, http.StatusBadRequest, reply.Status)
	assert.Equal(t, apperror.CodeValidation, reply.Envelope.Error.Code)
	assert.NotNil(t, reply.Envelope.Error.Details)

	internal := response.FromError(apperror.Internal(errors.New("secret detail")))
	assert.Equal(t, "Internal server error", internal.Envelope.Error.Message)
}

func TestWriteAddsCORSToEveryStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cors := response.CORSConfig{
		AllowOrigin:  "https://app.example.com",
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Authorization"},
	}

	for _, reply := range []response.Reply{response.OK("x"), response.NotFound(""), response.InternalError()} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		response.Write(c, reply, cors)

		assert.Equal(t, reply.Status, w.Code)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST", w.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Authorization", w.Header().Get("Access-Control-Allow-Headers"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Contains(t, body, "meta")
	}
}

func TestWritePreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	response.Write(c, response.Preflight(), response.DefaultCORS())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"lora-studio-backend/internal/apperror"
	"lora-studio-backend/internal/blob"
	"lora-studio-backend/internal/models"
	"lora-studio-backend/internal/response"
)

// FilesHandler serves the in-memory blob store over HTTP so presigned URLs
// work in local development.
type FilesHandler struct {
	files    *blob.MemoryStore
	maxBytes int64
	cors     response.CORSConfig
}

func NewFilesHandler(files *blob.MemoryStore, maxBytes int64, cors response.CORSConfig) *FilesHandler {
	return &FilesHandler{files: files, maxBytes: maxBytes, cors: cors}
}

func objectKey(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("key"), "/")
}

// Upload accepts the raw object body at a signed presigned URL until it
// expires.
func (h *FilesHandler) Upload(c *gin.Context) (response.Reply, error) {
	key := objectKey(c)
	if key == "" || strings.Contains(key, "..") {
		return response.Reply{}, apperror.NotFound("")
	}
	if !h.files.VerifyUpload(key, c.Query("expires"), c.Query("signature"), time.Now()) {
		return response.Reply{}, apperror.Forbidden("Upload URL is invalid or expired")
	}

	contentType := c.Query("contentType")
	if contentType == "" {
		contentType = c.ContentType()
	}
	body := c.Request.Body
	if h.maxBytes > 0 {
		body = http.MaxBytesReader(c.Writer, body, h.maxBytes)
	}
	if err := h.files.Put(c.Request.Context(), key, body, c.Request.ContentLength, contentType); err != nil {
		return response.Reply{}, apperror.Validation("Upload failed", map[string]string{"body": err.Error()})
	}
	return response.OK(models.MessageResponse{Message: "File uploaded"}), nil
}

// Download writes the stored bytes without an envelope.
func (h *FilesHandler) Download(c *gin.Context) {
	obj, ok := h.files.Get(objectKey(c))
	if !ok {
		response.Write(c, response.NotFound("File not found"), h.cors)
		return
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.cors.Apply(c)
	c.Data(http.StatusOK, contentType, obj.Data)
}

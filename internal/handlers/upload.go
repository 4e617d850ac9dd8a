package handlers

import (
	"github.com/gin-gonic/gin"
	"lora-studio-backend/internal/models"
	"lora-studio-backend/internal/response"
	"lora-studio-backend/internal/services"
)

type UploadHandler struct {
	uploads *services.UploadService
}

func NewUploadHandler(uploads *services.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// Presign godoc
// @Summary     Get a direct-upload URL
// @Description Returns a short-lived URL for uploading one image straight to blob storage
// @Tags        upload
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.PresignRequest true "Upload"
// @Success     200 {object} models.PresignResponse
// @Failure     400 {object} response.Envelope
// @Failure     404 {object} response.Envelope
// @Failure     503 {object} response.Envelope
// @Router      /upload/presigned [post]
func (h *UploadHandler) Presign(c *gin.Context) (response.Reply, error) {
	userID, err := callerID(c)
	if err != nil {
		return response.Reply{}, err
	}
	req, err := decodeBody[models.PresignRequest](c)
	if err != nil {
		return response.Reply{}, err
	}
	res, err := h.uploads.Presign(c.Request.Context(), userID, req)
	if err != nil {
		return response.Reply{}, err
	}
	return response.OK(res), nil
}

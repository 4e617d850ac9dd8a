package handlers

import (
	"github.com/gin-gonic/gin"
	"lora-studio-backend/internal/models"
	"lora-studio-backend/internal/response"
	"lora-studio-backend/internal/services"
)

type ImagesHandler struct {
	images *services.ImageService
}

func NewImagesHandler(images *services.ImageService) *ImagesHandler {
	return &ImagesHandler{images: images}
}

func (h *ImagesHandler) List(c *gin.Context) (response.Reply, error) {
	userID, err := callerID(c)
	if err != nil {
		return response.Reply{}, err
	}
	list, err := h.images.List(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		return response.Reply{}, err
	}
	return response.OK(list), nil
}

// Add godoc
// @Summary     Register a training image
// @Description Records an image already uploaded through a presigned URL and increments the model's imageCount
// @Tags        images
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Model ID"
// @Param       request body models.AddTrainingImageRequest true "Image metadata"
// @Success     201 {object} models.TrainingImage
// @Failure     400 {object} response.Envelope
// @Failure     404 {object} response.Envelope
// @Failure     409 {object} response.Envelope
// @Router      /models/{id}/images [post]
func (h *ImagesHandler) Add(c *gin.Context) (response.Reply, error) {
	userID, err := callerID(c)
	if err != nil {
		return response.Reply{}, err
	}
	req, err := decodeBody[models.AddTrainingImageRequest](c)
	if err != nil {
		return response.Reply{}, err
	}
	image, err := h.images.Add(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		return response.Reply{}, err
	}
	return response.Created(image), nil
}

func (h *ImagesHandler) Delete(c *gin.Context) (response.Reply, error) {
	userID, err := callerID(c)
	if err != nil {
		return response.Reply{}, err
	}
	if err := h.images.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		return response.Reply{}, err
	}
	return response.OK(models.MessageResponse{Message: "Image deleted successfully"}), nil
}

package handlers

import (
	"github.com/gin-gonic/gin"
	"lora-studio-backend/internal/middleware"
	"lora-studio-backend/internal/models"
	"lora-studio-backend/internal/response"
	"lora-studio-backend/internal/services"
)

type ModelsHandler struct {
	models   *services.ModelService
	training *services.TrainingService
}

func NewModelsHandler(modelService *services.ModelService, training *services.TrainingService) *ModelsHandler {
	return &ModelsHandler{models: modelService, training: training}
}

// List godoc
// @Summary     List training models
// @Description Returns the caller's models, newest first
// @Tags        models
// @Produce     json
// @Security    Bearer
// @Success     200 {array} models.TrainingModel
// @Failure     401 {object} response.Envelope
// @Router      /models [get]
func (h *ModelsHandler) List(c *gin.Context) (response.Reply, error) {
	userID, err := callerID(c)
	if err != nil {
		return response.Reply{}, err
	}
	list, err := h.models.List(c.Request.Context(), userID)
	if err != nil {
		return response.Reply{}, err
	}
	return response.OK(list), nil
}

// Create godoc
// @Summary     Create a training model
// @Tags        models
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.CreateModelRequest true "Model"
// @Success     201 {object} models.TrainingModel
// @Failure     400 {object} response.Envelope
// @Router      /models [post]
func (h *ModelsHandler) Create(c *gin.Context) (response.Reply, error) {
	userID, err := callerID(c)
	if err != nil {
		return response.Reply{}, err
	}
	req, err := decodeBody[models.CreateModelRequest](c)
	if err != nil {
		return response.Reply{}, err
	}
	model, err := h.models.Create(c.Request.Context(), userID, req)
	if err != nil {
		return response.Reply{}, err
	}
	return response.Created(model), nil
}

func (h *ModelsHandler) Get(c *gin.Context) (response.Reply, error) {
	userID, err := callerID(c)
	if err != nil {
		return response.Reply{}, err
	}
	model, err := h.models.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		return response.Reply{}, err
	}
	return response.OK(model), nil
}

// Update godoc
// @Summary     Update a training model
// @Description Only name, description, status, progress, errorMessage, modelUrl, thumbnailUrl and completedAt are applied
// @Tags        models
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Model ID"
// @Success     200 {object} models.TrainingModel
// @Failure     400 {object} response.Envelope
// @Failure     404 {object} response.Envelope
// @Router      /models/{id} [put]
func (h *ModelsHandler) Update(c *gin.Context) (response.Reply, error) {
	userID, err := callerID(c)
	if err != nil {
		return response.Reply{}, err
	}
	model, err := h.models.Update(c.Request.Context(), userID, c.Param("id"), middleware.Body(c))
	if err != nil {
		return response.Reply{}, err
	}
	return response.OK(model), nil
}

func (h *ModelsHandler) Delete(c *gin.Context) (response.Reply, error) {
	userID, err := callerID(c)
	if err != nil {
		return response.Reply{}, err
	}
	if err := h.models.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		return response.Reply{}, err
	}
	return response.OK(models.MessageResponse{Message: "Model deleted successfully"}), nil
}

// Train godoc
// @Summary     Start training
// @Description Packs the model's training images and queues a LoRA training job
// @Tags        models
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Model ID"
// @Success     202 {object} models.TrainingSubmittedResponse
// @Failure     400 {object} response.Envelope
// @Failure     404 {object} response.Envelope
// @Router      /models/{id}/train [post]
func (h *ModelsHandler) Train(c *gin.Context) (response.Reply, error) {
	userID, err := callerID(c)
	if err != nil {
		return response.Reply{}, err
	}
	res, err := h.training.Submit(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		return response.Reply{}, err
	}
	return response.Accepted(res), nil
}

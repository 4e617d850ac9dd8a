package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"lora-studio-backend/internal/apperror"
	"lora-studio-backend/internal/middleware"
	"lora-studio-backend/internal/models"
	"lora-studio-backend/internal/response"
	"lora-studio-backend/internal/services"
	"lora-studio-backend/internal/store"
)

type GeneratedImagesHandler struct {
	generation   *services.GenerationService
	defaultLimit int
	maxLimit     int
}

func NewGeneratedImagesHandler(generation *services.GenerationService, defaultLimit, maxLimit int) *GeneratedImagesHandler {
	return &GeneratedImagesHandler{generation: generation, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// List godoc
// @Summary     List generated images
// @Description Returns every image newest first, or one page when page or limit is given
// @Tags        generated-images
// @Produce     json
// @Security    Bearer
// @Param       page     query int  false "Page number"
// @Param       limit    query int  false "Page size"
// @Param       favorite query bool false "Only favorites"
// @Success     200 {object} services.GeneratedPage
// @Router      /generated-images [get]
func (h *GeneratedImagesHandler) List(c *gin.Context) (response.Reply, error) {
	userID, err := callerID(c)
	if err != nil {
		return response.Reply{}, err
	}

	pageParam, hasPage := c.GetQuery("page")
	limitParam, hasLimit := c.GetQuery("limit")
	if !hasPage && !hasLimit {
		list, err := h.generation.List(c.Request.Context(), userID)
		if err != nil {
			return response.Reply{}, err
		}
		return response.OK(list), nil
	}

	errs := map[string]string{}
	page, limit := 1, 0
	if hasPage {
		if page, err = strconv.Atoi(pageParam); err != nil || page < 1 {
			errs["page"] = "must be a positive integer"
		}
	}
	if hasLimit {
		if limit, err = strconv.Atoi(limitParam); err != nil || limit < 1 {
			errs["limit"] = "must be a positive integer"
		}
	}
	if len(errs) > 0 {
		return response.Reply{}, apperror.Validation("Invalid pagination parameters", errs)
	}

	result, err := h.generation.ListPaged(c.Request.Context(), userID, store.PageQuery{
		Page:         page,
		Limit:        limit,
		DefaultLimit: h.defaultLimit,
		MaxLimit:     h.maxLimit,
	}, c.Query("favorite") == "true")
	if err != nil {
		return response.Reply{}, err
	}
	return response.OK(result), nil
}

func (h *GeneratedImagesHandler) Get(c *gin.Context) (response.Reply, error) {
	userID, err := callerID(c)
	if err != nil {
		return response.Reply{}, err
	}
	image, err := h.generation.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		return response.Reply{}, err
	}
	return response.OK(image), nil
}

// Create godoc
// @Summary     Generate an image
// @Description Runs the caller's completed LoRA model on a prompt
// @Tags        generated-images
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.GenerateImageRequest true "Prompt"
// @Success     201 {object} models.GeneratedImage
// @Failure     400 {object} response.Envelope
// @Failure     404 {object} response.Envelope
// @Failure     503 {object} response.Envelope
// @Router      /generated-images [post]
func (h *GeneratedImagesHandler) Create(c *gin.Context) (response.Reply, error) {
	userID, err := callerID(c)
	if err != nil {
		return response.Reply{}, err
	}
	req, err := decodeBody[models.GenerateImageRequest](c)
	if err != nil {
		return response.Reply{}, err
	}
	image, err := h.generation.Create(c.Request.Context(), userID, req)
	if err != nil {
		return response.Reply{}, err
	}
	return response.Created(image), nil
}

func (h *GeneratedImagesHandler) Update(c *gin.Context) (response.Reply, error) {
	userID, err := callerID(c)
	if err != nil {
		return response.Reply{}, err
	}
	image, err := h.generation.Update(c.Request.Context(), userID, c.Param("id"), middleware.Body(c))
	if err != nil {
		return response.Reply{}, err
	}
	return response.OK(image), nil
}

func (h *GeneratedImagesHandler) Delete(c *gin.Context) (response.Reply, error) {
	userID, err := callerID(c)
	if err != nil {
		return response.Reply{}, err
	}
	if err := h.generation.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		return response.Reply{}, err
	}
	return response.OK(models.MessageResponse{Message: "Image deleted successfully"}), nil
}

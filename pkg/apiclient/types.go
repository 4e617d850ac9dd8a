package apiclient

import "lora-studio-backend/internal/models"

// Wire types, re-exported so callers outside this module can name them.
type (
	User                      = models.User
	Preferences               = models.Preferences
	Settings                  = models.Settings
	TrainingModel             = models.TrainingModel
	TrainingConfig            = models.TrainingConfig
	TrainingImage             = models.TrainingImage
	TrainingSubmittedResponse = models.TrainingSubmittedResponse
	RegisterRequest           = models.RegisterRequest
	CreateModelRequest        = models.CreateModelRequest
	AddTrainingImageRequest   = models.AddTrainingImageRequest
	PresignRequest            = models.PresignRequest
	PresignResponse           = models.PresignResponse
)

package models

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	DisplayName string `json:"displayName" validate:"omitempty,min=2,max=50"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type CreateModelRequest struct {
	Name           string          `json:"name" validate:"required,max=100"`
	TriggerWord    string          `json:"triggerWord" validate:"required,max=50"`
	Description    string          `json:"description" validate:"omitempty,max=500"`
	TrainingConfig *TrainingConfig `json:"trainingConfig,omitempty"`
}

type AddTrainingImageRequest struct {
	// Key is the object key returned by the presigned upload endpoint.
	Key          string `json:"key" validate:"required"`
	OriginalName string `json:"originalName" validate:"required,max=255"`
	Size         int64  `json:"size" validate:"required,gt=0"`
	MimeType     string `json:"mimeType" validate:"required"`
	Width        *int   `json:"width,omitempty" validate:"omitempty,gt=0"`
	Height       *int   `json:"height,omitempty" validate:"omitempty,gt=0"`
	Hash         string `json:"hash,omitempty" validate:"omitempty,max=128"`
}

type GenerateImageRequest struct {
	ModelID          string            `json:"modelId" validate:"required"`
	Prompt           string            `json:"prompt" validate:"required,max=1000"`
	NegativePrompt   string            `json:"negativePrompt" validate:"omitempty,max=1000"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

const (
	UploadTraining  = "training"
	UploadGenerated = "generated"
	UploadAvatar    = "avatar"
)

type PresignRequest struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required"`
	Type        string `json:"type" validate:"required,oneof=training generated avatar"`
	ModelID     string `json:"modelId"`
}

// TrainingWebhook is the callback body posted by the training provider.
type TrainingWebhook struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Payload   struct {
		DiffusersLoraFile struct {
			URL string `json:"url"`
		} `json:"diffusers_lora_file"`
		ConfigFile struct {
			URL string `json:"url"`
		} `json:"config_file"`
	} `json:"payload"`
}

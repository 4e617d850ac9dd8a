package models

type TrainingImage struct {
	ID           string `json:"id"`
	ModelID      string `json:"modelId"`
	UserID       string `json:"userId"`
	Key          string `json:"key"`
	URL          string `json:"url"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimeType"`
	Width        *int   `json:"width,omitempty"`
	Height       *int   `json:"height,omitempty"`
	Hash         string `json:"hash,omitempty"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

type GenerationConfig struct {
	Steps         int     `json:"steps"`
	GuidanceScale float64 `json:"guidanceScale"`
	Seed          int64   `json:"seed"`
	ImageSize     string  `json:"imageSize,omitempty"`
	LoraScale     float64 `json:"loraScale,omitempty"`
}

type GeneratedImage struct {
	ID               string           `json:"id"`
	UserID           string           `json:"userId"`
	ModelID          string           `json:"modelId"`
	Prompt           string           `json:"prompt"`
	NegativePrompt   string           `json:"negativePrompt,omitempty"`
	ImageURL         string           `json:"imageUrl"`
	Key              string           `json:"key,omitempty"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
	IsFavorite       bool             `json:"isFavorite"`
	CreatedAt        string           `json:"createdAt"`
	UpdatedAt        string           `json:"updatedAt"`
}

package models

type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type PresignResponse struct {
	UploadURL string `json:"uploadUrl"`
	FileURL   string `json:"fileUrl"`
	Key       string `json:"key"`
	ExpiresIn int    `json:"expiresIn"`
}

type TrainingSubmittedResponse struct {
	Model TrainingModel `json:"model"`
	JobID string        `json:"jobId"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

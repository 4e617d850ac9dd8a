package models

type ModelStatus string

const (
	StatusPending   ModelStatus = "pending"
	StatusTraining  ModelStatus = "training"
	StatusCompleted ModelStatus = "completed"
	StatusFailed    ModelStatus = "failed"
)

func (s ModelStatus) Valid() bool {
	switch s {
	case StatusPending, StatusTraining, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

func (s ModelStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s ModelStatus) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusTraining:
		return 1
	default:
		return 2
	}
}

// CanTransitionTo reports whether moving from s to next keeps the status
// moving forward. Staying put is allowed; leaving a terminal state is not.
func (s ModelStatus) CanTransitionTo(next ModelStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	return next.rank() > s.rank()
}

type TrainingConfig struct {
	Steps        int     `json:"steps"`
	LearningRate float64 `json:"learningRate"`
	BatchSize    int     `json:"batchSize"`
}

func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{Steps: 1000, LearningRate: 0.0001, BatchSize: 1}
}

// WithDefaults fills zero fields from DefaultTrainingConfig.
func (c TrainingConfig) WithDefaults() TrainingConfig {
	d := DefaultTrainingConfig()
	if c.Steps <= 0 {
		c.Steps = d.Steps
	}
	if c.LearningRate <= 0 {
		c.LearningRate = d.LearningRate
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	return c
}

type TrainingModel struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	Status         ModelStatus    `json:"status"`
	TriggerWord    string         `json:"triggerWord"`
	ImageCount     int            `json:"imageCount"`
	TrainingConfig TrainingConfig `json:"trainingConfig"`
	ModelURL       string         `json:"modelUrl,omitempty"`
	ThumbnailURL   string         `json:"thumbnailUrl,omitempty"`
	Progress       *int           `json:"progress,omitempty"`
	ErrorMessage   string         `json:"errorMessage,omitempty"`
	TrainingJobID  string         `json:"trainingJobId,omitempty"`
	CompletedAt    string         `json:"completedAt,omitempty"`
	CreatedAt      string         `json:"createdAt"`
	UpdatedAt      string         `json:"updatedAt"`
}

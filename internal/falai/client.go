package falai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	baseURL       string
	queueURL      string
	trainingApp   string
	generationApp string
	httpClient    *http.Client
	backoffs      []time.Duration
}

type Options struct {
	BaseURL       string
	QueueURL      string
	TrainingApp   string
	GenerationApp string
}

// APIError is a non-2xx answer from fal.ai.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fal.ai request failed: status %d, body: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if sent again.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

type TrainingRequest struct {
	ImagesDataURL string  `json:"images_data_url"`
	TriggerWord   string  `json:"trigger_word"`
	Steps         int     `json:"steps"`
	LearningRate  float64 `json:"learning_rate,omitempty"`
	BatchSize     int     `json:"batch_size,omitempty"`
	CreateMasks   bool    `json:"create_masks"`
	IsStyle       bool    `json:"is_style"`

	// WebhookURL receives the completion callback. Not part of the body.
	WebhookURL string `json:"-"`
}

type TrainingSubmission struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

type LoraWeight struct {
	Path  string  `json:"path"`
	Scale float64 `json:"scale"`
}

type GenerationRequest struct {
	Prompt            string       `json:"prompt"`
	NegativePrompt    string       `json:"negative_prompt,omitempty"`
	NumInferenceSteps int          `json:"num_inference_steps"`
	GuidanceScale     float64      `json:"guidance_scale"`
	Seed              int64        `json:"seed"`
	ImageSize         string       `json:"image_size,omitempty"`
	NumImages         int          `json:"num_images"`
	Loras             []LoraWeight `json:"loras"`
	EnableSafety      bool         `json:"enable_safety_checker"`
}

type GeneratedImage struct {
	URL         string `json:"url"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ContentType string `json:"content_type"`
}

type GenerationResult struct {
	Images []GeneratedImage `json:"images"`
	Seed   int64            `json:"seed"`
	Prompt string           `json:"prompt"`
}

func NewClient(opts Options) *Client {
	return &Client{
		baseURL:       strings.TrimSuffix(opts.BaseURL, "/"),
		queueURL:      strings.TrimSuffix(opts.QueueURL, "/"),
		trainingApp:   strings.Trim(opts.TrainingApp, "/"),
		generationApp: strings.Trim(opts.GenerationApp, "/"),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		backoffs: []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
	}
}

// WithBackoffs overrides the retry delays.
func (c *Client) WithBackoffs(backoffs ...time.Duration) *Client {
	c.backoffs = backoffs
	return c
}

// SubmitTraining queues a LoRA training job. The result is delivered later
// to req.WebhookURL.
func (c *Client) SubmitTraining(ctx context.Context, apiKey string, req TrainingRequest) (*TrainingSubmission, error) {
	endpoint := c.queueURL + "/" + c.trainingApp
	if req.WebhookURL != "" {
		endpoint += "?fal_webhook=" + url.QueryEscape(req.WebhookURL)
	}

	var result TrainingSubmission
	err := c.RetryWithBackoff(ctx, func() error {
		return c.postJSON(ctx, apiKey, endpoint, req, &result)
	}, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to submit training: %w", err)
	}
	if result.RequestID == "" {
		return nil, fmt.Errorf("failed to submit training: request_id is empty in response")
	}
	return &result, nil
}

// Generate runs a synchronous text-to-image request.
func (c *Client) Generate(ctx context.Context, apiKey string, req GenerationRequest) (*GenerationResult, error) {
	if req.NumImages == 0 {
		req.NumImages = 1
	}
	endpoint := c.baseURL + "/" + c.generationApp

	var result GenerationResult
	err := c.RetryWithBackoff(ctx, func() error {
		return c.postJSON(ctx, apiKey, endpoint, req, &result)
	}, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to generate image: %w", err)
	}
	if len(result.Images) == 0 {
		return nil, fmt.Errorf("failed to generate image: no images in response")
	}
	return &result, nil
}

func (c *Client) DownloadFile(ctx context.Context, downloadURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, "", fmt.Errorf("failed to download file: status %d, body: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (c *Client) postJSON(ctx context.Context, apiKey, endpoint string, in, out interface{}) error {
	jsonData, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// RetryWithBackoff executes fn with exponential backoff. Client errors
// (4xx other than 429) and context cancellation stop the loop early,
// including while waiting between attempts.
func (c *Client) RetryWithBackoff(ctx context.Context, fn func() error, maxRetries int) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if i < len(c.backoffs) && i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry aborted: %w", ctx.Err())
			case <-time.After(c.backoffs[i]):
			}
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// Package apiclient is a Go client for the LoRA Studio HTTP API.
package apiclient

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

	"lora-studio-backend/internal/models"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New returns a client for the API rooted at baseURL, e.g.
// "https://api.example.com/api/v1".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a failure envelope returned by the server.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details json.RawMessage
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Message string          `json:"message"`
		Code    string          `json:"code"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

var errNoSession = errors.New("apiclient: session has no token")

func (c *Client) do(ctx context.Context, session *Session, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != nil {
		if !session.Valid() {
			return errNoSession
		}
		req.Header.Set("Authorization", "Bearer "+session.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if !env.Success || resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Details = env.Error.Details
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Register creates an account. The returned Session is not stored anywhere.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (models.User, Session, error) {
	var res models.AuthResponse
	if err := c.do(ctx, nil, http.MethodPost, "/auth/register", req, &res); err != nil {
		return models.User{}, Session{}, err
	}
	return res.User, Session{Token: res.Token}, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (models.User, Session, error) {
	var res models.AuthResponse
	req := models.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, nil, http.MethodPost, "/auth/login", req, &res); err != nil {
		return models.User{}, Session{}, err
	}
	return res.User, Session{Token: res.Token}, nil
}

func (c *Client) Profile(ctx context.Context, s Session) (models.User, error) {
	var user models.User
	err := c.do(ctx, &s, http.MethodGet, "/auth/profile", nil, &user)
	return user, err
}

// UpdateProfile sends fields as-is; the server ignores anything outside
// displayName, avatarUrl and preferences.
func (c *Client) UpdateProfile(ctx context.Context, s Session, fields map[string]any) (models.User, error) {
	var user models.User
	err := c.do(ctx, &s, http.MethodPut, "/auth/profile", fields, &user)
	return user, err
}

func (c *Client) ListModels(ctx context.Context, s Session) ([]models.TrainingModel, error) {
	var list []models.TrainingModel
	err := c.do(ctx, &s, http.MethodGet, "/models", nil, &list)
	return list, err
}

func (c *Client) CreateModel(ctx context.Context, s Session, req models.CreateModelRequest) (models.TrainingModel, error) {
	var model models.TrainingModel
	err := c.do(ctx, &s, http.MethodPost, "/models", req, &model)
	return model, err
}

func (c *Client) GetModel(ctx context.Context, s Session, id string) (models.TrainingModel, error) {
	var model models.TrainingModel
	err := c.do(ctx, &s, http.MethodGet, "/models/"+url.PathEscape(id), nil, &model)
	return model, err
}

func (c *Client) UpdateModel(ctx context.Context, s Session, id string, fields map[string]any) (models.TrainingModel, error) {
	var model models.TrainingModel
	err := c.do(ctx, &s, http.MethodPut, "/models/"+url.PathEscape(id), fields, &model)
	return model, err
}

func (c *Client) DeleteModel(ctx context.Context, s Session, id string) error {
	return c.do(ctx, &s, http.MethodDelete, "/models/"+url.PathEscape(id), nil, nil)
}

func (c *Client) TrainModel(ctx context.Context, s Session, id string) (models.TrainingSubmittedResponse, error) {
	var res models.TrainingSubmittedResponse
	err := c.do(ctx, &s, http.MethodPost, "/models/"+url.PathEscape(id)+"/train", nil, &res)
	return res, err
}

func (c *Client) ListTrainingImages(ctx context.Context, s Session, modelID string) ([]models.TrainingImage, error) {
	var list []models.TrainingImage
	err := c.do(ctx, &s, http.MethodGet, "/models/"+url.PathEscape(modelID)+"/images", nil, &list)
	return list, err
}

func (c *Client) AddTrainingImage(ctx context.Context, s Session, modelID string, req models.AddTrainingImageRequest) (models.TrainingImage, error) {
	var image models.TrainingImage
	err := c.do(ctx, &s, http.MethodPost, "/models/"+url.PathEscape(modelID)+"/images", req, &image)
	return image, err
}

func (c *Client) DeleteTrainingImage(ctx context.Context, s Session, id string) error {
	return c.do(ctx, &s, http.MethodDelete, "/images/"+url.PathEscape(id), nil, nil)
}

func (c *Client) PresignUpload(ctx context.Context, s Session, req models.PresignRequest) (models.PresignResponse, error) {
	var res models.PresignResponse
	err := c.do(ctx, &s, http.MethodPost, "/upload/presigned", req, &res)
	return res, err
}

func (c *Client) Settings(ctx context.Context, s Session) (models.Settings, error) {
	var settings models.Settings
	err := c.do(ctx, &s, http.MethodGet, "/settings", nil, &settings)
	return settings, err
}

func (c *Client) UpdateSettings(ctx context.Context, s Session, fields map[string]any) (models.Settings, error) {
	var settings models.Settings
	err := c.do(ctx, &s, http.MethodPut, "/settings", fields, &settings)
	return settings, err
}

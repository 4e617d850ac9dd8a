// Package events publishes model lifecycle notifications for realtime clients.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"lora-studio-backend/internal/models"
)

const (
	EventModelCreated       = "model.created"
	EventModelStatusChanged = "model.status_changed"
	EventModelDeleted       = "model.deleted"
	EventImageGenerated     = "image.generated"
)

type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload map[string]interface{}) error
}

// Message is the JSON body sent on a channel.
type Message struct {
	Event     string                 `json:"event"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp string                 `json:"timestamp"`
}

type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel, event string, payload map[string]interface{}) error {
	body, err := json.Marshal(Message{
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := p.client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish %s on %s: %w", event, channel, err)
	}
	return nil
}

// NopPublisher drops every event. Used when Redis is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, map[string]interface{}) error {
	return nil
}

func ModelChannel(modelID string) string {
	return "model:" + modelID
}

func UserChannel(userID string) string {
	return "user:" + userID
}

// Event payloads
func ModelStatusPayload(m models.TrainingModel) map[string]interface{} {
	payload := map[string]interface{}{
		"model_id": m.ID,
		"status":   string(m.Status),
	}
	if m.Progress != nil {
		payload["progress"] = *m.Progress
	}
	if m.ModelURL != "" {
		payload["model_url"] = m.ModelURL
	}
	if m.ErrorMessage != "" {
		payload["error_message"] = m.ErrorMessage
	}
	return payload
}

func ModelDeletedPayload(modelID string, imageCount int) map[string]interface{} {
	return map[string]interface{}{
		"model_id":    modelID,
		"image_count": imageCount,
	}
}

func ImageGeneratedPayload(img models.GeneratedImage) map[string]interface{} {
	return map[string]interface{}{
		"image_id":  img.ID,
		"model_id":  img.ModelID,
		"image_url": img.ImageURL,
	}
}

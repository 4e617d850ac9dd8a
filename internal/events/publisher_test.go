package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lora-studio-backend/internal/events"
	"lora-studio-backend/internal/models"
)

func TestRedisPublisherDeliversJSON(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	sub := client.Subscribe(ctx, events.ModelChannel("m1"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	progress := 100
	model := models.TrainingModel{
		ID:       "m1",
		Status:   models.StatusCompleted,
		Progress: &progress,
		ModelURL: "https://cdn.example.com/lora.safetensors",
	}
	pub := events.NewRedisPublisher(client)
	require.NoError(t, pub.Publish(ctx, events.ModelChannel("m1"), events.EventModelStatusChanged, events.ModelStatusPayload(model)))

	select {
	case msg := <-sub.Channel():
		var got events.Message
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, events.EventModelStatusChanged, got.Event)
		assert.Equal(t, "completed", got.Payload["status"])
		assert.Equal(t, float64(100), got.Payload["progress"])
		assert.NotEmpty(t, got.Timestamp)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestChannels(t *testing.T) {
	assert.Equal(t, "model:abc", events.ModelChannel("abc"))
	assert.Equal(t, "user:u1", events.UserChannel("u1"))
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, events.NopPublisher{}.Publish(context.Background(), "c", "e", nil))
}

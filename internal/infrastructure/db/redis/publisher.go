package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ella-cms/scribble/internal/core/ports"
	"github.com/ella-cms/scribble/internal/pkg/metrics"
)

const publishTimeout = 2 * time.Second

// Publisher is the part of *redis.Client the saved-event forwarder needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// SavedMessage is the payload written to the channel.
type SavedMessage struct {
	Type   string         `json:"type"`
	ID     any            `json:"id"`
	Values map[string]any `json:"values"`
	At     time.Time      `json:"at"`
}

// SavedPublisher forwards saved events to a Redis pub/sub channel so other
// processes can react to saves.
type SavedPublisher struct {
	client  Publisher
	channel string
	now     func() time.Time
}

// NewSavedPublisher wraps client; events go to channel.
func NewSavedPublisher(client Publisher, channel string) *SavedPublisher {
	return &SavedPublisher{client: client, channel: channel, now: time.Now}
}

// Handle publishes ev. It matches queue.Handler.
func (p *SavedPublisher) Handle(ctx context.Context, ev ports.SavedEvent) error {
	id, _ := ev.Entity.ID()
	payload, err := json.Marshal(SavedMessage{
		Type:   ev.Entity.TypeName(),
		ID:     id,
		Values: ev.Entity.Values(),
		At:     p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode saved event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		metrics.SavedEventsTotal.WithLabelValues("redis", "error").Inc()
		return fmt.Errorf("redis publish: %w", err)
	}
	metrics.SavedEventsTotal.WithLabelValues("redis", "ok").Inc()
	return nil
}

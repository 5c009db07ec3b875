package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Speed-Jobs/jobwatch/internal/posting"
)

// DefaultAlertChannel is the pub/sub channel UI consumers subscribe to.
const DefaultAlertChannel = "jobwatch:alerts"

const publishTimeout = 5 * time.Second

// alertMessage is the wire format published for UI consumers.
type alertMessage struct {
	ID           string            `json:"id"`
	Postings     []posting.Posting `json:"postings"`
	ExpiresAfter int64             `json:"expires_after_ms"`
}

// RedisPresenter publishes alerts as JSON on a Redis pub/sub channel
// for a UI process to render. Pub/sub carries no dismissal path back,
// so released state is left to the dispatcher's expiry backstop.
type RedisPresenter struct {
	client  *redis.Client
	channel string
}

// NewRedisPresenter creates a presenter publishing on channel. An empty
// channel falls back to DefaultAlertChannel.
func NewRedisPresenter(client *redis.Client, channel string) *RedisPresenter {
	if channel == "" {
		channel = DefaultAlertChannel
	}
	return &RedisPresenter{client: client, channel: channel}
}

// Present publishes the alert.
func (p *RedisPresenter) Present(alert Alert, done func()) error {
	msg := alertMessage{
		ID:           alert.ID,
		Postings:     alert.Postings,
		ExpiresAfter: alert.ExpiresAfter.Milliseconds(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}

package storage

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// Notifier publishes board-changed notifications on a redis channel. The SSE
// broker subscribes to the same channel to push fresh snapshots to clients.
type Notifier struct {
	client  *redis.Client
	channel string
}

// NewNotifier creates a Notifier publishing on the given channel.
func NewNotifier(client *redis.Client, channel string) *Notifier {
	return &Notifier{client: client, channel: channel}
}

type boardChanged struct {
	UserID string `json:"UserId"`
}

// NotifyBoardChanged announces that the owner's task list changed.
func (n *Notifier) NotifyBoardChanged(ctx context.Context, userID string) error {
	if n == nil || n.client == nil {
		return nil
	}
	payload, err := json.Marshal(boardChanged{UserID: userID})
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, payload).Err()
}

package chat

import (
	"context"

	"livechat/backend/internal/models"
)

// Publisher announces committed writes to the realtime feed.
type Publisher interface {
	Publish(ctx context.Context, ev models.Event) error
}

// NopPublisher is used when the database triggers publish changes.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.Event) error { return nil }

package chathub

import (
	"context"
	"encoding/json"
	"fmt"

	"livechat/backend/internal/models"
)

// Feed is a source of row-change events. The returned channel is closed
// when ctx is cancelled or the feed can no longer deliver.
type Feed interface {
	Listen(ctx context.Context) (<-chan models.Event, error)
}

// decodeEvent parses a change payload and drops frames that cannot be
// routed to a session.
func decodeEvent(payload []byte) (models.Event, error) {
	var ev models.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, fmt.Errorf("decode change event: %w", err)
	}
	if ev.Type != models.EventInsert && ev.Type != models.EventDelete {
		return ev, fmt.Errorf("unexpected change type %q", ev.Type)
	}
	if ev.SessionID() == "" {
		return ev, fmt.Errorf("change on %q without session id", ev.Table)
	}
	return ev, nil
}

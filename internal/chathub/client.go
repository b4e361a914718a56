package chathub

import "livechat/backend/internal/models"

// Client is the interface for any subscriber of the hub (a websocket
// connection, the Telegram notifier). It abstracts the underlying transport,
// allowing the hub to manage different client types uniformly.
type Client interface {
	// GetID returns the unique identifier of this connection.
	GetID() string
	// GetSessionID returns the session the client mirrors. An empty string
	// means the client receives the events of every session (admin views).
	GetSessionID() string

	// GetSendChannel returns the channel the hub pushes matching events to.
	GetSendChannel() chan<- models.Event

	// Run starts the client's pumps.
	Run()
	// Close releases the client. The hub calls it exactly once, after the
	// client has been removed from the fan-out set.
	Close()
}

// Watches reports whether c should receive an event of the given session.
func Watches(c Client, sessionID string) bool {
	watched := c.GetSessionID()
	return watched == "" || watched == sessionID
}

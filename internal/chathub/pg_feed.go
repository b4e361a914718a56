package chathub

import (
	"context"
	"time"

	"livechat/backend/internal/models"
	"livechat/backend/internal/storage"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
)

// PostgresFeed tails the NOTIFY stream written by the change-feed triggers.
// Changes made while the listener is disconnected are not replayed.
type PostgresFeed struct {
	dsn    string
	logger *zap.Logger
}

func NewPostgresFeed(dsn string, logger *zap.Logger) *PostgresFeed {
	return &PostgresFeed{dsn: dsn, logger: logger}
}

func (f *PostgresFeed) Listen(ctx context.Context) (<-chan models.Event, error) {
	listener := pq.NewListener(f.dsn, listenerMinReconnect, listenerMaxReconnect, f.reportProblem)
	if err := listener.Listen(storage.ChangeChannel); err != nil {
		listener.Close()
		return nil, err
	}
	f.logger.Info("listening for row changes", zap.String("channel", storage.ChangeChannel))

	out := make(chan models.Event, 256)
	go func() {
		defer close(out)
		defer listener.Close()

		ticker := time.NewTicker(listenerPingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				if n == nil {
					// The connection was re-established.
					f.logger.Warn("change feed reconnected; changes during the outage were not delivered")
					continue
				}
				ev, err := decodeEvent([]byte(n.Extra))
				if err != nil {
					f.logger.Warn("skipping change notification", zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}

			case <-ticker.C:
				go func() {
					if err := listener.Ping(); err != nil {
						f.logger.Warn("change feed ping failed", zap.Error(err))
					}
				}()
			}
		}
	}()
	return out, nil
}

func (f *PostgresFeed) reportProblem(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		f.logger.Info("change feed connected")
	case pq.ListenerEventDisconnected:
		f.logger.Warn("change feed disconnected", zap.Error(err))
	case pq.ListenerEventConnectionAttemptFailed:
		f.logger.Warn("change feed connection attempt failed", zap.Error(err))
	}
}

package session

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// AuthEventsChannel is the redis pub/sub channel carrying auth-state
// transitions between instances.
const AuthEventsChannel = "auth_events"

// Bridge relays auth events over redis pub/sub so every instance sees
// login/logout transitions, not just the one that served the request.
type Bridge struct {
	rdb    *redis.Client
	broker *Broker
	logger *zap.Logger
}

func NewBridge(rdb *redis.Client, broker *Broker, logger *zap.Logger) *Bridge {
	return &Bridge{rdb: rdb, broker: broker, logger: logger}
}

// Publish broadcasts an auth event to all instances.
func (br *Bridge) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return br.rdb.Publish(ctx, AuthEventsChannel, payload).Err()
}

// Run subscribes to the auth channel and applies received events to the
// local broker until the context is cancelled. Re-applying an event this
// instance published itself is harmless; state setting is idempotent.
func (br *Bridge) Run(ctx context.Context) {
	subscriber := br.rdb.Subscribe(ctx, AuthEventsChannel)
	defer subscriber.Close()
	ch := subscriber.Channel()

	br.logger.Info("session bridge subscribed", zap.String("channel", AuthEventsChannel))

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				br.logger.Warn("failed to parse auth event", zap.Error(err))
				continue
			}
			if ev.LoggedIn {
				br.broker.Login(ev.UID)
			} else {
				br.broker.Logout()
			}
		}
	}
}

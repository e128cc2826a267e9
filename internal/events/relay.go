// internal/events/relay.go
package events

import (
	"context"
	"fmt"

	"policy-service/internal/domain/policy"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Relay subscribes to the Redis event channel and rebroadcasts every event to the
// local hub, including events this instance published itself.
type Relay struct {
	client  *redis.Client
	channel string
	hub     Broadcaster
	logger  *zap.Logger
}

func NewRelay(client *redis.Client, channel string, hub Broadcaster, logger *zap.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Relay{
		client:  client,
		channel: channel,
		hub:     hub,
		logger:  logger,
	}
}

// Run blocks until ctx is done or the subscription ends.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	// Wait for the subscription confirmation so publishes after Run starts are not lost
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	ch := pubsub.Channel()
	r.logger.Info("event relay started", zap.String("channel", r.channel))

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				r.logger.Warn("event relay channel closed", zap.String("channel", r.channel))
				return nil
			}
			r.dispatch(msg.Payload)

		case <-ctx.Done():
			r.logger.Info("event relay stopping")
			return nil
		}
	}
}

func (r *Relay) dispatch(payload string) {
	evt, err := policy.ParseEvent([]byte(payload))
	if err != nil {
		r.logger.Warn("dropping malformed policy event", zap.Error(err))
		return
	}

	if err := r.hub.BroadcastPolicyEvent(evt); err != nil {
		r.logger.Warn("failed to broadcast policy event",
			zap.String("event_id", evt.ID),
			zap.Error(err),
		)
	}
}

// internal/events/publisher.go
package events

import (
	"context"
	"fmt"
	"time"

	"policy-service/internal/domain/policy"
	"policy-service/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const DefaultChannel = "policy-events"

// Broadcaster delivers an event to locally connected browsers.
type Broadcaster interface {
	BroadcastPolicyEvent(evt *policy.Event) error
}

// HubPublisher sends events straight to the local hub. Used when no Redis is configured.
type HubPublisher struct {
	hub Broadcaster
}

func NewHubPublisher(hub Broadcaster) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(ctx context.Context, evt *policy.Event) error {
	return p.hub.BroadcastPolicyEvent(evt)
}

// RedisPublisher fans events out to every instance through a Redis channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	cb      *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewRedisPublisher(client *redis.Client, channel string, m *metrics.Metrics, logger *zap.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	if m == nil {
		m = metrics.NewMetrics(nil)
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "policy-events-redis",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.CircuitBreakerState.Set(float64(to))
			logger.Warn("event publisher breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &RedisPublisher{
		client:  client,
		channel: channel,
		cb:      cb,
		logger:  logger,
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, evt *policy.Event) error {
	data, err := evt.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	_, err = p.cb.Execute(func() (interface{}, error) {
		pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return nil, p.client.Publish(pubCtx, p.channel, data).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", evt.Type, err)
	}
	return nil
}

// State reports the breaker state.
func (p *RedisPublisher) State() gobreaker.State {
	return p.cb.State()
}

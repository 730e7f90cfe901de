package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/pkg/logger"
	"github.com/ignitex/engine/pkg/redis"
)

// Redis channels consumers subscribe to.
const (
	ChannelSignalNew       = "signal:new"
	ChannelSignalLifecycle = "signal:lifecycle"
)

// Event is the wire envelope for both redis and websocket consumers.
type Event struct {
	Type      string            `json:"type"` // "signal.new" | "signal.lifecycle"
	Signal    *contracts.Signal `json:"signal"`
	Timestamp time.Time         `json:"timestamp"`
}

// Publisher pushes released signals and lifecycle transitions to redis
// pub/sub and the websocket hub. When redis is disabled the websocket hub
// still receives everything, so a single-process deployment keeps working.
type Publisher struct {
	redis  *redis.Client
	hub    *Hub
	logger *logger.Logger
}

// NewPublisher wires the publisher to the shared redis client and hub.
func NewPublisher(rc *redis.Client, hub *Hub, log *logger.Logger) *Publisher {
	return &Publisher{
		redis:  rc,
		hub:    hub,
		logger: log.Component("feed"),
	}
}

// PublishSignal announces a newly released signal.
func (p *Publisher) PublishSignal(ctx context.Context, signal *contracts.Signal) error {
	return p.publish(ctx, ChannelSignalNew, Event{
		Type:      "signal.new",
		Signal:    signal,
		Timestamp: time.Now().UTC(),
	})
}

// PublishLifecycle announces a state transition on an already released
// signal (the tracker closing it with an outcome).
func (p *Publisher) PublishLifecycle(ctx context.Context, signal *contracts.Signal) error {
	return p.publish(ctx, ChannelSignalLifecycle, Event{
		Type:      "signal.lifecycle",
		Signal:    signal,
		Timestamp: time.Now().UTC(),
	})
}

func (p *Publisher) publish(ctx context.Context, channel string, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("feed event marshal failed: %w", err)
	}

	p.hub.Broadcast(payload)

	if !p.redis.Enabled() {
		return nil
	}
	if err := p.redis.Redis().Publish(ctx, channel, payload).Err(); err != nil {
		// Redis being down must not fail a release; websocket consumers
		// already have the event.
		p.logger.WithError(err).WithFields(map[string]interface{}{
			"channel":   channel,
			"signal_id": evt.Signal.ID,
		}).Warn("Redis publish failed")
	}

	p.logger.WithFields(map[string]interface{}{
		"type":      evt.Type,
		"signal_id": evt.Signal.ID,
		"symbol":    evt.Signal.Symbol,
		"tier":      evt.Signal.Tier,
		"state":     string(evt.Signal.State),
	}).Debug("Published feed event")

	return nil
}

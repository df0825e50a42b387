package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"jobflow/internal/domain/model"
	"jobflow/internal/domain/ports/adapter"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

const FlagChannel = "jobflow:feature-flags"

const (
	busMinBackoff = time.Second
	busMaxBackoff = 30 * time.Second
)

var errSubscriptionClosed = errors.New("subscription closed")

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// subscription is the part of *redis.PubSub the relay reads from.
type subscription interface {
	Receive(ctx context.Context) (interface{}, error)
	Channel(opts ...redis.ChannelOption) <-chan *redis.Message
	Close() error
}

var (
	_ adapter.FlagPublisher = (*FlagBus)(nil)
	_ subscription          = (*redis.PubSub)(nil)
)

// FlagBus fans flag changes out to every instance. Publish sends to Redis;
// Run delivers what arrives on the channel to the local publisher.
type FlagBus struct {
	client    publisher
	subscribe func(ctx context.Context) subscription
	local     adapter.FlagPublisher
	log       *zerolog.Logger

	minBackoff, maxBackoff time.Duration
}

func NewFlagBus(client *Client, local adapter.FlagPublisher, logger *zerolog.Logger) *FlagBus {
	l := logger.With().Str("component", "flag_bus").Logger()
	return &FlagBus{
		client: client,
		subscribe: func(ctx context.Context) subscription {
			return client.Subscribe(ctx, FlagChannel)
		},
		local:      local,
		log:        &l,
		minBackoff: busMinBackoff,
		maxBackoff: busMaxBackoff,
	}
}

// Publish sends flags to every instance. When Redis is unreachable the map is
// still delivered to this instance's subscribers and the Redis error returned.
func (b *FlagBus) Publish(ctx context.Context, flags model.FlagMap) error {
	data, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("encode flags: %w", err)
	}
	pubErr := b.client.Publish(ctx, FlagChannel, data)
	if pubErr == nil {
		return nil
	}
	b.log.Warn().Err(pubErr).Msg("redis publish failed, delivering locally")
	if err := b.local.Publish(ctx, flags); err != nil {
		return fmt.Errorf("publish flags: %w", errors.Join(pubErr, err))
	}
	return fmt.Errorf("publish flags (local only): %w", pubErr)
}

// Run relays the channel until ctx is done, resubscribing with backoff
// whenever the subscription fails.
func (b *FlagBus) Run(ctx context.Context) error {
	backoff := b.minBackoff
	for {
		subscribed, err := b.relay(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if subscribed {
			backoff = b.minBackoff
		}
		b.log.Warn().Err(err).Dur("retry_in", backoff).Msg("flag relay interrupted")

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
		if backoff *= 2; backoff > b.maxBackoff {
			backoff = b.maxBackoff
		}
	}
}

// relay runs one subscription. subscribed reports whether it got past the
// initial confirmation.
func (b *FlagBus) relay(ctx context.Context) (subscribed bool, err error) {
	sub := b.subscribe(ctx)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return false, fmt.Errorf("subscribe %s: %w", FlagChannel, err)
	}
	b.log.Info().Str("channel", FlagChannel).Msg("subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return true, errSubscriptionClosed
			}
			b.deliver(ctx, msg.Payload)
		}
	}
}

func (b *FlagBus) deliver(ctx context.Context, payload string) {
	var flags model.FlagMap
	if err := json.Unmarshal([]byte(payload), &flags); err != nil {
		b.log.Warn().Err(err).Msg("drop malformed flag message")
		return
	}
	if err := b.local.Publish(ctx, flags); err != nil {
		b.log.Error().Err(err).Msg("local broadcast failed")
	}
}

// Package redis fans call events out across server instances over Redis
// pub/sub. Each event is published on a per-user channel and every instance
// delivers what it receives to its local connections.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nortonjulian/chatforia-signal/internal/core"
)

// Deliverer hands an event to the local connections of a user.
type Deliverer interface {
	Deliver(userID int64, ev *core.Event) int
}

// envelope is the wire format on the Redis channel.
type envelope struct {
	UserID int64       `json:"userId"`
	Event  *core.Event `json:"event"`
}

// Broker implements core.Publisher on top of Redis.
type Broker struct {
	client *goredis.Client
	local  Deliverer
	prefix string
	log    *zerolog.Logger
}

// NewBroker creates a broker publishing under prefix.
func NewBroker(client *goredis.Client, local Deliverer, prefix string, logger *zerolog.Logger) *Broker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Broker{client: client, local: local, prefix: prefix, log: logger}
}

// Dial connects to Redis and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// Channel returns the Redis channel for a user.
func (b *Broker) Channel(userID int64) string {
	return b.prefix + "user:" + strconv.FormatInt(userID, 10)
}

// Publish sends ev to every instance holding a connection of userID.
func (b *Broker) Publish(ctx context.Context, userID int64, ev *core.Event) error {
	payload, err := encode(userID, ev)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.Channel(userID), payload).Err(); err != nil {
		return fmt.Errorf("publish to user %d: %w", userID, err)
	}
	return nil
}

// Run subscribes to every user channel and delivers events locally until ctx
// is cancelled.
func (b *Broker) Run(ctx context.Context) error {
	pattern := b.prefix + "user:*"
	sub := b.client.PSubscribe(ctx, pattern)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("psubscribe %s: %w", pattern, err)
	}
	b.log.Info().Str("pattern", pattern).Msg("redis fan-out subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.handle(msg.Channel, msg.Payload)
		}
	}
}

func (b *Broker) handle(channel, payload string) {
	userID, ev, err := decode(payload)
	if err != nil {
		b.log.Warn().Err(err).Str("channel", channel).Msg("discarding malformed fan-out message")
		return
	}
	if want := b.Channel(userID); !strings.EqualFold(want, channel) {
		b.log.Warn().Str("channel", channel).Int64("user_id", userID).Msg("fan-out message on foreign channel")
		return
	}
	b.local.Deliver(userID, ev)
}

func encode(userID int64, ev *core.Event) ([]byte, error) {
	payload, err := json.Marshal(envelope{UserID: userID, Event: ev})
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return payload, nil
}

func decode(payload string) (int64, *core.Event, error) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return 0, nil, fmt.Errorf("decode event: %w", err)
	}
	if env.UserID == 0 || env.Event == nil {
		return 0, nil, fmt.Errorf("decode event: missing user or event")
	}
	return env.UserID, env.Event, nil
}

var _ core.Publisher = (*Broker)(nil)

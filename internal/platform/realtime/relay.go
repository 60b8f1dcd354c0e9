package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/frontdesk/internal/platform/notification"
)

// NoticeChannel is the Redis pub/sub channel shared by every desk agent.
const NoticeChannel = "frontdesk:notices"

// Relay fans operator notices out to the other desk agents through Redis so
// every browser sees failures raised on any terminal.
type Relay struct {
	client   *redis.Client
	hub      *Hub
	terminal string
	logger   zerolog.Logger
}

func NewRelay(client *redis.Client, hub *Hub, terminal string, logger zerolog.Logger) *Relay {
	return &Relay{
		client:   client,
		hub:      hub,
		terminal: terminal,
		logger:   logger.With().Str("component", "relay").Logger(),
	}
}

// NewRedisClient parses url, connects and pings.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// PublishNotice delivers n to local browsers and to the other agents. A
// Redis failure only costs the remote copies.
func (r *Relay) PublishNotice(n notification.Notice) {
	r.hub.PublishNotice(n)

	if n.Terminal == "" {
		n.Terminal = r.terminal
	}
	data, err := json.Marshal(n)
	if err != nil {
		r.logger.Error().Err(err).Msg("marshal notice")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.client.Publish(ctx, NoticeChannel, data).Err(); err != nil {
		r.logger.Warn().Err(err).Str("notice_id", n.ID).Msg("relay notice")
	}
}

// Run forwards notices from other agents to local browsers and to onRemote
// until ctx is done.
func (r *Relay) Run(ctx context.Context, onRemote func(notification.Notice)) error {
	pubsub := r.client.Subscribe(ctx, NoticeChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", NoticeChannel, err)
	}
	r.logger.Info().Str("channel", NoticeChannel).Msg("relay subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var n notification.Notice
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				r.logger.Warn().Err(err).Msg("drop malformed notice")
				continue
			}
			if n.Terminal == r.terminal {
				continue
			}
			r.hub.PublishNotice(n)
			if onRemote != nil {
				onRemote(n)
			}
		}
	}
}

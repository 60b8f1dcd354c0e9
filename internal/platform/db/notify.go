package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Listener holds one pooled connection in LISTEN mode and hands every
// notification payload on a channel to a callback.
type Listener struct {
	pool       *pgxpool.Pool
	logger     zerolog.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewListener(pool *pgxpool.Pool, logger zerolog.Logger) *Listener {
	return &Listener{
		pool:       pool,
		logger:     logger.With().Str("component", "pg_listener").Logger(),
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

// Listen blocks until ctx is cancelled. A dropped connection is re-acquired
// with exponential backoff; onReconnect, when set, runs after every
// successful re-LISTEN so callers can catch up on changes they missed.
func (l *Listener) Listen(ctx context.Context, channel string, fn func(payload string), onReconnect func()) error {
	backoff := l.minBackoff
	first := true
	for {
		err := l.listenOnce(ctx, channel, fn, func() {
			backoff = l.minBackoff
			if !first && onReconnect != nil {
				onReconnect()
			}
			first = false
		})
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Warn().Err(err).Str("channel", channel).Dur("retry_in", backoff).Msg("listener connection lost")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > l.maxBackoff {
			backoff = l.maxBackoff
		}
	}
}

func (l *Listener) listenOnce(ctx context.Context, channel string, fn func(string), ready func()) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	// A connection left in LISTEN mode must not go back to the pool.
	defer func() {
		_ = conn.Conn().Close(context.Background())
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", channel, err)
	}
	l.logger.Info().Str("channel", channel).Msg("listening for changes")
	ready()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		fn(n.Payload)
	}
}

package observer

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	DefaultRedisChannel = "voxroute:events"
	mirrorQueueSize     = 256
)

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisMirror republishes observer payloads on a Redis pub/sub channel, in
// publish order, from a single worker.
type RedisMirror struct {
	client  redisPublisher
	channel string
	queue   chan []byte
	log     zerolog.Logger
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr string, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func NewRedisMirror(client redisPublisher, channel string, logger zerolog.Logger) *RedisMirror {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisMirror{
		client:  client,
		channel: channel,
		queue:   make(chan []byte, mirrorQueueSize),
		log:     logger.With().Str("component", "redis-mirror").Str("channel", channel).Logger(),
	}
}

// Mirror queues payload without blocking; payloads are dropped when the
// queue is full.
func (m *RedisMirror) Mirror(payload []byte) {
	select {
	case m.queue <- payload:
	default:
		m.log.Warn().Msg("redis mirror queue full, dropping event")
	}
}

// Run publishes queued payloads until ctx is done.
func (m *RedisMirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-m.queue:
			if err := m.client.Publish(ctx, m.channel, payload).Err(); err != nil {
				m.log.Warn().Err(err).Msg("failed to mirror observer event")
			}
		}
	}
}

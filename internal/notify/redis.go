package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jengzang/vehicle-status-backend/internal/models"
)

const DefaultChannel = "vehicle-status"

// RedisOptions configures the Redis pub/sub sink
type RedisOptions struct {
	Address  string
	Password string
	Database int
	Channel  string
}

// RedisPublisher publishes snapshots as JSON on a Redis channel so other
// processes can follow status changes
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher connects to Redis and checks the connection
func NewRedisPublisher(ctx context.Context, opts RedisOptions) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.Database,
		// publish deadlines come from the caller
		ContextTimeoutEnabled: true,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Address, err)
	}

	return NewRedisPublisherWithClient(client, opts.Channel), nil
}

// NewRedisPublisherWithClient wraps an existing client
func NewRedisPublisherWithClient(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Channel returns the pub/sub channel snapshots are sent to
func (p *RedisPublisher) Channel() string {
	return p.channel
}

func (p *RedisPublisher) Publish(ctx context.Context, vehicle *models.Vehicle) error {
	payload, err := json.Marshal(vehicle)
	if err != nil {
		return fmt.Errorf("failed to encode vehicle %s: %w", vehicle.VehicleID, err)
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish vehicle %s: %w", vehicle.VehicleID, err)
	}
	return nil
}

// Close releases the underlying connection pool
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

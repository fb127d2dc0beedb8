package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dshills/collabedit/internal/logging"
)

// RedisRelay relays messages over Redis pub/sub.
type RedisRelay struct {
	client   *redis.Client
	instance string
	logger   *logging.Logger

	mu     sync.Mutex
	subs   map[*redis.PubSub]struct{}
	closed bool
}

// NewRedis connects to the Redis server at url (redis://host:port/db).
func NewRedis(ctx context.Context, url string, logger *logging.Logger) (*RedisRelay, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	if logger == nil {
		logger = logging.Null()
	}
	instance := uuid.NewString()
	return &RedisRelay{
		client:   client,
		instance: instance,
		logger:   logger.WithComponent("relay").WithField("instance", instance),
		subs:     make(map[*redis.PubSub]struct{}),
	}, nil
}

// Instance returns the id this relay tags its messages with.
func (r *RedisRelay) Instance() string {
	return r.instance
}

// Publish sends payload to the other instances.
func (r *RedisRelay) Publish(ctx context.Context, doc string, payload []byte) error {
	if r.isClosed() {
		return ErrClosed
	}
	msg, err := wrap(r.instance, payload)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, Channel(doc), msg).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", Channel(doc), err)
	}
	return nil
}

// Subscribe delivers payloads from other instances to fn on a dedicated
// goroutine.
func (r *RedisRelay) Subscribe(ctx context.Context, doc string, fn func(payload []byte)) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	pubsub := r.client.Subscribe(ctx, Channel(doc))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", Channel(doc), err)
	}
	r.subs[pubsub] = struct{}{}

	go func() {
		for msg := range pubsub.Channel() {
			origin, payload, ok := unwrap([]byte(msg.Payload))
			if !ok {
				r.logger.Warn("ignoring malformed message on %s", msg.Channel)
				continue
			}
			if origin == r.instance {
				continue
			}
			fn(payload)
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, pubsub)
			r.mu.Unlock()
			_ = pubsub.Close()
		})
	}
	return cancel, nil
}

// Close ends every subscription and the Redis connection.
func (r *RedisRelay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	for ps := range subs {
		_ = ps.Close()
	}
	return r.client.Close()
}

func (r *RedisRelay) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

package fulfillment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/cafequeue-backend/pkg/logger"
	"github.com/angelmondragon/cafequeue-backend/pkg/redis"
)

const defaultChannelPrefix = "cq:shop-orders"

// Invalidations pushes "something changed" signals for a shop's orders
// between API instances.
type Invalidations interface {
	Publish(ctx context.Context, shopID, orderID uuid.UUID) error
	// Listen delivers a signal per received message until ctx ends or stop
	// is called. Bursts may be coalesced.
	Listen(ctx context.Context, shopID uuid.UUID) (signals <-chan struct{}, stop func(), err error)
}

// ChannelName is the pub/sub channel carrying a shop's invalidations.
func ChannelName(prefix string, shopID uuid.UUID) string {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultChannelPrefix
	}
	return fmt.Sprintf("%s:%s", prefix, shopID)
}

// RedisInvalidations implements Invalidations over Redis pub/sub.
type RedisInvalidations struct {
	client *redis.Client
	prefix string
	logg   *logger.Logger
}

func NewRedisInvalidations(client *redis.Client, prefix string, logg *logger.Logger) *RedisInvalidations {
	return &RedisInvalidations{client: client, prefix: prefix, logg: logg}
}

func (r *RedisInvalidations) Publish(ctx context.Context, shopID, orderID uuid.UUID) error {
	return r.client.Publish(ctx, ChannelName(r.prefix, shopID), orderID.String())
}

func (r *RedisInvalidations) Listen(ctx context.Context, shopID uuid.UUID) (<-chan struct{}, func(), error) {
	sub, err := r.client.Subscribe(ctx, ChannelName(r.prefix, shopID))
	if err != nil {
		return nil, nil, err
	}
	signals := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(signals)
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
				select {
				case signals <- struct{}{}:
				default:
				}
			}
		}
	}()
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			if err := sub.Close(); err != nil && r.logg != nil {
				r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "close invalidation subscription")
			}
		})
	}
	return signals, stop, nil
}

// Package eventsvc relays store change events between API replicas over
// Redis pub/sub so every instance's Listen subscribers observe every write.
package eventsvc

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/eduprohq/edupro/core"
	"github.com/eduprohq/edupro/storage/store/postgres"
)

const channel = "edupro:store:changes"

type RedisRelay struct {
	rdb *redis.Client
}

var _ postgres.Relay = (*RedisRelay)(nil)

func NewRedisRelay(conf *core.Config) *RedisRelay {
	return &RedisRelay{
		rdb: redis.NewClient(&redis.Options{
			Addr:     conf.Redis.Address,
			Password: conf.Redis.Password,
		}),
	}
}

func (r *RedisRelay) Broadcast(ctx context.Context, origin, path string) error {
	payload := origin + " " + path
	return errors.Wrap(r.rdb.Publish(ctx, channel, payload).Err(), "publishing store change")
}

// Run consumes remote change events until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context, onRemote func(origin, path string)) error {
	sub := r.rdb.Subscribe(ctx, channel)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("store change subscription closed")
			}
			parts := strings.SplitN(msg.Payload, " ", 2)
			if len(parts) != 2 {
				continue
			}
			onRemote(parts[0], parts[1])
		}
	}
}

func (r *RedisRelay) Close() error { return r.rdb.Close() }

package session

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/prabhakardwivedi/corpsite/internal/log"
	"github.com/prabhakardwivedi/corpsite/internal/xerrors"
)

// RedisRelay publishes session events on a redis pub/sub channel
type RedisRelay struct {
	client  redis.UniversalClient
	channel string
	logger  log.Logger
}

func NewRedisRelay(client redis.UniversalClient, channel string, logger log.Logger) *RedisRelay {
	if logger == nil {
		logger = log.Nop()
	}
	return &RedisRelay{client: client, channel: channel, logger: logger}
}

func (r *RedisRelay) Publish(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return xerrors.Wrap(err, "encode session event")
	}
	if err := r.client.Publish(ctx, r.channel, b).Err(); err != nil {
		return xerrors.Wrapf(err, "publish to %s", r.channel)
	}
	return nil
}

// Run subscribes and blocks until ctx ends. Malformed messages are skipped.
func (r *RedisRelay) Run(ctx context.Context, deliver func(Event)) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer func() { _ = sub.Close() }()

	// wait for the subscription to be confirmed so no publish is missed
	if _, err := sub.Receive(ctx); err != nil {
		return xerrors.Wrapf(err, "subscribe to %s", r.channel)
	}
	r.logger.Info(ctx, "session relay subscribed", "channel", r.channel)

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-msgs:
			if !ok {
				return xerrors.Newf("subscription to %s closed", r.channel)
			}
			var ev Event
			if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
				r.logger.Warn(ctx, "dropping malformed session event", "err", err)
				continue
			}
			deliver(ev)
		}
	}
}

var _ Relay = (*RedisRelay)(nil)

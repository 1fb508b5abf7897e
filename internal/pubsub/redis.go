package pubsub

import (
	"context"

	"github.com/bigbluebutton/bbb-screen-recorder/internal/config"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/pubsub/redis"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var _ PubSub = (*Redis)(nil)

type Redis struct {
	config config.Redis
	pubsub *redis.PubSub
	ctx    context.Context
	cancel context.CancelFunc
}

func NewRedis(cfg config.Redis) (*Redis, error) {
	p, err := redis.NewPubSub(cfg.Network, cfg.Address, cfg.Password)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to redis at %s", cfg.Address)
	}
	r := &Redis{config: cfg, pubsub: p}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	return r, nil
}

func (r *Redis) Subscribe(channel string, handler PubSubHandler, onStart func() error) error {
	if onStart == nil {
		onStart = func() error { return nil }
	}
	return r.pubsub.ListenChannels(r.ctx, onStart,
		func(channel string, message []byte) error {
			log.WithField("channel", channel).Tracef("%s", message)
			handler(r.ctx, message)
			return nil
		},
		channel)
}

func (r *Redis) Publish(channel string, message []byte) error {
	return r.pubsub.Publish(channel, message)
}

func (r *Redis) Check() error {
	return r.pubsub.Check()
}

// Close stops the subscription and releases the connections.
func (r *Redis) Close() error {
	r.cancel()
	return r.pubsub.Close()
}

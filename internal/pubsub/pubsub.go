package pubsub

import (
	"context"
	"fmt"

	"github.com/bigbluebutton/bbb-screen-recorder/internal/config"
)

type PubSub interface {
	// Subscribe blocks until the pubsub is closed or the connection fails.
	Subscribe(channel string, handler PubSubHandler, onStart func() error) error
	Publish(channel string, message []byte) error
	Check() error
	Close() error
}

type PubSubHandler func(ctx context.Context, message []byte)

func NewPubSub(cfg config.PubSub) (PubSub, error) {
	switch cfg.Adapter {
	case "redis":
		c := config.Redis{}
		if err := config.DecodeAdapter(cfg.Adapters, cfg.Adapter, &c); err != nil {
			return nil, err
		}
		return NewRedis(c)
	default:
		return nil, fmt.Errorf("unknown pubsub adapter '%s'", cfg.Adapter)
	}
}

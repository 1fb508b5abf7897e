// Package platform selects the capture, mixing and recording backend.
package platform

import (
	"fmt"

	"github.com/bigbluebutton/bbb-screen-recorder/internal/config"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/platform/ffmpeg"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/platform/synthetic"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/session"
)

type Platform interface {
	session.Platform
	Name() string
	Close() error
}

var (
	_ Platform = (*ffmpeg.Platform)(nil)
	_ Platform = (*synthetic.Platform)(nil)
)

func New(cfg config.Platform) (Platform, error) {
	switch cfg.Adapter {
	case "ffmpeg":
		var ff config.FFmpeg
		if err := config.DecodeAdapter(cfg.Adapters, cfg.Adapter, &ff); err != nil {
			return nil, err
		}
		return ffmpeg.New(ff), nil
	case "synthetic":
		var s config.Synthetic
		if err := config.DecodeAdapter(cfg.Adapters, cfg.Adapter, &s); err != nil {
			return nil, err
		}
		return synthetic.New(s), nil
	default:
		return nil, fmt.Errorf("unknown platform adapter: %s", cfg.Adapter)
	}
}

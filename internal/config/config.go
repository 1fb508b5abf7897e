package config

import (
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

type App struct {
	Name       string
	Version    string
	GitHash    string
	LongName   string
	InstanceId string
}

type Config struct {
	App        App        `yaml:"-"`
	Recorder   Recorder   `yaml:"recorder,omitempty"`
	Platform   Platform   `yaml:"platform,omitempty"`
	PubSub     PubSub     `yaml:"pubsub,omitempty"`
	HTTP       HTTP       `yaml:"http,omitempty"`
	Prometheus Prometheus `yaml:"prometheus,omitempty"`
	Log        LogConfig  `yaml:"log"`
	Debug      bool       `yaml:"debug,omitempty"`
}

func (cfg *Config) GetDefaults() *Config {
	cfg.SetDefaults()
	return cfg
}

// SetDefaults sets the default values
func (cfg *Config) SetDefaults() {
	if cfg.App.Name == "" {
		var err error
		if cfg.App.Name, err = os.Executable(); err != nil {
			log.Error(err)
			cfg.App.Name = "unknown"
		}
	}

	cfg.Recorder = Recorder{
		ScratchDirectory:   filepath.Join(os.TempDir(), cfg.App.Name),
		DirFileMode:        "0700",
		FileMode:           "0600",
		UseScratchStorage:  true,
		Timeslice:          time.Second,
		DefaultAudioSource: "tab",
		DefaultTitle:       "Recorded Live Stream",
		MaxSessions:        1,
		CommandQueueSize:   64,
	}
	cfg.Platform.Adapter = "ffmpeg"
	cfg.Platform.Adapters = make(map[string]interface{})
	cfg.Platform.Adapters["ffmpeg"] = &FFmpeg{
		Binary:       "ffmpeg",
		FrameRate:    30,
		Microphone:   "default",
		ProbeTimeout: 5 * time.Second,
	}
	cfg.Platform.Adapters["synthetic"] = &Synthetic{
		Display:    "granted",
		Width:      1280,
		Height:     720,
		FrameRate:  5,
		TabAudio:   true,
		Microphone: "granted",
	}
	cfg.PubSub.Enable = false
	cfg.PubSub.Channels = Channels{
		Subscribe: "to-" + cfg.App.Name,
		Publish:   "from-" + cfg.App.Name,
	}
	cfg.PubSub.Adapter = "redis"
	cfg.PubSub.Adapters = make(map[string]interface{})
	cfg.PubSub.Adapters["redis"] = &Redis{
		Address:  ":6379",
		Network:  "tcp",
		Password: "",
	}
	cfg.HTTP = HTTP{
		Enable:        true,
		ListenAddress: "127.0.0.1:8080",
	}
	cfg.Prometheus = Prometheus{
		Enable:        false,
		ListenAddress: "127.0.0.1:3200",
	}
	cfg.Log = LogConfig{Level: "info"}
}

type Recorder struct {
	ScratchDirectory   string        `yaml:"scratchDirectory,omitempty"`
	DirFileMode        string        `yaml:"dirFileMode,omitempty"`
	FileMode           string        `yaml:"fileMode,omitempty"`
	UseScratchStorage  bool          `yaml:"useScratchStorage"`
	Timeslice          time.Duration `yaml:"timeslice,omitempty"`
	Formats            []Format      `yaml:"formats,omitempty"`
	DefaultAudioSource string        `yaml:"defaultAudioSource,omitempty"`
	DefaultTitle       string        `yaml:"defaultTitle,omitempty"`
	MaxSessions        int           `yaml:"maxSessions,omitempty"`
	CommandQueueSize   int           `yaml:"commandQueueSize,omitempty"`
}

// Format overrides one entry of the container/codec preference list.
type Format struct {
	MimeType  string `yaml:"mimeType"`
	Extension string `yaml:"extension"`
}

type Platform struct {
	Adapter  string `yaml:"adapter,omitempty"`
	Adapters map[string]interface{}
}

type FFmpeg struct {
	Binary       string        `yaml:"binary,omitempty" mapstructure:"binary"`
	InputFormat  string        `yaml:"inputFormat,omitempty" mapstructure:"input_format"`
	Display      string        `yaml:"display,omitempty" mapstructure:"display"`
	FrameRate    int           `yaml:"frameRate,omitempty" mapstructure:"frame_rate"`
	AudioFormat  string        `yaml:"audioFormat,omitempty" mapstructure:"audio_format"`
	SystemAudio  string        `yaml:"systemAudio,omitempty" mapstructure:"system_audio"`
	Microphone   string        `yaml:"microphone,omitempty" mapstructure:"microphone"`
	ProbeTimeout time.Duration `yaml:"probeTimeout,omitempty" mapstructure:"probe_timeout"`
}

type Synthetic struct {
	Display    string   `yaml:"display,omitempty" mapstructure:"display"`
	Width      int      `yaml:"width,omitempty" mapstructure:"width"`
	Height     int      `yaml:"height,omitempty" mapstructure:"height"`
	FrameRate  int      `yaml:"frameRate,omitempty" mapstructure:"frame_rate"`
	TabAudio   bool     `yaml:"tabAudio" mapstructure:"tab_audio"`
	Microphone string   `yaml:"microphone,omitempty" mapstructure:"microphone"`
	MimeTypes  []string `yaml:"mimeTypes,omitempty" mapstructure:"mime_types"`
}

type Redis struct {
	Address  string `yaml:"address,omitempty"`
	Network  string `yaml:"network,omitempty"`
	Password string `yaml:"password,omitempty"`
}

type PubSub struct {
	Enable   bool     `yaml:"enable,omitempty"`
	Channels Channels `yaml:"channels,omitempty"`
	Adapter  string   `yaml:"adapter,omitempty"`
	Adapters map[string]interface{}
}

type Channels struct {
	Subscribe string `yaml:"subscribe,omitempty"`
	Publish   string `yaml:"publish,omitempty"`
}

type HTTP struct {
	Enable        bool   `yaml:"enable,omitempty"`
	ListenAddress string `yaml:"listenAddress,omitempty"`
}

type Prometheus struct {
	Enable        bool   `yaml:"enable,omitempty"`
	ListenAddress string `yaml:"listenAddress,omitempty"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

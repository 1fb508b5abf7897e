package ffmpeg

import (
	"os"
	"strconv"

	"github.com/bigbluebutton/bbb-screen-recorder/internal/config"
)

// Input is one ffmpeg input: a demuxer and the device it reads.
type Input struct {
	Format  string
	Device  string
	Options []string
}

func (in Input) IsZero() bool {
	return in.Format == "" || in.Device == ""
}

func (in Input) Args() []string {
	args := append([]string{"-thread_queue_size", "512", "-f", in.Format}, in.Options...)
	return append(args, "-i", in.Device)
}

// Inputs are the devices used for the display, the shared system audio and
// the microphone. Zero inputs are unavailable.
type Inputs struct {
	Display     Input
	SystemAudio Input
	Microphone  Input
}

// DefaultInputs picks the capture devices for goos, honouring the configured
// overrides.
func DefaultInputs(goos string, cfg config.FFmpeg) Inputs {
	rate := []string{"-framerate", strconv.Itoa(cfg.FrameRate)}
	var in Inputs

	switch goos {
	case "darwin":
		in.Display = Input{Format: "avfoundation", Device: or(cfg.Display, "1:none"), Options: append(rate, "-capture_cursor", "1")}
		in.SystemAudio = Input{Format: "avfoundation", Device: prefixed("none:", cfg.SystemAudio)}
		in.Microphone = Input{Format: "avfoundation", Device: prefixed("none:", or(cfg.Microphone, "default"))}
	case "windows":
		in.Display = Input{Format: "gdigrab", Device: or(cfg.Display, "desktop"), Options: rate}
		in.SystemAudio = Input{Format: "dshow", Device: prefixed("audio=", cfg.SystemAudio)}
		in.Microphone = Input{Format: "dshow", Device: prefixed("audio=", cfg.Microphone)}
	default:
		in.Display = Input{Format: "x11grab", Device: or(cfg.Display, or(os.Getenv("DISPLAY"), ":0.0")), Options: rate}
		in.SystemAudio = Input{Format: "pulse", Device: cfg.SystemAudio}
		in.Microphone = Input{Format: "pulse", Device: or(cfg.Microphone, "default")}
	}

	if cfg.InputFormat != "" {
		in.Display.Format = cfg.InputFormat
	}
	if cfg.AudioFormat != "" {
		in.SystemAudio.Format = cfg.AudioFormat
		in.Microphone.Format = cfg.AudioFormat
	}
	return in
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func prefixed(prefix, v string) string {
	if v == "" {
		return ""
	}
	return prefix + v
}

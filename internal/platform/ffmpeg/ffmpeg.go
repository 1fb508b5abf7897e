// Package ffmpeg captures, mixes and records through an ffmpeg subprocess.
package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/bigbluebutton/bbb-screen-recorder/internal/capture"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/config"
	log "github.com/sirupsen/logrus"
)

const defaultProbeTimeout = 5 * time.Second

// CommandFunc builds the command for one ffmpeg invocation.
type CommandFunc func(name string, args ...string) *exec.Cmd

type Platform struct {
	cfg    config.FFmpeg
	inputs Inputs

	execCommand CommandFunc

	capsOnce sync.Once
	caps     capabilities
	capsErr  error
}

func New(cfg config.FFmpeg) *Platform {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 30
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	return &Platform{
		cfg:         cfg,
		inputs:      DefaultInputs(runtime.GOOS, cfg),
		execCommand: exec.Command,
	}
}

// WithCommand replaces the command factory.
func (p *Platform) WithCommand(fn CommandFunc) *Platform {
	p.execCommand = fn
	return p
}

func (p *Platform) Name() string {
	return "ffmpeg"
}

func (p *Platform) Close() error {
	return nil
}

func (p *Platform) Inputs() Inputs {
	return p.inputs
}

// run executes a short-lived ffmpeg invocation and returns its combined output.
func (p *Platform) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()

	cmd := p.execCommand(p.cfg.Binary, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return out.Bytes(), err
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return out.Bytes(), ctx.Err()
	}
}

var (
	permissionMarkers  = []string{"permission denied", "not authorized", "operation not permitted", "access denied"}
	unsupportedMarkers = []string{"unknown input format", "unknown encoder", "requested output format", "no such filter"}
)

// classify turns a failed probe into the capture error taxonomy.
func classify(what, capability string, out []byte, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return capture.Unsupported("ffmpeg")
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	msg := strings.ToLower(string(out))
	for _, m := range permissionMarkers {
		if strings.Contains(msg, m) {
			return capture.PermissionDenied(what)
		}
	}
	for _, m := range unsupportedMarkers {
		if strings.Contains(msg, m) {
			return capture.Unsupported(capability)
		}
	}
	return capture.DeviceError(what, fmt.Errorf("%w: %s", err, lastLine(out)))
}

func lastLine(out []byte) string {
	var last string
	s := bufio.NewScanner(bytes.NewReader(out))
	for s.Scan() {
		if l := strings.TrimSpace(s.Text()); l != "" {
			last = l
		}
	}
	return last
}

// capabilities lists the muxers and encoders of the ffmpeg build.
type capabilities struct {
	muxers   map[string]bool
	encoders map[string]bool
}

func (p *Platform) capabilities() (capabilities, error) {
	p.capsOnce.Do(func() {
		ctx := context.Background()
		muxers, err := p.run(ctx, "-hide_banner", "-muxers")
		if err != nil {
			p.capsErr = fmt.Errorf("listing muxers: %w", err)
			return
		}
		encoders, err := p.run(ctx, "-hide_banner", "-encoders")
		if err != nil {
			p.capsErr = fmt.Errorf("listing encoders: %w", err)
			return
		}
		p.caps = capabilities{
			muxers:   parseList(muxers, 'E'),
			encoders: parseList(encoders, 0),
		}
		log.Debugf("ffmpeg supports %d muxers and %d encoders", len(p.caps.muxers), len(p.caps.encoders))
	})
	return p.caps, p.capsErr
}

// parseList reads the table printed by -muxers and -encoders. Rows follow a
// "--" or " ------" separator; the first column holds flags, the second a
// comma separated list of names. A non-zero flag restricts the rows kept.
func parseList(out []byte, flag byte) map[string]bool {
	names := make(map[string]bool)
	inTable := false

	s := bufio.NewScanner(bytes.NewReader(out))
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if !inTable {
			inTable = strings.HasPrefix(line, "--") || strings.HasPrefix(line, "------")
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if flag != 0 && !strings.ContainsRune(fields[0], rune(flag)) {
			continue
		}
		for _, n := range strings.Split(fields[1], ",") {
			names[n] = true
		}
	}
	return names
}

func (p *Platform) Supported(mimeType string) bool {
	out, ok := outputFor(mimeType)
	if !ok {
		return false
	}
	caps, err := p.capabilities()
	if err != nil {
		log.WithError(err).Warn("could not query ffmpeg capabilities")
		return false
	}
	if !caps.muxers[out.Muxer] || !caps.encoders[out.VideoCodec] {
		return false
	}
	return out.AudioCodec == "" || caps.encoders[out.AudioCodec]
}

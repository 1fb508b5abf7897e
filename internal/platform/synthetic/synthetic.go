// Package synthetic is an in-process platform. It produces a test pattern
// instead of reading real devices, and every prompt outcome is configurable.
package synthetic

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/bigbluebutton/bbb-screen-recorder/internal/capture"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/config"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/mixer"
	"github.com/google/uuid"
)

const (
	OutcomeGranted     = "granted"
	OutcomeDenied      = "denied"
	OutcomeError       = "error"
	OutcomeUnsupported = "unsupported"
)

var ErrDeviceBusy = errors.New("device busy")

type Platform struct {
	cfg config.Synthetic

	mu        sync.Mutex
	displays  []*capture.LocalTrack
	mics      []*capture.LocalTrack
	graphs    []*Graph
	recorders []*Recorder
}

func New(cfg config.Synthetic) *Platform {
	if cfg.Width <= 0 {
		cfg.Width = 1280
	}
	if cfg.Height <= 0 {
		cfg.Height = 720
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 5
	}
	return &Platform{cfg: cfg}
}

func (p *Platform) Name() string {
	return "synthetic"
}

func (p *Platform) Close() error {
	return nil
}

func (p *Platform) AcquireDisplay(ctx context.Context, opts capture.DisplayOptions) (*capture.DisplayStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch p.cfg.Display {
	case OutcomeDenied:
		return nil, capture.PermissionDenied(capture.RequestDisplay)
	case OutcomeUnsupported:
		return nil, capture.Unsupported("display capture")
	case OutcomeError:
		return nil, capture.DeviceError("display", ErrDeviceBusy)
	}

	video := capture.NewTrack(uuid.NewString(), capture.KindVideo, "Synthetic display")
	stream := &capture.DisplayStream{Video: video}
	if opts.Audio && p.cfg.TabAudio {
		stream.Audio = capture.NewTrack(uuid.NewString(), capture.KindAudio, "Synthetic tab audio")
	}

	p.mu.Lock()
	p.displays = append(p.displays, video)
	p.mu.Unlock()

	return stream, nil
}

func (p *Platform) AcquireMicrophone(ctx context.Context, constraints capture.MicrophoneConstraints) (capture.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch p.cfg.Microphone {
	case OutcomeDenied:
		return nil, capture.PermissionDenied(capture.RequestMicrophone)
	case OutcomeError, "":
		return nil, capture.DeviceError("microphone", ErrDeviceBusy)
	}

	mic := capture.NewTrack(uuid.NewString(), capture.KindAudio, "Synthetic microphone")
	p.mu.Lock()
	p.mics = append(p.mics, mic)
	p.mu.Unlock()
	return mic, nil
}

// EndCapture ends the most recent display track as if the user revoked the
// share from the platform controls.
func (p *Platform) EndCapture() bool {
	p.mu.Lock()
	if len(p.displays) == 0 {
		p.mu.Unlock()
		return false
	}
	t := p.displays[len(p.displays)-1]
	p.mu.Unlock()

	if !t.Live() {
		return false
	}
	t.End()
	return true
}

// LiveTracks counts the display and microphone tracks still live.
func (p *Platform) LiveTracks() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, t := range append(append([]*capture.LocalTrack{}, p.displays...), p.mics...) {
		if t.Live() {
			n++
		}
	}
	return n
}

func (p *Platform) Graphs() []*Graph {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Graph{}, p.graphs...)
}

func (p *Platform) Recorders() []*Recorder {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Recorder{}, p.recorders...)
}

func (p *Platform) Supported(mimeType string) bool {
	if len(p.cfg.MimeTypes) > 0 {
		for _, m := range p.cfg.MimeTypes {
			if strings.EqualFold(m, mimeType) {
				return true
			}
		}
		return false
	}
	return isWebM(mimeType)
}

func isWebM(mimeType string) bool {
	container, _, _ := strings.Cut(mimeType, ";")
	return strings.EqualFold(strings.TrimSpace(container), "video/webm")
}

var _ mixer.GraphFactory = (*Platform)(nil)

func (p *Platform) NewMixingGraph() (mixer.Graph, error) {
	g := &Graph{}
	p.mu.Lock()
	p.graphs = append(p.graphs, g)
	p.mu.Unlock()
	return g, nil
}

// Graph mixes by handing out one output track per Mix call.
type Graph struct {
	mu     sync.Mutex
	inputs int
	closed int
	output []*capture.LocalTrack
}

func (g *Graph) Mix(sources []capture.Track) (capture.Track, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed > 0 {
		return nil, mixer.ErrClosed
	}
	g.inputs += len(sources)
	out := capture.NewTrack(uuid.NewString(), capture.KindAudio, "Mixed audio")
	g.output = append(g.output, out)
	return out, nil
}

func (g *Graph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.closed++
	for _, t := range g.output {
		t.Stop()
	}
	return nil
}

// Closed returns how many times the graph was closed.
func (g *Graph) Closed() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

func (g *Graph) Inputs() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inputs
}

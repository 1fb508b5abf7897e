package ffmpeg

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/bigbluebutton/bbb-screen-recorder/internal/capture"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/mixer"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var errNoSystemAudio = errors.New("no system audio device configured")

// inputTrack is a track backed by an ffmpeg input device. The device is only
// opened by a recorder; acquiring the track probes that it can be opened.
type inputTrack struct {
	*capture.LocalTrack
	input Input
}

func newInputTrack(kind capture.Kind, label string, in Input) *inputTrack {
	return &inputTrack{
		LocalTrack: capture.NewTrack(uuid.NewString(), kind, label),
		input:      in,
	}
}

func (p *Platform) probeVideo(ctx context.Context, in Input) ([]byte, error) {
	args := append([]string{"-hide_banner", "-loglevel", "error"}, in.Args()...)
	args = append(args, "-frames:v", "1", "-f", "null", "-")
	return p.run(ctx, args...)
}

func (p *Platform) probeAudio(ctx context.Context, in Input) ([]byte, error) {
	args := append([]string{"-hide_banner", "-loglevel", "error"}, in.Args()...)
	args = append(args, "-t", "0.1", "-f", "null", "-")
	return p.run(ctx, args...)
}

func (p *Platform) AcquireDisplay(ctx context.Context, opts capture.DisplayOptions) (*capture.DisplayStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	display := p.inputs.Display
	if out, err := p.probeVideo(ctx, display); err != nil {
		return nil, classify(capture.RequestDisplay, "display capture ("+display.Format+")", out, err)
	}

	stream := &capture.DisplayStream{
		Video: newInputTrack(capture.KindVideo, "Display "+display.Device, display),
	}

	if opts.Audio {
		audio, err := p.systemAudio(ctx)
		if err != nil {
			// The source is shared without audio, the composer decides what that means.
			log.WithError(err).Info("display is shared without system audio")
		} else {
			stream.Audio = audio
		}
	}
	return stream, nil
}

func (p *Platform) systemAudio(ctx context.Context) (capture.Track, error) {
	in := p.inputs.SystemAudio
	if in.IsZero() {
		return nil, errNoSystemAudio
	}
	if out, err := p.probeAudio(ctx, in); err != nil {
		return nil, classify("system audio", "audio capture ("+in.Format+")", out, err)
	}
	return newInputTrack(capture.KindAudio, "System audio "+in.Device, in), nil
}

func (p *Platform) AcquireMicrophone(ctx context.Context, constraints capture.MicrophoneConstraints) (capture.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	in := p.inputs.Microphone
	if in.IsZero() {
		return nil, capture.DeviceError("microphone", errors.New("no microphone device configured"))
	}
	if constraints.SampleRate > 0 {
		in.Options = append(append([]string{}, in.Options...), "-sample_rate", strconv.Itoa(constraints.SampleRate))
	}

	if out, err := p.probeAudio(ctx, in); err != nil {
		return nil, classify(capture.RequestMicrophone, "microphone capture ("+in.Format+")", out, err)
	}
	return newInputTrack(capture.KindAudio, "Microphone "+in.Device, in), nil
}

var _ mixer.GraphFactory = (*Platform)(nil)

func (p *Platform) NewMixingGraph() (mixer.Graph, error) {
	return &graph{}, nil
}

// graph mixes inside the recording process itself: a mix track remembers its
// inputs and the recorder turns them into an amix filter.
type graph struct {
	mu     sync.Mutex
	closed bool
	out    []*mixTrack
}

type mixTrack struct {
	*capture.LocalTrack
	inputs []Input
}

func (g *graph) Mix(sources []capture.Track) (capture.Track, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, mixer.ErrClosed
	}

	inputs := make([]Input, 0, len(sources))
	for _, s := range sources {
		in, ok := s.(*inputTrack)
		if !ok {
			return nil, capture.Unsupported("mixing foreign tracks")
		}
		inputs = append(inputs, in.input)
	}

	out := &mixTrack{
		LocalTrack: capture.NewTrack(uuid.NewString(), capture.KindAudio, "Mixed audio"),
		inputs:     inputs,
	}
	g.out = append(g.out, out)
	return out, nil
}

func (g *graph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.closed = true
	for _, t := range g.out {
		t.Stop()
	}
	g.out = nil
	return nil
}

// audioInputs resolves the ffmpeg inputs feeding an audio track.
func audioInputs(t capture.Track) ([]Input, error) {
	switch t := t.(type) {
	case nil:
		return nil, nil
	case *inputTrack:
		return []Input{t.input}, nil
	case *mixTrack:
		return t.inputs, nil
	default:
		return nil, capture.Unsupported("recording foreign audio tracks")
	}
}

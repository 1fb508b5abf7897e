package synthetic

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/at-wat/ebml-go/mkvcore"
	"github.com/at-wat/ebml-go/webm"
	"github.com/bigbluebutton/bbb-screen-recorder/internal"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/capture"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/compose"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/config"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/recorder"
)

const (
	opusFrame     = 20 * time.Millisecond
	flushDeadline = 2 * time.Second
)

var _ recorder.Recorder = (*Recorder)(nil)

func (p *Platform) NewRecorder(stream compose.Stream, format recorder.Format, cb recorder.Callbacks) (recorder.Recorder, error) {
	if !p.Supported(format.MimeType) {
		return nil, capture.Unsupported(fmt.Sprintf("recording %s", format.MimeType))
	}
	if stream.Video == nil {
		return nil, compose.ErrNoVideo
	}

	r := &Recorder{
		cfg:      p.cfg,
		hasAudio: stream.HasAudio(),
		cb:       cb,
		state:    recorder.StateInactive,
		stop:     make(chan struct{}),
	}

	p.mu.Lock()
	p.recorders = append(p.recorders, r)
	p.mu.Unlock()

	return r, nil
}

// chunkBuffer collects what the WebM muxer writes between two timeslices.
type chunkBuffer struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed chan struct{}
	once   sync.Once
}

func (b *chunkBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *chunkBuffer) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

func (b *chunkBuffer) take() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buf.Len() == 0 {
		return nil
	}
	out := make([]byte, b.buf.Len())
	copy(out, b.buf.Bytes())
	b.buf.Reset()
	return out
}

// Recorder muxes a synthetic VP8 (and Opus) stream into WebM and emits what
// was written on every timeslice.
type Recorder struct {
	cfg      config.Synthetic
	hasAudio bool
	cb       recorder.Callbacks

	mu       sync.Mutex
	state    recorder.State
	stop     chan struct{}
	stopOnce sync.Once
	chunks   int
	bytes    int
}

func (r *Recorder) State() recorder.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Emitted returns how many chunks and bytes the recorder handed out.
func (r *Recorder) Emitted() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chunks, r.bytes
}

func (r *Recorder) Start(timeslice time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != recorder.StateInactive {
		return fmt.Errorf("recorder already %s", r.state)
	}
	if timeslice <= 0 {
		timeslice = recorder.DefaultTimeslice
	}

	out := &chunkBuffer{closed: make(chan struct{})}
	writers, err := webm.NewSimpleBlockWriter(out, r.tracks(), mkvcore.WithSegmentInfo(&webm.Info{
		TimecodeScale: 1000000,
		MuxingApp:     internal.AppName,
		WritingApp:    internal.AppName,
	}))
	if err != nil {
		return err
	}

	r.state = recorder.StateRecording
	go r.run(timeslice, out, writers)
	return nil
}

func (r *Recorder) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *Recorder) tracks() []webm.TrackEntry {
	tracks := []webm.TrackEntry{
		{
			Name:        "Video",
			TrackNumber: 1,
			TrackUID:    12345,
			CodecID:     "V_VP8",
			TrackType:   1,
			Video: &webm.Video{
				PixelWidth:  uint64(r.cfg.Width),
				PixelHeight: uint64(r.cfg.Height),
			},
		},
	}
	if r.hasAudio {
		tracks = append(tracks, webm.TrackEntry{
			Name:        "Audio",
			TrackNumber: 2,
			TrackUID:    54321,
			CodecID:     "A_OPUS",
			TrackType:   2,
			Audio: &webm.Audio{
				SamplingFrequency: 48000.0,
				Channels:          2,
			},
		})
	}
	return tracks
}

func (r *Recorder) emit(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	r.mu.Lock()
	r.chunks++
	r.bytes += len(chunk)
	r.mu.Unlock()

	if r.cb.OnData != nil {
		r.cb.OnData(chunk)
	}
}

func (r *Recorder) run(timeslice time.Duration, out *chunkBuffer, writers []webm.BlockWriteCloser) {
	ticker := time.NewTicker(timeslice)
	defer ticker.Stop()

	frameInterval := time.Second / time.Duration(r.cfg.FrameRate)
	var elapsed, nextFrame, nextAudio time.Duration
	var frame uint32
	var err error

	write := func(until time.Duration) error {
		for ; nextFrame < until; nextFrame += frameInterval {
			keyframe := frame%uint32(r.cfg.FrameRate) == 0
			if _, err := writers[0].Write(keyframe, int64(nextFrame/time.Millisecond), vp8Frame(frame, keyframe)); err != nil {
				return err
			}
			frame++
		}
		if len(writers) > 1 {
			for ; nextAudio < until; nextAudio += opusFrame {
				if _, err := writers[1].Write(true, int64(nextAudio/time.Millisecond), opusSilence); err != nil {
					return err
				}
			}
		}
		return nil
	}

loop:
	for {
		select {
		case <-ticker.C:
			elapsed += timeslice
			if err = write(elapsed); err != nil {
				break loop
			}
			r.emit(out.take())
		case <-r.stop:
			break loop
		}
	}

	for _, w := range writers {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}

	select {
	case <-out.closed:
	case <-time.After(flushDeadline):
	}
	r.emit(out.take())

	r.mu.Lock()
	r.state = recorder.StateStopped
	r.mu.Unlock()

	if r.cb.OnStop != nil {
		r.cb.OnStop(err)
	}
}

var opusSilence = []byte{0xf8, 0xff, 0xfe}

// vp8Frame returns a frame with a valid VP8 frame tag. The payload is not
// decodable; only the container matters here.
func vp8Frame(n uint32, keyframe bool) []byte {
	if keyframe {
		return []byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a, 0x00, 0x05, 0x00, 0x05, byte(n)}
	}
	return []byte{0x11, 0x02, 0x00, byte(n)}
}

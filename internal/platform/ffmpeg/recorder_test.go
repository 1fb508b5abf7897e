package ffmpeg

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bigbluebutton/bbb-screen-recorder/internal/capture"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/compose"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var webm = recorder.Format{MimeType: "video/webm;codecs=vp8,opus", Extension: "webm"}

type collector struct {
	mu      sync.Mutex
	chunks  [][]byte
	stopped chan error
}

func newCollector() *collector {
	return &collector{stopped: make(chan error, 1)}
}

func (c *collector) callbacks() recorder.Callbacks {
	return recorder.Callbacks{
		OnData: func(chunk []byte) {
			c.mu.Lock()
			c.chunks = append(c.chunks, chunk)
			c.mu.Unlock()
		},
		OnStop: func(err error) { c.stopped <- err },
	}
}

func (c *collector) data() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Join(c.chunks, nil)
}

func (c *collector) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-c.stopped:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("recorder did not stop")
		return nil
	}
}

func display() *inputTrack {
	return newInputTrack(capture.KindVideo, "display", Input{Format: "x11grab", Device: ":99"})
}

func TestRecordArgs(t *testing.T) {
	out, ok := outputFor(webm.MimeType)
	require.True(t, ok)

	video := Input{Format: "x11grab", Device: ":0.0", Options: []string{"-framerate", "30"}}
	tab := Input{Format: "pulse", Device: "sink.monitor"}
	mic := Input{Format: "pulse", Device: "default"}

	args := strings.Join(recordArgs(video, nil, out), " ")
	assert.Contains(t, args, "-f x11grab -framerate 30 -i :0.0")
	assert.NotContains(t, args, "-c:a")
	assert.True(t, strings.HasSuffix(args, "-f webm pipe:1"))

	args = strings.Join(recordArgs(video, []Input{tab}, out), " ")
	assert.Contains(t, args, "-map 0:v:0 -map 1:a:0")
	assert.Contains(t, args, "-c:a libopus")

	args = strings.Join(recordArgs(video, []Input{tab, mic}, out), " ")
	assert.Contains(t, args, "-filter_complex [1:a][2:a]amix=inputs=2:duration=longest:dropout_transition=0[aout] -map [aout]")
	assert.NotContains(t, args, "-nostdin")

	mp4, ok := outputFor("video/mp4;codecs=avc1.42E01E,mp4a.40.2")
	require.True(t, ok)
	args = strings.Join(recordArgs(video, nil, mp4), " ")
	assert.Contains(t, args, "-movflags frag_keyframe+empty_moov+default_base_moof -f mp4 pipe:1")

	_, ok = outputFor("video/mp4;codecs=hvc1")
	assert.False(t, ok)
}

func TestNewRecorderRejects(t *testing.T) {
	p := newPlatform(t, `exit 0`)

	_, err := p.NewRecorder(compose.Stream{Video: display()}, recorder.Format{MimeType: "video/ogg"}, recorder.Callbacks{})
	assert.ErrorIs(t, err, capture.ErrUnsupported)

	foreign := capture.NewTrack("v", capture.KindVideo, "foreign")
	_, err = p.NewRecorder(compose.Stream{Video: foreign}, webm, recorder.Callbacks{})
	assert.ErrorIs(t, err, capture.ErrUnsupported)
}

func TestRecorderStopsOnQuit(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newPlatform(t, `printf head; read line; [ "$line" = q ] && printf tail`)
	c := newCollector()
	video := display()
	r, err := p.NewRecorder(compose.Stream{Video: video}, webm, c.callbacks())
	require.NoError(t, err)
	assert.Equal(t, recorder.StateInactive, r.State())

	require.NoError(t, r.Start(20*time.Millisecond))
	assert.Equal(t, recorder.StateRecording, r.State())
	assert.Error(t, r.Start(time.Second))

	require.Eventually(t, func() bool { return len(c.data()) > 0 }, 2*time.Second, 10*time.Millisecond)

	r.Stop()
	r.Stop()
	require.NoError(t, c.wait(t))
	assert.Equal(t, "headtail", string(c.data()))
	assert.Equal(t, recorder.StateStopped, r.State())
	assert.True(t, video.Live(), "a requested stop does not end the capture")
}

func TestRecorderUnexpectedExit(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newPlatform(t, `printf data; echo "X connection broken" >&2; exit 3`)
	c := newCollector()
	video := display()

	ended := make(chan struct{})
	video.OnEnded(func() { close(ended) })

	r, err := p.NewRecorder(compose.Stream{Video: video}, webm, c.callbacks())
	require.NoError(t, err)
	require.NoError(t, r.Start(time.Second))

	err = c.wait(t)
	assert.ErrorIs(t, err, ErrExitedEarly)
	assert.Contains(t, err.Error(), "X connection broken")
	select {
	case <-ended:
	default:
		t.Fatal("display track was not ended before OnStop")
	}
	assert.Equal(t, "data", string(c.data()))

	r.Stop()
}

func TestRecorderKilledAfterGrace(t *testing.T) {
	defer goleak.VerifyNone(t)

	grace := StopGrace
	StopGrace = 100 * time.Millisecond
	defer func() { StopGrace = grace }()

	p := newPlatform(t, `printf x; exec sleep 10`)
	c := newCollector()
	r, err := p.NewRecorder(compose.Stream{Video: display()}, webm, c.callbacks())
	require.NoError(t, err)
	require.NoError(t, r.Start(time.Second))

	r.Stop()
	assert.Error(t, c.wait(t))
	assert.Equal(t, "x", string(c.data()))
}

func TestStopBeforeStart(t *testing.T) {
	r, err := newPlatform(t, `exit 0`).NewRecorder(compose.Stream{Video: display()}, webm, recorder.Callbacks{})
	require.NoError(t, err)
	r.Stop()
	assert.Equal(t, recorder.StateStopped, r.State())
	assert.Error(t, r.Start(time.Second))
}

func TestLineRing(t *testing.T) {
	r := newLineRing(2)
	_, _ = r.Write([]byte("one\n\ntwo\n"))
	_, _ = r.Write([]byte("three"))
	assert.Equal(t, []string{"two", "three"}, r.Lines())
	assert.Equal(t, "two; three", r.String())
}

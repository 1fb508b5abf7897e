package ffmpeg

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/bigbluebutton/bbb-screen-recorder/internal/capture"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/compose"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/recorder"
	log "github.com/sirupsen/logrus"
)

// StopGrace is how long a recording process may take to flush after "q"
// before it is killed.
var StopGrace = 5 * time.Second

var ErrExitedEarly = errors.New("ffmpeg exited unexpectedly")

func (p *Platform) NewRecorder(stream compose.Stream, format recorder.Format, cb recorder.Callbacks) (recorder.Recorder, error) {
	out, ok := outputFor(format.MimeType)
	if !ok {
		return nil, capture.Unsupported(format.MimeType)
	}

	video, ok := stream.Video.(*inputTrack)
	if !ok {
		return nil, capture.Unsupported("recording foreign video tracks")
	}
	audio, err := audioInputs(stream.Audio)
	if err != nil {
		return nil, err
	}

	return &Recorder{
		p:       p,
		args:    recordArgs(video.input, audio, out),
		display: video,
		cb:      cb,
		state:   recorder.StateInactive,
		stderr:  newLineRing(20),
		exited:  make(chan struct{}),
	}, nil
}

// Recorder runs one ffmpeg process and slices its stdout into chunks.
type Recorder struct {
	p       *Platform
	args    []string
	display *inputTrack
	cb      recorder.Callbacks
	stderr  *lineRing

	mu        sync.Mutex
	state     recorder.State
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	buf       []byte
	requested bool
	exited    chan struct{}
}

func (r *Recorder) Args() []string {
	return r.args
}

func (r *Recorder) State() recorder.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Recorder) Start(timeslice time.Duration) error {
	if timeslice <= 0 {
		timeslice = recorder.DefaultTimeslice
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != recorder.StateInactive {
		return fmt.Errorf("recorder is %s", r.state)
	}

	cmd := r.p.execCommand(r.p.cfg.Binary, r.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = r.stderr

	if err := cmd.Start(); err != nil {
		return classify("recording", "ffmpeg", nil, err)
	}
	log.WithField("pid", cmd.Process.Pid).Debugf("ffmpeg %v", r.args)

	r.cmd = cmd
	r.stdin = stdin
	r.state = recorder.StateRecording

	eof := make(chan struct{})
	go r.read(stdout, eof)
	go r.run(timeslice, eof)
	return nil
}

func (r *Recorder) read(stdout io.Reader, eof chan<- struct{}) {
	defer close(eof)
	b := make([]byte, 32*1024)
	for {
		n, err := stdout.Read(b)
		if n > 0 {
			r.mu.Lock()
			r.buf = append(r.buf, b[:n]...)
			r.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

func (r *Recorder) take() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	chunk := r.buf
	r.buf = nil
	return chunk
}

func (r *Recorder) emit() {
	if chunk := r.take(); len(chunk) > 0 && r.cb.OnData != nil {
		r.cb.OnData(chunk)
	}
}

func (r *Recorder) run(timeslice time.Duration, eof <-chan struct{}) {
	ticker := time.NewTicker(timeslice)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.emit()
		case <-eof:
			r.finish()
			return
		}
	}
}

func (r *Recorder) finish() {
	waitErr := r.cmd.Wait()
	close(r.exited)
	r.emit()

	r.mu.Lock()
	requested := r.requested
	r.state = recorder.StateStopped
	r.mu.Unlock()

	var err error
	switch {
	case !requested:
		err = fmt.Errorf("%w: %v: %s", ErrExitedEarly, waitErr, r.stderr)
		// The capture went away under us: report it the way a revoked share is.
		r.display.End()
	case waitErr != nil:
		err = fmt.Errorf("ffmpeg: %w: %s", waitErr, r.stderr)
	}

	if err != nil {
		log.WithError(err).Warn("recording process finished with an error")
	}
	if r.cb.OnStop != nil {
		r.cb.OnStop(err)
	}
}

// Stop asks ffmpeg to finish the container and kills it if it does not
// exit within StopGrace.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.requested || r.state == recorder.StateStopped {
		r.mu.Unlock()
		return
	}
	r.requested = true
	if r.state == recorder.StateInactive {
		r.state = recorder.StateStopped
		r.mu.Unlock()
		return
	}
	stdin, cmd := r.stdin, r.cmd
	r.mu.Unlock()

	if _, err := io.WriteString(stdin, "q\n"); err != nil {
		log.WithError(err).Debug("could not ask ffmpeg to quit")
	}
	_ = stdin.Close()

	go func() {
		select {
		case <-r.exited:
		case <-time.After(StopGrace):
			log.Warnf("ffmpeg did not exit within %s, killing it", StopGrace)
			_ = cmd.Process.Kill()
		}
	}()
}

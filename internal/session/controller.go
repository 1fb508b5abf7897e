package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bigbluebutton/bbb-screen-recorder/internal"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/appstats"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/capture"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/compose"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/mixer"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/recorder"
	log "github.com/sirupsen/logrus"
)

var (
	ErrClosed     = errors.New("session closed")
	ErrQueueFull  = errors.New("session command queue is full")
	errNoArtifact = errors.New("no artifact")
)

// Platform is everything the controller needs from the host.
type Platform interface {
	capture.Source
	mixer.GraphFactory
	recorder.Engine
}

type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type TickerFunc func(d time.Duration) Ticker

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) Chan() <-chan time.Time { return t.C }

func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

type Options struct {
	Platform      Platform
	Scratch       *recorder.Scratch
	Links         *recorder.Links
	Formats       []recorder.Format
	Timeslice     time.Duration
	DefaultPolicy compose.Policy
	DefaultTitle  string
	QueueSize     int
	NewTicker     TickerFunc
}

// Request carries the user input of selectSource and startRecording.
type Request struct {
	Title  string
	URL    string
	Policy compose.Policy
}

type request struct {
	ev    Event
	reply chan reply
}

type reply struct {
	session Session
	err     error
}

type tickerLoop struct {
	ticker Ticker
	stop   chan struct{}
}

// Controller owns one Session and every resource it holds. All mutations
// happen on the controller goroutine.
type Controller struct {
	id     string
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc

	commands chan interface{}
	done     chan struct{}
	wg       sync.WaitGroup

	mu      sync.RWMutex
	session Session
	subs    map[int]chan Session
	nextSub int

	// Owned by the controller goroutine.
	pending  context.CancelFunc
	handle   *capture.Handle
	attempt  *Attempt
	artifact *recorder.Artifact
	token    string
	ticker   *tickerLoop
	started  time.Time
}

func NewController(ctx context.Context, id string, opts Options) *Controller {
	if opts.Timeslice <= 0 {
		opts.Timeslice = recorder.DefaultTimeslice
	}
	if len(opts.Formats) == 0 {
		opts.Formats = recorder.DefaultFormats
	}
	if opts.DefaultPolicy == "" {
		opts.DefaultPolicy = compose.PolicyTab
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.NewTicker == nil {
		opts.NewTicker = NewTimeTicker
	}
	if opts.Links == nil {
		opts.Links = recorder.NewLinks()
	}

	ctx, cancel := context.WithCancel(internal.WithSession(ctx, id))
	c := &Controller{
		id:       id,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		commands: make(chan interface{}, opts.QueueSize),
		done:     make(chan struct{}),
		session:  New(id, opts.DefaultPolicy, opts.DefaultTitle),
		subs:     make(map[int]chan Session),
	}
	go c.run()
	return c
}

func (c *Controller) ID() string {
	return c.id
}

func (c *Controller) SelectSource(ctx context.Context, req Request) (Session, error) {
	return c.send(ctx, Event{Kind: EvSelectSource, Title: req.Title, URL: req.URL, Policy: req.Policy})
}

func (c *Controller) CancelPreview(ctx context.Context) (Session, error) {
	return c.send(ctx, Event{Kind: EvCancelPreview})
}

// StartRecording starts from preview, or acquires the display first when no
// source was selected yet.
func (c *Controller) StartRecording(ctx context.Context, req Request) (Session, error) {
	return c.send(ctx, Event{Kind: EvStartRequested, Title: req.Title, URL: req.URL, Policy: req.Policy})
}

func (c *Controller) StopRecording(ctx context.Context) (Session, error) {
	return c.send(ctx, Event{Kind: EvStopRequested})
}

func (c *Controller) Reset(ctx context.Context) (Session, error) {
	return c.send(ctx, Event{Kind: EvReset})
}

func (c *Controller) Snapshot() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Artifact returns the finished recording, if any.
func (c *Controller) Artifact() (*recorder.Artifact, error) {
	s := c.Snapshot()
	if s.Artifact == nil {
		return nil, errNoArtifact
	}
	return c.opts.Links.Resolve(s.Artifact.Token)
}

// Subscribe delivers a copy of the session after every change. Slow
// subscribers miss intermediate states.
func (c *Controller) Subscribe() (<-chan Session, func()) {
	ch := make(chan Session, 32)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		if _, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(ch)
		}
		c.mu.Unlock()
	}
}

// Close tears the session down and waits for every goroutine it started.
func (c *Controller) Close() {
	c.cancel()
	<-c.done
}

func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) send(ctx context.Context, ev Event) (Session, error) {
	r := request{ev: ev, reply: make(chan reply, 1)}

	select {
	case <-c.ctx.Done():
		return Session{}, ErrClosed
	default:
	}

	select {
	case c.commands <- r:
	default:
		return c.Snapshot(), ErrQueueFull
	}

	select {
	case res := <-r.reply:
		return res.session, res.err
	case <-ctx.Done():
		return c.Snapshot(), ctx.Err()
	case <-c.done:
		return c.Snapshot(), ErrClosed
	}
}

// enqueue delivers a platform event. It reports false once the controller is
// shutting down.
func (c *Controller) enqueue(ev Event) bool {
	select {
	case c.commands <- ev:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// deliver enqueues an event produced by a helper goroutine, releasing what it
// carries when nobody is left to receive it.
func (c *Controller) deliver(ev Event) {
	if c.enqueue(ev) {
		return
	}
	for _, eff := range discard(ev) {
		c.execute(eff)
	}
}

func (c *Controller) run() {
	defer close(c.done)
	appstats.Sessions.Inc()
	defer appstats.Sessions.Dec()

	for {
		select {
		case <-c.ctx.Done():
			c.shutdown()
			return

		case cmd := <-c.commands:
			switch cmd := cmd.(type) {
			case request:
				err := Check(c.Snapshot(), cmd.ev.Kind)
				if err == nil {
					c.apply(cmd.ev)
				} else {
					log.WithField("session", c.id).Debugf("rejected %s: %v", cmd.ev.Kind, err)
				}
				cmd.reply <- reply{session: c.Snapshot(), err: err}

			case Event:
				c.apply(cmd)

			default:
				log.WithField("session", c.id).Errorf("unknown command type: %T", cmd)
			}
		}
	}
}

func (c *Controller) shutdown() {
	c.apply(Event{Kind: EvReset})

	// Helpers blocked on a prompt see the cancelled context.
	c.wg.Wait()

	for {
		select {
		case cmd := <-c.commands:
			if ev, ok := cmd.(Event); ok {
				for _, eff := range discard(ev) {
					c.execute(eff)
				}
			}
			if r, ok := cmd.(request); ok {
				r.reply <- reply{session: c.Snapshot(), err: ErrClosed}
			}
		default:
			c.mu.Lock()
			for id, ch := range c.subs {
				delete(c.subs, id)
				close(ch)
			}
			c.mu.Unlock()
			log.WithField("session", c.id).Debug("session closed")
			return
		}
	}
}

// apply runs ev and every follow-up event its effects produce.
func (c *Controller) apply(ev Event) {
	queue := []Event{ev}

	for len(queue) > 0 {
		ev := queue[0]
		queue = queue[1:]

		if ev.Err != nil && ev.Generation == c.Snapshot().Generation {
			appstats.OnSessionError(string(Classify(ev.Err)))
		}

		prev := c.Snapshot()
		next, effects := Reduce(prev, ev)

		if ev.Kind != EvChunk && ev.Kind != EvTick {
			log.WithField("session", c.id).
				Tracef("%s: %s -> %s (%d effects)", ev.Kind, prev.Status, next.Status, len(effects))
		}

		c.mu.Lock()
		c.session = next
		c.mu.Unlock()

		for _, eff := range effects {
			if follow := c.execute(eff); follow != nil {
				queue = append(queue, *follow)
			}
		}

		if next != prev {
			c.observe(prev, next)
			c.notify(next)
		}
	}
}

func (c *Controller) observe(prev, next Session) {
	logger := log.WithField("session", c.id)

	if next.ErrorMessage != "" && next.ErrorMessage != prev.ErrorMessage {
		logger.Warn(next.ErrorMessage)
	}
	if next.WarningMessage != "" && next.WarningMessage != prev.WarningMessage {
		logger.Info(next.WarningMessage)
	}
	if prev.Status == next.Status {
		return
	}

	logger.Infof("session %s -> %s", prev.Status, next.Status)

	switch {
	case next.Status == StatusRecording:
		c.started = time.Now()
		appstats.OnRecordingStarted(next.Format.Container(), string(next.StorageMode))
	case prev.Status == StatusProcessing && next.Status == StatusFinished:
		var size int64
		if next.Artifact != nil {
			size = next.Artifact.Size
		}
		appstats.OnRecordingFinished(string(next.StorageMode), size, time.Since(c.started))
	case (prev.Status == StatusRecording || prev.Status == StatusProcessing) && next.Status == StatusIdle:
		reason := "reset"
		if next.ErrorMessage != "" {
			reason = "error"
		}
		appstats.OnRecordingAborted(string(prev.StorageMode), reason)
	}
}

func (c *Controller) notify(s Session) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, ch := range c.subs {
		select {
		case ch <- s:
		default:
			log.WithField("session", c.id).Debug("session subscriber is too slow, dropping update")
		}
	}
}

// execute carries out one effect. It may return a follow-up event that is
// applied before anything else.
func (c *Controller) execute(eff Effect) *Event {
	logger := log.WithField("session", c.id)

	switch eff.Kind {
	case EffCancelPending:
		c.clearPending()

	case EffAcquireDisplay:
		c.clearPending()
		ctx, cancel := context.WithCancel(c.ctx)
		c.pending = cancel
		c.wg.Add(1)
		go c.acquireDisplay(ctx, eff)

	case EffInstallHandle:
		c.clearPending()
		c.handle = eff.Handle
		gen := eff.Generation
		// Runs inline when the track ended before install, so it must not
		// block the controller goroutine.
		c.handle.WatchEnded(func() {
			logger.Info("capture ended by the platform")
			ev := Event{Kind: EvCaptureEnded, Generation: gen}
			select {
			case c.commands <- ev:
			default:
				go c.enqueue(ev)
			}
		})

	case EffDiscardHandle:
		eff.Handle.Release()

	case EffPrepareRecording:
		c.clearPending()
		if c.handle == nil {
			return &Event{Kind: EvStartFailed, Generation: eff.Generation, Err: capture.ErrDeviceError}
		}
		ctx, cancel := context.WithCancel(c.ctx)
		c.pending = cancel
		c.wg.Add(1)
		go c.prepareRecording(ctx, eff, c.handle)

	case EffInstallAttempt:
		c.clearPending()
		c.attempt = eff.Attempt
		if c.opts.Scratch != nil && eff.Attempt.Sink.Mode() == recorder.StorageInMemory {
			appstats.OnStorageFallback()
		}

	case EffDiscardAttempt:
		discardAttempt(eff.Attempt)

	case EffStartRecorder:
		if c.attempt == nil || c.attempt.Recorder == nil {
			return &Event{Kind: EvStartFailed, Generation: eff.Generation, Err: recorder.ErrUnsupportedFormat}
		}
		if err := c.attempt.Recorder.Start(c.opts.Timeslice); err != nil {
			logger.WithError(err).Error("recorder failed to start")
			return &Event{Kind: EvStartFailed, Generation: eff.Generation, Err: err}
		}

	case EffStartTicker:
		c.startTicker(eff.Generation)

	case EffStopTicker:
		c.stopTicker()

	case EffStopRecorder:
		if c.attempt != nil && c.attempt.Recorder != nil {
			c.attempt.Recorder.Stop()
		}

	case EffAppendChunk:
		if c.attempt == nil {
			return nil
		}
		if err := c.attempt.Sink.Append(eff.Chunk); err != nil {
			logger.WithError(err).Error("could not store recorded chunk")
			return &Event{Kind: EvSinkFailed, Generation: eff.Generation, Err: err}
		}
		appstats.OnChunk(c.attempt.Sink.Mode() == recorder.StorageOnDisk, len(eff.Chunk))

	case EffReleaseCapture:
		if c.handle != nil {
			c.handle.Release()
			c.handle = nil
		}

	case EffCloseMixer:
		if c.attempt != nil && c.attempt.Mixer != nil {
			if err := c.attempt.Mixer.Close(); err != nil {
				logger.WithError(err).Warn("could not close audio mixer")
			}
		}

	case EffDiscardSink:
		if c.attempt != nil {
			if err := c.attempt.Sink.Discard(); err != nil {
				logger.WithError(err).Warn("could not discard recording")
			}
			c.attempt = nil
		}

	case EffFinalize:
		return c.finalize(eff)

	case EffReleaseArtifact:
		if c.token != "" {
			c.opts.Links.Revoke(c.token)
			c.token = ""
		}
		if c.artifact != nil {
			if err := c.artifact.Release(); err != nil {
				logger.WithError(err).Warn("could not release artifact")
			}
			c.artifact = nil
		}

	default:
		logger.Errorf("unknown effect %s", eff.Kind)
	}

	return nil
}

func (c *Controller) clearPending() {
	if c.pending != nil {
		c.pending()
		c.pending = nil
	}
}

func (c *Controller) acquireDisplay(ctx context.Context, eff Effect) {
	defer c.wg.Done()

	display, err := c.opts.Platform.AcquireDisplay(ctx, capture.DisplayOptions{Audio: eff.Policy.WantsAudio()})
	if err != nil {
		log.WithField("session", c.id).WithError(err).Info("display capture failed")
		c.deliver(Event{Kind: EvDisplayFailed, Generation: eff.Generation, Err: err})
		return
	}

	c.deliver(Event{
		Kind:       EvDisplayAcquired,
		Generation: eff.Generation,
		Handle:     capture.NewHandle(display),
		Start:      eff.Start,
	})
}

// prepareRecording negotiates the format, picks the storage, asks for the
// microphone and composes the stream. The recorder is created but only
// started once the controller installed the attempt.
func (c *Controller) prepareRecording(ctx context.Context, eff Effect, handle *capture.Handle) {
	defer c.wg.Done()

	gen := eff.Generation
	logger := log.WithField("session", c.id)
	failed := func(err error, a *Attempt) {
		logger.WithError(err).Info("recording could not start")
		c.deliver(Event{Kind: EvStartFailed, Generation: gen, Err: err, Attempt: a})
	}

	format, err := recorder.Negotiate(c.opts.Platform, c.opts.Formats)
	if err != nil {
		failed(err, nil)
		return
	}

	sink := recorder.ChooseStorage(ctx, c.opts.Scratch, fmt.Sprintf("%s-%d", c.id, gen))
	mx := mixer.New(c.opts.Platform)
	attempt := &Attempt{Format: format, Mixer: mx, Sink: sink}

	var mic compose.MicResult
	if compose.NeedsMicrophone(eff.Policy) {
		mic.Track, mic.Err = c.opts.Platform.AcquireMicrophone(ctx, capture.DefaultMicrophoneConstraints())
		if mic.Track != nil {
			handle.SetMicrophone(mic.Track)
		}
		if mic.Err != nil {
			logger.WithError(mic.Err).Info("microphone unavailable")
		}
	}

	res, err := compose.Compose(handle.Display(), mic, eff.Policy, mx)
	if err != nil {
		failed(err, attempt)
		return
	}

	rec, err := c.opts.Platform.NewRecorder(res.Stream, format, recorder.Callbacks{
		OnData: func(chunk []byte) {
			c.enqueue(Event{Kind: EvChunk, Generation: gen, Chunk: chunk})
		},
		OnStop: func(err error) {
			c.enqueue(Event{Kind: EvRecorderStopped, Generation: gen, Err: err})
		},
	})
	if err != nil {
		failed(err, attempt)
		return
	}
	attempt.Recorder = rec

	logger.WithField("format", format.MimeType).
		WithField("storage", sink.Mode()).
		WithField("audio", res.Stream.HasAudio()).
		Info("recording prepared")

	c.deliver(Event{
		Kind:        EvRecordingStarted,
		Generation:  gen,
		Attempt:     attempt,
		Format:      format,
		StorageMode: sink.Mode(),
		Warning:     res.Warning,
	})
}

func (c *Controller) finalize(eff Effect) *Event {
	logger := log.WithField("session", c.id)

	a := c.attempt
	if a == nil {
		return &Event{Kind: EvFinalizeFailed, Generation: eff.Generation, Err: errNoArtifact}
	}
	c.attempt = nil

	artifact, err := a.Sink.Finalize(recorder.Meta{FileName: eff.FileName, Format: eff.Format})
	if err != nil {
		logger.WithError(err).Error("could not finalize recording")
		_ = a.Sink.Discard()
		return &Event{Kind: EvFinalizeFailed, Generation: eff.Generation, Err: err}
	}
	if err := recorder.ProbeArtifact(artifact); err != nil {
		logger.WithError(err).Debug("could not detect recording container")
	}

	c.artifact = artifact
	c.token = c.opts.Links.Create(artifact)

	logger.WithField("file", artifact.FileName).
		WithField("size", artifact.Size).
		WithField("storage", artifact.StorageMode).
		Info("recording finalized")

	return &Event{
		Kind:       EvFinalized,
		Generation: eff.Generation,
		Artifact: &ArtifactInfo{
			Token:       c.token,
			FileName:    artifact.FileName,
			Extension:   eff.Format.Extension,
			MimeType:    eff.Format.MimeType,
			Size:        artifact.Size,
			StorageMode: artifact.StorageMode,
			Container:   artifact.Container,
		},
	}
}

func (c *Controller) startTicker(gen uint64) {
	c.stopTicker()

	t := &tickerLoop{ticker: c.opts.NewTicker(time.Second), stop: make(chan struct{})}
	c.ticker = t

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-t.ticker.Chan():
				select {
				case c.commands <- Event{Kind: EvTick, Generation: gen}:
				case <-t.stop:
					return
				case <-c.ctx.Done():
					return
				}
			case <-t.stop:
				return
			case <-c.ctx.Done():
				return
			}
		}
	}()
}

func (c *Controller) stopTicker() {
	if c.ticker == nil {
		return
	}
	c.ticker.ticker.Stop()
	close(c.ticker.stop)
	c.ticker = nil
}

func discardAttempt(a *Attempt) {
	if a == nil {
		return
	}
	if a.Recorder != nil {
		a.Recorder.Stop()
	}
	if a.Mixer != nil {
		_ = a.Mixer.Close()
	}
	if a.Sink != nil {
		_ = a.Sink.Discard()
	}
}

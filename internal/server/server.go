package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/bigbluebutton/bbb-screen-recorder/internal/appstats"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/compose"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/config"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/platform"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/pubsub"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/pubsub/events"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/recorder"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/session"
	log "github.com/sirupsen/logrus"
)

var (
	ErrUnknownSession  = errors.New("unknown session")
	ErrTooManySessions = errors.New("too many sessions")
	ErrUnknownCommand  = errors.New("unknown command")
)

// Server owns the session controllers and routes control messages to them.
type Server struct {
	cfg      *config.Config
	pubsub   pubsub.PubSub
	platform platform.Platform
	scratch  *recorder.Scratch
	links    *recorder.Links
	ctx      context.Context

	mu       sync.Mutex
	sessions sync.Map
	count    int
	wg       sync.WaitGroup
}

// NewServer creates a server. ps may be nil when the control channel is
// disabled.
func NewServer(ctx context.Context, cfg *config.Config, ps pubsub.PubSub, p platform.Platform, scratch *recorder.Scratch) *Server {
	return &Server{
		cfg:      cfg,
		pubsub:   ps,
		platform: p,
		scratch:  scratch,
		links:    recorder.NewLinks(),
		ctx:      ctx,
	}
}

func (s *Server) Links() *recorder.Links {
	return s.links
}

func (s *Server) Session(id string) (*session.Controller, bool) {
	c, ok := s.sessions.Load(id)
	if !ok {
		return nil, false
	}
	return c.(*session.Controller), true
}

func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// GetOrCreateSession returns the controller of id, creating it if needed.
func (s *Server) GetOrCreateSession(id string) (*session.Controller, error) {
	if c, ok := s.Session(id); ok {
		return c, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.Session(id); ok {
		return c, nil
	}
	if max := s.cfg.Recorder.MaxSessions; max > 0 && s.count >= max {
		return nil, fmt.Errorf("%w: limit is %d", ErrTooManySessions, max)
	}

	c := session.NewController(s.ctx, id, session.Options{
		Platform:      s.platform,
		Scratch:       s.scratch,
		Links:         s.links,
		Formats:       recorder.Preferences(s.cfg.Recorder),
		Timeslice:     s.cfg.Recorder.Timeslice,
		DefaultPolicy: compose.Policy(s.cfg.Recorder.DefaultAudioSource),
		DefaultTitle:  s.cfg.Recorder.DefaultTitle,
		QueueSize:     s.cfg.Recorder.CommandQueueSize,
	})
	s.sessions.Store(id, c)
	s.count++
	log.WithField("session", id).Info("session created")

	updates, _ := c.Subscribe()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for st := range updates {
			s.PublishPubSub(events.NewRecordingStatusChanged(st))
		}
	}()

	return c, nil
}

// CloseSession tears a session down, discarding any recording or artifact.
func (s *Server) CloseSession(id string) bool {
	s.mu.Lock()
	c, ok := s.Session(id)
	if ok {
		s.sessions.Delete(id)
		s.count--
	}
	s.mu.Unlock()

	if ok {
		c.Close()
		log.WithField("session", id).Info("session closed")
	}
	return ok
}

// Close closes every session and waits for their notifications to drain.
func (s *Server) Close() {
	var ids []string
	s.sessions.Range(func(key, _ any) bool {
		ids = append(ids, key.(string))
		return true
	})
	for _, id := range ids {
		s.CloseSession(id)
	}
	s.wg.Wait()
}

// Command is a user request addressed to one session.
type Command struct {
	Id          string
	SessionId   string
	Title       string
	SourceURL   string
	AudioSource string
}

// Dispatch runs cmd against its session. Sessions are created by
// selectSource and startRecording.
func (s *Server) Dispatch(ctx context.Context, cmd Command) (session.Session, error) {
	var policy compose.Policy
	if cmd.AudioSource != "" {
		p, err := compose.ParsePolicy(cmd.AudioSource)
		if err != nil {
			return session.Session{}, err
		}
		policy = p
	}
	req := session.Request{Title: cmd.Title, URL: cmd.SourceURL, Policy: policy}

	var (
		c   *session.Controller
		err error
	)
	switch cmd.Id {
	case events.SelectSourceKey, events.StartRecordingKey:
		c, err = s.GetOrCreateSession(cmd.SessionId)
	default:
		var ok bool
		if c, ok = s.Session(cmd.SessionId); !ok {
			err = fmt.Errorf("%w: %s", ErrUnknownSession, cmd.SessionId)
		}
	}
	if err != nil {
		return session.Session{}, err
	}

	switch cmd.Id {
	case events.SelectSourceKey:
		return c.SelectSource(ctx, req)
	case events.StartRecordingKey:
		return c.StartRecording(ctx, req)
	case events.CancelPreviewKey:
		return c.CancelPreview(ctx)
	case events.StopRecordingKey:
		return c.StopRecording(ctx)
	case events.ResetRecordingKey:
		return c.Reset(ctx)
	}
	return c.Snapshot(), fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Id)
}

func (s *Server) HandlePubSub(ctx context.Context, msg []byte) {
	log.Trace(string(msg))
	event := events.Decode(msg)

	if err := event.Err(); err != nil {
		appstats.OnServerRequest(event.Id, false)
		log.WithError(err).Warn("ignoring control message")
		return
	}
	appstats.OnServerRequest(event.Id, true)

	if event.Id == events.GetRecorderStatusKey {
		s.PublishPubSub(s.Status())
		return
	}

	cmd := Command{Id: event.Id, SessionId: event.SessionId}
	if e := event.SelectSource(); e != nil {
		cmd.Title, cmd.SourceURL, cmd.AudioSource = e.Title, e.SourceURL, e.AudioSource
	}

	st, err := s.Dispatch(ctx, cmd)
	if err != nil {
		log.WithField("session", event.SessionId).WithError(err).Warnf("%s failed", event.Id)
	}

	var snapshot *session.Session
	if st.ID != "" {
		snapshot = &st
	}
	s.PublishPubSub(events.NewResponse(event.Id, event.SessionId, snapshot, err))
}

func (s *Server) Status() *events.RecorderStatus {
	name := ""
	if s.platform != nil {
		name = s.platform.Name()
	}
	return events.NewRecorderStatus(s.cfg.App.Version, s.cfg.App.InstanceId, name, s.SessionCount())
}

func (s *Server) PublishPubSub(msg interface{}) {
	if s.pubsub == nil {
		return
	}

	j, err := json.Marshal(msg)
	if err != nil {
		log.WithError(err).Errorf("could not encode %T", msg)
		return
	}
	if err := s.pubsub.Publish(s.cfg.PubSub.Channels.Publish, j); err != nil {
		log.WithError(err).Error("could not publish message")
		return
	}
	appstats.OnServerResponse(messageId(msg))
}

func messageId(msg interface{}) string {
	switch v := msg.(type) {
	case *events.Response:
		return v.Id
	case *events.RecordingStatusChanged:
		return v.Id
	case *events.RecorderStatus:
		return v.Id
	}
	return ""
}

func (s *Server) OnStart() error {
	log.Info("Application started. Version=", s.cfg.App.Version, " InstanceId=", s.cfg.App.InstanceId)
	s.PublishPubSub(s.Status())
	return nil
}

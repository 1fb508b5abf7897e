package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bigbluebutton/bbb-screen-recorder/internal/config"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/platform"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/pubsub"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/pubsub/events"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/recorder"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/session"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 5 * time.Second
	poll    = 10 * time.Millisecond
)

// Mock PubSub
type mockPubSub struct {
	mu        sync.Mutex
	published []map[string]interface{}
	checkErr  error
}

func (p *mockPubSub) Publish(channel string, msg []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(msg, &m); err != nil {
		return err
	}
	p.mu.Lock()
	p.published = append(p.published, m)
	p.mu.Unlock()
	return nil
}
func (p *mockPubSub) Subscribe(channel string, handler pubsub.PubSubHandler, onStart func() error) error {
	return nil
}
func (p *mockPubSub) Check() error { return p.checkErr }
func (p *mockPubSub) Close() error { return nil }

var _ pubsub.PubSub = (*mockPubSub)(nil)

func (p *mockPubSub) find(id string) map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.published {
		if m["id"] == id {
			return m
		}
	}
	return nil
}

func (p *mockPubSub) expect(t *testing.T, id string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.Eventually(t, func() bool {
		m = p.find(id)
		return m != nil
	}, waitFor, poll, "no %s published", id)
	return m
}

func newTestServer(t *testing.T) (*Server, *mockPubSub) {
	t.Helper()
	cfg := (&config.Config{App: config.App{Name: "test", Version: "0.0.1", InstanceId: "instance"}}).GetDefaults()
	cfg.Platform.Adapter = "synthetic"
	cfg.Recorder.Timeslice = 20 * time.Millisecond
	cfg.Recorder.MaxSessions = 2

	p, err := platform.New(cfg.Platform)
	require.NoError(t, err)

	ps := &mockPubSub{}
	scratch := recorder.NewScratch(afero.NewMemMapFs(), "/scratch", 0o700, 0o600)
	s := NewServer(context.Background(), cfg, ps, p, scratch)
	t.Cleanup(func() {
		s.Close()
		_ = p.Close()
	})
	return s, ps
}

func TestRecorderStatus(t *testing.T) {
	s, ps := newTestServer(t)

	s.HandlePubSub(context.Background(), []byte(`{id: 'getRecorderStatus'}`))

	m := ps.expect(t, events.RecorderStatusKey)
	assert.Equal(t, "0.0.1", m["appVersion"])
	assert.Equal(t, "instance", m["instanceId"])
	assert.Equal(t, "synthetic", m["platform"])
	assert.EqualValues(t, 0, m["sessions"])
}

func TestSelectSourceCreatesSession(t *testing.T) {
	s, ps := newTestServer(t)

	s.HandlePubSub(context.Background(), []byte(`{
		id: 'selectSource',
		sessionId: 's1',
		title: 'Demo',
		audioSource: 'none'
	}`))

	m := ps.expect(t, "selectSourceResponse")
	assert.Equal(t, events.StatusOK, m["status"])
	assert.Equal(t, "s1", m["sessionId"])
	assert.Equal(t, 1, s.SessionCount())

	c, ok := s.Session("s1")
	require.True(t, ok)
	require.Eventually(t, func() bool { return c.Snapshot().Status == session.StatusPreview }, waitFor, poll)
	assert.Equal(t, "Demo", c.Snapshot().Title)

	ps.expect(t, events.RecordingStatusChangedKey)
}

func TestCommandOnUnknownSessionFails(t *testing.T) {
	s, ps := newTestServer(t)

	s.HandlePubSub(context.Background(), []byte(`{"id": "stopRecording", "sessionId": "nope"}`))

	m := ps.expect(t, "stopRecordingResponse")
	assert.Equal(t, events.StatusFailed, m["status"])
	assert.Contains(t, m["error"], "unknown session")
	assert.Nil(t, m["session"])
}

func TestInvalidMessageIsDropped(t *testing.T) {
	s, ps := newTestServer(t)

	s.HandlePubSub(context.Background(), []byte(`{"id": "selectSource"}`))
	s.HandlePubSub(context.Background(), []byte(`not json`))

	assert.Never(t, func() bool {
		ps.mu.Lock()
		defer ps.mu.Unlock()
		return len(ps.published) > 0
	}, 100*time.Millisecond, poll)
}

func TestMaxSessions(t *testing.T) {
	s, _ := newTestServer(t)

	_, err := s.GetOrCreateSession("a")
	require.NoError(t, err)
	_, err = s.GetOrCreateSession("b")
	require.NoError(t, err)
	_, err = s.GetOrCreateSession("c")
	assert.ErrorIs(t, err, ErrTooManySessions)

	assert.True(t, s.CloseSession("a"))
	assert.False(t, s.CloseSession("a"))
	_, err = s.GetOrCreateSession("c")
	assert.NoError(t, err)
}

func TestDispatchRejectsBadPolicy(t *testing.T) {
	s, _ := newTestServer(t)

	_, err := s.Dispatch(context.Background(), Command{Id: events.SelectSourceKey, SessionId: "s1", AudioSource: "speakers"})
	assert.Error(t, err)
	assert.Equal(t, 0, s.SessionCount())
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, r))
	return w
}

func decodeSession(t *testing.T, w *httptest.ResponseRecorder) session.Session {
	t.Helper()
	var st session.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	return st
}

func TestHTTPHealthz(t *testing.T) {
	s, ps := newTestServer(t)
	h := NewHTTPServer(s.cfg.HTTP, s).Router()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)

	ps.checkErr = assert.AnError
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/healthz", "").Code)
}

func TestHTTPStatus(t *testing.T) {
	s, _ := newTestServer(t)
	h := NewHTTPServer(s.cfg.HTTP, s).Router()

	w := do(t, h, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var st events.RecorderStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, "synthetic", st.Platform)
}

func TestHTTPErrors(t *testing.T) {
	s, _ := newTestServer(t)
	h := NewHTTPServer(s.cfg.HTTP, s).Router()

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/sessions/nope", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/sessions/nope/stop", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/sessions/nope", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/artifacts/missing", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/sessions/s1/source", "{").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/sessions/s1/source", `{audioSource: 'speakers'}`).Code)

	w := do(t, h, http.MethodPost, "/sessions/s1/source", `{audioSource: 'none'}`)
	require.Equal(t, http.StatusOK, w.Code)
	// stop is not valid outside of recording
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/sessions/s1/stop", "").Code)

	_, err := s.GetOrCreateSession("s2")
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodPost, "/sessions/s3/source", "").Code)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/sessions/s1", "").Code)
}

func TestHTTPRecordAndDownload(t *testing.T) {
	s, _ := newTestServer(t)
	h := NewHTTPServer(s.cfg.HTTP, s).Router()

	w := do(t, h, http.MethodPost, "/sessions/s1/start", `{title: 'My Clip', audioSource: 'tab'}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Eventually(t, func() bool {
		return decodeSession(t, do(t, h, http.MethodGet, "/sessions/s1", "")).Status == session.StatusRecording
	}, waitFor, poll)
	time.Sleep(100 * time.Millisecond)

	w = do(t, h, http.MethodPost, "/sessions/s1/stop", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var st session.Session
	require.Eventually(t, func() bool {
		st = decodeSession(t, do(t, h, http.MethodGet, "/sessions/s1", ""))
		return st.Status == session.StatusFinished
	}, waitFor, poll)
	require.NotNil(t, st.Artifact)
	assert.Equal(t, "My_Clip.webm", st.Artifact.FileName)

	w = do(t, h, http.MethodGet, "/artifacts/"+st.Artifact.Token+"?filename=demo", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "video/webm", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="demo.webm"`, w.Header().Get("Content-Disposition"))
	assert.EqualValues(t, st.Artifact.Size, w.Body.Len())
	assert.Equal(t, []byte{0x1a, 0x45, 0xdf, 0xa3}, w.Body.Bytes()[:4])

	w = do(t, h, http.MethodPost, "/sessions/s1/reset", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, session.StatusIdle, decodeSession(t, w).Status)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/artifacts/"+st.Artifact.Token, "").Code)
}

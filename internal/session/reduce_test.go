package session

import (
	"errors"
	"testing"

	"github.com/bigbluebutton/bbb-screen-recorder/internal/capture"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/compose"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/label"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/recorder"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

var identity = cmp.Options{
	cmp.Comparer(func(a, b *capture.Handle) bool { return a == b }),
	cmp.Comparer(func(a, b *Attempt) bool { return a == b }),
}

var webmFormat = recorder.Format{MimeType: "video/webm;codecs=vp8,opus", Extension: "webm"}

func kinds(effects []Effect) []EffectKind {
	out := make([]EffectKind, 0, len(effects))
	for _, e := range effects {
		out = append(out, e.Kind)
	}
	return out
}

func assertEffects(t *testing.T, want []EffectKind, got []Effect) {
	t.Helper()
	if diff := cmp.Diff(want, kinds(got)); diff != "" {
		t.Errorf("effects mismatch (-want +got):\n%s", diff)
	}
}

func recording() Session {
	s := New("s", compose.PolicyTab, "Talk")
	s.Status = StatusRecording
	s.Generation = 3
	s.Format = webmFormat
	s.StorageMode = recorder.StorageOnDisk
	s.Capturing = true
	return s
}

func TestReduceSelectSource(t *testing.T) {
	s := New("s", compose.PolicyTab, "")

	next, effects := Reduce(s, Event{
		Kind:   EvSelectSource,
		Title:  "Keynote",
		URL:    "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Policy: compose.PolicyTabAndMic,
	})

	want := s
	want.Generation = 1
	want.Pending = true
	want.Title = "Keynote"
	want.SourceURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	want.VideoID = "dQw4w9WgXcQ"
	want.ThumbnailURL = label.ThumbnailURL("dQw4w9WgXcQ", label.QualityRecording)
	want.AudioPolicy = compose.PolicyTabAndMic
	if diff := cmp.Diff(want, next); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]Effect{{
		Kind:       EffAcquireDisplay,
		Generation: 1,
		Policy:     compose.PolicyTabAndMic,
	}}, effects, identity); diff != "" {
		t.Errorf("effects mismatch (-want +got):\n%s", diff)
	}
}

func TestReduceDisplayAcquired(t *testing.T) {
	s := New("s", compose.PolicyTab, "")
	s, _ = Reduce(s, Event{Kind: EvStartRequested})
	h := capture.NewHandle(&capture.DisplayStream{Video: capture.NewTrack("v", capture.KindVideo, "v")})

	next, effects := Reduce(s, Event{Kind: EvDisplayAcquired, Generation: s.Generation, Handle: h, Start: true})
	assert.Equal(t, StatusPreview, next.Status)
	assert.True(t, next.Pending, "recording is being prepared")
	assert.True(t, next.Capturing)

	if diff := cmp.Diff([]Effect{
		{Kind: EffInstallHandle, Generation: s.Generation, Handle: h},
		{Kind: EffPrepareRecording, Generation: s.Generation, Policy: compose.PolicyTab},
	}, effects, identity); diff != "" {
		t.Errorf("effects mismatch (-want +got):\n%s", diff)
	}
}

func TestReduceStaleEventsReleaseResources(t *testing.T) {
	s := New("s", compose.PolicyTab, "")
	s.Generation = 2

	h := capture.NewHandle(&capture.DisplayStream{Video: capture.NewTrack("v", capture.KindVideo, "v")})
	a := &Attempt{Format: webmFormat}

	next, effects := Reduce(s, Event{Kind: EvDisplayAcquired, Generation: 1, Handle: h})
	assert.Equal(t, s, next)
	if diff := cmp.Diff([]Effect{{Kind: EffDiscardHandle, Generation: 1, Handle: h}}, effects, identity); diff != "" {
		t.Errorf("effects mismatch (-want +got):\n%s", diff)
	}

	next, effects = Reduce(s, Event{Kind: EvRecordingStarted, Generation: 1, Attempt: a})
	assert.Equal(t, s, next)
	if diff := cmp.Diff([]Effect{{Kind: EffDiscardAttempt, Generation: 1, Attempt: a}}, effects, identity); diff != "" {
		t.Errorf("effects mismatch (-want +got):\n%s", diff)
	}

	// Current generation but not allowed: idle without a pending prompt.
	next, effects = Reduce(s, Event{Kind: EvRecordingStarted, Generation: 2, Attempt: a})
	assert.Equal(t, s, next)
	assertEffects(t, []EffectKind{EffDiscardAttempt}, effects)

	next, effects = Reduce(s, Event{Kind: EvTick, Generation: 1})
	assert.Equal(t, s, next)
	assert.Empty(t, effects)
}

func TestReduceRecordingStarted(t *testing.T) {
	s := New("s", compose.PolicyTab, "")
	s.Status = StatusPreview
	s.Pending = true
	s.ErrorMessage = "old"
	a := &Attempt{Format: webmFormat}

	next, effects := Reduce(s, Event{
		Kind:        EvRecordingStarted,
		Attempt:     a,
		Format:      webmFormat,
		StorageMode: recorder.StorageInMemory,
		Warning:     compose.WarningNoTabAudio,
	})

	assert.Equal(t, StatusRecording, next.Status)
	assert.False(t, next.Pending)
	assert.Equal(t, webmFormat, next.Format)
	assert.Equal(t, recorder.StorageInMemory, next.StorageMode)
	assert.Equal(t, compose.WarningNoTabAudio, next.WarningMessage)
	assert.Empty(t, next.ErrorMessage)
	assertEffects(t, []EffectKind{EffInstallAttempt, EffStartRecorder, EffStartTicker}, effects)
}

func TestReduceRecordingLifecycle(t *testing.T) {
	s := recording()

	for i := 0; i < 5; i++ {
		s, _ = Reduce(s, Event{Kind: EvTick, Generation: s.Generation})
	}
	assert.Equal(t, 5, s.ElapsedSeconds)

	_, effects := Reduce(s, Event{Kind: EvChunk, Generation: s.Generation, Chunk: []byte("c1")})
	if diff := cmp.Diff([]Effect{{Kind: EffAppendChunk, Generation: 3, Chunk: []byte("c1")}}, effects, identity); diff != "" {
		t.Errorf("effects mismatch (-want +got):\n%s", diff)
	}
	_, effects = Reduce(s, Event{Kind: EvChunk, Generation: s.Generation})
	assert.Empty(t, effects, "empty chunks are skipped")

	s, effects = Reduce(s, Event{Kind: EvStopRequested})
	assert.Equal(t, StatusProcessing, s.Status)
	assertEffects(t, []EffectKind{EffStopTicker, EffStopRecorder}, effects)

	// First of stop and capture end wins.
	again, effects := Reduce(s, Event{Kind: EvCaptureEnded, Generation: s.Generation})
	assert.Equal(t, s, again)
	assert.Empty(t, effects)
	again, effects = Reduce(s, Event{Kind: EvStopRequested})
	assert.Equal(t, s, again)
	assert.Empty(t, effects)

	s, effects = Reduce(s, Event{Kind: EvRecorderStopped, Generation: s.Generation})
	assert.Equal(t, StatusProcessing, s.Status)
	assert.False(t, s.Capturing)
	assert.Empty(t, s.WarningMessage)
	assertEffects(t, []EffectKind{EffReleaseCapture, EffCloseMixer, EffFinalize}, effects)
	assert.Equal(t, "Talk.webm", effects[2].FileName)
	assert.Equal(t, webmFormat, effects[2].Format)

	s, effects = Reduce(s, Event{Kind: EvFinalized, Generation: s.Generation, Artifact: &ArtifactInfo{Token: "t", Size: 42}})
	assert.Empty(t, effects)
	assert.Equal(t, StatusFinished, s.Status)
	if assert.NotNil(t, s.Artifact) {
		assert.Equal(t, 5, s.Artifact.DurationSeconds)
		assert.Equal(t, int64(42), s.Artifact.Size)
	}

	s, effects = Reduce(s, Event{Kind: EvReset})
	assertEffects(t, []EffectKind{EffReleaseArtifact, EffReleaseCapture}, effects)
	assert.Equal(t, StatusIdle, s.Status)
	assert.Nil(t, s.Artifact)
	assert.Equal(t, uint64(4), s.Generation)
	assert.Equal(t, label.DefaultTitle, s.Title)
}

func TestReduceCaptureEndedWhileRecording(t *testing.T) {
	s := recording()

	s, effects := Reduce(s, Event{Kind: EvCaptureEnded, Generation: s.Generation})
	assert.Equal(t, StatusProcessing, s.Status)
	assertEffects(t, []EffectKind{EffStopTicker, EffStopRecorder}, effects)
}

func TestReduceRecorderFailure(t *testing.T) {
	s := recording()

	s, effects := Reduce(s, Event{Kind: EvRecorderStopped, Generation: s.Generation, Err: errors.New("encoder crashed")})
	assert.Equal(t, StatusProcessing, s.Status)
	assert.Equal(t, WarningRecorderFailed, s.WarningMessage)
	assertEffects(t, []EffectKind{EffStopTicker, EffReleaseCapture, EffCloseMixer, EffFinalize}, effects)
}

func TestReduceSinkFailed(t *testing.T) {
	s := recording()

	next, effects := Reduce(s, Event{Kind: EvSinkFailed, Generation: s.Generation, Err: recorder.ErrStorageInit})
	assert.Equal(t, StatusIdle, next.Status)
	assert.Equal(t, s.Generation+1, next.Generation)
	assert.NotEmpty(t, next.ErrorMessage)
	assertEffects(t, []EffectKind{EffStopTicker, EffStopRecorder, EffReleaseCapture, EffCloseMixer, EffDiscardSink}, effects)
}

func TestReduceStartFailed(t *testing.T) {
	s := New("s", compose.PolicyTabAndMic, "")
	s.Status = StatusPreview
	s.Pending = true
	a := &Attempt{Format: webmFormat}

	next, effects := Reduce(s, Event{
		Kind:    EvStartFailed,
		Attempt: a,
		Err:     capture.PermissionDenied(capture.RequestMicrophone),
	})
	assert.Equal(t, StatusIdle, next.Status)
	assert.False(t, next.Pending)
	assert.Equal(t, MessageMicrophoneDenied, next.ErrorMessage)
	assertEffects(t, []EffectKind{EffCancelPending, EffReleaseCapture, EffDiscardAttempt}, effects)
}

func TestReduceCancelPreview(t *testing.T) {
	s := New("s", compose.PolicyTab, "")

	next, effects := Reduce(s, Event{Kind: EvCancelPreview})
	assert.Equal(t, s, next, "nothing to cancel")
	assert.Empty(t, effects)

	s.Pending = true
	next, effects = Reduce(s, Event{Kind: EvCancelPreview})
	assert.False(t, next.Pending)
	assert.Equal(t, uint64(1), next.Generation)
	assertEffects(t, []EffectKind{EffCancelPending}, effects)

	s = New("s", compose.PolicyTab, "")
	s.Status = StatusPreview
	s.WarningMessage = "kept"
	next, effects = Reduce(s, Event{Kind: EvCaptureEnded})
	assert.Equal(t, StatusIdle, next.Status)
	assert.Equal(t, "kept", next.WarningMessage)
	assertEffects(t, []EffectKind{EffReleaseCapture}, effects)
}

func TestReduceFinalizeFailed(t *testing.T) {
	s := recording()
	s.Status = StatusProcessing

	next, effects := Reduce(s, Event{Kind: EvFinalizeFailed, Generation: s.Generation, Err: errors.New("short write")})
	assert.Equal(t, StatusIdle, next.Status)
	assert.Contains(t, next.ErrorMessage, "short write")
	assertEffects(t, []EffectKind{EffDiscardSink}, effects)
}

func TestReduceResetDuringRecording(t *testing.T) {
	s := recording()
	s.SourceURL = "https://youtu.be/dQw4w9WgXcQ"
	s.VideoID = "dQw4w9WgXcQ"

	next, effects := Reduce(s, Event{Kind: EvReset})
	assert.Equal(t, StatusIdle, next.Status)
	assert.Empty(t, next.SourceURL)
	assert.Empty(t, next.VideoID)
	assert.Zero(t, next.ElapsedSeconds)
	assertEffects(t, []EffectKind{EffStopTicker, EffStopRecorder, EffReleaseCapture, EffCloseMixer, EffDiscardSink}, effects)

	// The stopped recorder reports back under the old generation.
	again, effects := Reduce(next, Event{Kind: EvRecorderStopped, Generation: s.Generation})
	assert.Equal(t, next, again)
	assert.Empty(t, effects)
}

func TestReduceBusy(t *testing.T) {
	s := New("s", compose.PolicyTab, "")
	s.Pending = true

	next, effects := Reduce(s, Event{Kind: EvSelectSource})
	assert.Equal(t, s, next)
	assert.Empty(t, effects)
}

package session

import (
	"github.com/bigbluebutton/bbb-screen-recorder/internal/capture"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/compose"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/recorder"
)

type EffectKind string

const (
	EffCancelPending    EffectKind = "cancelPending"
	EffAcquireDisplay   EffectKind = "acquireDisplay"
	EffInstallHandle    EffectKind = "installHandle"
	EffDiscardHandle    EffectKind = "discardHandle"
	EffPrepareRecording EffectKind = "prepareRecording"
	EffInstallAttempt   EffectKind = "installAttempt"
	EffDiscardAttempt   EffectKind = "discardAttempt"
	EffStartRecorder    EffectKind = "startRecorder"
	EffStartTicker      EffectKind = "startTicker"
	EffStopTicker       EffectKind = "stopTicker"
	EffStopRecorder     EffectKind = "stopRecorder"
	EffAppendChunk      EffectKind = "appendChunk"
	EffReleaseCapture   EffectKind = "releaseCapture"
	EffCloseMixer       EffectKind = "closeMixer"
	EffFinalize         EffectKind = "finalize"
	EffDiscardSink      EffectKind = "discardSink"
	EffReleaseArtifact  EffectKind = "releaseArtifact"
)

// Effect is a side effect requested by Reduce and carried out by the
// controller.
type Effect struct {
	Kind       EffectKind
	Generation uint64

	Start    bool
	Policy   compose.Policy
	Handle   *capture.Handle
	Attempt  *Attempt
	Chunk    []byte
	FileName string
	Format   recorder.Format
}

func effect(kind EffectKind, gen uint64) Effect {
	return Effect{Kind: kind, Generation: gen}
}

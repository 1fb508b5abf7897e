package session

import (
	"github.com/bigbluebutton/bbb-screen-recorder/internal/label"
)

const WarningRecorderFailed = "The recording stopped unexpectedly. The saved file may be incomplete."

// Reduce applies ev to s. It returns the next session and the side effects the
// controller has to carry out, in order. Reduce never fails: events that are
// stale or not allowed leave the session untouched and only release the
// resources they carry.
func Reduce(s Session, ev Event) (Session, []Effect) {
	if !ev.Kind.IsCommand() && ev.Generation != s.Generation {
		return s, discard(ev)
	}

	tr, ok := TransitionFor(s.Status, ev.Kind)
	if !ok || tr.Noop {
		return s, discard(ev)
	}
	if ev.Kind.IsCommand() && Check(s, ev.Kind) != nil {
		return s, discard(ev)
	}

	next := s
	var effects []Effect

	switch ev.Kind {
	case EvSelectSource, EvStartRequested:
		if ev.Kind == EvStartRequested && s.Status == StatusPreview {
			next.clearMessages()
			next.setLabel(ev.Title, ev.URL)
			if ev.Policy != "" {
				next.AudioPolicy = ev.Policy
			}
			next.Pending = true
			effects = append(effects, Effect{
				Kind:       EffPrepareRecording,
				Generation: next.Generation,
				Policy:     next.AudioPolicy,
			})
			break
		}

		effects = leave(s)
		next = idle(s)
		next.setLabel(ev.Title, ev.URL)
		if ev.Policy != "" {
			next.AudioPolicy = ev.Policy
		}
		next.Pending = true
		effects = append(effects, Effect{
			Kind:       EffAcquireDisplay,
			Generation: next.Generation,
			Start:      ev.Kind == EvStartRequested,
			Policy:     next.AudioPolicy,
		})

	case EvDisplayAcquired:
		next.Status = StatusPreview
		next.Capturing = true
		next.Pending = false
		effects = append(effects, Effect{Kind: EffInstallHandle, Generation: s.Generation, Handle: ev.Handle})
		if ev.Start {
			next.Pending = true
			effects = append(effects, Effect{
				Kind:       EffPrepareRecording,
				Generation: s.Generation,
				Policy:     next.AudioPolicy,
			})
		}

	case EvDisplayFailed:
		next.Pending = false
		next.setError(ErrorMessage(ev.Err))

	case EvCancelPreview, EvCaptureEnded:
		if s.Status == StatusRecording {
			next, effects = stop(s)
			break
		}
		if s.Status == StatusIdle && !s.Pending {
			return s, nil
		}
		effects = leave(s)
		next = idle(s)
		next.ErrorMessage, next.WarningMessage = s.ErrorMessage, s.WarningMessage

	case EvRecordingStarted:
		next.Status = StatusRecording
		next.Pending = false
		next.ElapsedSeconds = 0
		next.Format = ev.Format
		next.StorageMode = ev.StorageMode
		next.clearMessages()
		next.setWarning(ev.Warning)
		effects = append(effects,
			Effect{Kind: EffInstallAttempt, Generation: s.Generation, Attempt: ev.Attempt},
			effect(EffStartRecorder, s.Generation),
			effect(EffStartTicker, s.Generation),
		)

	case EvStartFailed, EvSinkFailed:
		effects = leave(s)
		if ev.Attempt != nil {
			effects = append(effects, Effect{Kind: EffDiscardAttempt, Generation: s.Generation, Attempt: ev.Attempt})
		}
		next = idle(s)
		next.setError(ErrorMessage(ev.Err))

	case EvStopRequested:
		next, effects = stop(s)

	case EvTick:
		next.ElapsedSeconds++

	case EvChunk:
		if len(ev.Chunk) == 0 {
			return s, nil
		}
		effects = append(effects, Effect{Kind: EffAppendChunk, Generation: s.Generation, Chunk: ev.Chunk})

	case EvRecorderStopped:
		if s.Status == StatusRecording {
			effects = append(effects, effect(EffStopTicker, s.Generation))
		}
		next.Status = StatusProcessing
		next.Capturing = false
		if ev.Err != nil {
			next.setWarning(WarningRecorderFailed)
		}
		effects = append(effects,
			effect(EffReleaseCapture, s.Generation),
			effect(EffCloseMixer, s.Generation),
			Effect{
				Kind:       EffFinalize,
				Generation: s.Generation,
				FileName:   label.FileName(s.Title, s.Format.Extension),
				Format:     s.Format,
			},
		)

	case EvFinalized:
		next.Status = StatusFinished
		if ev.Artifact != nil {
			a := *ev.Artifact
			a.DurationSeconds = s.ElapsedSeconds
			a.ThumbnailURL = label.ThumbnailURL(s.VideoID, label.QualityCard)
			next.Artifact = &a
		}

	case EvFinalizeFailed:
		effects = append(effects, effect(EffDiscardSink, s.Generation))
		next = idle(s)
		next.setError(ErrorMessage(ev.Err))

	case EvReset:
		effects = leave(s)
		next = idle(s)
		next.Title = label.DefaultTitle
		next.SourceURL, next.VideoID, next.ThumbnailURL = "", "", ""
	}

	return next, effects
}

// stop moves a recording session to processing. Teardown and finalize follow
// the recorder's stop acknowledgement.
func stop(s Session) (Session, []Effect) {
	next := s
	next.Status = StatusProcessing
	return next, []Effect{
		effect(EffStopTicker, s.Generation),
		effect(EffStopRecorder, s.Generation),
	}
}

// idle returns the session reset to idle under a new generation. The title,
// source label and audio policy carry over.
func idle(s Session) Session {
	next := New(s.ID, s.AudioPolicy, s.Title)
	next.SourceURL = s.SourceURL
	next.VideoID = s.VideoID
	next.ThumbnailURL = s.ThumbnailURL
	next.Generation = s.Generation + 1
	return next
}

// leave lists the teardown of every resource the session can hold in its
// current status.
func leave(s Session) []Effect {
	gen := s.Generation
	var effects []Effect

	switch s.Status {
	case StatusIdle:
		if s.Pending {
			effects = append(effects, effect(EffCancelPending, gen))
		}
	case StatusPreview:
		if s.Pending {
			effects = append(effects, effect(EffCancelPending, gen))
		}
		effects = append(effects, effect(EffReleaseCapture, gen))
	case StatusRecording:
		effects = append(effects,
			effect(EffStopTicker, gen),
			effect(EffStopRecorder, gen),
			effect(EffReleaseCapture, gen),
			effect(EffCloseMixer, gen),
			effect(EffDiscardSink, gen),
		)
	case StatusProcessing:
		effects = append(effects,
			effect(EffStopRecorder, gen),
			effect(EffReleaseCapture, gen),
			effect(EffCloseMixer, gen),
			effect(EffDiscardSink, gen),
		)
	case StatusFinished:
		effects = append(effects,
			effect(EffReleaseArtifact, gen),
			effect(EffReleaseCapture, gen),
		)
	}
	return effects
}

// discard releases the resources carried by an event that was not applied.
func discard(ev Event) []Effect {
	var effects []Effect
	if ev.Handle != nil {
		effects = append(effects, Effect{Kind: EffDiscardHandle, Generation: ev.Generation, Handle: ev.Handle})
	}
	if ev.Attempt != nil {
		effects = append(effects, Effect{Kind: EffDiscardAttempt, Generation: ev.Generation, Attempt: ev.Attempt})
	}
	return effects
}

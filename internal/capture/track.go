package capture

import "sync"

type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// Track is a live media track handed out by a platform.
//
// Stop is idempotent and never fires the ended callbacks; those are reserved
// for terminations the application did not ask for (the user revoking the
// share from platform controls, the device going away).
type Track interface {
	ID() string
	Kind() Kind
	Label() string
	Live() bool
	Stop()
	OnEnded(fn func())
}

var _ Track = (*LocalTrack)(nil)

// LocalTrack is the Track implementation shared by the platform adapters.
type LocalTrack struct {
	id    string
	kind  Kind
	label string

	mu       sync.Mutex
	live     bool
	onEnded  []func()
	stopHook func()
}

func NewTrack(id string, kind Kind, label string) *LocalTrack {
	return &LocalTrack{id: id, kind: kind, label: label, live: true}
}

func (t *LocalTrack) ID() string    { return t.id }
func (t *LocalTrack) Kind() Kind    { return t.kind }
func (t *LocalTrack) Label() string { return t.label }

func (t *LocalTrack) Live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

// SetStopHook registers the platform side release run on the first Stop.
func (t *LocalTrack) SetStopHook(fn func()) {
	t.mu.Lock()
	t.stopHook = fn
	t.mu.Unlock()
}

func (t *LocalTrack) Stop() {
	t.mu.Lock()
	if !t.live {
		t.mu.Unlock()
		return
	}
	t.live = false
	hook := t.stopHook
	t.mu.Unlock()

	if hook != nil {
		hook()
	}
}

func (t *LocalTrack) OnEnded(fn func()) {
	t.mu.Lock()
	t.onEnded = append(t.onEnded, fn)
	t.mu.Unlock()
}

// End terminates the track from the platform side and notifies listeners.
func (t *LocalTrack) End() {
	t.mu.Lock()
	if !t.live {
		t.mu.Unlock()
		return
	}
	t.live = false
	callbacks := append([]func(){}, t.onEnded...)
	t.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

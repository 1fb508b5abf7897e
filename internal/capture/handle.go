package capture

import "sync"

// Handle owns the display stream of a session and its optional microphone.
type Handle struct {
	mu       sync.Mutex
	display  *DisplayStream
	mic      Track
	released bool
	onEnded  func()

	watchOnce sync.Once
	endedOnce sync.Once
}

func NewHandle(display *DisplayStream) *Handle {
	return &Handle{display: display}
}

func (h *Handle) Display() *DisplayStream {
	return h.display
}

func (h *Handle) Microphone() Track {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mic
}

// SetMicrophone attaches a microphone track. A track attached to a released
// handle is stopped right away.
func (h *Handle) SetMicrophone(t Track) {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		t.Stop()
		return
	}
	h.mic = t
	h.mu.Unlock()
}

func (h *Handle) Tracks() []Track {
	h.mu.Lock()
	defer h.mu.Unlock()
	tracks := h.display.Tracks()
	if h.mic != nil {
		tracks = append(tracks, h.mic)
	}
	return tracks
}

// WatchEnded registers fn as the termination callback of the display video
// track. fn runs at most once and never after Release. A track that already
// ended before the call fires fn right away.
func (h *Handle) WatchEnded(fn func()) {
	h.mu.Lock()
	h.onEnded = fn
	h.mu.Unlock()

	if h.display == nil || h.display.Video == nil {
		return
	}
	h.watchOnce.Do(func() {
		h.display.Video.OnEnded(h.ended)
	})
	if !h.display.Video.Live() {
		h.ended()
	}
}

func (h *Handle) ended() {
	h.mu.Lock()
	cb := h.onEnded
	released := h.released
	h.mu.Unlock()
	if released || cb == nil {
		return
	}
	h.endedOnce.Do(cb)
}

func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// Release stops every track owned by the handle. It is safe to call repeatedly.
func (h *Handle) Release() {
	h.mu.Lock()
	h.released = true
	h.onEnded = nil
	h.mu.Unlock()

	for _, t := range h.Tracks() {
		if t != nil {
			t.Stop()
		}
	}
}

// Live reports whether any owned track is still live.
func (h *Handle) Live() bool {
	for _, t := range h.Tracks() {
		if t != nil && t.Live() {
			return true
		}
	}
	return false
}

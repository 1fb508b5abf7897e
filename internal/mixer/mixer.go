package mixer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bigbluebutton/bbb-screen-recorder/internal/capture"
)

var ErrClosed = errors.New("mixing context closed")

// Graph is a platform mixing context combining audio tracks into one.
type Graph interface {
	Mix(sources []capture.Track) (capture.Track, error)
	Close() error
}

// GraphFactory creates a mixing context. Platforms implement it.
type GraphFactory interface {
	NewMixingGraph() (Graph, error)
}

// Mixer owns the mixing context of one recording attempt. The context is
// created on the first non-empty Mix and closed exactly once.
type Mixer struct {
	factory GraphFactory

	mu      sync.Mutex
	graph   Graph
	created bool
	closed  bool
}

func New(factory GraphFactory) *Mixer {
	return &Mixer{factory: factory}
}

// Mix returns one track mixing sources. An empty source list produces no track
// and no mixing context.
func (m *Mixer) Mix(sources []capture.Track) (capture.Track, error) {
	live := make([]capture.Track, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			live = append(live, s)
		}
	}
	if len(live) == 0 {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	if m.graph == nil {
		g, err := m.factory.NewMixingGraph()
		if err != nil {
			return nil, fmt.Errorf("create mixing context: %w", err)
		}
		m.graph = g
		m.created = true
	}

	out, err := m.graph.Mix(live)
	if err != nil {
		return nil, fmt.Errorf("mix %d audio sources: %w", len(live), err)
	}
	return out, nil
}

func (m *Mixer) Created() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created
}

func (m *Mixer) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close tears the mixing context down. Repeated calls are no-ops.
func (m *Mixer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if m.graph == nil {
		return nil
	}
	g := m.graph
	m.graph = nil
	return g.Close()
}

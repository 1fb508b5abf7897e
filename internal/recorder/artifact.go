package recorder

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrReleased     = errors.New("artifact released")
	ErrLinkNotFound = errors.New("link not found")
)

// Artifact is a finalized recording. It stays readable until Release.
type Artifact struct {
	FileName    string
	Format      Format
	Size        int64
	StorageMode StorageMode
	// Container is the container detected from the leading bytes, if any.
	Container string
	CreatedAt time.Time

	mu       sync.Mutex
	released bool
	data     []byte
	scratch  *Scratch
	path     string
}

type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }

func (a *Artifact) Open() (io.ReadSeekCloser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		return nil, ErrReleased
	}
	if a.scratch == nil {
		return readSeekNopCloser{bytes.NewReader(a.data)}, nil
	}
	return a.scratch.Open(a.path)
}

// Path is the scratch file backing the artifact, empty for in-memory ones.
func (a *Artifact) Path() string {
	return a.path
}

func (a *Artifact) Released() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.released
}

// Release frees the artifact storage. Repeated calls are no-ops.
func (a *Artifact) Release() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		return nil
	}
	a.released = true
	a.data = nil
	if a.scratch != nil {
		return a.scratch.Remove(a.path)
	}
	return nil
}

// Links hands out opaque download tokens for artifacts.
type Links struct {
	mu    sync.RWMutex
	links map[string]*Artifact
}

func NewLinks() *Links {
	return &Links{links: make(map[string]*Artifact)}
}

func (l *Links) Create(a *Artifact) string {
	token := uuid.NewString()
	l.mu.Lock()
	l.links[token] = a
	l.mu.Unlock()
	return token
}

func (l *Links) Resolve(token string) (*Artifact, error) {
	l.mu.RLock()
	a, ok := l.links[token]
	l.mu.RUnlock()
	if !ok || a.Released() {
		return nil, ErrLinkNotFound
	}
	return a, nil
}

// Revoke forgets a token. Unknown tokens are ignored.
func (l *Links) Revoke(token string) {
	l.mu.Lock()
	delete(l.links, token)
	l.mu.Unlock()
}

func (l *Links) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.links)
}

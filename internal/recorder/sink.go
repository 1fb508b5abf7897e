package recorder

import (
	"context"
	"errors"

	"github.com/bigbluebutton/bbb-screen-recorder/internal"
	log "github.com/sirupsen/logrus"
)

type StorageMode string

const (
	StorageOnDisk   StorageMode = "on-disk"
	StorageInMemory StorageMode = "in-memory"
)

var (
	ErrAlreadyFinalized = errors.New("sink already finalized")
	ErrDiscarded        = errors.New("sink discarded")
)

// Meta describes the artifact a sink produces on Finalize.
type Meta struct {
	FileName string
	Format   Format
}

// ChunkSink accumulates encoded chunks in arrival order.
type ChunkSink interface {
	Mode() StorageMode
	// Append stores a chunk. Empty chunks are ignored.
	Append(chunk []byte) error
	Size() int64
	Chunks() int
	// Finalize produces the artifact. It succeeds at most once.
	Finalize(meta Meta) (*Artifact, error)
	// Discard drops everything the sink holds, scratch file included.
	Discard() error
}

// ChooseStorage prefers an on-disk sink and falls back to memory when scratch
// storage is disabled or cannot be initialised.
func ChooseStorage(ctx context.Context, scratch *Scratch, name string) ChunkSink {
	logger := log.WithField("session", internal.SessionFromContext(ctx))

	if scratch == nil {
		logger.Debug("scratch storage disabled, buffering recording in memory")
		return NewMemorySink()
	}

	s, err := NewDiskSink(scratch, name)
	if err != nil {
		logger.WithError(err).Warn("scratch storage unavailable, buffering recording in memory")
		return NewMemorySink()
	}

	logger.WithField("file", s.Path()).Debug("buffering recording in scratch file")
	return s
}

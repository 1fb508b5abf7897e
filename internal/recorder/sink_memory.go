package recorder

import (
	"sync"
	"time"
)

var _ ChunkSink = (*MemorySink)(nil)

type MemorySink struct {
	mu        sync.Mutex
	chunks    [][]byte
	size      int64
	finalized bool
	discarded bool
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Mode() StorageMode {
	return StorageInMemory
}

func (s *MemorySink) Append(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.discarded:
		return ErrDiscarded
	case s.finalized:
		return ErrAlreadyFinalized
	}

	c := make([]byte, len(chunk))
	copy(c, chunk)
	s.chunks = append(s.chunks, c)
	s.size += int64(len(c))
	return nil
}

func (s *MemorySink) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *MemorySink) Chunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

func (s *MemorySink) Finalize(meta Meta) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.discarded:
		return nil, ErrDiscarded
	case s.finalized:
		return nil, ErrAlreadyFinalized
	}
	s.finalized = true

	data := make([]byte, 0, s.size)
	for _, c := range s.chunks {
		data = append(data, c...)
	}
	s.chunks = nil

	return &Artifact{
		FileName:    meta.FileName,
		Format:      meta.Format,
		Size:        int64(len(data)),
		StorageMode: StorageInMemory,
		CreatedAt:   time.Now(),
		data:        data,
	}, nil
}

func (s *MemorySink) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discarded = true
	s.chunks = nil
	return nil
}

package recorder

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/afero"
)

var _ ChunkSink = (*DiskSink)(nil)

// DiskSink appends chunks to a scratch file.
type DiskSink struct {
	scratch *Scratch
	path    string

	mu        sync.Mutex
	file      afero.File
	size      int64
	chunks    int
	finalized bool
	discarded bool
}

func NewDiskSink(scratch *Scratch, name string) (*DiskSink, error) {
	f, p, err := scratch.Create(name)
	if err != nil {
		return nil, err
	}
	return &DiskSink{scratch: scratch, path: p, file: f}, nil
}

func (s *DiskSink) Mode() StorageMode {
	return StorageOnDisk
}

func (s *DiskSink) Path() string {
	return s.path
}

func (s *DiskSink) Append(chunk []byte) error {
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

	n, err := s.file.Write(chunk)
	s.size += int64(n)
	if err != nil {
		return fmt.Errorf("append to scratch file %s: %w", s.path, err)
	}
	s.chunks++
	return nil
}

func (s *DiskSink) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *DiskSink) Chunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks
}

// Finalize closes the write handle and reopens the scratch file for reading.
func (s *DiskSink) Finalize(meta Meta) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.discarded:
		return nil, ErrDiscarded
	case s.finalized:
		return nil, ErrAlreadyFinalized
	}
	s.finalized = true

	if err := s.file.Close(); err != nil {
		return nil, fmt.Errorf("close scratch file %s: %w", s.path, err)
	}
	s.file = nil

	r, err := s.scratch.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("reopen scratch file %s: %w", s.path, err)
	}
	info, err := r.Stat()
	_ = r.Close()
	if err != nil {
		return nil, fmt.Errorf("stat scratch file %s: %w", s.path, err)
	}

	return &Artifact{
		FileName:    meta.FileName,
		Format:      meta.Format,
		Size:        info.Size(),
		StorageMode: StorageOnDisk,
		CreatedAt:   time.Now(),
		scratch:     s.scratch,
		path:        s.path,
	}, nil
}

func (s *DiskSink) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.discarded = true
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
	return s.scratch.Remove(s.path)
}

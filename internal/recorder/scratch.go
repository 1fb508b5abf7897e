package recorder

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/bigbluebutton/bbb-screen-recorder/internal/config"
	"github.com/spf13/afero"
)

const scratchSuffix = ".part"

var ErrStorageInit = errors.New("scratch storage unavailable")

// Scratch is the process-local scratch storage used by on-disk sinks.
type Scratch struct {
	fs          afero.Fs
	dir         string
	dirFileMode os.FileMode
	fileMode    os.FileMode
}

func NewScratch(fs afero.Fs, dir string, dirFileMode, fileMode os.FileMode) *Scratch {
	return &Scratch{fs: fs, dir: path.Clean(dir), dirFileMode: dirFileMode, fileMode: fileMode}
}

// NewScratchFromConfig returns nil when scratch storage is disabled.
func NewScratchFromConfig(cfg config.Recorder) (*Scratch, error) {
	if !cfg.UseScratchStorage {
		return nil, nil
	}
	dirFileMode, err := parseFileMode(cfg.DirFileMode)
	if err != nil {
		return nil, err
	}
	fileMode, err := parseFileMode(cfg.FileMode)
	if err != nil {
		return nil, err
	}
	return NewScratch(afero.NewOsFs(), cfg.ScratchDirectory, dirFileMode, fileMode), nil
}

func (s *Scratch) Dir() string {
	return s.dir
}

// Create makes a new append-only scratch file. Names never collide with an
// existing file.
func (s *Scratch) Create(name string) (afero.File, string, error) {
	if err := s.fs.MkdirAll(s.dir, s.dirFileMode); err != nil {
		return nil, "", fmt.Errorf("%w: directory %s: %w", ErrStorageInit, s.dir, err)
	}

	p := filepath.Join(s.dir, name+scratchSuffix)
	f, err := s.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL|os.O_APPEND, s.fileMode)
	if err != nil {
		return nil, "", fmt.Errorf("%w: file %s: %w", ErrStorageInit, p, err)
	}
	return f, p, nil
}

func (s *Scratch) Open(p string) (afero.File, error) {
	return s.fs.Open(p)
}

func (s *Scratch) Stat(p string) (os.FileInfo, error) {
	return s.fs.Stat(p)
}

// Remove deletes a scratch file; a missing file is not an error.
func (s *Scratch) Remove(p string) error {
	if err := s.fs.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Scratch) Exists(p string) bool {
	ok, _ := afero.Exists(s.fs, p)
	return ok
}

// Sweep removes scratch files left behind by a previous process.
func (s *Scratch) Sweep() (int, error) {
	matches, err := afero.Glob(s.fs, filepath.Join(s.dir, "*"+scratchSuffix))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, m := range matches {
		if err := s.Remove(m); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

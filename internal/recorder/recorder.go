package recorder

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/bigbluebutton/bbb-screen-recorder/internal/compose"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/config"
	log "github.com/sirupsen/logrus"
)

// DefaultTimeslice is the chunk cadence requested from platform recorders.
const DefaultTimeslice = time.Second

type State string

const (
	StateInactive  State = "inactive"
	StateRecording State = "recording"
	StateStopped   State = "stopped"
)

// Callbacks are invoked from the recorder's own goroutine: OnData in emission
// order, then OnStop exactly once.
type Callbacks struct {
	OnData func(chunk []byte)
	OnStop func(err error)
}

// Recorder is a platform chunked media recorder.
type Recorder interface {
	Start(timeslice time.Duration) error
	// Stop asks the recorder to finish. It does not wait for OnStop and is a
	// no-op once the recorder stopped.
	Stop()
	State() State
}

// Engine is the recording capability of a platform.
type Engine interface {
	Prober
	NewRecorder(stream compose.Stream, format Format, cb Callbacks) (Recorder, error)
}

// CheckScratchDirectory makes sure scratch files can be created in the
// configured directory with the configured mode.
func CheckScratchDirectory(cfg config.Recorder) error {
	if !cfg.UseScratchStorage {
		return nil
	}

	dir := path.Clean(cfg.ScratchDirectory)

	dirFileMode, err := parseFileMode(cfg.DirFileMode)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, dirFileMode); err != nil && !os.IsExist(err) {
		return fmt.Errorf("scratch directory could not be created %s: %w", dir, err)
	}

	if err := checkDirectory(dir); err != nil {
		return err
	}

	fileMode, err := parseFileMode(cfg.FileMode)
	if err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(dir, ".scratch-perm-check-*")
	if err != nil {
		return fmt.Errorf("scratch directory is not writable: %w", err)
	}

	defer func() {
		_ = tmpFile.Close()
		if err := os.Remove(tmpFile.Name()); err != nil {
			log.WithField("file", tmpFile.Name()).Warnf("could not remove permission check file: %v", err)
		}
	}()

	if err := tmpFile.Chmod(fileMode); err != nil {
		return fmt.Errorf("cannot apply file mode %s: %w", cfg.FileMode, err)
	}

	return nil
}

func parseFileMode(mode string) (os.FileMode, error) {
	if parsedFileMode, err := strconv.ParseUint(mode, 0, 32); err != nil {
		return 0, fmt.Errorf("invalid file mode %s", mode)
	} else {
		return os.FileMode(parsedFileMode), nil
	}
}

func checkDirectory(dir string) error {
	if fileInfo, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("scratch directory does not exist: %s", dir)
		}
		return fmt.Errorf("could not stat scratch directory %s: %w", dir, err)
	} else if !fileInfo.IsDir() {
		return fmt.Errorf("scratch path is not a directory: %s", dir)
	}

	return nil
}

package recorder

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/at-wat/ebml-go"
	"github.com/at-wat/ebml-go/webm"
)

const probeLimit = 4096

var ErrUnknownContainer = errors.New("unknown container")

type ebmlProbe struct {
	Header webm.EBMLHeader `ebml:"EBML"`
}

// ProbeContainer identifies the container from the first bytes of a recording.
func ProbeContainer(r io.Reader) (string, error) {
	head := make([]byte, probeLimit)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", err
	}
	head = head[:n]

	if len(head) >= 8 && bytes.Equal(head[4:8], []byte("ftyp")) {
		return "mp4", nil
	}

	var p ebmlProbe
	err = ebml.Unmarshal(bytes.NewReader(head), &p, ebml.WithIgnoreUnknown(true))
	if p.Header.DocType != "" {
		return p.Header.DocType, nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnknownContainer, err)
	}
	return "", ErrUnknownContainer
}

// ProbeArtifact fills in the artifact's detected container.
func ProbeArtifact(a *Artifact) error {
	r, err := a.Open()
	if err != nil {
		return err
	}
	defer r.Close()

	container, err := ProbeContainer(r)
	if err != nil {
		return err
	}
	a.Container = container
	return nil
}

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTableCoverage(t *testing.T) {
	allowed := map[Status]map[EventKind]Transition{}
	for _, tr := range transitionsTable {
		if _, ok := allowed[tr.From]; !ok {
			allowed[tr.From] = map[EventKind]Transition{}
		}
		if _, exists := allowed[tr.From][tr.Event]; exists {
			t.Fatalf("duplicate transition: %s + %s", tr.From, tr.Event)
		}
		allowed[tr.From][tr.Event] = tr
	}

	for _, status := range Statuses {
		for _, ev := range Events {
			tr, ok := TransitionFor(status, ev)
			want, exists := allowed[status][ev]
			require.Equal(t, exists, ok, "%s + %s", status, ev)
			if ok {
				require.Equal(t, want, tr)
				require.Contains(t, Statuses, tr.To, "%s + %s leads nowhere", status, ev)
			}
		}

		_, ok := TransitionFor(status, EvReset)
		require.True(t, ok, "reset must be allowed while %s", status)
	}
}

func TestCheck(t *testing.T) {
	s := New("s", "tab", "")

	assert.NoError(t, Check(s, EvSelectSource))
	assert.NoError(t, Check(s, EvStopRequested))
	assert.ErrorIs(t, Check(s, EvRecorderStopped), ErrNotAllowed)

	s.Pending = true
	assert.ErrorIs(t, Check(s, EvSelectSource), ErrBusy)
	assert.ErrorIs(t, Check(s, EvStartRequested), ErrBusy)
	assert.NoError(t, Check(s, EvCancelPreview))
	assert.NoError(t, Check(s, EvReset))

	s = New("s", "tab", "")
	s.Status = StatusRecording
	assert.ErrorIs(t, Check(s, EvSelectSource), ErrNotAllowed)
	assert.ErrorIs(t, Check(s, EvStartRequested), ErrNotAllowed)
	assert.NoError(t, Check(s, EvStopRequested))

	s.Status = StatusProcessing
	assert.NoError(t, Check(s, EvStopRequested), "a second stop is accepted")
	assert.ErrorIs(t, Check(s, EvCancelPreview), ErrNotAllowed)
}

func TestIsCommand(t *testing.T) {
	commands := 0
	for _, ev := range Events {
		if ev.IsCommand() {
			commands++
		}
	}
	assert.Equal(t, 5, commands)
	assert.False(t, EvTick.IsCommand())
}

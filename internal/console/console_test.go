package console

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faize-ai/coalface/internal/frame"
	"github.com/faize-ai/coalface/internal/runloop"
	"github.com/faize-ai/coalface/internal/session"
)

type recordingInjector struct {
	mu    sync.Mutex
	lines []string
	full  bool
}

func (r *recordingInjector) Inject(command string, _ bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return errors.New("full")
	}
	r.lines = append(r.lines, command)
	return nil
}

func (r *recordingInjector) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func TestEscapeWriter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     string
		detached bool
		pauses   int
		help     bool
	}{
		{name: "plain text", input: "dir\n", want: "dir\n"},
		{name: "tilde mid line", input: "cd a~b\n", want: "cd a~b\n"},
		{name: "detach at start", input: "~.dir\n", want: "", detached: true},
		{name: "detach after newline", input: "dir\n~.", want: "dir\n", detached: true},
		{name: "literal tilde", input: "~~x\n", want: "~x\n"},
		{name: "pause", input: "~pdir\n", want: "dir\n", pauses: 1},
		{name: "help", input: "~?\n", want: "\n", help: true},
		{name: "unknown escape", input: "~x\n", want: "~x\n"},
		{name: "tilde before newline", input: "~\n", want: "~\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, stdout bytes.Buffer
			pauses := 0
			e := NewEscapeWriter(&out, &stdout, func() { pauses++ })

			n, err := e.Write([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, len(tt.input), n)
			assert.Equal(t, tt.want, out.String())
			assert.Equal(t, tt.pauses, pauses)
			assert.Equal(t, tt.help, strings.Contains(stdout.String(), "Supported escape sequences"))

			select {
			case <-e.DetachChan():
				assert.True(t, tt.detached)
			default:
				assert.False(t, tt.detached)
			}
		})
	}
}

func TestEscapeWriterIgnoresInputAfterDetach(t *testing.T) {
	var out bytes.Buffer
	e := NewEscapeWriter(&out, io.Discard, nil)
	_, _ = e.Write([]byte("~."))
	_, err := e.Write([]byte("more\n~."))
	require.NoError(t, err)
	assert.Empty(t, out.String())
}

func TestAttachInjectsLines(t *testing.T) {
	inj := &recordingInjector{}
	ctl := runloop.NewController()
	c := New(inj, ctl)

	err := c.Attach(strings.NewReader("dir\n\n  cd games \ngame.exe"), io.Discard)
	require.NoError(t, err)

	assert.Equal(t, []string{"dir", "cd games", "game.exe"}, inj.Lines())
	assert.False(t, ctl.Stopping())
}

func TestAttachDetachStopsSession(t *testing.T) {
	inj := &recordingInjector{}
	ctl := runloop.NewController()
	c := New(inj, ctl)

	err := c.Attach(strings.NewReader("~pdir\n~."), io.Discard)
	assert.ErrorIs(t, err, ErrUserDetach)
	assert.True(t, ctl.Stopping())
	assert.True(t, ctl.Paused())
}

func TestAttachDroppedLine(t *testing.T) {
	inj := &recordingInjector{full: true}
	c := New(inj, runloop.NewController())

	require.NoError(t, c.Attach(strings.NewReader("dir\n"), io.Discard))
	assert.Empty(t, inj.Lines())
}

func TestDetach(t *testing.T) {
	c := New(&recordingInjector{}, runloop.NewController())
	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()

	errCh := make(chan error, 1)
	go func() { errCh <- c.Attach(pr, io.Discard) }()

	c.Detach()
	c.Detach()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Attach did not return after Detach")
	}
}

func TestDirtyMap(t *testing.T) {
	tests := []struct {
		name   string
		dirty  frame.DirtyRegions
		height int
		width  int
		want   string
	}{
		{name: "no change", dirty: nil, height: 100, width: 10, want: ".........."},
		{name: "first rows", dirty: frame.DirtyRegions{{Start: 0, End: 10}}, height: 100, width: 10, want: "#........."},
		{name: "span columns", dirty: frame.DirtyRegions{{Start: 15, End: 35}}, height: 100, width: 10, want: ".###......"},
		{name: "last row", dirty: frame.DirtyRegions{{Start: 99, End: 100}}, height: 100, width: 10, want: ".........#"},
		{name: "width capped at height", dirty: frame.DirtyRegions{{Start: 1, End: 2}}, height: 4, width: 10, want: ".#.."},
		{name: "no room", dirty: nil, height: 100, width: 0, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DirtyMap(tt.dirty, tt.height, tt.width))
		})
	}
}

func TestStatus(t *testing.T) {
	var out bytes.Buffer
	// -1 is never a terminal, so lines are 80 columns
	s := NewStatus(&out, -1, true)

	s.TitleStateChanged(runloop.TitleState{CyclesPerSecond: 3000})
	s.DriveDidMount(session.VirtualDrive{Index: 2, Source: "/dos", ReadOnly: true})
	s.FrameReady(frame.Frame{
		Buffer: &frame.Buffer{Height: 200},
		Dirty:  frame.DirtyRegions{{Start: 0, End: 200}},
		Number: 1,
	})
	s.DriveDidUnmount(session.VirtualDrive{Index: 2})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "[Cpu speed: 3000 cycles, Frameskip 0, running]", lines[0])
	assert.Equal(t, "Drive C: mounted from /dos (ro)", lines[1])
	assert.Equal(t, "frame     1 "+strings.Repeat("#", 68), lines[2])
	assert.Equal(t, "Drive C: unmounted", lines[3])
	assert.Equal(t, uint64(1), s.Frames())
}

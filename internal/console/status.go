package console

import (
	"fmt"
	"io"
	"sync"

	"golang.org/x/term"

	"github.com/faize-ai/coalface/internal/frame"
	"github.com/faize-ai/coalface/internal/runloop"
	"github.com/faize-ai/coalface/internal/session"
)

const defaultWidth = 80

// Status echoes session events to the terminal. It serves as the headless
// host's title observer, renderer and drive observer.
type Status struct {
	out     io.Writer
	width   int
	preview bool

	mu     sync.Mutex
	frames uint64
	title  runloop.TitleState
}

// NewStatus creates a Status writing to out. fd is the terminal used to size
// output lines; when it is not a terminal lines are 80 columns wide. With
// preview set every frame is drawn as a map of its changed rows.
func NewStatus(out io.Writer, fd int, preview bool) *Status {
	width := defaultWidth
	if term.IsTerminal(fd) {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			width = w
		}
	}
	return &Status{out: out, width: width, preview: preview}
}

// TitleStateChanged prints the new run state
func (s *Status) TitleStateChanged(ts runloop.TitleState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = ts
	s.printf("[%s]", ts)
}

// FrameReady counts the frame and, in preview mode, draws it
func (s *Status) FrameReady(f frame.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	if !s.preview || f.Buffer == nil {
		return
	}
	prefix := fmt.Sprintf("frame %5d ", f.Number)
	s.printf("%s%s", prefix, DirtyMap(f.Dirty, f.Buffer.Height, s.width-len(prefix)))
}

// DriveDidMount prints the new drive
func (s *Status) DriveDidMount(d session.VirtualDrive) {
	mode := "rw"
	if d.ReadOnly {
		mode = "ro"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printf("Drive %s: mounted from %s (%s)", d.Letter(), d.Source, mode)
}

// DriveDidUnmount prints the removed drive
func (s *Status) DriveDidUnmount(d session.VirtualDrive) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printf("Drive %s: unmounted", d.Letter())
}

// Frames returns the number of frames seen
func (s *Status) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// printf writes one line cut to the terminal width. Callers hold s.mu.
func (s *Status) printf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if len(line) > s.width {
		line = line[:s.width]
	}
	_, _ = fmt.Fprintln(s.out, line)
}

// DirtyMap draws the rows of a frame of the given height into width
// columns: '#' where any row in the column's span changed, '.' elsewhere
func DirtyMap(dirty frame.DirtyRegions, height, width int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	if width > height {
		width = height
	}

	cols := make([]byte, width)
	for i := range cols {
		cols[i] = '.'
	}
	for _, r := range dirty.Clamp(height) {
		first := r.Start * width / height
		last := (r.End - 1) * width / height
		for c := first; c <= last; c++ {
			cols[c] = '#'
		}
	}
	return string(cols)
}

// Package frame hands writable frame buffers to the emulator and finished
// frames to the host renderer.
//
// The Exchange keeps two buffers. The core writes into the back buffer between
// Begin and End; End makes it the front buffer, which the renderer may read.
// A buffer is never writable while the renderer holds it.
package frame

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/faize-ai/coalface/internal/logger"
)

// Sentinel errors returned by the Exchange
var (
	ErrNoTarget          = errors.New("no render target available")
	ErrFrameInProgress   = errors.New("frame already in progress")
	ErrNoFrameInProgress = errors.New("no frame in progress")
)

// pitchAlignment is the row alignment in bytes
const pitchAlignment = 16

// Buffer is one frame's pixel storage
type Buffer struct {
	Pixels []byte
	Pitch  int // Bytes per row, at least Width*BytesPerPixel
	Width  int
	Height int
	BPP    int // Bytes per pixel
}

// Row returns the bytes of row y
func (b *Buffer) Row(y int) []byte {
	return b.Pixels[y*b.Pitch : y*b.Pitch+b.Width*b.BPP]
}

// Frame is a finished frame as seen by the renderer
type Frame struct {
	Buffer *Buffer
	Dirty  DirtyRegions
	Number uint64
}

// Renderer receives each finished frame. FrameReady runs on the emulation
// goroutine and must return quickly; to read the pixels after returning the
// renderer must hold the frame with Acquire.
type Renderer interface {
	FrameReady(Frame)
}

// Exchange is the double-buffered handoff between core and renderer
type Exchange struct {
	mu      sync.Mutex
	buffers [2]*Buffer
	held    [2]int // outstanding renderer holds per buffer
	front   int    // -1 until the first frame is finished
	back    int
	writing bool
	frames  uint64

	dirty DirtyRegions

	available atomic.Bool
	renderer  Renderer
}

// NewExchange creates an Exchange with a render target of the given size
func NewExchange(width, height, bpp int, r Renderer) (*Exchange, error) {
	e := &Exchange{
		front:    -1,
		renderer: r,
	}
	if err := e.Resize(width, height, bpp); err != nil {
		return nil, err
	}
	e.available.Store(true)
	return e, nil
}

// Resize replaces both buffers with ones of the new size. It fails while a
// frame is being written or the renderer holds a buffer.
func (e *Exchange) Resize(width, height, bpp int) error {
	if width <= 0 || height <= 0 || bpp <= 0 {
		return fmt.Errorf("invalid render target %dx%dx%d", width, height, bpp)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.writing {
		return fmt.Errorf("resize: %w", ErrFrameInProgress)
	}
	if e.held[0] > 0 || e.held[1] > 0 {
		return fmt.Errorf("resize: renderer holds a buffer: %w", ErrNoTarget)
	}

	pitch := align(width*bpp, pitchAlignment)
	for i := range e.buffers {
		e.buffers[i] = &Buffer{
			Pixels: make([]byte, pitch*height),
			Pitch:  pitch,
			Width:  width,
			Height: height,
			BPP:    bpp,
		}
	}
	e.front = -1
	return nil
}

// SetTargetAvailable is called by the host when the render target appears or
// goes away, for example when the window is minimized
func (e *Exchange) SetTargetAvailable(available bool) {
	e.available.Store(available)
}

// Begin hands the back buffer to the core for writing, already holding the
// last finished frame so the core only has to redraw the rows it reports
// dirty. Calls to Begin and End must be strictly paired; a second Begin
// before End is refused with ErrFrameInProgress and leaves the open frame
// untouched.
func (e *Exchange) Begin() (*Buffer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.writing {
		logger.Debugf("frame", "begin called twice without end")
		return nil, ErrFrameInProgress
	}
	if !e.available.Load() {
		return nil, ErrNoTarget
	}

	back := 0
	if e.front == 0 {
		back = 1
	}
	if e.held[back] > 0 {
		return nil, fmt.Errorf("renderer still reading: %w", ErrNoTarget)
	}

	if e.front >= 0 {
		copy(e.buffers[back].Pixels, e.buffers[e.front].Pixels)
	}

	e.back = back
	e.writing = true
	return e.buffers[back], nil
}

// End publishes the frame written since Begin. Ownership of the buffer passes
// to the renderer; the core must not touch it again.
func (e *Exchange) End(dirty DirtyRegions) error {
	e.mu.Lock()

	if !e.writing {
		e.mu.Unlock()
		logger.Debugf("frame", "end called without begin")
		return ErrNoFrameInProgress
	}

	e.writing = false
	e.front = e.back
	e.frames++
	e.dirty = dirty.Clamp(e.buffers[e.front].Height)

	f := Frame{
		Buffer: e.buffers[e.front],
		Dirty:  e.dirty,
		Number: e.frames,
	}
	r := e.renderer
	e.mu.Unlock()

	if r != nil {
		r.FrameReady(f)
	}
	return nil
}

// Writing reports whether a frame is open
func (e *Exchange) Writing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writing
}

// Acquire gives the renderer read access to the latest finished frame. Each
// successful Acquire must be matched by a Release.
func (e *Exchange) Acquire() (Frame, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.front < 0 {
		return Frame{}, false
	}
	e.held[e.front]++
	return Frame{
		Buffer: e.buffers[e.front],
		Dirty:  e.dirty,
		Number: e.frames,
	}, true
}

// Release ends a hold taken by Acquire
func (e *Exchange) Release(f Frame) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, b := range e.buffers {
		if b == f.Buffer && e.held[i] > 0 {
			e.held[i]--
			return
		}
	}
}

// Frames returns the number of finished frames
func (e *Exchange) Frames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

// Package console connects the user's terminal to a running session: typed
// lines become DOS command lines and run state changes are echoed back.
package console

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/faize-ai/coalface/internal/logger"
)

// ErrUserDetach is returned by Attach when the user typed ~.
var ErrUserDetach = errors.New("user detached from console")

// Injector queues command lines for the core's next prompt
type Injector interface {
	Inject(command string, executeImmediately bool) error
}

// Controller is the part of the run loop the console drives
type Controller interface {
	RequestStop()
	SetPaused(paused bool)
	Paused() bool
}

// Console forwards terminal input to the core
type Console struct {
	injector   Injector
	controller Controller

	mu     sync.Mutex
	done   chan struct{}
	closed bool
}

// New creates a console
func New(injector Injector, controller Controller) *Console {
	return &Console{
		injector:   injector,
		controller: controller,
		done:       make(chan struct{}),
	}
}

// Attach reads lines from stdin until the user detaches, stdin ends or
// Detach is called. ~. also asks the run loop to stop.
// NOTE: This method does NOT hold the mutex during the blocking select, so
// Detach may be called from another goroutine when the session ends.
func (c *Console) Attach(stdin io.Reader, stdout io.Writer) error {
	pr, pw := io.Pipe()
	escapeWriter := NewEscapeWriter(pw, stdout, c.togglePause)

	errCh := make(chan error, 1)

	// Split forwarded input into command lines. This goroutine finishes only
	// after every line before the end of stdin has been submitted.
	go func() {
		scanner := bufio.NewScanner(pr)
		for scanner.Scan() {
			c.submit(scanner.Text())
		}
		errCh <- scanner.Err()
	}()

	// Copy from stdin with escape detection
	go func() {
		_, err := io.Copy(escapeWriter, stdin)
		_ = pw.CloseWithError(err)
	}()

	select {
	case <-c.done:
		_ = pw.Close()
		return nil
	case <-escapeWriter.DetachChan():
		_ = pw.Close()
		c.controller.RequestStop()
		return ErrUserDetach
	case err := <-errCh:
		// stdin may end right after the escape
		select {
		case <-escapeWriter.DetachChan():
			c.controller.RequestStop()
			return ErrUserDetach
		default:
		}
		return err
	}
}

// Detach disconnects the console
func (c *Console) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return // Already detached
	}
	c.closed = true
	close(c.done)
}

func (c *Console) submit(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if err := c.injector.Inject(line, true); err != nil {
		logger.Debugf("console", "dropped %q: %v", line, err)
	}
}

func (c *Console) togglePause() {
	c.controller.SetPaused(!c.controller.Paused())
}

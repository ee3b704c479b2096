package console

import (
	"io"
)

const escapeHelp = "\r\nSupported escape sequences:\r\n  ~.  Stop the session\r\n  ~p  Pause or resume emulation\r\n  ~~  Send literal ~ character\r\n  ~?  Show this help\r\n"

// EscapeWriter wraps an io.Writer to detect SSH-style escape sequences.
// Detects ~. (stop), ~p (pause), ~~ (literal ~), ~? (help) when ~ follows a
// newline.
//
// EscapeWriter is not safe for concurrent use from multiple goroutines.
// It expects sequential Write() calls from a single source (stdin).
type EscapeWriter struct {
	w            io.Writer     // underlying writer to forward bytes to
	afterNewline bool          // true if last byte was newline or at start
	pendingTilde bool          // true if we saw ~ and waiting for next char
	detachCh     chan struct{} // closed when ~. detected
	detached     bool
	stdout       io.Writer // for printing help message
	onPause      func()
}

// NewEscapeWriter creates a new EscapeWriter that wraps w. onPause may be nil.
func NewEscapeWriter(w io.Writer, stdout io.Writer, onPause func()) *EscapeWriter {
	return &EscapeWriter{
		w:            w,
		afterNewline: true, // treat start as after newline
		detachCh:     make(chan struct{}),
		stdout:       stdout,
		onPause:      onPause,
	}
}

// Write processes input bytes and detects escape sequences
func (e *EscapeWriter) Write(p []byte) (n int, err error) {
	if e.detached {
		return len(p), nil
	}

	for _, b := range p {
		// Check for newline characters
		if b == '\n' || b == '\r' {
			if e.pendingTilde {
				// Write the pending tilde before the newline
				if _, err := e.w.Write([]byte{'~'}); err != nil {
					return len(p), err
				}
				e.pendingTilde = false
			}
			if _, err := e.w.Write([]byte{b}); err != nil {
				return len(p), err
			}
			e.afterNewline = true
			continue
		}

		// Detect tilde after newline
		if e.afterNewline && b == '~' {
			e.pendingTilde = true
			e.afterNewline = false
			continue
		}

		// Process pending tilde
		if e.pendingTilde {
			e.pendingTilde = false
			switch b {
			case '.':
				e.detached = true
				close(e.detachCh)
				return len(p), nil
			case 'p', 'P':
				if e.onPause != nil {
					e.onPause()
				}
			case '~':
				if _, err := e.w.Write([]byte{'~'}); err != nil {
					return len(p), err
				}
			case '?':
				if _, err := e.stdout.Write([]byte(escapeHelp)); err != nil {
					return len(p), err
				}
			default: // any other byte - write pending tilde + this byte
				if _, err := e.w.Write([]byte{'~', b}); err != nil {
					return len(p), err
				}
			}
			e.afterNewline = false
			continue
		}

		// Normal byte - write it
		if _, err := e.w.Write([]byte{b}); err != nil {
			return len(p), err
		}
		e.afterNewline = false
	}

	return len(p), nil
}

// DetachChan returns a channel that is closed when ~. is detected
func (e *EscapeWriter) DetachChan() <-chan struct{} {
	return e.detachCh
}

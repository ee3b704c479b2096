package cmd

import (
	"fmt"
	"io"
	"sync"

	"github.com/faize-ai/coalface/internal/changeset"
	"github.com/faize-ai/coalface/internal/console"
	"github.com/faize-ai/coalface/internal/input"
	"github.com/faize-ai/coalface/internal/session"
	"github.com/faize-ai/coalface/internal/shell"
)

// cliHost is the terminal host. It reports run state and drives through
// Status, records drive changes and answers input queries from the config.
type cliHost struct {
	*console.Status

	out       io.Writer
	verbose   bool
	layout    string
	modifiers input.Modifier

	mu       sync.Mutex
	recorder *changeset.Recorder
}

// KeyboardLayout implements coalface.KeyboardSource
func (h *cliHost) KeyboardLayout() string {
	return h.layout
}

// Modifiers implements coalface.ModifierSource
func (h *cliHost) Modifiers() input.Modifier {
	return h.modifiers
}

func (h *cliHost) setRecorder(r *changeset.Recorder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recorder = r
}

func (h *cliHost) currentRecorder() *changeset.Recorder {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.recorder
}

// DriveDidMount implements coalface.DriveObserver
func (h *cliHost) DriveDidMount(d session.VirtualDrive) {
	h.Status.DriveDidMount(d)
	if r := h.currentRecorder(); r != nil {
		r.DriveDidMount(d)
	}
}

// DriveDidUnmount implements coalface.DriveObserver
func (h *cliHost) DriveDidUnmount(d session.VirtualDrive) {
	h.Status.DriveDidUnmount(d)
	if r := h.currentRecorder(); r != nil {
		r.DriveDidUnmount(d)
	}
}

// AutoexecDidStart implements coalface.ShellObserver
func (h *cliHost) AutoexecDidStart() {
	Debug("AUTOEXEC started")
}

// AutoexecDidFinish implements coalface.ShellObserver
func (h *cliHost) AutoexecDidFinish() {
	Debug("AUTOEXEC finished")
}

// DidReturnToShell implements coalface.ShellObserver
func (h *cliHost) DidReturnToShell() {}

// WillExecuteFile implements coalface.ShellObserver
func (h *cliHost) WillExecuteFile(p shell.Program) {
	if !h.verbose {
		return
	}
	where := p.HostPath
	if where == "" {
		where = "unresolved"
	}
	_, _ = fmt.Fprintf(h.out, "Running %s (%s)\n", p.DOSPath, where)
}

// DidExecuteFile implements coalface.ShellObserver
func (h *cliHost) DidExecuteFile(p shell.Program) {
	if h.verbose {
		_, _ = fmt.Fprintf(h.out, "Finished %s\n", p.DOSPath)
	}
}

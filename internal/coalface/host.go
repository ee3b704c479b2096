// Package coalface is the boundary between an embedded DOS emulator core and
// the host that supervises it.
//
// The core sees a single *Bridge and calls one method per hook, always from
// its emulation goroutine. The host plugs in by passing a value to New; every
// capability interface below that the value implements is wired in, and every
// one it does not implement falls back to the neutral default (keep running,
// allow native behavior, no override).
package coalface

import (
	"github.com/faize-ai/coalface/internal/drive"
	"github.com/faize-ai/coalface/internal/frame"
	"github.com/faize-ai/coalface/internal/input"
	"github.com/faize-ai/coalface/internal/runloop"
	"github.com/faize-ai/coalface/internal/shell"
)

// RunLoopHost is polled once per core iteration in addition to the
// controller's own stop flag. It must only read host state that is published
// atomically; no I/O.
type RunLoopHost interface {
	ContinueRunning() bool
}

// FilesystemPolicy is the host's own filesystem decisions, consulted after the
// configured mount rules have allowed a request
type FilesystemPolicy interface {
	ShouldMount(hostPath string) bool
	ShouldShow(name string) bool
	ShouldAllowWrite(hostPath string, driveIndex uint8) bool
}

// Localizer supplies translated strings. ok is false when the host has no
// entry for key.
type Localizer interface {
	LocalizedString(key string) (value string, ok bool)
}

// Capability interfaces implemented by the component packages
type (
	TitleObserver  = runloop.TitleObserver
	Renderer       = frame.Renderer
	DriveObserver  = drive.Observer
	CommandPolicy  = shell.CommandPolicy
	InputPolicy    = shell.InputPolicy
	ShellObserver  = shell.Observer
	KeyboardSource = input.LayoutSource
	ModifierSource = input.ModifierSource
)

// capabilities is the host value split into the interfaces it implements
type capabilities struct {
	runLoop   RunLoopHost
	title     TitleObserver
	renderer  Renderer
	fs        FilesystemPolicy
	drives    DriveObserver
	commands  CommandPolicy
	input     InputPolicy
	shell     ShellObserver
	keyboard  KeyboardSource
	modifiers ModifierSource
	localizer Localizer
}

func discover(host any) capabilities {
	var c capabilities
	if host == nil {
		return c
	}
	c.runLoop, _ = host.(RunLoopHost)
	c.title, _ = host.(TitleObserver)
	c.renderer, _ = host.(Renderer)
	c.fs, _ = host.(FilesystemPolicy)
	c.drives, _ = host.(DriveObserver)
	c.commands, _ = host.(CommandPolicy)
	c.input, _ = host.(InputPolicy)
	c.shell, _ = host.(ShellObserver)
	c.keyboard, _ = host.(KeyboardSource)
	c.modifiers, _ = host.(ModifierSource)
	c.localizer, _ = host.(Localizer)
	return c
}

package shell

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/faize-ai/coalface/internal/logger"
	"github.com/faize-ai/coalface/internal/session"
)

// pendingSize bounds the number of commands the host may queue for typing
const pendingSize = 16

// ErrQueueFull is returned by Inject when the core has not consumed earlier
// commands yet
var ErrQueueFull = errors.New("command queue is full")

// Decision is a host command handler's verdict
type Decision int

// List of decisions
const (
	// RunNatively lets the DOS shell interpret the command as usual
	RunNatively Decision = iota

	// Suppress stops the DOS shell from seeing the command
	Suppress

	// Rewrite suppresses the command and types Outcome.Command in its place
	Rewrite
)

// Request is a command line about to be interpreted by the shell
type Request struct {
	Command string
	Args    string
}

// Outcome is what a Handler decided for a Request
type Outcome struct {
	Decision Decision
	Command  string // replacement command line for Rewrite
}

// Handler implements a host-defined shell command
type Handler func(Request) Outcome

// CommandPolicy is consulted for commands with no registered Handler
type CommandPolicy interface {
	ShouldRunCommand(cmd, args string) bool
}

// CommandLine is the command buffer while the user is composing it
type CommandLine struct {
	Buffer  string
	Cursor  int
	Execute bool
}

// InputPolicy may rewrite the command line as it is composed. It returns
// false when it made no change; changes made before returning false are
// discarded.
type InputPolicy interface {
	HandleCommandInput(*CommandLine) bool
}

// Program identifies a program or batch file being run
type Program struct {
	DOSPath  string
	HostPath string // empty when the drive could not be resolved
	Drive    uint8
}

// Observer is told about shell lifecycle events after the state machine has
// moved
type Observer interface {
	AutoexecDidStart()
	AutoexecDidFinish()
	DidReturnToShell()
	WillExecuteFile(Program)
	DidExecuteFile(Program)
}

// Resolver maps DOS paths onto host paths
type Resolver interface {
	Resolve(dosPath string, index uint8) (string, bool)
}

// Interceptor is the host side of the shell hooks
type Interceptor struct {
	machine  *Machine
	resolver Resolver
	observer Observer
	policy   CommandPolicy
	input    InputPolicy

	mu       sync.RWMutex
	handlers map[string]Handler

	pending chan CommandLine

	historyMu sync.Mutex
	programs  []session.ExecutedProgram
}

// Option configures an Interceptor
type Option func(*Interceptor)

// WithObserver forwards lifecycle events to o
func WithObserver(o Observer) Option {
	return func(i *Interceptor) { i.observer = o }
}

// WithCommandPolicy consults p for commands without a Handler
func WithCommandPolicy(p CommandPolicy) Option {
	return func(i *Interceptor) { i.policy = p }
}

// WithInputPolicy lets p rewrite the command line as it is typed
func WithInputPolicy(p InputPolicy) Option {
	return func(i *Interceptor) { i.input = p }
}

// NewInterceptor creates an interceptor for sess. resolver may be nil.
func NewInterceptor(sess *session.Session, resolver Resolver, opts ...Option) *Interceptor {
	i := &Interceptor{
		machine:  NewMachine(sess),
		resolver: resolver,
		handlers: make(map[string]Handler),
		pending:  make(chan CommandLine, pendingSize),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// State returns the shell state
func (i *Interceptor) State() State {
	return i.machine.State()
}

// Register installs a host command. Names are case-insensitive and shadow
// any native command of the same name.
func (i *Interceptor) Register(name string, h Handler) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.handlers[strings.ToUpper(name)] = h
}

// Inject queues a command line for the core to pick up the next time it asks
// for command input. Safe to call from any goroutine.
func (i *Interceptor) Inject(command string, executeImmediately bool) error {
	select {
	case i.pending <- CommandLine{Buffer: command, Cursor: len(command), Execute: executeImmediately}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ShouldRunCommand is called before the shell interprets a command. False
// means the shell must not run it.
func (i *Interceptor) ShouldRunCommand(cmd, args string) bool {
	name := strings.ToUpper(strings.TrimSpace(cmd))

	i.mu.RLock()
	h, ok := i.handlers[name]
	i.mu.RUnlock()

	if ok {
		out := h(Request{Command: name, Args: strings.TrimSpace(args)})
		switch out.Decision {
		case Suppress:
			logger.Debugf("shell", "suppressed %s", name)
			return false
		case Rewrite:
			if err := i.Inject(out.Command, true); err != nil {
				logger.Debugf("shell", "rewrite of %s dropped: %v", name, err)
			}
			return false
		}
		return true
	}

	if i.policy != nil {
		return i.policy.ShouldRunCommand(cmd, args)
	}
	return true
}

// HandleCommandInput is called while a command line is composed. A queued
// command replaces the line first; otherwise the input policy may edit it.
// It returns false, with line unchanged, when nothing was modified.
func (i *Interceptor) HandleCommandInput(line *CommandLine) bool {
	if line == nil {
		return false
	}

	select {
	case next := <-i.pending:
		*line = next
		return true
	default:
	}

	if i.input == nil {
		return false
	}
	edited := *line
	if !i.input.HandleCommandInput(&edited) {
		return false
	}
	if edited.Cursor < 0 {
		edited.Cursor = 0
	}
	if edited.Cursor > len(edited.Buffer) {
		edited.Cursor = len(edited.Buffer)
	}
	*line = edited
	return true
}

// Notify advances the state machine and tells the observer
func (i *Interceptor) Notify(ev Event) State {
	state := i.machine.Apply(ev)

	var prog Program
	if ev.Kind == WillExecuteFile || ev.Kind == DidExecuteFile {
		prog = Program{DOSPath: ev.Path, Drive: ev.Drive}
		if i.resolver != nil {
			prog.HostPath, _ = i.resolver.Resolve(ev.Path, ev.Drive)
		}
	}

	if ev.Kind == WillExecuteFile {
		i.historyMu.Lock()
		i.programs = append(i.programs, session.ExecutedProgram{
			DOSPath:  prog.DOSPath,
			HostPath: prog.HostPath,
			Drive:    session.DriveLetter(prog.Drive),
			At:       time.Now(),
		})
		i.historyMu.Unlock()
	}

	if i.observer == nil {
		return state
	}
	switch ev.Kind {
	case AutoexecStart:
		i.observer.AutoexecDidStart()
	case AutoexecFinish:
		i.observer.AutoexecDidFinish()
	case ReturnedToShell:
		i.observer.DidReturnToShell()
	case WillExecuteFile:
		i.observer.WillExecuteFile(prog)
	case DidExecuteFile:
		i.observer.DidExecuteFile(prog)
	}
	return state
}

// Programs returns every program executed so far
func (i *Interceptor) Programs() []session.ExecutedProgram {
	i.historyMu.Lock()
	defer i.historyMu.Unlock()
	return append([]session.ExecutedProgram(nil), i.programs...)
}

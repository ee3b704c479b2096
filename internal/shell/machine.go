// Package shell follows the DOS shell through autoexec, the prompt and program
// execution, and lets the host shadow commands or type into the command line.
package shell

import (
	"github.com/faize-ai/coalface/internal/session"
)

// State of the DOS shell
type State int

// List of shell states
const (
	Idle State = iota
	RunningAutoexec
	AtPrompt
	ExecutingProgram
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RunningAutoexec:
		return "running-autoexec"
	case AtPrompt:
		return "at-prompt"
	case ExecutingProgram:
		return "executing-program"
	}
	return "unknown"
}

// EventKind identifies a shell lifecycle notification
type EventKind int

// List of shell lifecycle notifications
const (
	AutoexecStart EventKind = iota
	AutoexecFinish
	ReturnedToShell
	WillExecuteFile
	DidExecuteFile
)

func (k EventKind) String() string {
	switch k {
	case AutoexecStart:
		return "autoexec-start"
	case AutoexecFinish:
		return "autoexec-finish"
	case ReturnedToShell:
		return "returned-to-shell"
	case WillExecuteFile:
		return "will-execute"
	case DidExecuteFile:
		return "did-execute"
	}
	return "unknown"
}

// Event is a shell lifecycle notification. Path and Drive are only set for
// WillExecuteFile and DidExecuteFile.
type Event struct {
	Kind  EventKind
	Path  string
	Drive uint8
}

// Machine tracks the shell state. Program nesting (a batch file running a
// program, a program spawning another) is counted in the session's shell
// depth, and the shell is only back at the prompt once the outermost program
// has finished.
//
// Machine is not safe for concurrent use; it belongs to the emulation
// goroutine.
type Machine struct {
	sess  *session.Session
	state State
}

// NewMachine creates a machine in the Idle state
func NewMachine(sess *session.Session) *Machine {
	return &Machine{sess: sess}
}

// State returns the current state
func (m *Machine) State() State {
	return m.state
}

// Apply advances the machine by one event and returns the new state. Events
// with no transition from the current state leave it unchanged.
func (m *Machine) Apply(ev Event) State {
	switch ev.Kind {
	case AutoexecStart:
		if m.state == Idle {
			m.state = RunningAutoexec
		}

	case AutoexecFinish:
		if m.state == RunningAutoexec {
			m.state = AtPrompt
		}

	case WillExecuteFile:
		m.sess.EnterShell()
		if m.state == AtPrompt {
			m.state = ExecutingProgram
		}

	case DidExecuteFile:
		if m.sess.LeaveShell() == 0 && m.state == ExecutingProgram {
			m.state = AtPrompt
		}

	case ReturnedToShell:
		m.sess.ResetShell()
		m.state = AtPrompt
	}

	return m.state
}

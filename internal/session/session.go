package session

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session is the state of one running emulator instance. It is created when
// the core starts and passed by reference to every component that needs the
// drive table or the mouse state.
type Session struct {
	ID        string
	StartedAt time.Time

	mu     sync.RWMutex
	drives [MaxDrives]*VirtualDrive

	mouseActive atomic.Bool
	mouseX      atomic.Uint64
	mouseY      atomic.Uint64

	shellDepth atomic.Int32
}

// New creates a session with a fresh short ID
func New() *Session {
	return &Session{
		ID:        uuid.New().String()[:8],
		StartedAt: time.Now(),
	}
}

// AddDrive registers a drive in the table. The slot must be free.
func (s *Session) AddDrive(d VirtualDrive) error {
	if d.Index >= MaxDrives {
		return fmt.Errorf("invalid drive index %d", d.Index)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drives[d.Index] != nil {
		return fmt.Errorf("drive %s: is already mounted", d.Letter())
	}
	s.drives[d.Index] = &d
	return nil
}

// RemoveDrive clears a slot and returns the drive it held
func (s *Session) RemoveDrive(index uint8) (VirtualDrive, bool) {
	if index >= MaxDrives {
		return VirtualDrive{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.drives[index]
	if d == nil {
		return VirtualDrive{}, false
	}
	s.drives[index] = nil
	return *d, true
}

// Drive returns a copy of the drive at index
func (s *Session) Drive(index uint8) (VirtualDrive, bool) {
	if index >= MaxDrives {
		return VirtualDrive{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	d := s.drives[index]
	if d == nil {
		return VirtualDrive{}, false
	}
	return *d, true
}

// Drives returns copies of every mounted drive in index order
func (s *Session) Drives() []VirtualDrive {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var drives []VirtualDrive
	for _, d := range s.drives {
		if d != nil {
			drives = append(drives, *d)
		}
	}
	return drives
}

// SetMouseActive records whether the emulated program has captured the mouse
func (s *Session) SetMouseActive(active bool) {
	s.mouseActive.Store(active)
}

// MouseActive reports the last value given to SetMouseActive
func (s *Session) MouseActive() bool {
	return s.mouseActive.Load()
}

// SetMousePosition stores the pointer location. Coordinates are already in
// the emulator's display space.
func (s *Session) SetMousePosition(x, y float64) {
	s.mouseX.Store(math.Float64bits(x))
	s.mouseY.Store(math.Float64bits(y))
}

// MousePosition returns the last stored pointer location
func (s *Session) MousePosition() (float64, float64) {
	return math.Float64frombits(s.mouseX.Load()), math.Float64frombits(s.mouseY.Load())
}

// EnterShell increments the nested shell counter and returns the new depth
func (s *Session) EnterShell() int {
	return int(s.shellDepth.Add(1))
}

// LeaveShell decrements the nested shell counter, stopping at zero
func (s *Session) LeaveShell() int {
	for {
		d := s.shellDepth.Load()
		if d == 0 {
			return 0
		}
		if s.shellDepth.CompareAndSwap(d, d-1) {
			return int(d - 1)
		}
	}
}

// ResetShell drops every nesting level
func (s *Session) ResetShell() {
	s.shellDepth.Store(0)
}

// ShellDepth returns the number of nested shells
func (s *Session) ShellDepth() int {
	return int(s.shellDepth.Load())
}

// Record builds a persistable summary of the session
func (s *Session) Record(status string) *Record {
	return &Record{
		ID:        s.ID,
		Status:    status,
		Drives:    s.Drives(),
		StartedAt: s.StartedAt,
	}
}

// Package drive tracks DOS drives as the core mounts and unmounts them and
// relays those events to the host without blocking the emulation goroutine.
package drive

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faize-ai/coalface/internal/logger"
	"github.com/faize-ai/coalface/internal/mount"
	"github.com/faize-ai/coalface/internal/session"
)

// queueSize bounds the number of undelivered notifications
const queueSize = 64

// InternalDrive is Z:, the core's built-in drive. It is never backed by an
// approved host path.
const InternalDrive uint8 = session.MaxDrives - 1

// Observer is the host side of drive notifications. Methods run on the
// tracker's dispatch goroutine, never on the emulation goroutine.
type Observer interface {
	DriveDidMount(session.VirtualDrive)
	DriveDidUnmount(session.VirtualDrive)
}

// EventKind distinguishes mount from unmount events
type EventKind int

// List of event kinds
const (
	Mounted EventKind = iota
	Unmounted
)

func (k EventKind) String() string {
	if k == Mounted {
		return "mounted"
	}
	return "unmounted"
}

// Event is a queued drive notification
type Event struct {
	Kind  EventKind
	Drive session.VirtualDrive
	At    time.Time
}

// Tracker mirrors the core's drive table into the session
type Tracker struct {
	sess      *session.Session
	protected []string

	// mounts registered by the host or approved by the mediator, waiting for
	// the core to confirm them. Only touched on the emulation goroutine.
	pending  [session.MaxDrives]*mount.Mount
	approved *mount.Mount

	queue chan Event
	done  chan struct{}

	// closed is checked under a read lock by every enqueue so no event can be
	// sent once Close has started
	mu     sync.RWMutex
	closed bool

	dropped  atomic.Uint64
	wg       sync.WaitGroup
	observer Observer
	history  *History
}

// NewTracker starts a tracker for sess. Drives it creates get the given
// protected patterns. observer may be nil.
func NewTracker(sess *session.Session, protected []string, observer Observer) *Tracker {
	t := &Tracker{
		sess:      sess,
		protected: protected,
		queue:     make(chan Event, queueSize),
		done:      make(chan struct{}),
		observer:  observer,
		history:   NewHistory(historySize),
	}

	t.wg.Add(1)
	go t.dispatch()

	return t
}

// Register queues a host-requested mount for index m.Index. The mount must
// already have passed the mediator.
func (t *Tracker) Register(m *mount.Mount) error {
	if m == nil || m.Index >= session.MaxDrives {
		return fmt.Errorf("invalid drive mount")
	}
	if _, ok := t.sess.Drive(m.Index); ok {
		return fmt.Errorf("drive %s: is already mounted", m.Letter())
	}
	t.pending[m.Index] = m
	return nil
}

// Approve remembers a path the mediator has just allowed the core to mount.
// The next DriveMounted for an index without a registered mount binds to it,
// unless Expire runs first.
func (t *Tracker) Approve(source string, readOnly bool) {
	t.approved = &mount.Mount{Source: source, ReadOnly: readOnly}
}

// Expire drops an approval the core did not use, for example because its
// mount failed after the mediator allowed it
func (t *Tracker) Expire() {
	if t.approved != nil {
		logger.Debugf("drive", "approval for %s expired unused", t.approved.Source)
		t.approved = nil
	}
}

// DriveMounted is the core's notification that a drive now exists at index.
// Indexes that were neither registered nor approved are ignored.
func (t *Tracker) DriveMounted(index uint8) {
	if index >= session.MaxDrives {
		return
	}

	m := t.pending[index]
	t.pending[index] = nil
	if m == nil && t.approved != nil && index != InternalDrive {
		m = &mount.Mount{Index: index, Source: t.approved.Source, ReadOnly: t.approved.ReadOnly}
	}
	t.approved = nil

	if m == nil {
		logger.Debugf("drive", "ignoring unapproved mount of %s:", session.DriveLetter(index))
		return
	}

	d := m.Drive(t.protected)
	if err := t.sess.AddDrive(d); err != nil {
		logger.Debugf("drive", "%v", err)
		return
	}
	t.enqueue(Event{Kind: Mounted, Drive: d, At: time.Now()})
}

// DriveUnmounted is the core's notification that the drive at index is gone.
// Nothing fires for an index that was never mounted.
func (t *Tracker) DriveUnmounted(index uint8) {
	d, ok := t.sess.RemoveDrive(index)
	if !ok {
		return
	}
	t.enqueue(Event{Kind: Unmounted, Drive: d, At: time.Now()})
}

// Resolve maps a DOS path on the drive at index to a host path. The DOS path
// may carry its own drive letter, which must match.
func (t *Tracker) Resolve(dosPath string, index uint8) (string, bool) {
	if len(dosPath) >= 2 && dosPath[1] == ':' {
		letter, err := mount.ParseLetter(dosPath[:1])
		if err != nil || letter != index {
			return "", false
		}
		dosPath = dosPath[2:]
	}

	d, ok := t.sess.Drive(index)
	if !ok {
		return "", false
	}

	rel := strings.TrimLeft(strings.ReplaceAll(dosPath, `\`, "/"), "/")
	hostPath := filepath.Join(d.Source, filepath.FromSlash(rel))
	if !mount.Within(hostPath, d.Source) {
		return "", false
	}
	return hostPath, true
}

// History returns the recent-mounts list
func (t *Tracker) History() *History {
	return t.history
}

// Dropped returns the number of notifications lost to a full queue
func (t *Tracker) Dropped() uint64 {
	return t.dropped.Load()
}

// Close stops the dispatcher after delivering queued notifications.
// Notifications raised after Close are counted as dropped.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	close(t.done)
	t.wg.Wait()
}

// enqueue never blocks. A full queue drops the event.
func (t *Tracker) enqueue(ev Event) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		t.dropped.Add(1)
		return
	}
	select {
	case t.queue <- ev:
	default:
		t.dropped.Add(1)
		logger.Debugf("drive", "notification queue full, dropped %s %s:", ev.Kind, ev.Drive.Letter())
	}
}

func (t *Tracker) dispatch() {
	defer t.wg.Done()

	for {
		select {
		case ev := <-t.queue:
			t.deliver(ev)
		case <-t.done:
			for {
				select {
				case ev := <-t.queue:
					t.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (t *Tracker) deliver(ev Event) {
	if ev.Kind == Mounted {
		t.history.Add(ev.Drive, ev.At)
	}

	if t.observer == nil {
		return
	}
	switch ev.Kind {
	case Mounted:
		t.observer.DriveDidMount(ev.Drive)
	case Unmounted:
		t.observer.DriveDidUnmount(ev.Drive)
	}
}

package changeset

import (
	"sort"
	"sync"

	"github.com/faize-ai/coalface/internal/logger"
	"github.com/faize-ai/coalface/internal/session"
)

// Recorder snapshots every writable drive when it is mounted and diffs it
// when it goes away. It receives the drive tracker's notifications, so its
// filesystem walks run on the dispatcher goroutine and never on the
// emulation goroutine.
//
// Notifications arrive after the core has mounted the drive, so a write made
// before DriveDidMount is delivered would already be in the baseline. Drives
// the host mounts itself should therefore get their baseline from Baseline
// before the core runs; only drives the core mounts on its own are exposed
// to that window.
type Recorder struct {
	show Filter

	mu      sync.Mutex
	before  map[string]Snapshot // keyed by letter
	sources map[string]string
	drives  []DriveChanges
}

// NewRecorder creates a Recorder that ignores entries rejected by show
func NewRecorder(show Filter) *Recorder {
	return &Recorder{
		show:    show,
		before:  make(map[string]Snapshot),
		sources: make(map[string]string),
	}
}

// Baseline snapshots d ahead of its mount notification. The later
// DriveDidMount for the same letter and source keeps this snapshot.
func (r *Recorder) Baseline(d session.VirtualDrive) {
	r.snapshot(d)
}

// DriveDidMount takes the baseline snapshot of d unless Baseline already did
func (r *Recorder) DriveDidMount(d session.VirtualDrive) {
	r.mu.Lock()
	_, ok := r.before[d.Letter()]
	same := ok && r.sources[d.Letter()] == d.Source
	r.mu.Unlock()
	if same {
		return
	}
	r.snapshot(d)
}

func (r *Recorder) snapshot(d session.VirtualDrive) {
	if d.ReadOnly {
		return
	}
	snap, err := Take(d.Source, r.show)
	if err != nil {
		logger.Debugf("changeset", "failed to snapshot %s: %v", d.Source, err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.before[d.Letter()] = snap
	r.sources[d.Letter()] = d.Source
}

// DriveDidUnmount records what changed on d while it was mounted
func (r *Recorder) DriveDidUnmount(d session.VirtualDrive) {
	r.finish(d.Letter())
}

// Finish diffs the drives that are still mounted and returns the changeset
func (r *Recorder) Finish(sessionID string) *SessionChangeset {
	r.mu.Lock()
	letters := make([]string, 0, len(r.before))
	for letter := range r.before {
		letters = append(letters, letter)
	}
	r.mu.Unlock()

	sort.Strings(letters)
	for _, letter := range letters {
		r.finish(letter)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	drives := append([]DriveChanges(nil), r.drives...)
	sort.SliceStable(drives, func(i, j int) bool {
		return drives[i].Letter < drives[j].Letter
	})
	return &SessionChangeset{SessionID: sessionID, Drives: drives}
}

func (r *Recorder) finish(letter string) {
	r.mu.Lock()
	before, ok := r.before[letter]
	source := r.sources[letter]
	delete(r.before, letter)
	delete(r.sources, letter)
	r.mu.Unlock()

	if !ok {
		return
	}

	after, err := Take(source, r.show)
	if err != nil {
		logger.Debugf("changeset", "failed to snapshot %s: %v", source, err)
		return
	}

	changes := Diff(before, after)
	if len(changes) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.drives = append(r.drives, DriveChanges{Letter: letter, Source: source, Changes: changes})
}

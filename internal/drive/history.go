package drive

import (
	"sync"
	"time"

	"github.com/faize-ai/coalface/internal/session"
)

const historySize = 20

// Recent is one entry in the recent-mounts history
type Recent struct {
	Source   string
	Letter   string
	ReadOnly bool
	At       time.Time
}

// History is a bounded most-recent-first list of mounted sources
type History struct {
	mu      sync.Mutex
	max     int
	entries []Recent
}

// NewHistory creates a history holding at most max entries
func NewHistory(max int) *History {
	return &History{max: max}
}

// Add records a mount. A source already in the list moves to the front.
func (h *History) Add(d session.VirtualDrive, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry := Recent{Source: d.Source, Letter: d.Letter(), ReadOnly: d.ReadOnly, At: at}

	entries := make([]Recent, 0, h.max)
	entries = append(entries, entry)
	for _, e := range h.entries {
		if e.Source == d.Source {
			continue
		}
		if len(entries) == h.max {
			break
		}
		entries = append(entries, e)
	}
	h.entries = entries
}

// Entries returns a copy of the history
func (h *History) Entries() []Recent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Recent(nil), h.entries...)
}

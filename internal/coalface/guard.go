package coalface

import (
	"sync/atomic"

	"github.com/faize-ai/coalface/internal/logger"
)

// hook identifies a hook kind for re-entrancy detection
type hook int

const (
	hookContinue hook = iota
	hookTitle
	hookFrame
	hookMount
	hookShow
	hookWrite
	hookDrive
	hookCommand
	hookCommandInput
	hookShellEvent
	hookLayout
	hookModifiers
	hookMouse
	hookLocalize
	numHooks
)

var hookNames = [numHooks]string{
	"continueRunning",
	"titleStateChanged",
	"frame",
	"shouldMount",
	"shouldShow",
	"shouldAllowWrite",
	"driveLifecycle",
	"shouldRunCommand",
	"handleCommandInput",
	"shellEvent",
	"currentKeyboardLayout",
	"currentModifiers",
	"mouse",
	"localizedString",
}

func (h hook) String() string {
	if h < 0 || h >= numHooks {
		return "unknown"
	}
	return hookNames[h]
}

// guard detects a hook synchronously re-entering a hook of the same kind,
// for example a host policy that calls back into the bridge
type guard struct {
	active    [numHooks]atomic.Bool
	reentries atomic.Uint64
}

// enter marks h active. It returns false if h is already running, in which
// case the caller must not call leave and should answer with its default.
func (g *guard) enter(h hook) bool {
	if g.active[h].CompareAndSwap(false, true) {
		return true
	}
	g.reentries.Add(1)
	logger.Debugf("hook", "re-entrant call to %s refused", h)
	return false
}

func (g *guard) leave(h hook) {
	g.active[h].Store(false)
}

package coalface

import (
	"context"
)

// Core is the emulator side of the boundary. Step runs one iteration of the
// core's loop, calling whatever hooks it needs on b, and returns false once
// the emulated machine has shut down.
type Core interface {
	Step(b *Bridge) bool
}

// Run drives core until it shuts down, the host asks it to stop or ctx is
// done. ctx is only checked between iterations; a hook call in progress is
// never interrupted. After a host stop request the loop may be entered again
// once the controller has been resumed.
func (b *Bridge) Run(ctx context.Context, core Core) error {
	for b.ContinueRunning() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !core.Step(b) {
			return nil
		}
	}
	return nil
}

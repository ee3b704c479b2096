package runloop

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu     sync.Mutex
	states []TitleState
}

func (r *recordingObserver) TitleStateChanged(s TitleState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func TestContinueRunningDefaults(t *testing.T) {
	c := NewController()
	for i := 0; i < 1000; i++ {
		require.True(t, c.ContinueRunning())
	}
	assert.Equal(t, uint64(1000), c.Iterations())
	assert.False(t, c.HandleEventLoop())
}

func TestRequestStop(t *testing.T) {
	c := NewController()
	c.RequestStop()
	assert.True(t, c.Stopping())
	assert.False(t, c.ContinueRunning())

	c.Resume()
	assert.True(t, c.ContinueRunning())
}

func TestPauseYields(t *testing.T) {
	c := NewController()
	c.SetPaused(true)
	assert.True(t, c.ContinueRunning(), "pause alone does not stop the loop")

	c = NewController(WithPauseYields(true))
	c.SetPaused(true)
	assert.False(t, c.ContinueRunning())
	c.SetPaused(false)
	assert.True(t, c.ContinueRunning())
}

func TestTitleStateChanged(t *testing.T) {
	obs := &recordingObserver{}
	c := NewController(WithTitleObserver(obs))

	state := TitleState{CyclesPerSecond: 3000, Frameskip: 1, Paused: true}
	assert.True(t, c.TitleStateChanged(state))
	assert.Equal(t, state, c.Title())
	assert.True(t, c.CorePaused())
	assert.False(t, c.Paused(), "core pause is not a host pause")

	c.SetHostTitle(true)
	assert.False(t, c.TitleStateChanged(TitleState{CyclesPerSecond: 5000}))
	assert.False(t, c.CorePaused())

	require.Len(t, obs.states, 2)
	assert.Equal(t, 5000, obs.states[1].CyclesPerSecond)
}

func TestTitleReportKeepsHostPause(t *testing.T) {
	c := NewController(WithPauseYields(true))
	c.SetPaused(true)

	c.TitleStateChanged(TitleState{CyclesPerSecond: 3000})
	assert.True(t, c.Paused())
	assert.False(t, c.ContinueRunning())

	c.SetPaused(false)
	c.TitleStateChanged(TitleState{CyclesPerSecond: 3000, Paused: true})
	assert.False(t, c.Paused())
	assert.True(t, c.ContinueRunning())
}

func TestTitleStateString(t *testing.T) {
	assert.Equal(t, "Cpu speed: 3000 cycles, Frameskip 0, running",
		TitleState{CyclesPerSecond: 3000}.String())
	assert.Equal(t, "Cpu speed: max, Frameskip 2, paused",
		TitleState{Frameskip: 2, Paused: true}.String())
}

func TestConcurrentPolling(t *testing.T) {
	c := NewController()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for c.ContinueRunning() {
		}
	}()

	c.SetPaused(true)
	c.RequestStop()
	wg.Wait()

	assert.True(t, c.Iterations() > 0)
}

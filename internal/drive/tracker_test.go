package drive

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/faize-ai/coalface/internal/mount"
	"github.com/faize-ai/coalface/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu        sync.Mutex
	mounted   []session.VirtualDrive
	unmounted []session.VirtualDrive
	block     chan struct{}
}

func (r *recordingObserver) DriveDidMount(d session.VirtualDrive) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mounted = append(r.mounted, d)
}

func (r *recordingObserver) DriveDidUnmount(d session.VirtualDrive) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unmounted = append(r.unmounted, d)
}

func TestMountUnmountEveryIndex(t *testing.T) {
	sess := session.New()
	obs := &recordingObserver{}
	tracker := NewTracker(sess, nil, obs)

	for i := uint8(0); i < session.MaxDrives; i++ {
		require.NoError(t, tracker.Register(&mount.Mount{Index: i, Source: "/dos/" + session.DriveLetter(i)}))
		tracker.DriveMounted(i)

		d, ok := sess.Drive(i)
		require.True(t, ok)
		assert.Equal(t, "/dos/"+session.DriveLetter(i), d.Source)

		tracker.DriveUnmounted(i)
		_, ok = sess.Drive(i)
		assert.False(t, ok)
	}

	tracker.Close()

	assert.Len(t, obs.mounted, session.MaxDrives)
	assert.Len(t, obs.unmounted, session.MaxDrives)
	assert.Empty(t, sess.Drives())
}

func TestUnmountNeverMountedIsSilent(t *testing.T) {
	sess := session.New()
	obs := &recordingObserver{}
	tracker := NewTracker(sess, nil, obs)

	tracker.DriveUnmounted(4)
	tracker.DriveUnmounted(200)
	tracker.Close()

	assert.Empty(t, obs.unmounted)
	assert.Empty(t, obs.mounted)
}

func TestUnapprovedMountIsIgnored(t *testing.T) {
	sess := session.New()
	obs := &recordingObserver{}
	tracker := NewTracker(sess, nil, obs)

	tracker.DriveMounted(2)
	tracker.Close()

	_, ok := sess.Drive(2)
	assert.False(t, ok)
	assert.Empty(t, obs.mounted)
}

func TestApprovedPathBindsToNextMount(t *testing.T) {
	sess := session.New()
	tracker := NewTracker(sess, []string{"*.CFG"}, nil)
	defer tracker.Close()

	tracker.Approve("/media/cdrom", true)
	tracker.DriveMounted(3)

	d, ok := sess.Drive(3)
	require.True(t, ok)
	assert.Equal(t, "/media/cdrom", d.Source)
	assert.True(t, d.ReadOnly)
	assert.Equal(t, []string{"*.CFG"}, d.Protected)

	// the approval is used up
	tracker.DriveMounted(4)
	_, ok = sess.Drive(4)
	assert.False(t, ok)
}

func TestRegisterRejectsMountedSlot(t *testing.T) {
	sess := session.New()
	tracker := NewTracker(sess, nil, nil)
	defer tracker.Close()

	require.NoError(t, tracker.Register(&mount.Mount{Index: 2, Source: "/dos"}))
	tracker.DriveMounted(2)

	err := tracker.Register(&mount.Mount{Index: 2, Source: "/other"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already mounted")

	assert.Error(t, tracker.Register(nil))
	assert.Error(t, tracker.Register(&mount.Mount{Index: 26}))
}

func TestNotificationsDoNotBlock(t *testing.T) {
	sess := session.New()
	obs := &recordingObserver{block: make(chan struct{})}
	tracker := NewTracker(sess, nil, obs)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// the observer is stuck, so the queue fills and overflows
		for round := 0; round < 4; round++ {
			for i := uint8(0); i < session.MaxDrives; i++ {
				tracker.Approve("/dos", false)
				tracker.DriveMounted(i)
				tracker.DriveUnmounted(i)
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("drive notifications blocked the caller")
	}

	assert.True(t, tracker.Dropped() > 0)
	close(obs.block)
	tracker.Close()
}

func TestResolve(t *testing.T) {
	sess := session.New()
	root := t.TempDir()
	tracker := NewTracker(sess, nil, nil)
	defer tracker.Close()

	require.NoError(t, tracker.Register(&mount.Mount{Index: 2, Source: root}))
	tracker.DriveMounted(2)

	tests := []struct {
		name    string
		dosPath string
		index   uint8
		want    string
		wantOK  bool
	}{
		{"with letter", `C:\GAMES\KEEN.EXE`, 2, filepath.Join(root, "GAMES", "KEEN.EXE"), true},
		{"without letter", `\AUTOEXEC.BAT`, 2, filepath.Join(root, "AUTOEXEC.BAT"), true},
		{"relative", `GAME.EXE`, 2, filepath.Join(root, "GAME.EXE"), true},
		{"letter mismatch", `D:\GAME.EXE`, 2, "", false},
		{"no drive", `E:\GAME.EXE`, 4, "", false},
		{"escape", `C:\..\..\ETC\PASSWD`, 2, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tracker.Resolve(tt.dosPath, tt.index)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHistory(t *testing.T) {
	h := NewHistory(3)
	now := time.Now()

	h.Add(session.VirtualDrive{Index: 2, Source: "/a"}, now)
	h.Add(session.VirtualDrive{Index: 3, Source: "/b"}, now)
	h.Add(session.VirtualDrive{Index: 4, Source: "/c"}, now)
	h.Add(session.VirtualDrive{Index: 2, Source: "/a"}, now)
	h.Add(session.VirtualDrive{Index: 5, Source: "/d"}, now)

	entries := h.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "/d", entries[0].Source)
	assert.Equal(t, "/a", entries[1].Source)
	assert.Equal(t, "/c", entries[2].Source)
	assert.Equal(t, "F", entries[0].Letter)
}

func TestHistoryFilledByMounts(t *testing.T) {
	sess := session.New()
	tracker := NewTracker(sess, nil, nil)

	tracker.Approve("/games", false)
	tracker.DriveMounted(2)
	tracker.Close()

	entries := tracker.History().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "/games", entries[0].Source)
	assert.Equal(t, "C", entries[0].Letter)
}

func TestApprovalNeverBindsInternalDrive(t *testing.T) {
	sess := session.New()
	tracker := NewTracker(sess, nil, nil)
	defer tracker.Close()

	tracker.Approve("/tmp/games", false)
	tracker.DriveMounted(InternalDrive)

	_, ok := sess.Drive(InternalDrive)
	assert.False(t, ok)

	// the approval was consumed by the refused mount
	tracker.DriveMounted(3)
	_, ok = sess.Drive(3)
	assert.False(t, ok)
}

func TestExpiredApprovalIsNotUsed(t *testing.T) {
	sess := session.New()
	tracker := NewTracker(sess, nil, nil)
	defer tracker.Close()

	tracker.Approve("/tmp/games", false)
	tracker.Expire()
	tracker.DriveMounted(3)

	_, ok := sess.Drive(3)
	assert.False(t, ok)

	tracker.Approve("/tmp/games", true)
	tracker.DriveMounted(3)
	d, ok := sess.Drive(3)
	require.True(t, ok)
	assert.True(t, d.ReadOnly)
}

type countingObserver struct {
	delivered atomic.Uint64
}

func (c *countingObserver) DriveDidMount(session.VirtualDrive)   { c.delivered.Add(1) }
func (c *countingObserver) DriveDidUnmount(session.VirtualDrive) { c.delivered.Add(1) }

func TestCloseDuringNotificationsLosesNothing(t *testing.T) {
	sess := session.New()
	obs := &countingObserver{}
	tracker := NewTracker(sess, nil, obs)

	const rounds = 2000
	done := make(chan struct{})
	go func() {
		defer close(done)
		for n := 0; n < rounds; n++ {
			i := uint8(n % session.MaxDrives)
			assert.NoError(t, tracker.Register(&mount.Mount{Index: i, Source: "/dos"}))
			tracker.DriveMounted(i)
			tracker.DriveUnmounted(i)
		}
	}()

	time.Sleep(time.Millisecond)
	tracker.Close()
	<-done

	// every notification was either delivered or counted as dropped
	assert.Equal(t, uint64(2*rounds), obs.delivered.Load()+tracker.Dropped())
}

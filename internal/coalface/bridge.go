package coalface

import (
	"errors"
	"fmt"
	"time"

	"github.com/faize-ai/coalface/internal/drive"
	"github.com/faize-ai/coalface/internal/frame"
	"github.com/faize-ai/coalface/internal/input"
	"github.com/faize-ai/coalface/internal/locale"
	"github.com/faize-ai/coalface/internal/logger"
	"github.com/faize-ai/coalface/internal/mount"
	"github.com/faize-ai/coalface/internal/runloop"
	"github.com/faize-ai/coalface/internal/session"
	"github.com/faize-ai/coalface/internal/shell"
)

// ErrMountDenied is returned by Mount when the mediator refuses the path
var ErrMountDenied = errors.New("mount denied")

// Default render target
const (
	DefaultWidth  = 640
	DefaultHeight = 400
	DefaultBPP    = 1
)

// Options holds the host configuration that is not expressed through
// capability interfaces
type Options struct {
	Rules       *mount.Rules // nil permits every mount
	Protected   []string     // write-protected patterns for every new drive
	Width       int
	Height      int
	BPP         int
	Layouts     *input.Layouts
	Catalog     *locale.Catalog
	PauseYields bool
	HostTitle   bool
	HostEvents  bool
}

// Bridge is the hook surface the core calls. Every hook method must be called
// from the emulation goroutine; the accessor methods are for the host and are
// safe from any goroutine.
type Bridge struct {
	sess *session.Session
	caps capabilities

	controller  *runloop.Controller
	exchange    *frame.Exchange
	policy      *mount.Policy
	tracker     *drive.Tracker
	interceptor *shell.Interceptor
	input       *input.Bridge
	catalog     *locale.Catalog

	guard guard

	// buffer handed out by the last successful BeginFrame
	open *frame.Buffer
}

// New wires host into a Bridge for sess. host may be nil, giving a bridge that
// behaves like a standalone emulator.
func New(sess *session.Session, host any, opts Options) (*Bridge, error) {
	if sess == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}
	if opts.Width == 0 && opts.Height == 0 && opts.BPP == 0 {
		opts.Width, opts.Height, opts.BPP = DefaultWidth, DefaultHeight, DefaultBPP
	}
	if opts.Layouts == nil {
		opts.Layouts = input.NewLayouts(nil)
	}

	caps := discover(host)
	b := &Bridge{
		sess:    sess,
		caps:    caps,
		catalog: opts.Catalog,
	}

	runOpts := []runloop.Option{
		runloop.WithPauseYields(opts.PauseYields),
		runloop.WithHostTitle(opts.HostTitle),
	}
	if caps.title != nil {
		runOpts = append(runOpts, runloop.WithTitleObserver(caps.title))
	}
	b.controller = runloop.NewController(runOpts...)
	b.controller.SetHostEvents(opts.HostEvents)

	exchange, err := frame.NewExchange(opts.Width, opts.Height, opts.BPP, caps.renderer)
	if err != nil {
		return nil, fmt.Errorf("failed to create frame exchange: %w", err)
	}
	b.exchange = exchange

	b.policy = mount.NewPolicy(sess, opts.Rules)
	b.tracker = drive.NewTracker(sess, opts.Protected, caps.drives)

	var shellOpts []shell.Option
	if caps.shell != nil {
		shellOpts = append(shellOpts, shell.WithObserver(caps.shell))
	}
	if caps.commands != nil {
		shellOpts = append(shellOpts, shell.WithCommandPolicy(caps.commands))
	}
	if caps.input != nil {
		shellOpts = append(shellOpts, shell.WithInputPolicy(caps.input))
	}
	b.interceptor = shell.NewInterceptor(sess, b.tracker, shellOpts...)

	b.input = input.NewBridge(sess, opts.Layouts, caps.keyboard, caps.modifiers)

	logger.Debugf("bridge", "session %s ready, %dx%dx%d", sess.ID, opts.Width, opts.Height, opts.BPP)
	return b, nil
}

// Close stops background delivery of drive notifications
func (b *Bridge) Close() {
	b.tracker.Close()
}

// Run loop

// ContinueRunning is polled once per core iteration. Besides reading atomics
// it expires a mount approval left over from the previous iteration.
func (b *Bridge) ContinueRunning() bool {
	if !b.guard.enter(hookContinue) {
		return true
	}
	defer b.guard.leave(hookContinue)

	b.tracker.Expire()

	if !b.controller.ContinueRunning() {
		return false
	}
	if b.caps.runLoop != nil {
		return b.caps.runLoop.ContinueRunning()
	}
	return true
}

// HostPaused reports whether the host has paused the session. A core whose
// loop does not yield while paused should idle until this turns false.
func (b *Bridge) HostPaused() bool {
	return b.controller.Paused()
}

// HandleEventLoop reports whether the host pumps window events itself
func (b *Bridge) HandleEventLoop() bool {
	return b.controller.HandleEventLoop()
}

// TitleStateChanged reports a new run state. False tells the core to skip
// its own title handling.
func (b *Bridge) TitleStateChanged(cyclesPerSecond, frameskip int, paused bool) bool {
	if !b.guard.enter(hookTitle) {
		return true
	}
	defer b.guard.leave(hookTitle)

	return b.controller.TitleStateChanged(runloop.TitleState{
		CyclesPerSecond: cyclesPerSecond,
		Frameskip:       frameskip,
		Paused:          paused,
	})
}

// Frames

// BeginFrame returns the buffer to draw the next frame into. ok is false when
// there is no render target or a frame is already open; the core must then
// skip rendering for this iteration.
func (b *Bridge) BeginFrame() (buf *frame.Buffer, ok bool) {
	if !b.guard.enter(hookFrame) {
		return nil, false
	}
	defer b.guard.leave(hookFrame)

	buf, err := b.exchange.Begin()
	if err != nil {
		if !errors.Is(err, frame.ErrNoTarget) {
			logger.Debugf("frame", "begin refused: %v", err)
		}
		return nil, false
	}
	b.open = buf
	return buf, true
}

// EndFrame commits the open frame with the rows that changed. The core must
// not touch the buffer afterwards.
func (b *Bridge) EndFrame(dirty frame.DirtyRegions) {
	if !b.guard.enter(hookFrame) {
		return
	}
	defer b.guard.leave(hookFrame)

	b.open = nil
	if err := b.exchange.End(dirty); err != nil {
		logger.Debugf("frame", "end refused: %v", err)
	}
}

// EndFrameBlocks is EndFrame for a dirty list in alternating clean/dirty
// row-count form
func (b *Bridge) EndFrameBlocks(blocks []uint16) {
	height := 0
	if b.open != nil {
		height = b.open.Height
	}
	b.EndFrame(frame.DecodeDirtyBlocks(blocks, height))
}

// Filesystem

// ShouldMount decides whether hostPath may back a new drive. An allowed path
// is remembered until the end of the iteration so the following DriveMounted
// can record it; a refusal drops any earlier approval.
func (b *Bridge) ShouldMount(hostPath string) bool {
	if !b.guard.enter(hookMount) {
		return false
	}
	defer b.guard.leave(hookMount)

	b.tracker.Expire()
	if !b.policy.ShouldMount(hostPath) {
		return false
	}
	if b.caps.fs != nil && !b.caps.fs.ShouldMount(hostPath) {
		logger.Debugf("mount", "host denied %s", hostPath)
		return false
	}
	source, err := mount.ExpandPath(hostPath)
	if err != nil {
		source = hostPath
	}
	b.tracker.Approve(source, b.policy.MountReadOnly(source))
	return true
}

// ShouldShow decides whether a directory entry is listed to DOS
func (b *Bridge) ShouldShow(name string) bool {
	if !b.guard.enter(hookShow) {
		return false
	}
	defer b.guard.leave(hookShow)

	if !b.policy.ShouldShow(name) {
		return false
	}
	if b.caps.fs != nil {
		return b.caps.fs.ShouldShow(name)
	}
	return true
}

// ShouldAllowWrite decides whether a DOS program may write hostPath through
// the drive at driveIndex. Without such a drive, or outside its backing root,
// the write is refused before any host policy is asked.
func (b *Bridge) ShouldAllowWrite(hostPath string, driveIndex uint8) bool {
	if !b.guard.enter(hookWrite) {
		return false
	}
	defer b.guard.leave(hookWrite)

	d, ok := b.sess.Drive(driveIndex)
	if !ok || !mount.Within(hostPath, d.Source) {
		logger.Debugf("mount", "write to %s outside drive %s refused", hostPath, session.DriveLetter(driveIndex))
		return false
	}
	if !b.policy.ShouldAllowWrite(hostPath, driveIndex) {
		return false
	}
	if b.caps.fs != nil {
		return b.caps.fs.ShouldAllowWrite(hostPath, driveIndex)
	}
	return true
}

// Drives

// DriveMounted records the drive the core just created at index
func (b *Bridge) DriveMounted(index uint8) {
	if !b.guard.enter(hookDrive) {
		return
	}
	defer b.guard.leave(hookDrive)

	b.tracker.DriveMounted(index)
}

// DriveUnmounted removes the drive at index
func (b *Bridge) DriveUnmounted(index uint8) {
	if !b.guard.enter(hookDrive) {
		return
	}
	defer b.guard.leave(hookDrive)

	b.tracker.DriveUnmounted(index)
}

// Shell

// ShouldRunCommand is asked before the shell interprets a command. False
// suppresses native execution.
func (b *Bridge) ShouldRunCommand(cmd, args string) bool {
	if !b.guard.enter(hookCommand) {
		return true
	}
	defer b.guard.leave(hookCommand)

	return b.interceptor.ShouldRunCommand(cmd, args)
}

// HandleCommandInput lets the host edit the command line being composed. It
// returns false, leaving line unchanged, when nothing was modified.
func (b *Bridge) HandleCommandInput(line *shell.CommandLine) bool {
	if !b.guard.enter(hookCommandInput) {
		return false
	}
	defer b.guard.leave(hookCommandInput)

	return b.interceptor.HandleCommandInput(line)
}

// AutoexecDidStart is sent when AUTOEXEC.BAT begins
func (b *Bridge) AutoexecDidStart() {
	b.notify(shell.Event{Kind: shell.AutoexecStart})
}

// AutoexecDidFinish is sent when AUTOEXEC.BAT completes
func (b *Bridge) AutoexecDidFinish() {
	b.notify(shell.Event{Kind: shell.AutoexecFinish})
}

// DidReturnToShell is sent whenever the prompt is shown again
func (b *Bridge) DidReturnToShell() {
	b.notify(shell.Event{Kind: shell.ReturnedToShell})
}

// WillExecuteFile is sent before a program or batch file starts
func (b *Bridge) WillExecuteFile(dosPath string, driveIndex uint8) {
	b.notify(shell.Event{Kind: shell.WillExecuteFile, Path: dosPath, Drive: driveIndex})
}

// DidExecuteFile is sent after a program or batch file exits
func (b *Bridge) DidExecuteFile(dosPath string, driveIndex uint8) {
	b.notify(shell.Event{Kind: shell.DidExecuteFile, Path: dosPath, Drive: driveIndex})
}

func (b *Bridge) notify(ev shell.Event) {
	if !b.guard.enter(hookShellEvent) {
		return
	}
	defer b.guard.leave(hookShellEvent)

	state := b.interceptor.Notify(ev)
	logger.Debugf("shell", "%s %s -> %s", ev.Kind, ev.Path, state)
}

// Input

// CurrentKeyboardLayout returns the DOS layout code for the host's layout
func (b *Bridge) CurrentKeyboardLayout() string {
	if !b.guard.enter(hookLayout) {
		return input.DefaultLayout
	}
	defer b.guard.leave(hookLayout)

	return b.input.CurrentKeyboardLayout()
}

// CurrentModifiers returns the modifier keys held right now
func (b *Bridge) CurrentModifiers() input.Modifier {
	if !b.guard.enter(hookModifiers) {
		return input.None
	}
	defer b.guard.leave(hookModifiers)

	return b.input.CurrentModifiers()
}

// SetMouseActive records whether the emulated program uses the mouse
func (b *Bridge) SetMouseActive(active bool) {
	if !b.guard.enter(hookMouse) {
		return
	}
	defer b.guard.leave(hookMouse)

	b.input.SetMouseActive(active)
}

// MouseMovedTo records the emulated mouse position in display coordinates
func (b *Bridge) MouseMovedTo(x, y float64) {
	if !b.guard.enter(hookMouse) {
		return
	}
	defer b.guard.leave(hookMouse)

	b.input.MouseMovedTo(x, y)
}

// Localization

// LocalizedString returns the host string for key. ok is false when neither
// the host nor the catalog knows key, and the core must use its own text.
func (b *Bridge) LocalizedString(key string) (value string, ok bool) {
	if !b.guard.enter(hookLocalize) {
		return "", false
	}
	defer b.guard.leave(hookLocalize)

	if b.caps.localizer != nil {
		if value, ok = b.caps.localizer.LocalizedString(key); ok {
			return value, true
		}
	}
	return b.catalog.Lookup(key)
}

// Host side

// Mount validates m and queues it for the core. The drive appears in the
// session once the core confirms it with DriveMounted.
func (b *Bridge) Mount(m *mount.Mount) error {
	if m == nil {
		return fmt.Errorf("mount cannot be nil")
	}
	if err := b.policy.Rules().Validator.Validate(m); err != nil {
		return fmt.Errorf("%w: %w", ErrMountDenied, err)
	}
	if b.caps.fs != nil && !b.caps.fs.ShouldMount(m.Source) {
		return fmt.Errorf("%w: host refused %s", ErrMountDenied, m.Source)
	}
	if err := b.tracker.Register(m); err != nil {
		return fmt.Errorf("failed to register drive %s: %w", m.Letter(), err)
	}
	return nil
}

// RequestMount validates m and asks the core to mount it by typing a MOUNT
// command at its next prompt
func (b *Bridge) RequestMount(m *mount.Mount) error {
	if err := b.Mount(m); err != nil {
		return err
	}
	if err := b.interceptor.Inject(fmt.Sprintf(`MOUNT %s "%s"`, m.Letter(), m.Source), true); err != nil {
		return fmt.Errorf("failed to queue mount of %s: %w", m.Letter(), err)
	}
	return nil
}

// Record summarizes the session for the session store. Drives that were
// mounted and later removed are included from the recent-mounts history.
func (b *Bridge) Record(status, reason string) *session.Record {
	rec := b.sess.Record(status)
	rec.Programs = b.interceptor.Programs()
	rec.ExitReason = reason
	if status == session.StatusStopped {
		now := time.Now()
		rec.StoppedAt = &now
	}

	seen := make(map[string]bool, len(rec.Drives))
	for _, d := range rec.Drives {
		seen[d.Letter()+d.Source] = true
	}
	for _, r := range b.tracker.History().Entries() {
		if seen[r.Letter+r.Source] {
			continue
		}
		idx, err := mount.ParseLetter(r.Letter)
		if err != nil {
			continue
		}
		seen[r.Letter+r.Source] = true
		rec.Drives = append(rec.Drives, session.VirtualDrive{Index: idx, Source: r.Source, ReadOnly: r.ReadOnly})
	}
	return rec
}

// Session returns the session the bridge serves
func (b *Bridge) Session() *session.Session { return b.sess }

// Controller returns the run loop controller for pausing and stopping
func (b *Bridge) Controller() *runloop.Controller { return b.controller }

// Exchange returns the frame exchange the renderer reads from
func (b *Bridge) Exchange() *frame.Exchange { return b.exchange }

// Policy returns the filesystem mediator, whose rules the host may replace
func (b *Bridge) Policy() *mount.Policy { return b.policy }

// Tracker returns the drive tracker
func (b *Bridge) Tracker() *drive.Tracker { return b.tracker }

// Interceptor returns the shell interceptor for registering host commands
func (b *Bridge) Interceptor() *shell.Interceptor { return b.interceptor }

// Reentries returns how many re-entrant hook calls were refused
func (b *Bridge) Reentries() uint64 { return b.guard.reentries.Load() }

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/faize-ai/coalface/internal/changeset"
	"github.com/faize-ai/coalface/internal/coalface"
	"github.com/faize-ai/coalface/internal/config"
	"github.com/faize-ai/coalface/internal/console"
	"github.com/faize-ai/coalface/internal/input"
	"github.com/faize-ai/coalface/internal/locale"
	"github.com/faize-ai/coalface/internal/mount"
	"github.com/faize-ai/coalface/internal/session"
)

var (
	runDrives      []string
	runScript      string
	runInteractive bool
	runPreview     bool
	runVerbose     bool
	runNoDiff      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a DOS session",
	Long: `Run a DOS session under the host's filesystem and shell policy.

Drives from the config file and from --drive are mounted first. The session
then replays --script, a YAML description of what the DOS user does, or with
--interactive reads DOS commands from the terminal (~. stops, ~p pauses).

When the session ends, files the session created, changed or deleted on
writable drives are listed and saved for 'coalface diff'.

Examples:
  coalface run --drive C:~/DOS/games --script play.yaml
  coalface run -d C:~/DOS/games -d D:~/DOS/cdrom:ro --interactive`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringArrayVarP(&runDrives, "drive", "d", []string{}, "drive to mount as LETTER:PATH[:ro] (repeatable)")
	runCmd.Flags().StringVarP(&runScript, "script", "s", "", "YAML session script to replay")
	runCmd.Flags().BoolVarP(&runInteractive, "interactive", "i", false, "read DOS commands from the terminal")
	runCmd.Flags().BoolVar(&runPreview, "preview", false, "draw each frame's changed rows")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "print programs as they run")
	runCmd.Flags().BoolVar(&runNoDiff, "no-diff", false, "disable change tracking and summary")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	// Load configuration, republishing filesystem rules when the file changes
	var live atomic.Pointer[coalface.Bridge]
	cfg, err := config.Watch(cfgFile, func(next *config.Config) {
		bridge := live.Load()
		if bridge == nil {
			return
		}
		rules, err := buildRules(next)
		if err != nil {
			Debug("Ignoring config change: %v", err)
			return
		}
		bridge.Policy().Update(rules)
		bridge.Controller().SetHostTitle(next.Display.HostTitle)
		Debug("Filesystem rules reloaded")
	})
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	Debug("Config loaded successfully")

	rules, err := buildRules(cfg)
	if err != nil {
		return err
	}

	var catalog *locale.Catalog
	if cfg.Locale.Catalog != "" {
		catalog, err = locale.LoadFile(cfg.Locale.Catalog)
		if err != nil {
			return fmt.Errorf("failed to load string catalog: %w", err)
		}
		Debug("Loaded %d strings from %s", catalog.Len(), cfg.Locale.Catalog)
	}

	script := &coalface.Script{}
	if runScript != "" {
		script, err = coalface.LoadScript(runScript)
		if err != nil {
			return err
		}
	}
	if runInteractive {
		script.Interactive = true
	}

	// Parse all drives before anything is started
	var drives []*mount.Mount
	for _, spec := range append(append([]string{}, cfg.Drives...), runDrives...) {
		m, err := mount.Parse(spec)
		if err != nil {
			return fmt.Errorf("invalid drive '%s': %w", spec, err)
		}
		drives = append(drives, m)
	}

	host := &cliHost{
		Status:    console.NewStatus(os.Stdout, int(os.Stdout.Fd()), runPreview),
		out:       os.Stdout,
		verbose:   runVerbose,
		layout:    cfg.Keyboard.Layout,
		modifiers: input.ParseModifiers(cfg.Keyboard.Modifiers),
	}

	sess := session.New()
	bridge, err := coalface.New(sess, host, coalface.Options{
		Rules:       rules,
		Protected:   cfg.Filesystem.ProtectedPatterns,
		Width:       cfg.Display.Width,
		Height:      cfg.Display.Height,
		BPP:         cfg.Display.BPP,
		Layouts:     input.NewLayouts(cfg.Keyboard.Overrides),
		Catalog:     catalog,
		PauseYields: cfg.RunLoop.PauseYields,
		HostTitle:   cfg.Display.HostTitle,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	live.Store(bridge)

	if !runNoDiff {
		host.setRecorder(changeset.NewRecorder(bridge.Policy().ShouldShow))
	}

	for _, m := range drives {
		if err := bridge.RequestMount(m); err != nil {
			bridge.Close()
			return fmt.Errorf("drive %s: %w", m.Letter(), err)
		}
		if r := host.currentRecorder(); r != nil {
			r.Baseline(m.Drive(cfg.Filesystem.ProtectedPatterns))
		}
		Debug("Drive %s: -> %s queued", m.Letter(), m.Source)
	}

	store, storeErr := session.NewStore()
	if storeErr != nil {
		Debug("Session store unavailable: %v", storeErr)
	} else if err := store.Save(bridge.Record(session.StatusRunning, "")); err != nil {
		Debug("Failed to save session: %v", err)
	}

	fmt.Printf("Session %s | %d drive(s) | layout %s\n", sess.ID, len(drives), bridge.CurrentKeyboardLayout())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var con *console.Console
	if runInteractive {
		con = console.New(bridge.Interceptor(), bridge.Controller())
		fmt.Println("Type DOS commands... (~. to stop, ~? for help)")
		go func() {
			if err := con.Attach(os.Stdin, os.Stdout); err != nil && !errors.Is(err, console.ErrUserDetach) {
				Debug("Console error: %v", err)
			}
		}()
	}

	core := coalface.NewScriptCore(script)
	runErr := bridge.Run(ctx, core)

	if con != nil {
		con.Detach()
	}
	bridge.Close()

	for _, line := range core.Transcript() {
		Debug("%s", line)
	}

	// Determine exit reason and persist session metadata
	exitReason := "normal"
	switch {
	case errors.Is(runErr, context.Canceled):
		exitReason = "cancelled"
		runErr = nil
	case bridge.Controller().Stopping():
		exitReason = "host"
	}
	rec := bridge.Record(session.StatusStopped, exitReason)
	if store != nil {
		if err := store.Save(rec); err != nil {
			Debug("Failed to save session: %v", err)
		}
	}

	fmt.Printf("\nSession %s ended (%s) | %d frame(s) | %d program(s)\n",
		sess.ID, exitReason, host.Frames(), len(rec.Programs))
	if dropped := bridge.Tracker().Dropped(); dropped > 0 {
		fmt.Printf("Warning: %d drive notification(s) were dropped\n", dropped)
	}

	// Post-session change tracking
	if r := host.currentRecorder(); r != nil {
		cs := r.Finish(sess.ID)
		for _, p := range rec.Programs {
			cs.Programs = append(cs.Programs, p.DOSPath)
		}
		changeset.PrintSummary(os.Stdout, cs)

		// Save for later viewing with `coalface diff`
		if store != nil {
			dir := store.SessionDir(sess.ID)
			if err := os.MkdirAll(dir, 0755); err == nil {
				if saveErr := changeset.SaveChangeset(filepath.Join(dir, "changeset.json"), cs); saveErr != nil {
					Debug("Failed to save changeset: %v", saveErr)
				}
			}
		}
	}

	return runErr
}

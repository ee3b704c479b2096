package coalface

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/faize-ai/coalface/internal/frame"
	"github.com/faize-ai/coalface/internal/mount"
	"github.com/faize-ai/coalface/internal/session"
	"github.com/faize-ai/coalface/internal/shell"
)

// idleInterval is how long an interactive core waits at the prompt between
// iterations
const idleInterval = 20 * time.Millisecond

// maxInjected bounds how many host-queued command lines are run between two
// script steps
const maxInjected = 16

// Script is a recorded DOS session replayed by ScriptCore
type Script struct {
	// Interactive keeps the core idling at the prompt once the steps are
	// done, until EXIT is typed or the host stops it
	Interactive bool         `yaml:"interactive"`
	Cycles      int          `yaml:"cycles"`
	Frameskip   int          `yaml:"frameskip"`
	Autoexec    []string     `yaml:"autoexec"`
	Steps       []ScriptStep `yaml:"steps"`
}

// ScriptStep is one action of the emulated user or program. Exactly one of
// the action fields is expected to be set; Frames may accompany Run.
type ScriptStep struct {
	Command string       `yaml:"command,omitempty"` // typed at the prompt
	Run     string       `yaml:"run,omitempty"`     // program started directly, e.g. C:\GAME.EXE
	Frames  int          `yaml:"frames,omitempty"`  // frames rendered
	Write   *ScriptWrite `yaml:"write,omitempty"`
	List    string       `yaml:"list,omitempty"` // directory listed, e.g. C:\
	Unmount string       `yaml:"unmount,omitempty"`
	Mouse   []float64    `yaml:"mouse,omitempty"` // x, y
	Pause   *bool        `yaml:"pause,omitempty"`
	Key     string       `yaml:"key,omitempty"` // localization key looked up
}

// ScriptWrite is a file written by a DOS program
type ScriptWrite struct {
	Path string `yaml:"path"` // DOS path, e.g. C:\SAVES\GAME1.SAV
	Data string `yaml:"data"`
}

// LoadScript reads a YAML script file
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return ParseScript(data)
}

// ParseScript decodes a YAML script
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	return &s, nil
}

// ScriptCore is a Core that replays a Script through the hooks the way a DOS
// emulator would: AUTOEXEC first, then one step per iteration. While the host
// has paused the session it idles without advancing. It understands
// the MOUNT and EXIT shell commands and treats any other command naming an
// .EXE, .COM or .BAT as a program to run.
type ScriptCore struct {
	script  *Script
	next    int
	started bool
	exited  bool
	paused  bool
	current uint8
	frames  int

	transcript []string
}

// NewScriptCore creates a core for s
func NewScriptCore(s *Script) *ScriptCore {
	if s == nil {
		s = &Script{}
	}
	return &ScriptCore{script: s, current: 2}
}

// Transcript returns what the core did, one line per event
func (c *ScriptCore) Transcript() []string {
	return append([]string(nil), c.transcript...)
}

// Frames returns the number of frames rendered
func (c *ScriptCore) Frames() int {
	return c.frames
}

func (c *ScriptCore) logf(format string, args ...any) {
	c.transcript = append(c.transcript, fmt.Sprintf(format, args...))
}

// Step implements Core
func (c *ScriptCore) Step(b *Bridge) bool {
	if c.exited {
		return false
	}

	if b.HostPaused() {
		if !c.paused {
			c.paused = true
			b.TitleStateChanged(c.script.Cycles, c.script.Frameskip, true)
		}
		time.Sleep(idleInterval)
		return true
	}
	if c.paused {
		c.paused = false
		b.TitleStateChanged(c.script.Cycles, c.script.Frameskip, false)
	}

	if !c.started {
		c.started = true
		if !b.TitleStateChanged(c.script.Cycles, c.script.Frameskip, false) {
			c.logf("title: host")
		}
		b.AutoexecDidStart()
		for _, line := range c.script.Autoexec {
			c.execute(b, line)
			if c.exited {
				return false
			}
		}
		b.AutoexecDidFinish()
		return true
	}

	c.drainInjected(b)
	if c.exited {
		return false
	}

	if c.next >= len(c.script.Steps) {
		if !c.script.Interactive {
			return false
		}
		c.render(b, 1)
		time.Sleep(idleInterval)
		return true
	}
	step := c.script.Steps[c.next]
	c.next++
	c.apply(b, step)
	return !c.exited
}

func (c *ScriptCore) apply(b *Bridge, step ScriptStep) {
	switch {
	case step.Command != "":
		c.prompt(b, step.Command)
	case step.Run != "":
		c.runProgram(b, step.Run, step.Frames)
	case step.Frames > 0:
		c.render(b, step.Frames)
	case step.Write != nil:
		c.write(b, step.Write)
	case step.List != "":
		c.list(b, step.List)
	case step.Unmount != "":
		idx, err := mount.ParseLetter(step.Unmount)
		if err != nil {
			c.logf("unmount %s: %v", step.Unmount, err)
			return
		}
		b.DriveUnmounted(idx)
		c.logf("unmount %s:", session.DriveLetter(idx))
	case len(step.Mouse) == 2:
		b.SetMouseActive(true)
		b.MouseMovedTo(step.Mouse[0], step.Mouse[1])
	case step.Pause != nil:
		b.TitleStateChanged(c.script.Cycles, c.script.Frameskip, *step.Pause)
	case step.Key != "":
		if v, ok := b.LocalizedString(step.Key); ok {
			c.logf("string %s: %q", step.Key, v)
		} else {
			c.logf("string %s: built-in", step.Key)
		}
	}
}

// prompt types line at the command prompt, giving the host a chance to edit
// it first
func (c *ScriptCore) prompt(b *Bridge, line string) {
	cl := shell.CommandLine{Buffer: line, Cursor: len(line), Execute: true}
	b.HandleCommandInput(&cl)
	if cl.Execute {
		c.execute(b, cl.Buffer)
	}
}

// drainInjected runs command lines the host queued while the prompt was idle
func (c *ScriptCore) drainInjected(b *Bridge) {
	for i := 0; i < maxInjected; i++ {
		var cl shell.CommandLine
		if !b.HandleCommandInput(&cl) {
			return
		}
		if cl.Execute {
			c.execute(b, cl.Buffer)
		}
		if c.exited {
			return
		}
	}
}

func (c *ScriptCore) execute(b *Bridge, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	cmd, args, _ := strings.Cut(line, " ")
	args = strings.TrimSpace(args)

	if !b.ShouldRunCommand(cmd, args) {
		c.logf("> %s: handled by host", line)
		return
	}
	c.logf("> %s", line)

	switch name := strings.ToUpper(cmd); {
	case name == "EXIT":
		c.exited = true
	case name == "MOUNT":
		c.mount(b, args)
	case len(name) == 2 && name[1] == ':':
		if idx, err := mount.ParseLetter(name[:1]); err == nil {
			c.current = idx
		}
	case isProgram(name):
		c.runProgram(b, cmd, 1)
	}
}

// mount handles "MOUNT X path"
func (c *ScriptCore) mount(b *Bridge, args string) {
	letter, path, _ := strings.Cut(args, " ")
	path = strings.Trim(strings.TrimSpace(path), `"`)
	idx, err := mount.ParseLetter(letter)
	if err != nil || path == "" {
		c.logf("mount %s: invalid arguments", args)
		return
	}
	if !b.ShouldMount(path) {
		c.logf("mount %s: %s: denied", session.DriveLetter(idx), path)
		return
	}
	b.DriveMounted(idx)
	c.logf("mount %s: %s", session.DriveLetter(idx), path)
}

func (c *ScriptCore) runProgram(b *Bridge, dosPath string, frames int) {
	idx := c.driveOf(dosPath)
	b.WillExecuteFile(dosPath, idx)
	c.render(b, frames)
	b.DidExecuteFile(dosPath, idx)
	b.DidReturnToShell()
}

// render draws n frames of a moving bar and reports the rows it touched
func (c *ScriptCore) render(b *Bridge, n int) {
	for i := 0; i < n; i++ {
		buf, ok := b.BeginFrame()
		if !ok {
			continue
		}
		row := c.frames % buf.Height
		line := buf.Row(row)
		for x := range line {
			line[x] = byte(c.frames + x)
		}
		b.EndFrame(frame.DirtyRegions{{Start: row, End: row + 1}})
		c.frames++
	}
}

func (c *ScriptCore) write(b *Bridge, w *ScriptWrite) {
	idx := c.driveOf(w.Path)
	hostPath, ok := b.Tracker().Resolve(w.Path, idx)
	if !ok {
		c.logf("write %s: no such drive", w.Path)
		return
	}
	if !b.ShouldAllowWrite(hostPath, idx) {
		c.logf("write %s: access denied", w.Path)
		return
	}
	if err := os.MkdirAll(filepath.Dir(hostPath), 0755); err != nil {
		c.logf("write %s: %v", w.Path, err)
		return
	}
	if err := os.WriteFile(hostPath, []byte(w.Data), 0644); err != nil {
		c.logf("write %s: %v", w.Path, err)
		return
	}
	c.logf("write %s", w.Path)
}

func (c *ScriptCore) list(b *Bridge, dosPath string) {
	idx := c.driveOf(dosPath)
	hostPath, ok := b.Tracker().Resolve(dosPath, idx)
	if !ok {
		c.logf("dir %s: no such drive", dosPath)
		return
	}
	entries, err := os.ReadDir(hostPath)
	if err != nil {
		c.logf("dir %s: %v", dosPath, err)
		return
	}
	var shown []string
	for _, e := range entries {
		if b.ShouldShow(e.Name()) {
			shown = append(shown, strings.ToUpper(e.Name()))
		}
	}
	c.logf("dir %s: %s", dosPath, strings.Join(shown, " "))
}

// driveOf returns the drive named by a DOS path, or the current drive
func (c *ScriptCore) driveOf(dosPath string) uint8 {
	if len(dosPath) >= 2 && dosPath[1] == ':' {
		if idx, err := mount.ParseLetter(dosPath[:1]); err == nil {
			return idx
		}
	}
	return c.current
}

func isProgram(name string) bool {
	switch strings.ToUpper(filepath.Ext(strings.ReplaceAll(name, `\`, "/"))) {
	case ".EXE", ".COM", ".BAT":
		return true
	}
	return false
}

package mount

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/faize-ai/coalface/internal/logger"
	"github.com/faize-ai/coalface/internal/session"
)

// DefaultHidden lists host artifacts that DOS programs never see in a
// directory listing. Matching is case-insensitive.
var DefaultHidden = []string{
	".DS_Store",
	".Trashes",
	".Spotlight-V100",
	".fseventsd",
	"._*",
	"__MACOSX",
	"Thumbs.db",
	"desktop.ini",
	"Icon\r",
	"*.app",
	"*.bundle",
	"*.pkg",
	"*.localized",
}

// Write refusal reasons
var (
	ErrNoDrive       = errors.New("no drive mounted at index")
	ErrReadOnlyDrive = errors.New("drive is read-only")
	ErrOutsideDrive  = errors.New("path is outside the drive's backing root")
	ErrProtectedPath = errors.New("path is protected")
)

// DriveTable gives the mediator read access to the mounted drives
type DriveTable interface {
	Drive(index uint8) (session.VirtualDrive, bool)
}

// Rules is one published version of the host's filesystem policy. A Rules
// value must not be modified after it has been given to a Policy.
type Rules struct {
	Validator      *Validator
	HiddenPatterns []string // Matched against entry names in addition to DefaultHidden
	ReadOnlyPaths  []string // Drives the core mounts under these are read-only
	ShowDotfiles   bool
}

// Policy decides mount, listing and write requests coming from the core.
// Every method is a pure predicate over the current Rules and the drive
// table, so they may be called at any rate from the emulation goroutine while
// the host publishes new Rules with Update.
type Policy struct {
	drives DriveTable
	rules  atomic.Pointer[Rules]
}

// NewPolicy creates a Policy. A nil rules value permits every mount.
func NewPolicy(drives DriveTable, rules *Rules) *Policy {
	p := &Policy{drives: drives}
	p.Update(rules)
	return p
}

// Update atomically replaces the rules
func (p *Policy) Update(rules *Rules) {
	if rules == nil {
		rules = &Rules{}
	}
	if rules.Validator == nil {
		rules.Validator = &Validator{}
	}
	p.rules.Store(rules)
}

// Rules returns the rules currently in force
func (p *Policy) Rules() *Rules {
	return p.rules.Load()
}

// ShouldMount reports whether hostPath may back a DOS drive
func (p *Policy) ShouldMount(hostPath string) bool {
	if err := p.rules.Load().Validator.ValidatePath(hostPath); err != nil {
		logger.Debugf("mount", "%v", err)
		return false
	}
	return true
}

// MountReadOnly reports whether a drive backed by hostPath must be read-only
func (p *Policy) MountReadOnly(hostPath string) bool {
	for _, root := range p.rules.Load().ReadOnlyPaths {
		if Within(hostPath, root) {
			return true
		}
	}
	return false
}

// ShouldShow reports whether a directory entry is visible to DOS
func (p *Policy) ShouldShow(name string) bool {
	if name == "." || name == ".." {
		return true
	}

	rules := p.rules.Load()
	if !rules.ShowDotfiles && strings.HasPrefix(name, ".") {
		return false
	}

	lower := strings.ToLower(name)
	for _, patterns := range [][]string{DefaultHidden, rules.HiddenPatterns} {
		for _, pattern := range patterns {
			if matched, _ := filepath.Match(strings.ToLower(pattern), lower); matched {
				return false
			}
		}
	}
	return true
}

// ShouldAllowWrite reports whether a DOS program may write to hostPath
// through the drive at driveIndex
func (p *Policy) ShouldAllowWrite(hostPath string, driveIndex uint8) bool {
	if err := p.CheckWrite(hostPath, driveIndex); err != nil {
		logger.Debugf("mount", "write denied: %v", err)
		return false
	}
	return true
}

// CheckWrite is ShouldAllowWrite with the reason for a refusal
func (p *Policy) CheckWrite(hostPath string, driveIndex uint8) error {
	drive, ok := p.drives.Drive(driveIndex)
	if !ok {
		return fmt.Errorf("%s: %w %d", hostPath, ErrNoDrive, driveIndex)
	}
	if drive.ReadOnly {
		return fmt.Errorf("%s: %w", drive.Letter(), ErrReadOnlyDrive)
	}
	if !Within(hostPath, drive.Source) {
		return fmt.Errorf("%s: %w", hostPath, ErrOutsideDrive)
	}
	if matchesProtected(hostPath, drive) {
		return fmt.Errorf("%s: %w", hostPath, ErrProtectedPath)
	}
	if p.rules.Load().Validator.Blocked(hostPath) {
		return fmt.Errorf("%s: %w", hostPath, ErrProtectedPath)
	}
	return nil
}

// matchesProtected tests the drive's protected patterns against the path
// relative to the drive root and against its final element
func matchesProtected(hostPath string, drive session.VirtualDrive) bool {
	if len(drive.Protected) == 0 {
		return false
	}

	absPath, err := filepath.Abs(hostPath)
	if err != nil {
		return true
	}
	absRoot, err := filepath.Abs(drive.Source)
	if err != nil {
		return true
	}
	rel, err := filepath.Rel(resolve(absRoot), resolve(absPath))
	if err != nil {
		return true
	}
	rel = strings.ToLower(filepath.ToSlash(rel))
	base := strings.ToLower(filepath.Base(hostPath))

	for _, pattern := range drive.Protected {
		pattern = strings.ToLower(filepath.ToSlash(pattern))
		if matched, _ := filepath.Match(pattern, rel); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
		// A pattern naming a directory protects everything under it
		if strings.HasPrefix(rel, strings.TrimSuffix(pattern, "/")+"/") {
			return true
		}
	}
	return false
}

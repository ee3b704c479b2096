package cmd

import (
	"fmt"

	"github.com/faize-ai/coalface/internal/config"
	"github.com/faize-ai/coalface/internal/mount"
)

// buildRules turns the filesystem section of the config into mediator rules
func buildRules(cfg *config.Config) (*mount.Rules, error) {
	validator, err := mount.NewValidator(cfg.Filesystem.PermittedRoots, cfg.Filesystem.BlockedPaths)
	if err != nil {
		return nil, fmt.Errorf("failed to create mount validator: %w", err)
	}
	return &mount.Rules{
		Validator:      validator,
		HiddenPatterns: cfg.Filesystem.HiddenPatterns,
		ReadOnlyPaths:  cfg.Filesystem.ReadOnlyPaths,
		ShowDotfiles:   cfg.Filesystem.ShowDotfiles,
	}, nil
}

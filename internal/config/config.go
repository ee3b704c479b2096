package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// HardcodedBlockedPaths are host paths DOS may never mount or write, whatever
// the user config says. They hold credentials and system state.
var HardcodedBlockedPaths = []string{
	"/etc",
	"/bin",
	"/sbin",
	"/usr",
	"/var",
	"/System",
	"/Library",
	"~/.ssh",
	"~/.aws",
	"~/.gnupg",
	"~/.config/gcloud",
	"~/.coalface",
}

// Config represents the coalface host configuration
type Config struct {
	Filesystem Filesystem `mapstructure:"filesystem"`
	Drives     []string   `mapstructure:"drives"`
	Keyboard   Keyboard   `mapstructure:"keyboard"`
	Locale     Locale     `mapstructure:"locale"`
	Display    Display    `mapstructure:"display"`
	RunLoop    RunLoop    `mapstructure:"runloop"`
}

// Filesystem holds the mediator's policy
type Filesystem struct {
	PermittedRoots    []string `mapstructure:"permitted_roots"`
	BlockedPaths      []string `mapstructure:"blocked_paths"`
	HiddenPatterns    []string `mapstructure:"hidden_patterns"`
	ProtectedPatterns []string `mapstructure:"protected_patterns"`
	ReadOnlyPaths     []string `mapstructure:"read_only_paths"` // Core-initiated mounts under these are read-only
	ShowDotfiles      bool     `mapstructure:"show_dotfiles"`
}

// Keyboard selects the host layout reported to DOS
type Keyboard struct {
	Layout    string            `mapstructure:"layout"`
	Modifiers string            `mapstructure:"modifiers"`
	Overrides map[string]string `mapstructure:"overrides"`
}

// Locale points at the string catalog
type Locale struct {
	Catalog string `mapstructure:"catalog"`
}

// Display is the initial render target
type Display struct {
	Width     int  `mapstructure:"width"`
	Height    int  `mapstructure:"height"`
	BPP       int  `mapstructure:"bpp"`
	HostTitle bool `mapstructure:"host_title"`
}

// RunLoop tunes the run loop gate
type RunLoop struct {
	PauseYields bool `mapstructure:"pause_yields"`
}

// Load loads the configuration from ~/.coalface/config.yaml or returns
// defaults. A non-empty path selects a specific file instead.
func Load(path string) (*Config, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Watch loads the configuration and calls onChange with every later version
// of the file. A version that fails to decode is skipped.
func Watch(path string, onChange func(*Config)) (*Config, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if err != nil {
			return
		}
		onChange(next)
	})
	v.WatchConfig()

	return cfg, nil
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		configDir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir)
	}

	setDefaults(v)

	v.SetEnvPrefix("COALFACE")
	v.AutomaticEnv()

	// Try to read config file, but don't fail if it doesn't exist
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !(path != "" && os.IsNotExist(err)) {
			return nil, err
		}
	}

	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Filesystem.PermittedRoots = expandPaths(cfg.Filesystem.PermittedRoots)
	cfg.Filesystem.BlockedPaths = expandPaths(cfg.Filesystem.BlockedPaths)
	cfg.Filesystem.ReadOnlyPaths = expandPaths(cfg.Filesystem.ReadOnlyPaths)
	cfg.Drives = expandDrives(cfg.Drives)
	if cfg.Locale.Catalog != "" {
		cfg.Locale.Catalog = expandPaths([]string{cfg.Locale.Catalog})[0]
	}

	// Merge hardcoded blocked paths (security-critical, cannot be overridden)
	cfg.Filesystem.BlockedPaths = mergeBlockedPaths(cfg.Filesystem.BlockedPaths, expandPaths(HardcodedBlockedPaths))

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("filesystem.permitted_roots", []string{"~/DOS", "~/Documents/DOS Games"})
	v.SetDefault("filesystem.blocked_paths", []string{
		"~/.config",
		"~/.local/share/keyrings",
		"~/.docker",
		"~/.kube",
		"~/.netrc",
	})
	v.SetDefault("filesystem.hidden_patterns", []string{})
	v.SetDefault("filesystem.protected_patterns", []string{})
	v.SetDefault("filesystem.read_only_paths", []string{})
	v.SetDefault("filesystem.show_dotfiles", false)

	v.SetDefault("drives", []string{})

	layout := "us"
	if runtime.GOOS == "darwin" {
		layout = "com.apple.keylayout.US"
	}
	v.SetDefault("keyboard.layout", layout)
	v.SetDefault("keyboard.modifiers", "")
	v.SetDefault("keyboard.overrides", map[string]string{})

	v.SetDefault("locale.catalog", "")

	v.SetDefault("display.width", 640)
	v.SetDefault("display.height", 400)
	v.SetDefault("display.bpp", 1)
	v.SetDefault("display.host_title", true)

	v.SetDefault("runloop.pause_yields", false)
}

// expandPaths expands ~ in paths to home directory
func expandPaths(paths []string) []string {
	expanded := make([]string, len(paths))
	for i, path := range paths {
		expandedPath, err := homedir.Expand(path)
		if err != nil {
			// If expansion fails, use original path
			expanded[i] = path
			continue
		}
		expanded[i] = expandedPath
	}
	return expanded
}

// expandDrives expands ~ in the path part of "C:~/dos:ro" drive specs
func expandDrives(specs []string) []string {
	expanded := make([]string, len(specs))
	for i, spec := range specs {
		if len(spec) > 2 && spec[1] == ':' {
			rest, err := homedir.Expand(spec[2:])
			if err == nil {
				expanded[i] = spec[:2] + rest
				continue
			}
		}
		expanded[i] = spec
	}
	return expanded
}

// ConfigDir returns the coalface configuration directory path
func ConfigDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".coalface"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	configDir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(configDir, 0755)
}

// mergeBlockedPaths merges two lists of blocked paths, removing duplicates.
// The hardcoded paths are always included regardless of user config.
func mergeBlockedPaths(userPaths, hardcodedPaths []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(userPaths)+len(hardcodedPaths))

	for _, path := range hardcodedPaths {
		if !seen[path] {
			seen[path] = true
			result = append(result, path)
		}
	}

	for _, path := range userPaths {
		if !seen[path] {
			seen[path] = true
			result = append(result, path)
		}
	}

	return result
}

// Package xdg provides XDG Base Directory paths and the frei0r plugin
// search path for frei0rhost.
package xdg

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "frei0rhost"

// ConfigDir returns the XDG config directory for frei0rhost.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the default config file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DataDir returns the XDG data directory for frei0rhost.
// Checks XDG_DATA_HOME first, falls back to ~/.local/share.
func DataDir() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".local", "share")
	}
	return filepath.Join(base, appName)
}

// StateDir returns the XDG state directory for frei0rhost.
// Checks XDG_STATE_HOME first, falls back to ~/.local/state.
func StateDir() string {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".local", "state")
	}
	return filepath.Join(base, appName)
}

// RuntimeDir returns the directory holding control sockets.
// Uses XDG_RUNTIME_DIR when set, otherwise a run directory under StateDir.
func RuntimeDir() string {
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		return filepath.Join(StateDir(), "run")
	}
	return filepath.Join(base, appName)
}

// CertsDir returns the default frame bus certificates directory.
func CertsDir() string {
	return filepath.Join(ConfigDir(), "certs")
}

// ScriptDir returns the directory searched for Lua scripted effects.
func ScriptDir() string {
	return filepath.Join(DataDir(), "lua")
}

// PluginPath returns the frei0r plugin search path: FREI0R_PATH entries
// first, then the system locations and ~/.frei0r-1/lib.
//
// See https://frei0r.dyne.org/codedoc/html/group__pluglocations.html
func PluginPath() []string {
	var dirs []string
	if env := os.Getenv("FREI0R_PATH"); env != "" {
		for _, dir := range filepath.SplitList(env) {
			if dir != "" {
				dirs = append(dirs, dir)
			}
		}
	}
	dirs = append(dirs, "/usr/lib/frei0r-1", "/usr/local/lib/frei0r-1")
	if home := os.Getenv("HOME"); home != "" {
		dirs = append(dirs, filepath.Join(home, ".frei0r-1", "lib"))
	}
	return dirs
}

// EnsureDir creates a directory and all parent directories if they don't exist.
// Directories are created with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

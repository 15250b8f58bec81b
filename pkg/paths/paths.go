package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// Environment variable names
const (
	// EnvConfigFile points at an explicit configuration file
	EnvConfigFile = "ARCHSETUP_CONFIG"

	// EnvStateHome is the XDG state directory variable
	EnvStateHome = "XDG_STATE_HOME"

	// EnvHome is the standard home directory variable
	EnvHome = "HOME"
)

// Default directories and files
const (
	// AppDirName is the directory name for archsetup-specific files
	AppDirName = "archsetup"

	// ConfigFileName is the name of the configuration file
	ConfigFileName = "config.toml"

	// LogFileName is the name of the log file
	LogFileName = "archsetup.log"

	// SystemConfigDir is the machine-wide configuration directory
	SystemConfigDir = "/etc/archsetup"
)

// SystemConfigPath returns the machine-wide configuration file path
func SystemConfigPath() string {
	return filepath.Join(SystemConfigDir, ConfigFileName)
}

// UserConfigPath returns the configuration file path for a user.
// With an empty home the XDG config directory of the current process is
// used; otherwise the path is derived from the given home directory, which
// is how the invoking user's config is found from a root process.
func UserConfigPath(home string) string {
	if home == "" {
		xdg.Reload()
		return filepath.Join(xdg.ConfigHome, AppDirName, ConfigFileName)
	}
	return filepath.Join(home, ".config", AppDirName, ConfigFileName)
}

// LogFilePath returns the path to the log file.
// It respects XDG_STATE_HOME if set, otherwise uses ~/.local/state/archsetup/
func LogFilePath() string {
	if stateHome := os.Getenv(EnvStateHome); stateHome != "" {
		return filepath.Join(stateHome, AppDirName, LogFileName)
	}
	xdg.Reload()
	if xdg.StateHome != "" {
		return filepath.Join(xdg.StateHome, AppDirName, LogFileName)
	}
	// Fallback to current directory if we can't get home
	return LogFileName
}

// ExpandHome expands a leading ~ to the given home directory.
// ~user forms are returned unchanged.
func ExpandHome(path, home string) string {
	if path == "" || path[0] != '~' {
		return path
	}

	if home == "" {
		home = os.Getenv(EnvHome)
		if home == "" {
			// Can't expand, return as-is
			return path
		}
	}

	if len(path) == 1 {
		return home
	}

	if path[1] == '/' || path[1] == filepath.Separator {
		return filepath.Join(home, path[2:])
	}

	return path
}

// Resolve expands home and environment references in path and makes it
// absolute. Variables are looked up with getenv, or the process
// environment when it is nil. Relative paths are taken relative to home,
// not the working directory, so a config entry means the same thing
// wherever the command runs from.
func Resolve(path, home string, getenv func(string) string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	expanded := os.Expand(ExpandHome(path, home), getenv)
	if expanded == "" {
		return expanded
	}
	if !filepath.IsAbs(expanded) && home != "" {
		expanded = filepath.Join(home, expanded)
	}
	return filepath.Clean(expanded)
}

package config

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.convosync.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".convosync")
}

// Path returns the config file path.
func Path() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// LockPath returns the single-daemon lock file path.
func LockPath() string {
	return filepath.Join(BaseDir(), "LOCK")
}

// LogDir returns the log directory.
func LogDir() string {
	return filepath.Join(BaseDir(), "logs")
}

// LogPath returns the daemon log file path.
func LogPath() string {
	return filepath.Join(LogDir(), "convosyncd.log")
}

// EnsureDirs creates the profile directory tree with owner-only
// permissions.
func EnsureDirs() error {
	for _, d := range []string{BaseDir(), LogDir()} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}

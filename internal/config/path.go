package config

import (
	"os"
	"path/filepath"
)

const appDir = "logcache"

// DefaultDataDir returns the default data directory for the host. The first
// matching candidate wins: $XDG_DATA_HOME, /var/lib, the macOS and Windows
// per-user application directories, then ~/.logcache.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "./data"
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appDir)
	}
	candidates := []struct{ marker, dir string }{
		{"/var/lib", filepath.Join("/var/lib", appDir)},
		{filepath.Join(home, "Library"), filepath.Join(home, "Library", "Application Support", "LogCache")},
		{filepath.Join(home, "AppData"), filepath.Join(home, "AppData", "Local", "LogCache")},
	}
	for _, c := range candidates {
		if isDir(c.marker) {
			return c.dir
		}
	}
	return filepath.Join(home, "."+appDir)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

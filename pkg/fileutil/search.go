package fileutil

import (
	"os"
	"path/filepath"
)

// SearchPathsOptional looks for a file in multiple locations.
// Returns the first path where the file exists, or empty string if not found.
func SearchPathsOptional(paths []string) string {
	for _, path := range paths {
		if FileExists(path) {
			return path
		}
	}
	return ""
}

// ConfigPaths returns the config search paths for an application.
// Search order:
// 1. Current directory (./.<app>.yaml)
// 2. User config directory ($XDG_CONFIG_HOME/<app>/<filename>, falling back to ~/.config)
// 3. System-wide config (/etc/<app>/<filename>)
func ConfigPaths(app, filename string) []string {
	paths := []string{filepath.Join(".", "."+app+".yaml")}

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		if home, err := os.UserHomeDir(); err == nil {
			configHome = filepath.Join(home, ".config")
		}
	}
	if configHome != "" {
		paths = append(paths, filepath.Join(configHome, app, filename))
	}

	return append(paths, filepath.Join("/etc", app, filename))
}

// FileExists checks if a file exists and is not a directory.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

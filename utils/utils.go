package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// GetDefaultDatabasePath returns the default path for the run history database
func GetDefaultDatabasePath() string {
	exePath, err := os.Executable()
	if err != nil {
		// Fallback to current directory if executable path can't be determined
		return "imagematch.db"
	}
	return filepath.Join(filepath.Dir(exePath), "imagematch.db")
}

// DisplayPath shortens path for console output: relative to base when it
// lies under base, otherwise with the home directory folded to "~".
func DisplayPath(path, base string) string {
	if base != "" {
		if rel, err := filepath.Rel(base, path); err == nil && rel != ".." &&
			!strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return rel
		}
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		if path == home {
			return "~"
		}
		if strings.HasPrefix(path, home+string(filepath.Separator)) {
			return "~" + path[len(home):]
		}
	}
	return path
}

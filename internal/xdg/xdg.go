// Package xdg resolves per-user directories for restsync.
//
// Directory structure follows the XDG Base Directory Specification:
//   - Config: ~/.config/restsync/ (config.yaml, conventions overrides)
//   - Cache:  ~/.cache/restsync/ (persisted cache ledger)
//   - Data:   ~/.local/share/restsync/ (downloads)
package xdg

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName is the directory name used under every base directory.
const AppName = "restsync"

// ConfigDir returns the configuration directory.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "."+AppName, "config")
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Preferences", AppName)
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, AppName)
		}
		return filepath.Join(home, "AppData", "Roaming", AppName)
	}
	return filepath.Join(home, ".config", AppName)
}

// CacheDir returns the cache directory.
func CacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "."+AppName, "cache")
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Caches", AppName)
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, AppName, "cache")
		}
		return filepath.Join(home, "AppData", "Local", AppName, "cache")
	}
	return filepath.Join(home, ".cache", AppName)
}

// DataDir returns the data directory.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "."+AppName, "data")
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppName)
	case "windows":
		if appData := os.Getenv("LOCALAPPDATA"); appData != "" {
			return filepath.Join(appData, AppName)
		}
		return filepath.Join(home, "AppData", "Local", AppName)
	}
	return filepath.Join(home, ".local", "share", AppName)
}

// LedgerFile is the default location of the persisted cache ledger.
func LedgerFile() string {
	return filepath.Join(CacheDir(), "http_cache.json")
}

// LedgerDatabase is the default location of the SQLite cache ledger.
func LedgerDatabase() string {
	return filepath.Join(CacheDir(), "http_cache.db")
}

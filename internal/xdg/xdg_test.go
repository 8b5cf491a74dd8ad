package xdg

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirs_HonorXDGEnv(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(base, "cache"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(base, "data"))

	assert.Equal(t, filepath.Join(base, "config", AppName), ConfigDir())
	assert.Equal(t, filepath.Join(base, "cache", AppName), CacheDir())
	assert.Equal(t, filepath.Join(base, "data", AppName), DataDir())
	assert.Equal(t, filepath.Join(base, "cache", AppName, "http_cache.json"), LedgerFile())
	assert.Equal(t, filepath.Join(base, "cache", AppName, "http_cache.db"), LedgerDatabase())
}

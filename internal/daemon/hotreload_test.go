package daemon

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/appmenu/internal/config"
)

func TestConfigWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "appmenud.toml")
	require.NoError(t, os.WriteFile(path, []byte("[heartbeat]\nstatus = \"first\"\n"), 0644))

	initial, err := config.LoadDaemonConfig(path)
	require.NoError(t, err)

	var mu sync.Mutex
	var reloaded []*config.DaemonConfig
	w := NewConfigWatcher(path, nil)
	w.SetReloadCallback(func(c *config.DaemonConfig) {
		mu.Lock()
		defer mu.Unlock()
		reloaded = append(reloaded, c)
	})
	require.NoError(t, w.Start(initial))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("[heartbeat]\nstatus = \"second\"\n"), 0644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reloaded) > 0 && reloaded[len(reloaded)-1].Heartbeat.Status == "second"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "second", w.GetCurrentConfig().Heartbeat.Status)
}

func TestConfigWatcherRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "appmenud.toml")

	var mu sync.Mutex
	var errs []error
	w := NewConfigWatcher(path, nil)
	w.SetErrorCallback(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	})
	initial := config.DefaultDaemonConfig()
	require.NoError(t, w.Start(initial))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"shouty\"\n"), 0644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Same(t, initial, w.GetCurrentConfig())
}

func TestConfigWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "appmenud.toml")

	called := make(chan struct{}, 1)
	w := NewConfigWatcher(path, nil)
	w.SetReloadCallback(func(*config.DaemonConfig) { called <- struct{}{} })
	w.SetErrorCallback(func(error) { called <- struct{}{} })
	require.NoError(t, w.Start(config.DefaultDaemonConfig()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x = 1"), 0644))

	select {
	case <-called:
		t.Fatal("callback fired for an unrelated file")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConfigWatcherStopIsIdempotent(t *testing.T) {
	w := NewConfigWatcher(filepath.Join(t.TempDir(), "appmenud.toml"), nil)
	require.NoError(t, w.Start(config.DefaultDaemonConfig()))

	w.Stop()
	assert.NotPanics(t, w.Stop)
}

func TestConfigWatcherMissingDirectory(t *testing.T) {
	w := NewConfigWatcher("/nonexistent/dir/appmenud.toml", nil)
	assert.Error(t, w.Start(config.DefaultDaemonConfig()))
}

package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func recv(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watcher event")
		return ""
	}
}

func TestStartWatcher_NoRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{})
	assert.Error(t, err)
}

func TestStartWatcher_InitialScanAndNewFiles(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "existing.jpg")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{root},
		Extensions:  []string{".jpg", "pdf"},
		InitialScan: true,
		Debounce:    50 * time.Millisecond,
		Logger:      zap.NewNop(),
	})
	require.NoError(t, err)
	assert.Equal(t, existing, recv(t, events))

	require.NoError(t, os.WriteFile(filepath.Join(root, "ignored.txt"), []byte("x"), 0o644))
	report := filepath.Join(root, "report.pdf")
	require.NoError(t, os.WriteFile(report, []byte("x"), 0o644))
	assert.Equal(t, report, recv(t, events))

	cancel()
	for range events {
	}
}

func TestWatchDir_OnlyDirectories(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "2024")
	require.NoError(t, os.Mkdir(sub, 0o755))
	hidden := filepath.Join(root, ".cache")
	require.NoError(t, os.Mkdir(hidden, 0o755))
	img := filepath.Join(root, "scan.jpg")
	require.NoError(t, os.WriteFile(img, []byte("x"), 0o644))

	w, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer w.Close()

	assert.True(t, watchDir(w, sub))
	assert.False(t, watchDir(w, img))
	assert.False(t, watchDir(w, hidden))
	assert.False(t, watchDir(w, filepath.Join(root, "gone")))
	assert.Equal(t, []string{sub}, w.WatchList())
}

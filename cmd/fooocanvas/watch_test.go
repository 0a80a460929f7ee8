package main

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileWatcherDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "edit.txt")
	other := filepath.Join(dir, "other.txt")
	require.NoError(t, os.WriteFile(path, []byte("size 4 4\n"), 0o644))

	fw, err := newFileWatcher(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fw.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan error, 1)
	go func() { done <- fw.Run(ctx, func() { calls.Add(1) }) }()

	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0o644))
	for range 3 {
		require.NoError(t, os.WriteFile(path, []byte("size 8 8\n"), 0o644))
	}
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 20*time.Millisecond)
	time.Sleep(3 * watchDebounce)
	require.EqualValues(t, 1, calls.Load())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestParseEditWatchNeedsScriptAndOutput(t *testing.T) {
	_, err := parseEditCmd([]string{"-input", "in.png", "-output", "out.png", "-watch"}, testRoot())
	require.ErrorContains(t, err, "-watch needs")
}

package watcher

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runWatcher(t *testing.T, dir string, handler Handler) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	w := New(dir, 20*time.Millisecond, handler, nil)
	go func() { _ = w.Run(ctx) }()
	return cancel
}

func TestFreshTriggerFires(t *testing.T) {
	dir := t.TempDir()
	var fired atomic.Int32
	var got atomic.Value

	cancel := runWatcher(t, dir, func(ctx context.Context, tr Trigger) {
		got.Store(tr)
		fired.Add(1)
	})
	defer cancel()

	require.NoError(t, WriteTrigger(dir, Trigger{
		Timestamp: time.Now(),
		Source:    "post-commit",
		Files:     []string{"a.go"},
	}))

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	tr := got.Load().(Trigger)
	assert.Equal(t, "post-commit", tr.Source)
	assert.Equal(t, []string{"a.go"}, tr.Files)

	// The sentinel is consumed.
	assert.Eventually(t, func() bool {
		_, err := os.Stat(New(dir, 0, nil, nil).TriggerPath())
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStaleTriggerDiscarded(t *testing.T) {
	dir := t.TempDir()
	var fired atomic.Int32

	cancel := runWatcher(t, dir, func(ctx context.Context, tr Trigger) {
		fired.Add(1)
	})
	defer cancel()

	require.NoError(t, WriteTrigger(dir, Trigger{
		Timestamp: time.Now().Add(-10 * time.Minute),
	}))

	// The file disappears without the handler firing.
	assert.Eventually(t, func() bool {
		_, err := os.Stat(New(dir, 0, nil, nil).TriggerPath())
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestMalformedTriggerDiscarded(t *testing.T) {
	dir := t.TempDir()
	var fired atomic.Int32

	cancel := runWatcher(t, dir, func(ctx context.Context, tr Trigger) {
		fired.Add(1)
	})
	defer cancel()

	path := New(dir, 0, nil, nil).TriggerPath()
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestPreexistingTriggerFiresOnStart(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteTrigger(dir, Trigger{Timestamp: time.Now()}))

	var fired atomic.Int32
	cancel := runWatcher(t, dir, func(ctx context.Context, tr Trigger) {
		fired.Add(1)
	})
	defer cancel()

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

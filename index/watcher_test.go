package index

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestWatcher_ReindexesChanges(t *testing.T) {
	root := project(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMemory()
	b := newBuilder(t, m)
	_, err := b.Build(ctx, Scope{Root: root})
	require.NoError(t, err)

	batches := make(chan []string, 8)
	w := &Watcher{
		Builder:  b,
		Scope:    Scope{Root: root},
		Debounce: 20 * time.Millisecond,
		Logger:   zaptest.NewLogger(t),
		OnChange: func(changed []string) { batches <- changed },
	}
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	added := filepath.Join(root, "src/app/Extra.java")
	require.Eventually(t, func() bool {
		// the watch may not be registered yet; rewrite until it is seen
		writeFile(t, added, "package app\nclass Extra\n")
		select {
		case changed := <-batches:
			return slices.Contains(changed, added)
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	_, ok, err := m.LookupType(ctx, "app.Extra")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, os.Remove(added))
	select {
	case changed := <-batches:
		assert.Equal(t, []string{added}, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("removal was not observed")
	}
	_, ok, err = m.LookupType(ctx, "app.Extra")
	require.NoError(t, err)
	assert.False(t, ok)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_InvalidRoot(t *testing.T) {
	w := &Watcher{Builder: newBuilder(t, NewMemory()), Scope: Scope{Root: filepath.Join(t.TempDir(), "missing")}}
	assert.Error(t, w.Run(context.Background()))
}

package artifact

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReportsRemovedPreview(t *testing.T) {
	s := NewStore(t.TempDir())
	p, err := s.PreviewPath("am_onyx")
	require.NoError(t, err)
	_, err = s.Save(p, tone(0.1))
	require.NoError(t, err)

	// Unrelated files are ignored.
	other := filepath.Join(s.PreviewDir(), "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))

	w, err := Watch(s.PreviewDir())
	require.NoError(t, err)
	defer w.Close()

	got := make(chan string, 1)
	go func() {
		if voice, ok := w.Next(); ok {
			got <- voice
		}
	}()

	require.NoError(t, os.Remove(other))
	require.NoError(t, os.Remove(p))

	select {
	case voice := <-got:
		assert.Equal(t, "am_onyx", voice)
	case <-time.After(5 * time.Second):
		t.Fatal("no watcher event for removed preview")
	}
}

func TestWatcherCloseEndsNext(t *testing.T) {
	w, err := Watch(filepath.Join(t.TempDir(), "previews"))
	require.NoError(t, err)

	done := make(chan bool, 1)
	go func() {
		_, ok := w.Next()
		done <- ok
	}()

	require.NoError(t, w.Close())
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("Next did not return after Close")
	}
}

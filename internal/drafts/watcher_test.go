package drafts

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"postbot/internal/batch"
	"postbot/internal/errors"
)

type fakePublisher struct {
	mu        sync.Mutex
	published map[string]string
	fail      map[string]error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{published: map[string]string{}, fail: map[string]error{}}
}

func (p *fakePublisher) Publish(_ context.Context, path string, data []byte, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail[path]; err != nil {
		return "", err
	}
	p.published[path] = string(data)
	return "sha", nil
}

func (p *fakePublisher) get(path string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.published[path]
	return data, ok
}

func writeFile(t *testing.T, name, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(name), 0o755))
	require.NoError(t, os.WriteFile(name, []byte(data), 0o644))
}

func TestRemotePath(t *testing.T) {
	w := &Watcher{postsRoot: "_posts"}
	assert.Equal(t, "_posts/2024/a.md", w.RemotePath(filepath.Join("2024", "a.md")))

	w = &Watcher{}
	assert.Equal(t, "a.md", w.RemotePath("a.md"))
}

func TestSyncAll(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "a")
	writeFile(t, filepath.Join(dir, "2024", "b.md"), "b")
	writeFile(t, filepath.Join(dir, "notes.txt"), "skip")
	writeFile(t, filepath.Join(dir, ".trash", "c.md"), "skip")
	writeFile(t, filepath.Join(dir, "broken.md"), "x")

	pub := newFakePublisher()
	pub.fail["_posts/broken.md"] = errors.Conflict("changed remotely")

	w, err := NewWatcher(dir, "_posts/", pub, zap.NewNop())
	require.NoError(t, err)
	defer w.Close()

	result, err := w.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"_posts/2024/b.md", "_posts/a.md", "_posts/broken.md"}, result.Keys())
	assert.Equal(t, []string{"_posts/broken.md"}, result.Failed())
	assert.Equal(t, errors.ErrorTypeConflict, result["_posts/broken.md"].Kind)
	assert.Equal(t, batch.Succeeded, result["_posts/a.md"].Status)

	data, ok := pub.get("_posts/2024/b.md")
	require.True(t, ok)
	assert.Equal(t, "b", data)
}

func TestRunPublishesChangedDrafts(t *testing.T) {
	dir := t.TempDir()
	pub := newFakePublisher()

	w, err := NewWatcher(dir, "_posts", pub, zap.NewNop(), WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	writeFile(t, filepath.Join(dir, "hello.md"), "first")
	writeFile(t, filepath.Join(dir, "ignored.txt"), "nope")

	require.Eventually(t, func() bool {
		data, ok := pub.get("_posts/hello.md")
		return ok && data == "first"
	}, 5*time.Second, 20*time.Millisecond)

	writeFile(t, filepath.Join(dir, "hello.md"), "second")
	require.Eventually(t, func() bool {
		data, _ := pub.get("_posts/hello.md")
		return data == "second"
	}, 5*time.Second, 20*time.Millisecond)

	_, ok := pub.get("_posts/ignored.txt")
	assert.False(t, ok)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestDebouncerDropsSupersededFiring(t *testing.T) {
	d := newDebouncer(10 * time.Millisecond)
	defer d.stop()

	d.trigger("a.md")
	var first firing
	select {
	case first = <-d.ready:
	case <-time.After(5 * time.Second):
		t.Fatal("no firing")
	}

	// saved again while the first firing was still being handled
	d.trigger("a.md")
	assert.False(t, d.accept(first))

	select {
	case second := <-d.ready:
		assert.Equal(t, "a.md", second.key)
		assert.True(t, d.accept(second))
	case <-time.After(5 * time.Second):
		t.Fatal("no firing after retrigger")
	}

	select {
	case f := <-d.ready:
		t.Fatalf("unexpected extra firing %+v", f)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDebouncerCoalescesBurst(t *testing.T) {
	d := newDebouncer(30 * time.Millisecond)
	defer d.stop()

	for i := 0; i < 5; i++ {
		d.trigger("a.md")
	}
	d.trigger("b.md")

	got := map[string]int{}
	deadline := time.After(300 * time.Millisecond)
	for done := false; !done; {
		select {
		case f := <-d.ready:
			if d.accept(f) {
				got[f.key]++
			}
		case <-deadline:
			done = true
		}
	}
	assert.Equal(t, map[string]int{"a.md": 1, "b.md": 1}, got)
}

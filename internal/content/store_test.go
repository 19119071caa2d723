package content_test

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"postbot/internal/content"
	"postbot/internal/content/contenttest"
	"postbot/internal/errors"
)

func TestCreateThenRead(t *testing.T) {
	srv := contenttest.NewServer(t)
	store := srv.Store(t)
	ctx := context.Background()

	tests := []struct {
		name string
		path string
		data []byte
	}{
		{name: "markdown", path: "_posts/2024-01-01-hello.md", data: []byte("---\ntitle: Hello\n---\n\nbody\n")},
		{name: "binary", path: "assets/img/a.bin", data: []byte{0x00, 0xff, 0x10, 0x80, 0x7f}},
		{name: "empty", path: "assets/img/.gitkeep", data: []byte{}},
		{name: "long lines", path: "_posts/long.md", data: []byte(strings.Repeat("0123456789", 50))},
		{name: "escaped name", path: "_posts/with space.md", data: []byte("x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sha, err := store.Create(ctx, tt.path, tt.data, "")
			require.NoError(t, err)
			assert.Equal(t, contenttest.BlobSHA(tt.data), sha)

			rec, err := store.Read(ctx, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.path, rec.Path)
			assert.Equal(t, content.KindFile, rec.Kind)
			assert.Equal(t, sha, rec.Revision)
			assert.Equal(t, len(tt.data), len(rec.Content))
			if len(tt.data) > 0 {
				assert.Equal(t, tt.data, rec.Content)
			}
		})
	}
}

func TestCreateDefaultMessage(t *testing.T) {
	srv := contenttest.NewServer(t)
	store := srv.Store(t)

	_, err := store.Create(context.Background(), "_posts/a.md", []byte("a"), "")
	require.NoError(t, err)
	_, err = store.Create(context.Background(), "_posts/b.md", []byte("b"), "custom")
	require.NoError(t, err)

	commits := srv.Commits()
	require.Len(t, commits, 2)
	assert.Equal(t, "Add _posts/a.md via API", commits[0].Message)
	assert.Equal(t, "custom", commits[1].Message)
}

func TestCreateExistingConflicts(t *testing.T) {
	srv := contenttest.NewServer(t)
	srv.Put("_posts/a.md", []byte("old"))
	store := srv.Store(t)

	_, err := store.Create(context.Background(), "_posts/a.md", []byte("new"), "")
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))

	data, _ := srv.File("_posts/a.md")
	assert.Equal(t, []byte("old"), data)
}

func TestReadErrors(t *testing.T) {
	srv := contenttest.NewServer(t)
	srv.Put("_posts/a.md", []byte("a"))
	srv.Fail("_posts/broken.md", http.StatusInternalServerError)
	store := srv.Store(t)
	ctx := context.Background()

	_, err := store.Read(ctx, "_posts/missing.md")
	assert.True(t, errors.IsNotFound(err))

	_, err = store.Read(ctx, "_posts")
	assert.True(t, errors.IsValidation(err), "reading a directory is a caller error")

	_, err = store.Read(ctx, "_posts/broken.md")
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, http.StatusInternalServerError, e.Status)
	assert.Contains(t, e.Body, "Internal Server Error")

	for _, bad := range []string{"", "/", "_posts//a.md", "_posts/../secret"} {
		_, err = store.Read(ctx, bad)
		assert.True(t, errors.IsValidation(err), bad)
	}
}

func TestUpdateResolvesRevision(t *testing.T) {
	srv := contenttest.NewServer(t)
	srv.Put("_posts/a.md", []byte("v1"))
	store := srv.Store(t)
	ctx := context.Background()

	sha, err := store.Update(ctx, "_posts/a.md", []byte("v2"), "")
	require.NoError(t, err)
	assert.Equal(t, contenttest.BlobSHA([]byte("v2")), sha)

	rec, err := store.Read(ctx, "_posts/a.md")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), rec.Content)

	assert.Equal(t, []string{
		"GET _posts/a.md",
		"PUT _posts/a.md",
		"GET _posts/a.md",
	}, srv.Requests())
	assert.Equal(t, "Update _posts/a.md via API", srv.Commits()[0].Message)
}

func TestUpdateStaleRevisionConflicts(t *testing.T) {
	srv := contenttest.NewServer(t)
	srv.Put("_posts/a.md", []byte("v1"))
	store := srv.Store(t)
	ctx := context.Background()

	stale := contenttest.BlobSHA([]byte("v0"))
	_, err := store.UpdateRevision(ctx, "_posts/a.md", []byte("v2"), "", stale)
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))

	data, _ := srv.File("_posts/a.md")
	assert.Equal(t, []byte("v1"), data)
}

func TestUpdateRacingWriterConflicts(t *testing.T) {
	srv := contenttest.NewServer(t)
	srv.Put("_posts/a.md", []byte("v1"))
	srv.BeforeWrite = func(method, path string) {
		srv.Put(path, []byte("someone else"))
	}
	store := srv.Store(t)

	_, err := store.Update(context.Background(), "_posts/a.md", []byte("mine"), "")
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))

	data, _ := srv.File("_posts/a.md")
	assert.Equal(t, []byte("someone else"), data, "a conflicting write is never retried")
}

func TestUpdateMissingFile(t *testing.T) {
	srv := contenttest.NewServer(t)
	store := srv.Store(t)

	_, err := store.Update(context.Background(), "_posts/missing.md", []byte("x"), "")
	assert.True(t, errors.IsNotFound(err))

	_, err = store.UpdateRevision(context.Background(), "_posts/missing.md", []byte("x"), "", "")
	assert.True(t, errors.IsValidation(err))
}

func TestDelete(t *testing.T) {
	srv := contenttest.NewServer(t)
	srv.Put("_posts/a.md", []byte("a"))
	store := srv.Store(t)
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, "_posts/a.md", ""))
	_, ok := srv.File("_posts/a.md")
	assert.False(t, ok)
	assert.Equal(t, "Delete _posts/a.md via API", srv.Commits()[0].Message)

	err := store.Delete(ctx, "_posts/a.md", "")
	assert.True(t, errors.IsNotFound(err))

	srv.Put("_posts/b.md", []byte("b"))
	err = store.DeleteRevision(ctx, "_posts/b.md", "", contenttest.BlobSHA([]byte("stale")))
	assert.True(t, errors.IsConflict(err))
}

func TestList(t *testing.T) {
	srv := contenttest.NewServer(t)
	srv.Put("_posts/a.md", []byte("a"))
	srv.Put("_posts/2024/b.md", []byte("b"))
	srv.Put("README.md", []byte("r"))
	store := srv.Store(t)
	ctx := context.Background()

	entries, err := store.List(ctx, "_posts")
	require.NoError(t, err)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	require.Len(t, entries, 2)
	assert.Equal(t, content.DirectoryEntry{Name: "2024", Path: "_posts/2024", Kind: content.KindDir, URL: entries[0].URL}, entries[0])
	assert.Equal(t, "_posts/a.md", entries[1].Path)
	assert.Equal(t, content.KindFile, entries[1].Kind)

	root, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, root, 2)

	_, err = store.List(ctx, "_posts/a.md")
	assert.True(t, errors.IsValidation(err))

	_, err = store.List(ctx, "nothing")
	assert.True(t, errors.IsNotFound(err))
}

func TestTransportTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := contenttest.NewServer(t)
	srv.BeforeWrite = func(string, string) { <-block }
	defer close(block)

	store, err := content.NewGitHubStore(srv.Repository(), content.Options{
		BaseURL: srv.URL,
		Token:   contenttest.Token,
		Timeout: 50 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	_, err = store.Create(context.Background(), "_posts/slow.md", []byte("x"), "")
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
}

func TestBadCredentials(t *testing.T) {
	srv := contenttest.NewServer(t)
	store, err := content.NewGitHubStore(srv.Repository(), content.Options{BaseURL: srv.URL, Token: "wrong"}, nil)
	require.NoError(t, err)

	_, err = store.Read(context.Background(), "_posts/a.md")
	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errors.ErrorTypeTransport, e.Type)
	assert.Equal(t, http.StatusUnauthorized, e.Status)
	assert.Contains(t, e.Body, "Bad credentials")
}

func TestNewGitHubStoreValidates(t *testing.T) {
	_, err := content.NewGitHubStore(content.Repository{Owner: "o"}, content.Options{}, nil)
	assert.True(t, errors.IsValidation(err))
}

func TestReadsRetryWritesDoNot(t *testing.T) {
	srv := contenttest.NewServer(t)
	srv.Put("_posts/a.md", []byte("a"))
	store, err := content.NewGitHubStore(srv.Repository(), content.Options{
		BaseURL: srv.URL,
		Token:   contenttest.Token,
		Timeout: 5 * time.Second,
		Retries: 3,
	}, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	srv.FailTimes("_posts/a.md", http.StatusBadGateway, 2)
	rec, err := store.Read(ctx, "_posts/a.md")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), rec.Content)
	assert.Equal(t, 3, srv.Count(http.MethodGet, "_posts/a.md"))

	srv.Fail("_posts/b.md", http.StatusBadGateway)
	_, err = store.Create(ctx, "_posts/b.md", []byte("b"), "")
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
	assert.Equal(t, 1, srv.Count(http.MethodPut, "_posts/b.md"))
	assert.Empty(t, srv.Commits())
}

func TestReadLargeFile(t *testing.T) {
	srv := contenttest.NewServer(t)
	srv.InlineLimit = 8
	big := []byte(strings.Repeat("large file ", 10))
	srv.Put("_posts/big.md", big)
	store := srv.Store(t)
	ctx := context.Background()

	rec, err := store.Read(ctx, "_posts/big.md")
	require.NoError(t, err)
	assert.Equal(t, big, rec.Content)
	assert.Equal(t, contenttest.BlobSHA(big), rec.Revision)

	srv.BeforeRaw = func(path string) {
		srv.Put(path, []byte("rewritten by someone else"))
	}
	_, err = store.Read(ctx, "_posts/big.md")
	assert.True(t, errors.IsConflict(err), "content and revision must describe the same blob")
}

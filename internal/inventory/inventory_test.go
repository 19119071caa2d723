package inventory_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postbot/internal/content/contenttest"
	"postbot/internal/errors"
	"postbot/internal/inventory"
)

func seed(srv *contenttest.Server, paths ...string) {
	for _, p := range paths {
		srv.Put(p, []byte("# "+p))
	}
}

func TestListPosts(t *testing.T) {
	srv := contenttest.NewServer(t)
	seed(srv,
		"_posts/c.md",
		"_posts/2024/a.md",
		"_posts/2024/sub/b.md",
		"_posts/2024/sub/deeper/still/d.MD",
		"_posts/2024/image.png",
		"_posts/notes.txt",
		"README.md",
	)
	lister := inventory.NewLister(srv.Store(t), nil)

	listing := lister.ListPosts(context.Background(), "_posts")
	require.NoError(t, listing.Err)
	assert.True(t, listing.Complete())
	assert.Equal(t, []inventory.PostSummary{
		{Name: "a.md", Path: "_posts/2024/a.md"},
		{Name: "b.md", Path: "_posts/2024/sub/b.md"},
		{Name: "d.MD", Path: "_posts/2024/sub/deeper/still/d.MD"},
		{Name: "c.md", Path: "_posts/c.md"},
	}, listing.Posts)

	again := lister.ListPosts(context.Background(), "_posts")
	assert.Equal(t, listing.Posts, again.Posts)
}

func TestListPostsSkipsFailingDirectory(t *testing.T) {
	srv := contenttest.NewServer(t)
	seed(srv, "_posts/a.md", "_posts/broken/b.md", "_posts/ok/c.md")
	srv.Fail("_posts/broken", http.StatusBadGateway)
	lister := inventory.NewLister(srv.Store(t), nil)

	listing := lister.ListPosts(context.Background(), "_posts")
	assert.False(t, listing.Complete())
	assert.Equal(t, []string{"_posts/broken"}, listing.Skipped)
	require.Error(t, listing.Err)
	assert.True(t, errors.IsTransport(listing.Err))
	assert.Equal(t, []inventory.PostSummary{
		{Name: "a.md", Path: "_posts/a.md"},
		{Name: "c.md", Path: "_posts/ok/c.md"},
	}, listing.Posts)
}

func TestListPostsMissingRoot(t *testing.T) {
	srv := contenttest.NewServer(t)
	seed(srv, "README.md")
	lister := inventory.NewLister(srv.Store(t), nil)

	listing := lister.ListPosts(context.Background(), "_posts")
	assert.True(t, listing.Complete())
	assert.NoError(t, listing.Err)
	assert.Empty(t, listing.Posts)
}

func TestListPostsCancelled(t *testing.T) {
	srv := contenttest.NewServer(t)
	seed(srv, "_posts/a.md")
	lister := inventory.NewLister(srv.Store(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	listing := lister.ListPosts(ctx, "_posts")
	assert.False(t, listing.Complete())
	assert.ErrorIs(t, listing.Err, context.Canceled)
}

func TestIsPost(t *testing.T) {
	assert.True(t, inventory.IsPost("a.md"))
	assert.True(t, inventory.IsPost("A.MD"))
	assert.False(t, inventory.IsPost(".md"))
	assert.False(t, inventory.IsPost("a.markdown"))
	assert.False(t, inventory.IsPost("a.md.bak"))
}

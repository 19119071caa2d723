package inventory

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"postbot/internal/content"
	"postbot/internal/errors"
)

// PostExtension is the suffix that makes a file a post.
const PostExtension = ".md"

// PostSummary is the name and repository path of one post.
type PostSummary struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Listing is the result of a recursive walk. When a directory could not be
// listed its path is in Skipped and its error is folded into Err; Posts
// then holds everything that could be reached.
type Listing struct {
	Root    string        `json:"root"`
	Posts   []PostSummary `json:"posts"`
	Skipped []string      `json:"skipped,omitempty"`
	Err     error         `json:"-"`
}

func (l *Listing) Complete() bool {
	return len(l.Skipped) == 0
}

// Lister walks a content.Store.
type Lister struct {
	store  content.Store
	logger *zap.Logger
}

func NewLister(store content.Store, logger *zap.Logger) *Lister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lister{store: store, logger: logger}
}

// IsPost reports whether a file name follows the post naming rule.
func IsPost(name string) bool {
	return strings.EqualFold(path.Ext(name), PostExtension) && len(name) > len(PostExtension)
}

// ListPosts returns every post below root, sorted by path. Directories
// that fail to list are skipped with a warning rather than failing the
// walk. A root that does not exist yields an empty, complete listing.
func (l *Lister) ListPosts(ctx context.Context, root string) *Listing {
	listing := &Listing{Root: root, Posts: []PostSummary{}}
	var errs *multierror.Error

	// explicit stack instead of recursion; depth is unbounded
	pending := []string{root}
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			listing.Skipped = append(listing.Skipped, pending...)
			errs = multierror.Append(errs, err)
			break
		}

		dir := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		entries, err := l.store.List(ctx, dir)
		if err != nil && dir == root && errors.IsNotFound(err) {
			// no posts directory yet
			break
		}
		if err != nil {
			l.logger.Warn("skipping directory",
				zap.String("dir", dir),
				zap.Error(err),
			)
			listing.Skipped = append(listing.Skipped, dir)
			errs = multierror.Append(errs, fmt.Errorf("listing %s: %w", dir, err))
			continue
		}

		for _, e := range entries {
			switch e.Kind {
			case content.KindDir:
				pending = append(pending, e.Path)
			case content.KindFile:
				if IsPost(e.Name) {
					listing.Posts = append(listing.Posts, PostSummary{Name: e.Name, Path: e.Path})
				}
			}
		}
	}

	sort.Slice(listing.Posts, func(i, j int) bool {
		return listing.Posts[i].Path < listing.Posts[j].Path
	})
	sort.Strings(listing.Skipped)
	listing.Err = errs.ErrorOrNil()

	l.logger.Debug("listed posts",
		zap.String("root", root),
		zap.Int("posts", len(listing.Posts)),
		zap.Int("skipped", len(listing.Skipped)),
	)
	return listing
}

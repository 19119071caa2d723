package blog

import (
	"bytes"
	"context"
	"time"

	"go.uber.org/zap"

	"postbot/internal/batch"
	"postbot/internal/config"
	"postbot/internal/content"
	"postbot/internal/errors"
	"postbot/internal/imaging"
	"postbot/internal/inventory"
)

// Poster is everything a front end (CLI, HTTP API, chat bot) can do with
// posts. Service implements it locally; client.Client over HTTP.
type Poster interface {
	ListPosts(ctx context.Context) (*inventory.Listing, error)
	Tree(ctx context.Context) (*Tree, error)
	GetPost(ctx context.Context, path string) (*Post, error)
	CreatePost(ctx context.Context, form PostForm) (*Post, error)
	UpdatePost(ctx context.Context, req UpdateRequest) (*batch.Report, error)
	DeletePosts(ctx context.Context, paths []string, message string) (*batch.Report, error)
	Reports(ctx context.Context, limit int) ([]*batch.Report, error)
}

// Journal keeps finished batch reports.
type Journal interface {
	Record(report *batch.Report) error
	List(limit int) ([]*batch.Report, error)
}

// Tree is the folder view of the post inventory.
type Tree struct {
	Root    *inventory.Folder `json:"root"`
	Skipped []string          `json:"skipped,omitempty"`
}

type Settings struct {
	PostsRoot   string
	ImageRoot   string
	Location    *time.Location
	Concurrency int
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		PostsRoot:   cfg.Blog.PostsRoot,
		ImageRoot:   cfg.Blog.ImageRoot,
		Location:    cfg.Location(),
		Concurrency: cfg.Blog.BatchConcurrency,
	}
}

type Service struct {
	store      content.Store
	lister     *inventory.Lister
	transcoder imaging.Transcoder
	settings   Settings
	journal    Journal
	now        func() time.Time
	logger     *zap.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithJournal(j Journal) Option {
	return func(s *Service) { s.journal = j }
}

func NewService(store content.Store, transcoder imaging.Transcoder, settings Settings, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.Concurrency <= 0 {
		settings.Concurrency = 1
	}
	s := &Service{
		store:      store,
		lister:     inventory.NewLister(store, logger),
		transcoder: transcoder,
		settings:   settings,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Poster = (*Service)(nil)

func (s *Service) ListPosts(ctx context.Context) (*inventory.Listing, error) {
	return s.lister.ListPosts(ctx, s.settings.PostsRoot), nil
}

func (s *Service) Tree(ctx context.Context) (*Tree, error) {
	listing := s.lister.ListPosts(ctx, s.settings.PostsRoot)
	return &Tree{
		Root:    inventory.BuildHierarchy(listing.Posts, s.settings.PostsRoot),
		Skipped: listing.Skipped,
	}, nil
}

func (s *Service) GetPost(ctx context.Context, path string) (*Post, error) {
	rec, err := s.store.Read(ctx, path)
	if err != nil {
		return nil, err
	}

	post := &Post{Path: rec.Path, Revision: rec.Revision, Content: string(rec.Content)}
	fm, _, err := ParsePost(rec.Content)
	if err != nil {
		s.logger.Debug("post has unreadable front matter", zap.String("path", rec.Path), zap.Error(err))
	} else {
		post.FrontMatter = fm
	}
	return post, nil
}

func (s *Service) CreatePost(ctx context.Context, form PostForm) (*Post, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}

	now := s.now().In(s.settings.Location)
	fm := NewFrontMatter(form, s.settings.ImageRoot, now)
	data, err := Render(fm, form.Body)
	if err != nil {
		return nil, err
	}

	path := PostPath(s.settings.PostsRoot, form.Title, now)
	sha, err := s.store.Create(ctx, path, data, form.Message)
	if err != nil {
		return nil, err
	}

	s.logger.Info("post created", zap.String("path", path), zap.String("sha", sha))
	return &Post{Path: path, Revision: sha, Content: string(data), FrontMatter: &fm}, nil
}

// Publish creates path, or updates it against the revision just read.
// Unchanged content is not committed again.
func (s *Service) Publish(ctx context.Context, path string, data []byte, message string) (string, error) {
	rec, err := s.store.Read(ctx, path)
	switch {
	case errors.IsNotFound(err):
		return s.store.Create(ctx, path, data, message)
	case err != nil:
		return "", err
	case bytes.Equal(rec.Content, data):
		return rec.Revision, nil
	}
	return s.store.UpdateRevision(ctx, path, data, message, rec.Revision)
}

func (s *Service) Reports(_ context.Context, limit int) ([]*batch.Report, error) {
	if s.journal == nil {
		return []*batch.Report{}, nil
	}
	return s.journal.List(limit)
}

func (s *Service) record(report *batch.Report) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(report); err != nil {
		s.logger.Error("failed to journal batch report",
			zap.String("report", report.ID),
			zap.Error(err),
		)
	}
}

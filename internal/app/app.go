// Package app builds the post service and everything behind it from a
// loaded configuration. The server and the CLI share it.
package app

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"postbot/internal/blog"
	"postbot/internal/config"
	"postbot/internal/content"
	"postbot/internal/imaging"
	"postbot/internal/journal"
	"postbot/internal/storage"
)

const transcodeCacheSize = 64

type App struct {
	Config  *config.Config
	Store   *content.GitHubStore
	Service *blog.Service
	Journal *journal.Journal
	Logger  *zap.Logger

	db    *badger.DB
	codec *storage.Codec
}

// New validates cfg and opens the journal database. An empty journal
// path keeps reports in memory only.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := content.NewGitHubStore(content.Repository{
		Owner:  cfg.GitHub.Owner,
		Name:   cfg.GitHub.Repository,
		Branch: cfg.GitHub.Branch,
	}, content.Options{
		BaseURL: cfg.GitHub.BaseURL,
		Token:   cfg.GitHub.Token,
		Timeout: cfg.GitHub.Timeout,
		Retries: cfg.GitHub.Retries,
	}, logger.Named("content"))
	if err != nil {
		return nil, fmt.Errorf("creating content store: %w", err)
	}

	transcoder, err := imaging.NewCached(imaging.NewReencoder(cfg.Blog.ImageQuality), transcodeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating transcoder: %w", err)
	}

	db, err := storage.Open(cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	codec, err := storage.NewCodec(storage.DefaultCompressionOptions())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal codec: %w", err)
	}
	j := journal.New(db, codec)

	svc := blog.NewService(store, transcoder, blog.SettingsFromConfig(cfg), logger.Named("blog"),
		blog.WithJournal(j),
	)

	logger.Debug("application ready",
		zap.String("repository", store.Repository().String()),
		zap.String("journal", cfg.Journal.Path),
	)

	return &App{
		Config:  cfg,
		Store:   store,
		Service: svc,
		Journal: j,
		Logger:  logger,
		db:      db,
		codec:   codec,
	}, nil
}

func (a *App) Close() error {
	a.codec.Close()
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("closing journal: %w", err)
	}
	return nil
}

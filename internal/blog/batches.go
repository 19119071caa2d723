package blog

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"postbot/internal/batch"
	"postbot/internal/errors"
	"postbot/internal/inventory"
)

const (
	OperationDelete = "delete"
	OperationUpdate = "update"

	placeholderName = ".gitkeep"
	attachmentKey   = "attachment "
)

// Attachment is an uploaded image to store next to a post.
type Attachment struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// UpdateRequest replaces a post's content and adds images to it.
type UpdateRequest struct {
	Path    string       `json:"path"`
	Content string       `json:"content"`
	Message string       `json:"message,omitempty"`
	Images  []Attachment `json:"images,omitempty"`
}

func (r *UpdateRequest) Validate() error {
	if !inventory.IsPost(r.Path) {
		return errors.ValidationError("path must name a markdown post", r.Path)
	}
	if strings.TrimSpace(r.Content) == "" {
		return errors.ValidationError("content is required", nil)
	}
	seen := make(map[string]bool, len(r.Images))
	for _, img := range r.Images {
		if img.Name == "" {
			return errors.ValidationError("attachment name is required", nil)
		}
		if seen[img.Name] {
			return errors.ValidationError("duplicate attachment", img.Name)
		}
		seen[img.Name] = true
	}
	return nil
}

// DeletePosts deletes every path independently. Each delete reads the
// current revision right before issuing the delete.
func (s *Service) DeletePosts(ctx context.Context, paths []string, message string) (*batch.Report, error) {
	if len(paths) == 0 {
		return nil, errors.ValidationError("no posts selected", nil)
	}

	started := time.Now()
	result := batch.Run(ctx, paths, func(p string) string { return p },
		func(ctx context.Context, p string) (string, error) {
			return "", s.store.Delete(ctx, p, message)
		},
		batch.WithConcurrency(s.settings.Concurrency),
		batch.WithLogger(s.logger),
	)

	report := batch.NewReport(OperationDelete, started, result)
	s.logger.Info("bulk delete finished",
		zap.Int("succeeded", len(result.Succeeded())),
		zap.Int("failed", len(result.Failed())),
	)
	s.record(report)
	return report, nil
}

type updateItem struct {
	key string
	run func(ctx context.Context) (string, error)
}

// UpdatePost writes the new post content and stores each attached image.
// The text and every image are reported separately: a broken image does
// not keep the text from being saved, nor the other images.
func (s *Service) UpdatePost(ctx context.Context, req UpdateRequest) (*batch.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	now := s.now().In(s.settings.Location)
	dir := s.imageDir(req.Content, now)

	items := []updateItem{{
		key: req.Path,
		run: func(ctx context.Context) (string, error) {
			return "", s.updateText(ctx, req)
		},
	}}
	for i, img := range req.Images {
		// the extension is only known once the image is transcoded
		base := fmt.Sprintf("%s/%s-%d", dir, now.Format("20060102150405"), i+1)
		items = append(items, updateItem{
			key: attachmentKey + img.Name,
			run: func(ctx context.Context) (string, error) {
				return s.storeImage(ctx, dir, base, img, req.Path)
			},
		})
	}

	result := batch.Run(ctx, items, func(it updateItem) string { return it.key },
		func(ctx context.Context, it updateItem) (string, error) { return it.run(ctx) },
		batch.WithConcurrency(s.settings.Concurrency),
		batch.WithLogger(s.logger),
	)

	report := batch.NewReport(OperationUpdate, started, result)
	s.logger.Info("post update finished",
		zap.String("path", req.Path),
		zap.Int("images", len(req.Images)),
		zap.Int("failed", len(result.Failed())),
	)
	s.record(report)
	return report, nil
}

func (s *Service) updateText(ctx context.Context, req UpdateRequest) error {
	_, err := s.store.Update(ctx, req.Path, []byte(req.Content), req.Message)
	return err
}

func (s *Service) storeImage(ctx context.Context, dir, base string, img Attachment, postPath string) (string, error) {
	if err := s.ensureDir(ctx, dir); err != nil {
		return "", err
	}

	data, ext, err := s.transcoder.Transcode(ctx, img.Data)
	if err != nil {
		return "", fmt.Errorf("transcoding %s: %w", img.Name, err)
	}

	target := base + "." + ext
	if _, err := s.store.Create(ctx, target, data, fmt.Sprintf("Add image %s for %s", img.Name, postPath)); err != nil {
		return "", err
	}
	return target, nil
}

// ensureDir makes dir exist. The contents API has no directories of its
// own, so an empty placeholder file is committed when the probe finds
// nothing. Losing a race to create the placeholder is fine.
func (s *Service) ensureDir(ctx context.Context, dir string) error {
	_, err := s.store.List(ctx, dir)
	if err == nil {
		return nil
	}
	if !errors.IsNotFound(err) {
		return fmt.Errorf("probing %s: %w", dir, err)
	}

	_, err = s.store.Create(ctx, dir+"/"+placeholderName, []byte{}, "Create "+dir)
	if err != nil && !errors.IsConflict(err) {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}

// imageDir prefers the media_subpath the post declares, so images land
// where the post already points; otherwise a dated folder under the
// image root.
func (s *Service) imageDir(postContent string, now time.Time) string {
	if fm, _, err := ParsePost([]byte(postContent)); err == nil && fm != nil {
		if sub := strings.Trim(fm.MediaSubpath, "/"); sub != "" && !strings.Contains(sub, "..") {
			return sub
		}
	}
	return strings.TrimPrefix(path.Join(s.settings.ImageRoot, now.Format(dirDateLayout)), "/")
}

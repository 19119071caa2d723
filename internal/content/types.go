package content

import (
	"context"
	"fmt"
)

// Kind is the entry type reported by the contents API.
type Kind string

const (
	KindFile      Kind = "file"
	KindDir       Kind = "dir"
	KindSymlink   Kind = "symlink"
	KindSubmodule Kind = "submodule"
)

// Repository identifies the remote repository and the single branch all
// reads and writes go to.
type Repository struct {
	Owner  string
	Name   string
	Branch string
}

func (r Repository) String() string {
	return fmt.Sprintf("%s/%s@%s", r.Owner, r.Name, r.Branch)
}

// FileRecord is one file as the store returned it. Revision is the blob
// sha, valid only for exactly this Content.
type FileRecord struct {
	Path     string `json:"path"`
	Content  []byte `json:"content"`
	Revision string `json:"sha"`
	Kind     Kind   `json:"kind"`
}

// DirectoryEntry is one child of a directory listing.
type DirectoryEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Kind Kind   `json:"type"`
	URL  string `json:"url,omitempty"`
}

// Store reads and writes single files of a repository. Every write is its
// own commit; there is no multi-file transaction.
type Store interface {
	Read(ctx context.Context, path string) (*FileRecord, error)
	List(ctx context.Context, path string) ([]DirectoryEntry, error)

	// Create fails with a Conflict error if the path already exists.
	Create(ctx context.Context, path string, content []byte, message string) (string, error)

	// Update and Delete read the current revision immediately before
	// writing. A concurrent change in between surfaces as a Conflict.
	Update(ctx context.Context, path string, content []byte, message string) (string, error)
	Delete(ctx context.Context, path string, message string) error

	// UpdateRevision and DeleteRevision write against a revision the
	// caller read itself within the same operation.
	UpdateRevision(ctx context.Context, path string, content []byte, message, revision string) (string, error)
	DeleteRevision(ctx context.Context, path string, message, revision string) error
}

package inventory

import (
	"sort"
	"strings"
)

// Folder is one node of the post hierarchy.
type Folder struct {
	Files   []PostSummary      `json:"files"`
	Folders map[string]*Folder `json:"folders"`
}

func newFolder() *Folder {
	return &Folder{
		Files:   []PostSummary{},
		Folders: make(map[string]*Folder),
	}
}

// FolderNames returns the child folder names in sorted order.
func (f *Folder) FolderNames() []string {
	names := make([]string, 0, len(f.Folders))
	for name := range f.Folders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count is the number of posts in f and below.
func (f *Folder) Count() int {
	n := len(f.Files)
	for _, child := range f.Folders {
		n += child.Count()
	}
	return n
}

// BuildHierarchy nests posts into folders relative to root. Posts whose
// path is empty, outside root, or has empty segments are skipped.
func BuildHierarchy(posts []PostSummary, root string) *Folder {
	tree := newFolder()
	prefix := strings.Trim(root, "/")
	if prefix != "" {
		prefix += "/"
	}

	for _, post := range posts {
		segments, ok := relativeSegments(post.Path, prefix)
		if !ok {
			continue
		}

		node := tree
		for _, seg := range segments[:len(segments)-1] {
			child, exists := node.Folders[seg]
			if !exists {
				child = newFolder()
				node.Folders[seg] = child
			}
			node = child
		}

		name := post.Name
		if name == "" {
			name = segments[len(segments)-1]
		}
		node.Files = append(node.Files, PostSummary{Name: name, Path: post.Path})
	}
	return tree
}

func relativeSegments(p, prefix string) ([]string, bool) {
	if p == "" || !strings.HasPrefix(p, prefix) {
		return nil, false
	}
	rel := strings.TrimPrefix(p, prefix)
	if rel == "" {
		return nil, false
	}
	segments := strings.Split(rel, "/")
	for _, seg := range segments {
		if seg == "" {
			return nil, false
		}
	}
	return segments, true
}

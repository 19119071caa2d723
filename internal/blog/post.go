package blog

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"postbot/internal/errors"
)

const (
	dateLayout     = "2006-01-02 15:04:05 -0700"
	fileDateLayout = "2006-01-02"
	dirDateLayout  = "20060102"
)

const (
	delim     = "---"
	openDelim = delim + "\n"
	endDelim  = "\n" + delim + "\n"
)

// FrontMatter is the YAML header of a post.
type FrontMatter struct {
	Title        string   `yaml:"title" json:"title"`
	Description  string   `yaml:"description,omitempty" json:"description,omitempty"`
	Author       string   `yaml:"author,omitempty" json:"author,omitempty"`
	Date         string   `yaml:"date" json:"date"`
	Categories   []string `yaml:"categories,flow" json:"categories"`
	Tags         []string `yaml:"tags,flow" json:"tags"`
	Pin          bool     `yaml:"pin" json:"pin"`
	MediaSubpath string   `yaml:"media_subpath,omitempty" json:"media_subpath,omitempty"`
}

// PostForm is what a user fills in to create a post.
type PostForm struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Categories  []string `json:"categories"`
	Tags        []string `json:"tags"`
	Pin         bool     `json:"pin"`
	Author      string   `json:"author"`
	Body        string   `json:"body"`
	Message     string   `json:"message,omitempty"`
}

func (f *PostForm) Validate() error {
	var missing []string
	if strings.TrimSpace(f.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(f.Body) == "" {
		missing = append(missing, "body")
	}
	if len(missing) > 0 {
		return errors.ValidationError("missing required fields", missing)
	}
	if Slug(f.Title) == "" {
		return errors.ValidationError("title has no usable characters", f.Title)
	}
	return nil
}

// Post is a post file as read from the repository.
type Post struct {
	Path        string       `json:"path"`
	Revision    string       `json:"sha"`
	Content     string       `json:"content"`
	FrontMatter *FrontMatter `json:"front_matter,omitempty"`
}

// SplitTags turns a comma separated form field into a tag list.
func SplitTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

var nonSlug = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Slug turns a title into the file name part of a post path.
func Slug(title string) string {
	s := nonSlug.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(s, "-")
}

// PostPath is where a post with this title, created at now, lives.
func PostPath(root, title string, now time.Time) string {
	name := fmt.Sprintf("%s-%s.md", now.Format(fileDateLayout), Slug(title))
	if root = strings.Trim(root, "/"); root == "" {
		return name
	}
	return root + "/" + name
}

// NewFrontMatter fills in the header for a freshly created post.
func NewFrontMatter(form PostForm, imageRoot string, now time.Time) FrontMatter {
	categories := form.Categories
	if categories == nil {
		categories = []string{}
	}
	tags := form.Tags
	if tags == nil {
		tags = []string{}
	}
	return FrontMatter{
		Title:        strings.TrimSpace(form.Title),
		Description:  strings.TrimSpace(form.Description),
		Author:       form.Author,
		Date:         now.Format(dateLayout),
		Categories:   categories,
		Tags:         tags,
		Pin:          form.Pin,
		MediaSubpath: path.Join("/", imageRoot, now.Format(dirDateLayout)),
	}
}

// Render writes a post file: front matter, a blank line, then the body.
func Render(fm FrontMatter, body string) ([]byte, error) {
	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, errors.Internal("encoding front matter", err)
	}

	var b bytes.Buffer
	b.WriteString(openDelim)
	b.Write(header)
	b.WriteString(delim)
	b.WriteString("\n\n")
	b.WriteString(strings.TrimRight(body, "\n"))
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// ParsePost splits a post into its front matter and body. A file without
// a header yields a nil FrontMatter and the whole text as body.
func ParsePost(data []byte) (*FrontMatter, string, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	if !strings.HasPrefix(text, openDelim) {
		return nil, string(data), nil
	}

	rest := text[len(openDelim):]
	var header, body string
	switch end := strings.Index(rest, endDelim); {
	case rest == delim:
	case strings.HasPrefix(rest, openDelim):
		body = rest[len(openDelim):]
	case end >= 0:
		header = rest[:end+1]
		body = rest[end+len(endDelim):]
	case strings.HasSuffix(rest, "\n"+delim):
		// closed at end of file
		header = rest[:len(rest)-len(delim)]
	default:
		return nil, "", errors.ValidationError("unterminated front matter", nil)
	}

	var fm FrontMatter
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return nil, "", errors.ValidationError("invalid front matter", err.Error())
	}
	return &fm, strings.TrimLeft(body, "\n"), nil
}

package blog

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postbot/internal/errors"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{title: "Hello World", want: "hello-world"},
		{title: "  Go 1.23: what's new?  ", want: "go-1-23-what-s-new"},
		{title: "Ünïcode & more", want: "ünïcode-more"},
		{title: "Åbent hus i Nyborg", want: "åbent-hus-i-nyborg"},
		{title: "Sørøver på Ærø", want: "sørøver-på-ærø"},
		{title: "!!!", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.title))
		})
	}
}

func TestPostPath(t *testing.T) {
	now := time.Date(2024, 3, 5, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "_posts/2024-03-05-hello-world.md", PostPath("_posts", "Hello World", now))
	assert.Equal(t, "2024-03-05-hello-world.md", PostPath("", "Hello World", now))
}

func TestSplitTags(t *testing.T) {
	assert.Equal(t, []string{"go", "git", "api"}, SplitTags(" go, git ,,api "))
	assert.Equal(t, []string{}, SplitTags(""))
}

func TestRenderAndParse(t *testing.T) {
	now := time.Date(2024, 3, 5, 10, 11, 12, 0, time.FixedZone("CEST", 2*60*60))
	form := PostForm{
		Title:       "Hello World",
		Description: "A first post",
		Categories:  []string{"Blogging"},
		Tags:        []string{"go", "git"},
		Pin:         true,
		Author:      "ada",
		Body:        "Some *markdown*.\n\n",
	}
	fm := NewFrontMatter(form, "assets/img/posts", now)
	assert.Equal(t, "2024-03-05 10:11:12 +0200", fm.Date)
	assert.Equal(t, "/assets/img/posts/20240305", fm.MediaSubpath)

	data, err := Render(fm, form.Body)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "---\ntitle: Hello World\n"))
	assert.Contains(t, text, "tags: [go, git]\n")
	assert.True(t, strings.HasSuffix(text, "---\n\nSome *markdown*.\n"))

	parsed, body, err := ParsePost(data)
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.Equal(t, fm, *parsed)
	assert.Equal(t, "Some *markdown*.\n", body)
}

func TestParsePostEdgeCases(t *testing.T) {
	fm, body, err := ParsePost([]byte("# just markdown\n"))
	require.NoError(t, err)
	assert.Nil(t, fm)
	assert.Equal(t, "# just markdown\n", body)

	fm, body, err = ParsePost([]byte("---\r\ntitle: Windows\r\n---\r\nbody\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "Windows", fm.Title)
	assert.Equal(t, "body\n", body)

	fm, body, err = ParsePost([]byte("---\n---\nbody"))
	require.NoError(t, err)
	assert.Equal(t, FrontMatter{}, *fm)
	assert.Equal(t, "body", body)

	fm, body, err = ParsePost([]byte("---\ntitle: x\nmedia_subpath: /posts/20240101\n---"))
	require.NoError(t, err)
	assert.Equal(t, "/posts/20240101", fm.MediaSubpath)
	assert.Empty(t, body)

	fm, _, err = ParsePost([]byte("---\n---"))
	require.NoError(t, err)
	assert.Equal(t, FrontMatter{}, *fm)

	_, _, err = ParsePost([]byte("---\ntitle: never closed\n"))
	assert.True(t, errors.IsValidation(err))

	_, _, err = ParsePost([]byte("---\ntitle: [unbalanced\n---\n"))
	assert.True(t, errors.IsValidation(err))
}

func TestPostFormValidate(t *testing.T) {
	form := PostForm{}
	err := form.Validate()
	require.Error(t, err)
	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, []string{"title", "body"}, e.Details)

	form = PostForm{Title: "???", Body: "x"}
	assert.True(t, errors.IsValidation(form.Validate()))

	form = PostForm{Title: "ok", Body: "x"}
	assert.NoError(t, form.Validate())

	form = PostForm{Title: "ÆØÅ", Body: "x"}
	assert.NoError(t, form.Validate())
}

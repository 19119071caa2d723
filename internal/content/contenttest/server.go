// Package contenttest provides an in-memory stand-in for the GitHub
// contents API, for tests of code built on content.Store.
package contenttest

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"postbot/internal/content"
)

const (
	Owner  = "octo"
	Repo   = "blog"
	Branch = "main"
	Token  = "test-token"
)

// Commit records one successful write.
type Commit struct {
	Method  string
	Path    string
	Message string
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	files    map[string][]byte
	failures map[string]*failure
	commits  []Commit
	requests []string

	// BeforeWrite runs before a PUT or DELETE is applied. Tests use it to
	// simulate another writer racing the request.
	BeforeWrite func(method, path string)

	// BeforeRaw runs before a raw content GET is served.
	BeforeRaw func(path string)

	// InlineLimit, when positive, makes file reads larger than it come back
	// without inline content, as the API does for files over 1MB.
	InlineLimit int
}

type failure struct {
	status int
	// remaining < 0 fails forever
	remaining int
}

func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		files:    make(map[string][]byte),
		failures: make(map[string]*failure),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/{owner}/{repo}/contents/{path...}", s.handle)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Store returns a client for this server. Reads are not retried so that
// injected failures surface immediately.
func (s *Server) Store(t testing.TB) *content.GitHubStore {
	t.Helper()
	store, err := content.NewGitHubStore(s.Repository(), content.Options{
		BaseURL: s.URL,
		Token:   Token,
		Timeout: 5 * time.Second,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	return store
}

func (s *Server) Repository() content.Repository {
	return content.Repository{Owner: Owner, Name: Repo, Branch: Branch}
}

// Put seeds a file without recording a commit.
func (s *Server) Put(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = append([]byte(nil), data...)
}

// Remove deletes a file behind the client's back.
func (s *Server) Remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
}

func (s *Server) File(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[path]
	return data, ok
}

func (s *Server) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Fail makes every request for path answer with status.
func (s *Server) Fail(path string, status int) {
	s.FailTimes(path, status, -1)
}

// FailTimes makes the next n requests for path answer with status.
func (s *Server) FailTimes(path string, status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = &failure{status: status, remaining: n}
}

// Count returns how many requests with method were made for path.
func (s *Server) Count(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r == method+" "+path {
			n++
		}
	}
	return n
}

func (s *Server) Commits() []Commit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Commit(nil), s.commits...)
}

// Requests returns "METHOD path" for every request received.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// BlobSHA is git's blob object id for data.
func BlobSHA(data []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(data))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

type entry struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	URL      string `json:"url"`
	Content  string `json:"content,omitempty"`
	Encoding string `json:"encoding,omitempty"`
}

type writeBody struct {
	Message string  `json:"message"`
	Content *string `json:"content"`
	SHA     string  `json:"sha"`
	Branch  string  `json:"branch"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")

	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+path)
	var status int
	failing := false
	if f, ok := s.failures[path]; ok && f.remaining != 0 {
		status, failing = f.status, true
		if f.remaining > 0 {
			f.remaining--
		}
	}
	s.mu.Unlock()

	if r.PathValue("owner") != Owner || r.PathValue("repo") != Repo {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+Token {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
		return
	}
	if failing {
		writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.get(w, r, path)
	case http.MethodPut, http.MethodDelete:
		var body writeBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Problems parsing JSON"})
			return
		}
		if body.Branch != Branch {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Branch not found"})
			return
		}
		if s.BeforeWrite != nil {
			s.BeforeWrite(r.Method, path)
		}
		if r.Method == http.MethodPut {
			s.put(w, path, body)
		} else {
			s.delete(w, path, body)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) get(w http.ResponseWriter, r *http.Request, path string) {
	if r.URL.Query().Get("ref") != Branch {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "No commit found for the ref"})
		return
	}

	raw := strings.Contains(r.Header.Get("Accept"), "raw")
	if raw && s.BeforeRaw != nil {
		s.BeforeRaw(path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if data, ok := s.files[path]; ok {
		if raw {
			w.WriteHeader(http.StatusOK)
			w.Write(data)
			return
		}
		e := entry{
			Type:     "file",
			Name:     baseName(path),
			Path:     path,
			SHA:      BlobSHA(data),
			URL:      s.URL + r.URL.Path,
			Content:  wrapLines(base64.StdEncoding.EncodeToString(data), 60),
			Encoding: "base64",
		}
		if s.InlineLimit > 0 && len(data) > s.InlineLimit {
			e.Content, e.Encoding = "", "none"
		}
		writeJSON(w, http.StatusOK, e)
		return
	}

	prefix := ""
	if path != "" {
		prefix = path + "/"
	}
	children := make(map[string]entry)
	for p, data := range s.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		name, _, isDir := strings.Cut(rest, "/")
		if isDir {
			children[name] = entry{Type: "dir", Name: name, Path: prefix + name, URL: s.URL + "/repos/" + Owner + "/" + Repo + "/contents/" + prefix + name}
		} else {
			children[name] = entry{Type: "file", Name: name, Path: p, SHA: BlobSHA(data)}
		}
	}
	if len(children) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}

	// map order, deliberately unsorted
	list := make([]entry, 0, len(children))
	for _, e := range children {
		list = append(list, e)
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) put(w http.ResponseWriter, path string, body writeBody) {
	if body.Content == nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Invalid request.\n\n\"content\" wasn't supplied."})
		return
	}
	data, err := base64.StdEncoding.DecodeString(*body.Content)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "content is not valid Base64"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.files[path]
	switch {
	case exists && body.SHA == "":
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Invalid request.\n\n\"sha\" wasn't supplied."})
		return
	case exists && body.SHA != BlobSHA(current):
		writeJSON(w, http.StatusConflict, map[string]string{"message": fmt.Sprintf("%s does not match %s", path, body.SHA)})
		return
	case !exists && body.SHA != "":
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}

	s.files[path] = data
	s.commits = append(s.commits, Commit{Method: http.MethodPut, Path: path, Message: body.Message})

	status := http.StatusCreated
	if exists {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{
		"content": map[string]string{"path": path, "sha": BlobSHA(data)},
		"commit":  map[string]string{"message": body.Message},
	})
}

func (s *Server) delete(w http.ResponseWriter, path string, body writeBody) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.files[path]
	switch {
	case !exists:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	case body.SHA != BlobSHA(current):
		writeJSON(w, http.StatusConflict, map[string]string{"message": fmt.Sprintf("%s does not match %s", path, body.SHA)})
		return
	}

	delete(s.files, path)
	s.commits = append(s.commits, Commit{Method: http.MethodDelete, Path: path, Message: body.Message})
	writeJSON(w, http.StatusOK, map[string]any{
		"content": nil,
		"commit":  map[string]string{"message": body.Message},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func baseName(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func wrapLines(s string, n int) string {
	var b strings.Builder
	for len(s) > n {
		b.WriteString(s[:n])
		b.WriteByte('\n')
		s = s[n:]
	}
	b.WriteString(s)
	return b.String()
}

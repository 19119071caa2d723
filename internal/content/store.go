// internal/content/store.go
package content

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"postbot/internal/errors"
)

const (
	apiVersion    = "2022-11-28"
	mediaJSON     = "application/vnd.github+json"
	mediaRaw      = "application/vnd.github.raw+json"
	maxBodyLength = 100 << 20
)

// Options configures the HTTP side of a GitHubStore.
type Options struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	Retries   int
	Transport http.RoundTripper
}

// GitHubStore implements Store on top of the GitHub contents API.
type GitHubStore struct {
	repo    Repository
	baseURL string
	token   string
	reads   *http.Client
	writes  *http.Client
	logger  *zap.Logger
}

func NewGitHubStore(repo Repository, opts Options, logger *zap.Logger) (*GitHubStore, error) {
	if repo.Owner == "" || repo.Name == "" {
		return nil, errors.ValidationError("repository owner and name are required", repo.String())
	}
	if repo.Branch == "" {
		repo.Branch = "main"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.github.com"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("repository", repo.String()))

	return &GitHubStore{
		repo:    repo,
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		token:   opts.Token,
		reads:   newReadClient(opts, logger),
		writes:  newWriteClient(opts),
		logger:  logger,
	}, nil
}

func (s *GitHubStore) Repository() Repository {
	return s.repo
}

// contentResponse is the wire shape of both a file read and one element
// of a directory listing.
type contentResponse struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	URL      string `json:"url"`
}

type writeRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch"`
}

type deleteRequest struct {
	Message string `json:"message"`
	SHA     string `json:"sha"`
	Branch  string `json:"branch"`
}

type writeResponse struct {
	Content *struct {
		Path string `json:"path"`
		SHA  string `json:"sha"`
	} `json:"content"`
}

func (s *GitHubStore) Read(ctx context.Context, path string) (*FileRecord, error) {
	p, err := cleanPath(path, false)
	if err != nil {
		return nil, err
	}
	op := "read " + p

	body, err := s.do(ctx, s.reads, http.MethodGet, p, mediaJSON, nil, op)
	if err != nil {
		return nil, err
	}
	if isJSONArray(body) {
		return nil, errors.ValidationError(op+": path is a directory", p)
	}

	var resp contentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.ValidationError(op+": malformed response", err.Error())
	}
	if Kind(resp.Type) != KindFile {
		return nil, errors.ValidationError(op+": not a file", resp.Type)
	}
	if resp.SHA == "" {
		return nil, errors.ValidationError(op+": response has no sha", nil)
	}

	var data []byte
	switch resp.Encoding {
	case "base64":
		data, err = decodeContent(resp.Content)
		if err != nil {
			return nil, errors.ValidationError(op+": undecodable content", err.Error())
		}
	case "none", "":
		// files over 1MB come back without inline content; the raw fetch is
		// a second request and must still be the blob resp.SHA names
		data, err = s.do(ctx, s.reads, http.MethodGet, p, mediaRaw, nil, op)
		if err != nil {
			return nil, err
		}
		if blobSHA(data) != resp.SHA {
			return nil, errors.Conflict(op + ": file changed while reading")
		}
	default:
		return nil, errors.ValidationError(op+": unsupported encoding", resp.Encoding)
	}

	return &FileRecord{
		Path:     p,
		Content:  data,
		Revision: resp.SHA,
		Kind:     KindFile,
	}, nil
}

func (s *GitHubStore) List(ctx context.Context, path string) ([]DirectoryEntry, error) {
	p, err := cleanPath(path, true)
	if err != nil {
		return nil, err
	}
	op := "list " + p

	body, err := s.do(ctx, s.reads, http.MethodGet, p, mediaJSON, nil, op)
	if err != nil {
		return nil, err
	}
	if !isJSONArray(body) {
		return nil, errors.ValidationError(op+": path is not a directory", p)
	}

	var resp []contentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.ValidationError(op+": malformed response", err.Error())
	}

	entries := make([]DirectoryEntry, 0, len(resp))
	for _, r := range resp {
		if r.Name == "" || r.Path == "" || r.Type == "" {
			return nil, errors.ValidationError(op+": malformed directory entry", r)
		}
		entries = append(entries, DirectoryEntry{
			Name: r.Name,
			Path: r.Path,
			Kind: Kind(r.Type),
			URL:  r.URL,
		})
	}
	return entries, nil
}

func (s *GitHubStore) Create(ctx context.Context, path string, content []byte, message string) (string, error) {
	p, err := cleanPath(path, false)
	if err != nil {
		return "", err
	}
	return s.put(ctx, p, content, defaultMessage(message, "Add", p), "")
}

func (s *GitHubStore) Update(ctx context.Context, path string, content []byte, message string) (string, error) {
	current, err := s.Read(ctx, path)
	if err != nil {
		return "", fmt.Errorf("resolving revision: %w", err)
	}
	return s.UpdateRevision(ctx, path, content, message, current.Revision)
}

func (s *GitHubStore) UpdateRevision(ctx context.Context, path string, content []byte, message, revision string) (string, error) {
	p, err := cleanPath(path, false)
	if err != nil {
		return "", err
	}
	if revision == "" {
		return "", errors.ValidationError("update "+p+": revision is required", nil)
	}
	return s.put(ctx, p, content, defaultMessage(message, "Update", p), revision)
}

func (s *GitHubStore) Delete(ctx context.Context, path string, message string) error {
	current, err := s.Read(ctx, path)
	if err != nil {
		return fmt.Errorf("resolving revision: %w", err)
	}
	return s.DeleteRevision(ctx, path, message, current.Revision)
}

func (s *GitHubStore) DeleteRevision(ctx context.Context, path string, message, revision string) error {
	p, err := cleanPath(path, false)
	if err != nil {
		return err
	}
	if revision == "" {
		return errors.ValidationError("delete "+p+": revision is required", nil)
	}

	req := deleteRequest{
		Message: defaultMessage(message, "Delete", p),
		SHA:     revision,
		Branch:  s.repo.Branch,
	}
	_, err = s.do(ctx, s.writes, http.MethodDelete, p, mediaJSON, req, "delete "+p)
	return err
}

func (s *GitHubStore) put(ctx context.Context, p string, content []byte, message, revision string) (string, error) {
	op := "create " + p
	if revision != "" {
		op = "update " + p
	}

	req := writeRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		SHA:     revision,
		Branch:  s.repo.Branch,
	}
	body, err := s.do(ctx, s.writes, http.MethodPut, p, mediaJSON, req, op)
	if err != nil {
		return "", err
	}

	var resp writeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", errors.ValidationError(op+": malformed response", err.Error())
	}
	if resp.Content == nil || resp.Content.SHA == "" {
		return "", errors.ValidationError(op+": response has no sha", nil)
	}
	return resp.Content.SHA, nil
}

func (s *GitHubStore) do(ctx context.Context, client *http.Client, method, p, accept string, payload any, op string) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Internal(op+": encoding request", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.contentsURL(p, method == http.MethodGet), reqBody)
	if err != nil {
		return nil, errors.Internal(op+": building request", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.TransportError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyLength))
	if err != nil {
		return nil, errors.TransportError(op+": reading response", err)
	}

	s.logger.Debug("contents api call",
		zap.String("method", method),
		zap.String("path", p),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, errors.FromResponse(op, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (s *GitHubStore) contentsURL(p string, withRef bool) string {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		s.baseURL, url.PathEscape(s.repo.Owner), url.PathEscape(s.repo.Name), escapePath(p))
	if withRef {
		u += "?ref=" + url.QueryEscape(s.repo.Branch)
	}
	return u
}

// cleanPath normalises a repository path. The empty path (the repository
// root) is only accepted for listings.
func cleanPath(path string, allowRoot bool) (string, error) {
	p := strings.Trim(path, "/")
	if p == "" {
		if allowRoot {
			return "", nil
		}
		return "", errors.ValidationError("path is required", path)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", errors.ValidationError("invalid path", path)
		}
	}
	return p, nil
}

func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.Join(segs, "/")
}

// decodeContent undoes the API's base64 transport encoding, which wraps
// lines at 60 characters.
func decodeContent(s string) ([]byte, error) {
	s = strings.NewReplacer("\n", "", "\r", "").Replace(s)
	return base64.StdEncoding.DecodeString(s)
}

// blobSHA is the git object id of data stored as a blob.
func blobSHA(data []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(data))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func isJSONArray(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

func defaultMessage(message, verb, p string) string {
	if strings.TrimSpace(message) != "" {
		return message
	}
	return fmt.Sprintf("%s %s via API", verb, p)
}

// Package client talks to a running postbot server. Client implements
// blog.Poster, so front ends can use either it or a local blog.Service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"postbot/internal/api"
	"postbot/internal/batch"
	"postbot/internal/blog"
	"postbot/internal/errors"
	"postbot/internal/inventory"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ blog.Poster = (*Client)(nil)

func (c *Client) ListPosts(ctx context.Context) (*inventory.Listing, error) {
	var listing inventory.Listing
	if err := c.do(ctx, http.MethodGet, "/api/posts", nil, &listing); err != nil {
		return nil, err
	}
	if !listing.Complete() {
		listing.Err = errors.TransportError(fmt.Sprintf("%d directories could not be listed", len(listing.Skipped)), nil)
	}
	return &listing, nil
}

func (c *Client) Tree(ctx context.Context) (*blog.Tree, error) {
	var tree blog.Tree
	if err := c.do(ctx, http.MethodGet, "/api/posts/tree", nil, &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

func (c *Client) GetPost(ctx context.Context, path string) (*blog.Post, error) {
	var post blog.Post
	if err := c.do(ctx, http.MethodGet, "/api/posts/content?path="+url.QueryEscape(path), nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) CreatePost(ctx context.Context, form blog.PostForm) (*blog.Post, error) {
	var post blog.Post
	if err := c.do(ctx, http.MethodPost, "/api/posts", form, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) UpdatePost(ctx context.Context, req blog.UpdateRequest) (*batch.Report, error) {
	var report batch.Report
	if err := c.do(ctx, http.MethodPut, "/api/posts", req, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) DeletePosts(ctx context.Context, paths []string, message string) (*batch.Report, error) {
	var report batch.Report
	body := api.DeleteRequest{Paths: paths, Message: message}
	if err := c.do(ctx, http.MethodPost, "/api/posts/delete", body, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) Reports(ctx context.Context, limit int) ([]*batch.Report, error) {
	var reports []*batch.Report
	if err := c.do(ctx, http.MethodGet, "/api/reports?limit="+strconv.Itoa(limit), nil, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.TransportError(method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.TransportError("decoding response", err)
	}
	return nil
}

// decodeError rebuilds the server's typed error, so callers can keep
// using errors.IsNotFound and friends across the wire.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var e errors.Error
	if err := json.Unmarshal(data, &e); err != nil || e.Type == "" {
		return errors.TransportError(fmt.Sprintf("unexpected status: %s", resp.Status), nil)
	}
	if e.Code == 0 {
		e.Code = resp.StatusCode
	}
	// Status and Body describe the contents API response and are already
	// part of Message
	e.Status = 0
	e.Body = ""
	return &e
}

package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"postbot/internal/blog"
	"postbot/internal/errors"
	"postbot/internal/validation"
)

// DeleteRequest is the body of POST /api/posts/delete.
type DeleteRequest struct {
	Paths   []string `json:"paths"`
	Message string   `json:"message,omitempty"`
}

func (r *DeleteRequest) Validate() error {
	if len(r.Paths) == 0 {
		return errors.ValidationError("no posts selected", nil)
	}
	return nil
}

// PostHandler serves the post operations of a blog.Poster over HTTP.
type PostHandler struct {
	poster blog.Poster
	logger *zap.Logger
}

func NewPostHandler(poster blog.Poster, logger *zap.Logger) *PostHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostHandler{poster: poster, logger: logger}
}

// Register mounts every route on mux.
func (h *PostHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", Health)
	mux.HandleFunc("GET /api/posts", h.List)
	mux.HandleFunc("GET /api/posts/tree", h.Tree)
	mux.HandleFunc("GET /api/posts/content", h.Get)
	mux.HandleFunc("POST /api/posts", h.Create)
	mux.HandleFunc("PUT /api/posts", h.Update)
	mux.HandleFunc("POST /api/posts/delete", h.Delete)
	mux.HandleFunc("GET /api/reports", h.Reports)
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	listing, err := h.poster.ListPosts(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (h *PostHandler) Tree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.poster.Tree(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		h.writeError(w, errors.ValidationError("missing path", nil))
		return
	}

	post, err := h.poster.GetPost(r.Context(), path)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	var form blog.PostForm
	if !h.decode(w, r, &form) {
		return
	}

	post, err := h.poster.CreatePost(r.Context(), form)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// Update answers 200 with the report even when some items failed; the
// caller reads the per-item outcomes.
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req blog.UpdateRequest
	if !h.decode(w, r, &req) {
		return
	}

	report, err := h.poster.UpdatePost(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if !h.decode(w, r, &req) {
		return
	}

	report, err := h.poster.DeletePosts(r.Context(), req.Paths, req.Message)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *PostHandler) Reports(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, errors.ValidationError("invalid limit", v))
			return
		}
		limit = n
	}

	reports, err := h.poster.Reports(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (h *PostHandler) decode(w http.ResponseWriter, r *http.Request, v validation.Validator) bool {
	if err := validation.DecodeRequest(w, r, v); err != nil {
		h.writeError(w, err)
		return false
	}
	return true
}

func (h *PostHandler) writeError(w http.ResponseWriter, err error) {
	var e *errors.Error
	if !errors.As(err, &e) {
		e = errors.Internal("internal error", err)
	}
	status := errors.HTTPStatus(e)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}

	// keep the wrapped context in the message
	out := *e
	out.Message = err.Error()
	writeJSON(w, status, &out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Package httpserve exposes a tile registry over HTTP, standing in for
// the custom content-retrieval scheme a rendering surface consumes: the
// first path segment is a tile's authority, the remainder the resource
// path. It also provides [Source], a ByteSource backed by HTTP range
// requests, so containers can be opened straight from a URL.
package httpserve

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/tiledocs/tile"
)

// DefaultContentType is applied when a resource entry declares no
// content-type header of its own.
const DefaultContentType = "application/octet-stream"

// Handler serves tile resources over HTTP.
//
// Resolution failures map to status codes the way a browser expects:
// unknown authorities and paths are 404, dangling references and read
// failures are 500. A failed resource never affects the rest of the
// rendered content.
type Handler struct {
	registry           *tile.Registry
	defaultContentType string
	logger             *slog.Logger
	mux                *http.ServeMux
}

// Option configures a Handler.
type Option func(*Handler)

// WithDefaultContentType overrides the fallback content type.
func WithDefaultContentType(contentType string) Option {
	return func(h *Handler) {
		h.defaultContentType = contentType
	}
}

// WithLogger sets the logger for request failures.
// By default logs are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates a Handler serving resources from registry.
func NewHandler(registry *tile.Registry, opts ...Option) *Handler {
	h := &Handler{
		registry:           registry,
		defaultContentType: DefaultContentType,
	}
	for _, opt := range opts {
		opt(h)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{authority}", h.serve)
	mux.HandleFunc("GET /{authority}/{path...}", h.serve)
	h.mux = mux
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) log() *slog.Logger {
	if h.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return h.logger
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
	authority := r.PathValue("authority")
	path := "/" + r.PathValue("path")

	result, err := h.registry.Resolve(r.Context(), authority, path)
	if err != nil {
		h.fail(w, authority, path, err)
		return
	}

	header := w.Header()
	hasType := false
	for _, hd := range result.Headers {
		header.Set(hd.Name, hd.Value)
		if strings.EqualFold(hd.Name, "content-type") {
			hasType = true
		}
	}
	if !hasType {
		header.Set("Content-Type", h.defaultContentType)
	}
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (h *Handler) fail(w http.ResponseWriter, authority, path string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// The requesting surface is gone; nothing to answer.
		return
	}
	status := http.StatusInternalServerError
	if errors.Is(err, tile.ErrTileNotFound) || errors.Is(err, tile.ErrNoSuchResource) {
		status = http.StatusNotFound
	}
	h.log().Warn("resolve failed", "authority", authority, "path", path, "status", status, "error", err)
	http.Error(w, err.Error(), status)
}

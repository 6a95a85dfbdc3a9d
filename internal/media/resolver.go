// Package media resolves opaque media references to raw bytes plus a MIME
// type. A reference may be an absolute URL, a storage path, or a bare
// filename under the storage data directory; the pipeline treats all three
// the same way.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/maauso/cgistudio-api/internal/storage"
)

// Static errors for media resolution.
var (
	// ErrEmptyRef is returned when the reference is empty.
	ErrEmptyRef = errors.New("media: empty reference")
	// ErrFetchFailed is returned when a remote reference cannot be fetched.
	ErrFetchFailed = errors.New("media: fetch failed")
)

// Media is a resolved reference: raw bytes plus a MIME type.
type Media struct {
	Data     []byte
	MIMEType string
}

// Resolver resolves an opaque media reference to its content.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (Media, error)
}

// HTTPResolver resolves remote URLs over HTTP and everything else through a
// storage backend.
type HTTPResolver struct {
	httpClient *http.Client
	store      storage.Storage
	maxBytes   int64
}

// ResolverOption configures an HTTPResolver.
type ResolverOption func(*HTTPResolver)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ResolverOption {
	return func(r *HTTPResolver) {
		r.httpClient = c
	}
}

// WithMaxBytes bounds the size of a resolved reference.
func WithMaxBytes(n int64) ResolverOption {
	return func(r *HTTPResolver) {
		r.maxBytes = n
	}
}

// NewHTTPResolver creates a resolver backed by the given storage.
func NewHTTPResolver(store storage.Storage, opts ...ResolverOption) *HTTPResolver {
	r := &HTTPResolver{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		store:      store,
		maxBytes:   64 << 20, // 64 MiB
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Compile-time check that HTTPResolver implements Resolver.
var _ Resolver = (*HTTPResolver)(nil)

// Resolve fetches the reference content and determines its MIME type from
// the transport metadata, the file extension, or content sniffing, in that
// order.
func (r *HTTPResolver) Resolve(ctx context.Context, ref string) (Media, error) {
	if strings.TrimSpace(ref) == "" {
		return Media{}, ErrEmptyRef
	}

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return r.resolveURL(ctx, ref)
	}
	return r.resolveStored(ctx, ref)
}

// resolveURL fetches a remote reference.
func (r *HTTPResolver) resolveURL(ctx context.Context, url string) (Media, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Media{}, fmt.Errorf("media: create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Media{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Media{}, fmt.Errorf("%w: status %d for %s", ErrFetchFailed, resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes))
	if err != nil {
		return Media{}, fmt.Errorf("media: read body: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = detectMIME(url, data)
	}

	return Media{Data: data, MIMEType: mimeType}, nil
}

// resolveStored reads a reference from the storage backend.
func (r *HTTPResolver) resolveStored(ctx context.Context, ref string) (Media, error) {
	rc, err := r.store.Open(ctx, ref)
	if err != nil {
		return Media{}, fmt.Errorf("media: open stored reference: %w", err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, r.maxBytes))
	if err != nil {
		return Media{}, fmt.Errorf("media: read stored reference: %w", err)
	}

	return Media{Data: data, MIMEType: detectMIME(ref, data)}, nil
}

// detectMIME determines a MIME type from the file extension, falling back
// to content sniffing.
func detectMIME(name string, data []byte) string {
	if ext := filepath.Ext(strings.Split(name, "?")[0]); ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			if i := strings.Index(t, ";"); i >= 0 {
				t = strings.TrimSpace(t[:i])
			}
			return t
		}
	}
	return http.DetectContentType(data)
}

package raster

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ObjectStore is a read-only key/value source of array bytes. Keys
// use forward slashes. A missing key is reported by wrapping
// fs.ErrNotExist so callers can distinguish absence from failure.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// DirStore serves objects from a local directory tree.
type DirStore struct {
	Root string
}

// NewDirStore returns a store rooted at dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{Root: dir}
}

func (s *DirStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(key)))
	if err != nil {
		// os.ReadFile already wraps fs.ErrNotExist for missing files
		return nil, err
	}
	return data, nil
}

// HTTPStore serves objects from a remote HTTP(S) prefix. A 404 is
// reported as fs.ErrNotExist, matching the local store.
type HTTPStore struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPStore returns a store for the given base URL. client may be
// nil, in which case http.DefaultClient is used.
func NewHTTPStore(baseURL string, client *http.Client) *HTTPStore {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPStore{BaseURL: strings.TrimRight(baseURL, "/"), Client: client}
}

func (s *HTTPStore) Get(ctx context.Context, key string) ([]byte, error) {
	url := s.BaseURL + "/" + key
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read %s failed: %w", url, err)
		}
		return data, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", key, fs.ErrNotExist)
	default:
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
}

// ByteCache is the caching contract CachedStore needs. Satisfied by
// the cache package's chunk cache.
type ByteCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

// CachedStore wraps an ObjectStore with a byte cache. Only positive
// responses are cached; misses and errors always go to the inner
// store.
type CachedStore struct {
	inner ObjectStore
	cache ByteCache
}

// NewCachedStore wraps inner with c. c may be nil, in which case the
// inner store is returned unchanged.
func NewCachedStore(inner ObjectStore, c ByteCache) ObjectStore {
	if c == nil {
		return inner
	}
	return &CachedStore{inner: inner, cache: c}
}

func (s *CachedStore) Get(ctx context.Context, key string) ([]byte, error) {
	if data, ok := s.cache.Get(key); ok {
		return data, nil
	}
	data, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, data)
	return data, nil
}

package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "actcal/internal/log"
)

// maxBodyBytes bounds a single activity feed download.
const maxBodyBytes = 16 << 20

// FetchResult contains the outcome of fetching the activity feed.
type FetchResult struct {
	URL       string
	Body      []byte
	FromCache bool // true if the cached body was reused (304 or fallback)
}

// cacheEntry holds HTTP cache metadata for a single feed URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads activity feeds with conditional requests (ETag /
// Last-Modified) backed by a small on-disk cache.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher caching under cacheDir. An empty cacheDir
// disables the disk cache.
func NewFetcher(cacheDir string) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cacheDir: cacheDir,
	}
}

// Fetch downloads rawURL. On a network error or non-OK status a previously
// cached body is returned instead, if there is one.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (FetchResult, error) {
	if rawURL == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}

	cachePath := f.cachePathForURL(rawURL)
	var meta cacheEntry
	var cachedBody []byte
	if cachePath != "" {
		if err := os.MkdirAll(cachePath, 0o700); err != nil {
			return FetchResult{}, err
		}
		meta, _ = loadCacheMeta(cachePath)
		cachedBody, _ = os.ReadFile(filepath.Join(cachePath, "body.json"))
	}
	fromCache := func(reason string, err error) (FetchResult, error) {
		appLog.Error("source fetch failed, using cached body", err, "url", redactURL(rawURL), "reason", reason)
		return FetchResult{URL: rawURL, Body: cachedBody, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("Accept", "application/json")
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Info("source fetch start", "url", redactURL(rawURL))

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 && ctx.Err() == nil {
			return fromCache("network", err)
		}
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return FetchResult{}, err
		}
		if cachePath != "" {
			newMeta := cacheEntry{
				URL:          rawURL,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			}
			if err := saveCache(cachePath, newMeta, body); err != nil {
				appLog.Error("source cache save failed", err, "url", redactURL(rawURL))
			}
		}
		appLog.Info("source fetch success", "url", redactURL(rawURL), "status", resp.StatusCode, "bytes", len(body))
		return FetchResult{URL: rawURL, Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Info("source not modified; using cache", "url", redactURL(rawURL))
		return FetchResult{URL: rawURL, Body: cachedBody, FromCache: true}, nil

	default:
		statusErr := fmt.Errorf("unexpected status: %s", resp.Status)
		if len(cachedBody) > 0 {
			return fromCache("status", statusErr)
		}
		return FetchResult{}, statusErr
	}
}

func (f *Fetcher) cachePathForURL(rawURL string) string {
	if f.cacheDir == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.json"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps scheme and host only; feed URLs often carry tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "source://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}

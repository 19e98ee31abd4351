package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	appLog "eventstoday/internal/log"
)

// maxBodyBytes caps a single upstream payload.
const maxBodyBytes = 8 << 20

// ErrBodyTooLarge is returned when an upstream body exceeds the size cap.
var ErrBodyTooLarge = errors.New("fetch: body too large")

// Result contains the outcome of fetching a single URL.
type Result struct {
	URL       string
	Body      []byte
	FromCache bool // true if the cached body was reused (304, or upstream failure with StaleOnError)
}

// cacheEntry holds HTTP cache metadata for a single URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher performs conditional GETs (ETag / Last-Modified) backed by an
// on-disk body cache.
type Fetcher struct {
	// StaleOnError serves the last good body when the upstream is unreachable
	// or returns a non-OK status. Only set it for resources whose old body is
	// still correct later on, such as a whole calendar feed.
	StaleOnError bool

	client   *http.Client
	cacheDir string
	maxBody  int64
}

// New creates a Fetcher. An empty cacheDir disables the disk cache.
func New(cacheDir string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		cacheDir: cacheDir,
		maxBody:  maxBodyBytes,
	}
}

// Get fetches url with the given extra request headers.
func (f *Fetcher) Get(ctx context.Context, url string, header http.Header) (Result, error) {
	if url == "" {
		return Result{}, errors.New("fetch: url is empty")
	}

	var (
		cachePath  string
		meta       cacheEntry
		cachedBody []byte
	)
	if f.cacheDir != "" {
		cachePath = f.cachePathForURL(url)
		if err := os.MkdirAll(cachePath, 0o700); err != nil {
			appLog.Error("fetch cache dir unavailable", err, "url", RedactURL(url))
			cachePath = ""
		} else {
			meta, _ = loadCacheMeta(cachePath)
			cachedBody, _ = loadCacheBody(cachePath)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	// Conditional headers only make sense when we still hold the body.
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Debug("fetch start", "url", RedactURL(url))

	resp, err := f.client.Do(req)
	if err != nil {
		// A cancelled caller must not be masked by stale data.
		if f.StaleOnError && ctx.Err() == nil && len(cachedBody) > 0 {
			appLog.Error("fetch network error, using cached body", err, "url", RedactURL(url))
			return Result{URL: url, Body: cachedBody, FromCache: true}, nil
		}
		return Result{}, fmt.Errorf("fetch %s: %w", RedactURL(url), err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
		if readErr != nil {
			return Result{}, fmt.Errorf("fetch %s: read body: %w", RedactURL(url), readErr)
		}
		if int64(len(body)) > f.maxBody {
			return Result{}, fmt.Errorf("fetch %s: %w (limit %d bytes)", RedactURL(url), ErrBodyTooLarge, f.maxBody)
		}

		if cachePath != "" {
			newMeta := cacheEntry{
				URL:          url,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			}
			if err := saveCache(cachePath, newMeta, body); err != nil {
				// Log but still return the freshly fetched body.
				appLog.Error("fetch cache save failed", err, "url", RedactURL(url))
			}
		}

		appLog.Info("fetch success", "url", RedactURL(url), "status", resp.StatusCode, "bytes", len(body))
		return Result{URL: url, Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return Result{}, fmt.Errorf("fetch %s: 304 Not Modified but no cached body available", RedactURL(url))
		}
		appLog.Debug("fetch not modified; using cache", "url", RedactURL(url))
		return Result{URL: url, Body: cachedBody, FromCache: true}, nil

	default:
		if f.StaleOnError && len(cachedBody) > 0 {
			appLog.Error("fetch non-OK, using cached body", errors.New(resp.Status), "url", RedactURL(url), "status", resp.StatusCode)
			return Result{URL: url, Body: cachedBody, FromCache: true}, nil
		}
		return Result{}, fmt.Errorf("fetch %s: unexpected status %s", RedactURL(url), resp.Status)
	}
}

func (f *Fetcher) cachePathForURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	// First 16 hex chars are plenty for a handful of upstream URLs.
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

func loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body"))
}

func saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// RedactURL hides everything after the host so tokens in paths or query
// strings never reach the logs.
//
//	https://example.com/path/private.ics?token=abcd -> https://example.com/...(redacted)
func RedactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "url://...(redacted)"
	}

	j := i
	for j < len(u) && u[j] != '/' && u[j] != '?' {
		j++
	}
	return u[:j] + redactedSuffix
}

package imagecache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devraulu/rjmeta/pkg/dlsite"
)

// Cache is a content-addressed store of downloaded images keyed by the
// md5 of the source URL. It is process-wide shared state; concurrent
// downloads of the same key overwrite each other with identical bytes,
// so no locking is needed.
type Cache struct {
	dir       string
	http      *http.Client
	userAgent string
}

func New(dir string, client *http.Client, userAgent string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Cache{dir: dir, http: client, userAgent: userAgent}, nil
}

func (c *Cache) Dir() string {
	return c.dir
}

// Path returns the cache file path for a source URL without touching
// the network or the disk.
func (c *Cache) Path(imageURL string) string {
	sum := md5.Sum([]byte(imageURL))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".jpg")
}

// Get returns the local path for imageURL, downloading on the first
// call. referer is the listing's work link; its host is rewritten to
// the "www." shape the image CDN demands before the request goes out.
// A hit returns without any network I/O and is never revalidated.
func (c *Cache) Get(ctx context.Context, imageURL, referer string) (string, error) {
	path := c.Path(imageURL)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Add("User-Agent", c.userAgent)
	if referer != "" {
		req.Header.Add("Referer", dlsite.NormalizeReferer(referer))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s for %s", resp.Status, imageURL)
	}

	// Stream to a temp file first so a failed download never leaves a
	// truncated entry behind.
	tmp, err := os.CreateTemp(c.dir, "download-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

// Prune removes cached images older than maxAge, along with download
// temp files a crashed process left behind. Zero keeps everything,
// which matches the historical behavior of this cache.
func (c *Cache) Prune(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !prunable(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(c.dir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// prunable matches cache entries and the temp files Get streams
// downloads through before renaming. A temp file past the cutoff can
// only be an orphan; live downloads are always fresh.
func prunable(name string) bool {
	return filepath.Ext(name) == ".jpg" || strings.HasPrefix(name, "download-")
}

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Cache maps (url, version) keys to local artifact directories under a
// single root. Safe for concurrent use.
type Cache struct {
	root string

	mu      sync.Mutex
	fetched map[string]struct{}
}

// New creates a cache rooted at the given directory. The root itself is
// created lazily on first use.
func New(root string) *Cache {
	return &Cache{
		root:    root,
		fetched: make(map[string]struct{}),
	}
}

// Root returns the cache root directory.
func (c *Cache) Root() string { return c.root }

// RepoPath returns the destination directory for the given (url, version)
// pair, creating it (parents included) if needed. The mapping is
// deterministic: equal inputs always yield the same path. Creation is
// idempotent, so concurrent calls for the same key are safe.
func (c *Cache) RepoPath(url, version string) (string, error) {
	dir := filepath.Join(c.root, repoKey(url, version))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return dir, nil
}

// MarkFetched records that a fetch for the key completed successfully.
// Entries are never removed within a process run.
func (c *Cache) MarkFetched(url, version string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetched[repoKey(url, version)] = struct{}{}
}

// Fetched reports whether a completed fetch for the key exists in this
// process.
func (c *Cache) Fetched(url, version string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.fetched[repoKey(url, version)]
	return ok
}

// repoKey derives a stable, filesystem-safe directory name from the url
// and version. A readable prefix keeps cache directories inspectable; the
// hash suffix guarantees uniqueness.
func repoKey(url, version string) string {
	sum := sha256.Sum256([]byte(url + "@" + version))
	base := sanitize(filepath.Base(strings.TrimSuffix(url, "/")))
	if base == "" {
		base = "repo"
	}
	return base + "-" + hex.EncodeToString(sum[:8])
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-.")
}

package cache

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepoPathIsDeterministic(t *testing.T) {
	c := New(t.TempDir())

	first, err := c.RepoPath("https://example.com/app.git", "v1.0.0")
	require.NoError(t, err)
	second, err := c.RepoPath("https://example.com/app.git", "v1.0.0")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.DirExists(t, first)
}

func TestDistinctKeysGetDistinctPaths(t *testing.T) {
	c := New(t.TempDir())

	byURL, err := c.RepoPath("https://example.com/app.git", "v1.0.0")
	require.NoError(t, err)
	byVersion, err := c.RepoPath("https://example.com/app.git", "v2.0.0")
	require.NoError(t, err)
	other, err := c.RepoPath("https://example.com/other.git", "v1.0.0")
	require.NoError(t, err)

	assert.NotEqual(t, byURL, byVersion)
	assert.NotEqual(t, byURL, other)
	assert.NotEqual(t, byVersion, other)
}

func TestRepoPathStaysUnderRoot(t *testing.T) {
	root := t.TempDir()
	c := New(root)

	dir, err := c.RepoPath("oci://ghcr.io/org/../escape", "latest")
	require.NoError(t, err)
	rel, err := filepath.Rel(root, dir)
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(rel, ".."), "cache paths never escape the root")
	assert.Equal(t, rel, filepath.Base(dir), "a key maps to a single directory level")
}

func TestReadablePrefixSurvivesSanitizing(t *testing.T) {
	c := New(t.TempDir())

	dir, err := c.RepoPath("https://example.com/team/my-app.git", "main")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(dir), "my-app.git-"),
		"directory names keep a recognizable prefix")
}

func TestFetchedRoundTrip(t *testing.T) {
	c := New(t.TempDir())

	assert.False(t, c.Fetched("https://example.com/app.git", "v1.0.0"))

	c.MarkFetched("https://example.com/app.git", "v1.0.0")
	assert.True(t, c.Fetched("https://example.com/app.git", "v1.0.0"))
	assert.False(t, c.Fetched("https://example.com/app.git", "v2.0.0"),
		"fetch records are per (url, version)")
}

func TestConcurrentRepoPath(t *testing.T) {
	c := New(t.TempDir())

	var wg sync.WaitGroup
	paths := make([]string, 16)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dir, err := c.RepoPath("https://example.com/app.git", "main")
			assert.NoError(t, err)
			paths[i] = dir
		}(i)
	}
	wg.Wait()

	for _, p := range paths[1:] {
		assert.Equal(t, paths[0], p)
	}
}

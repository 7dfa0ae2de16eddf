// Package cache assigns stable local directories to fetched source
// artifacts.
//
// The cache is content-addressed by (url, version): the same pair always
// maps to the same directory under the cache root, derived from a stable
// hash, so concurrent reconcilers never race over directory naming. It
// also keeps an in-process index of keys that have completed a successful
// fetch, which lets controllers skip re-fetching pinned revisions. The
// index is append-only and lives only for the process lifetime; the cache
// stores layout, not content, so overwriting a directory with a fresh
// fetch is always safe.
package cache

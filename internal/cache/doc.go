// Package cache implements the on-disk tree of a managed repository. Each
// repository owns one Store rooted at its Location; artifacts live at
// <Location>/<relPath> with optional <file>.sha1 and <file>.md5 side files.
// Writes go through a staging directory under <Location>/.staging/<uuid>/ on
// the same filesystem, so committing a download is a set of renames performed
// under a per-entry lock. Freshness decides whether a cached entry may be
// served without consulting any origin.
package cache

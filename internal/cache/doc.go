// Package cache owns the scratch directory that documents are materialized
// into before they are handed to an external viewer. Every entry is a single
// file named after the request's fileName (or the basename of its URL) and
// placed directly under <TempDir>/<ScratchDirName>. The existence of that file
// is the whole cache index: there is no metadata, TTL, size bound or eviction,
// and concurrent writers to one path are not coalesced (last writer wins).
// The store is built on afero so tests can swap in an in-memory filesystem.
package cache

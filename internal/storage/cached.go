package storage

import (
	"context"
	"sync"

	"tally/internal/cache"
)

// CachedKV serves reads from a cache and writes through to the inner store.
// When the inner store is a Versioner, commits made by other processes
// invalidate the whole cache before the next read.
type CachedKV struct {
	inner KV
	cache cache.Cache[[]byte]

	mu      sync.Mutex
	version int64
	seen    bool
}

var (
	_ Store       = (*CachedKV)(nil)
	_ BatchWriter = (*batchCachedKV)(nil)
)

func NewCachedKV(inner KV, c cache.Cache[[]byte]) *CachedKV {
	return &CachedKV{inner: inner, cache: c}
}

// batchCachedKV is a CachedKV over a store with atomic batch writes.
type batchCachedKV struct {
	*CachedKV
}

// Cached wraps inner with a read cache. The result is a BatchWriter only when
// inner is one, so Ledger.Commit stays as atomic as the store behind it.
func Cached(inner KV, c cache.Cache[[]byte]) Store {
	s := NewCachedKV(inner, c)
	if _, ok := inner.(BatchWriter); ok {
		return &batchCachedKV{s}
	}
	return s
}

func (s *CachedKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !s.fresh(ctx) {
		return s.inner.Get(ctx, key)
	}
	if v, ok := s.cache.Get(key); ok {
		return append([]byte(nil), v...), true, nil
	}
	v, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return v, ok, err
	}
	s.cache.Set(key, append([]byte(nil), v...))
	return v, true, nil
}

// fresh drops the cache when the inner store changed underneath it. It
// returns false when the version cannot be read; the caller then bypasses
// the cache.
func (s *CachedKV) fresh(ctx context.Context) bool {
	vr, ok := s.inner.(Versioner)
	if !ok {
		return true
	}
	v, err := vr.DataVersion(ctx)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen && v != s.version {
		s.cache.Clear()
	}
	s.version, s.seen = v, true
	return true
}

// Set invalidates the key before writing so a failed write never leaves a
// stale cached value behind.
func (s *CachedKV) Set(ctx context.Context, key string, value []byte) error {
	s.cache.Delete(key)
	if err := s.inner.Set(ctx, key, value); err != nil {
		return err
	}
	s.cache.Set(key, append([]byte(nil), value...))
	return nil
}

func (s *CachedKV) Remove(ctx context.Context, key string) error {
	s.cache.Delete(key)
	return s.inner.Remove(ctx, key)
}

// SetMany writes through the inner store's batch write.
func (s *batchCachedKV) SetMany(ctx context.Context, blobs map[string][]byte) error {
	for k := range blobs {
		s.cache.Delete(k)
	}
	if err := s.inner.(BatchWriter).SetMany(ctx, blobs); err != nil {
		return err
	}
	for k, v := range blobs {
		s.cache.Set(k, append([]byte(nil), v...))
	}
	return nil
}

// Close releases the cache and closes the inner store when it supports
// closing.
func (s *CachedKV) Close() error {
	s.cache.Clear()
	if c, ok := s.cache.(interface{ Close() }); ok {
		c.Close()
	}
	if c, ok := s.inner.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

const maxCounters = 1 << 20

// Ristretto is a cost-bounded TinyLFU cache with optional TTL.
type Ristretto[T any] struct {
	c    *ristretto.Cache[string, T]
	ttl  time.Duration
	cost func(T) int64
}

var _ Cache[[]byte] = (*Ristretto[[]byte])(nil)

// NewRistretto creates a cache bounded by maxCost. cost weighs each entry;
// nil counts every entry as 1. A zero ttl keeps entries until evicted.
func NewRistretto[T any](maxCost int64, ttl time.Duration, cost func(T) int64) (*Ristretto[T], error) {
	if maxCost <= 0 {
		return nil, fmt.Errorf("invalid cache max cost %d", maxCost)
	}
	// ristretto recommends 10x the expected item count; byte-weighted
	// caches hold far fewer items than their cost
	counters := maxCost * 10
	if counters > maxCounters {
		counters = maxCounters
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, T]{
		NumCounters:        counters,
		MaxCost:            maxCost,
		BufferItems:        64,   // number of keys per Get buffer
		IgnoreInternalCost: true, // costs come from the cost func alone
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}
	if cost == nil {
		cost = func(T) int64 { return 1 }
	}
	return &Ristretto[T]{c: c, ttl: ttl, cost: cost}, nil
}

// BytesCost weighs byte slices by their length.
func BytesCost(b []byte) int64 {
	if len(b) == 0 {
		return 1
	}
	return int64(len(b))
}

func (r *Ristretto[T]) Get(key string) (T, bool) {
	return r.c.Get(key)
}

// Set stores data and waits until the write is visible to Get. It reports
// false when ristretto dropped the write or its admission policy refused the
// entry. Entries are always admitted while the total cost stays below
// maxCost.
func (r *Ristretto[T]) Set(key string, data T) bool {
	if !r.c.SetWithTTL(key, data, r.cost(data), r.ttl) {
		return false
	}
	r.c.Wait()
	_, ok := r.c.Get(key)
	return ok
}

func (r *Ristretto[T]) Delete(key string) {
	r.c.Del(key)
}

func (r *Ristretto[T]) Clear() {
	r.c.Clear()
}

func (r *Ristretto[T]) Close() {
	r.c.Close()
}

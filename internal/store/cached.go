package store

import (
	"bytes"
	"context"
	"log/slog"
	"time"
)

// Cache is a byte-value cache with expiry, such as Redis.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

// tombstone marks a document written within the last tombstoneTTL. Stored
// documents are JSON, so they never equal it.
var tombstone = []byte{0}

const tombstoneTTL = 5 * time.Second

// CachedStore is a read-through cache in front of another Store. Only Get
// is served from the cache. Cache failures are logged and never fail the
// call.
//
// Put, Update and Delete replace the document's entry with a short-lived
// tombstone, and a miss refills with SetNX, so a read that raced a write
// cannot cache the old bytes over it. A read slower than tombstoneTTL can
// still cache a stale document for up to the entry TTL.
type CachedStore struct {
	next        Store
	cache       Cache
	ttl         time.Duration
	collections map[string]bool
}

// NewCachedStore caches Get calls for the given collections (all when none
// are listed).
func NewCachedStore(next Store, cache Cache, ttl time.Duration, collections ...string) *CachedStore {
	cs := &CachedStore{
		next:  next,
		cache: cache,
		ttl:   ttl,
	}
	if len(collections) > 0 {
		cs.collections = make(map[string]bool, len(collections))
		for _, c := range collections {
			cs.collections[c] = true
		}
	}
	return cs
}

func cacheKey(collection, key string) string {
	return "doc:" + collection + ":" + key
}

func (s *CachedStore) cached(collection string) bool {
	return s.collections == nil || s.collections[collection]
}

func (s *CachedStore) Get(ctx context.Context, collection, key string) ([]byte, error) {
	if !s.cached(collection) {
		return s.next.Get(ctx, collection, key)
	}

	ck := cacheKey(collection, key)
	doc, ok, err := s.cache.Get(ctx, ck)
	if err != nil {
		slog.Warn("document cache read failed", "key", ck, "error", err)
	}
	if ok && !bytes.Equal(doc, tombstone) {
		return doc, nil
	}

	doc, err = s.next.Get(ctx, collection, key)
	if err != nil {
		return nil, err
	}
	if _, err := s.cache.SetNX(ctx, ck, doc, s.ttl); err != nil {
		slog.Warn("document cache write failed", "key", ck, "error", err)
	}
	return doc, nil
}

func (s *CachedStore) Scan(ctx context.Context, collection string, conds ...Cond) ([][]byte, error) {
	return s.next.Scan(ctx, collection, conds...)
}

// Insert only creates new documents, and misses are never cached, so the
// entry is dropped rather than fenced.
func (s *CachedStore) Insert(ctx context.Context, collection, key string, doc []byte) error {
	if err := s.next.Insert(ctx, collection, key, doc); err != nil {
		return err
	}
	if !s.cached(collection) {
		return nil
	}
	ck := cacheKey(collection, key)
	if err := s.cache.Del(ctx, ck); err != nil {
		slog.Warn("document cache invalidation failed", "key", ck, "error", err)
	}
	return nil
}

func (s *CachedStore) Put(ctx context.Context, collection, key string, doc []byte) error {
	if err := s.next.Put(ctx, collection, key, doc); err != nil {
		return err
	}
	s.invalidate(ctx, collection, key)
	return nil
}

func (s *CachedStore) Update(ctx context.Context, collection, key string, fn func([]byte) ([]byte, error)) ([]byte, error) {
	doc, err := s.next.Update(ctx, collection, key, fn)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, collection, key)
	return doc, nil
}

func (s *CachedStore) Delete(ctx context.Context, collection, key string) error {
	if err := s.next.Delete(ctx, collection, key); err != nil {
		return err
	}
	s.invalidate(ctx, collection, key)
	return nil
}

func (s *CachedStore) invalidate(ctx context.Context, collection, key string) {
	if !s.cached(collection) {
		return
	}
	ck := cacheKey(collection, key)
	if err := s.cache.Set(ctx, ck, tombstone, min(tombstoneTTL, s.ttl)); err != nil {
		slog.Warn("document cache invalidation failed", "key", ck, "error", err)
	}
}

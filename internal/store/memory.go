package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
)

// MemoryStore is an in-memory implementation of Store. Scans return
// documents in insertion order.
type MemoryStore struct {
	collections map[string]*memCollection
	mu          sync.RWMutex
}

type memCollection struct {
	docs  map[string][]byte
	order []string
}

// NewMemoryStore creates a new in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memCollection),
	}
}

func (s *MemoryStore) Get(_ context.Context, collection, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, notFound(collection, key)
	}
	doc, ok := c.docs[key]
	if !ok {
		return nil, notFound(collection, key)
	}
	return slices.Clone(doc), nil
}

func (s *MemoryStore) Scan(_ context.Context, collection string, conds ...Cond) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return [][]byte{}, nil
	}

	out := make([][]byte, 0, len(c.order))
	for _, key := range c.order {
		doc := c.docs[key]
		ok, err := matchAll(doc, conds)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		if ok {
			out = append(out, slices.Clone(doc))
		}
	}
	return out, nil
}

func (s *MemoryStore) Insert(_ context.Context, collection, key string, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collection(collection)
	if _, exists := c.docs[key]; exists {
		return conflict(collection, key)
	}
	c.set(key, doc)
	return nil
}

func (s *MemoryStore) Put(_ context.Context, collection, key string, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.collection(collection).set(key, doc)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, collection, key string, fn func([]byte) ([]byte, error)) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, notFound(collection, key)
	}
	doc, ok := c.docs[key]
	if !ok {
		return nil, notFound(collection, key)
	}

	updated, err := fn(slices.Clone(doc))
	if err != nil {
		return nil, err
	}
	c.set(key, updated)
	return slices.Clone(updated), nil
}

func (s *MemoryStore) Delete(_ context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return notFound(collection, key)
	}
	if _, ok := c.docs[key]; !ok {
		return notFound(collection, key)
	}
	delete(c.docs, key)
	c.order = slices.DeleteFunc(c.order, func(k string) bool { return k == key })
	return nil
}

func (s *MemoryStore) collection(name string) *memCollection {
	c, ok := s.collections[name]
	if !ok {
		c = &memCollection{docs: make(map[string][]byte)}
		s.collections[name] = c
	}
	return c
}

func (c *memCollection) set(key string, doc []byte) {
	if _, exists := c.docs[key]; !exists {
		c.order = append(c.order, key)
	}
	c.docs[key] = slices.Clone(doc)
}

func matchAll(doc []byte, conds []Cond) (bool, error) {
	if len(conds) == 0 {
		return true, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(doc, &fields); err != nil {
		return false, err
	}
	for _, cond := range conds {
		if !match(fields, cond) {
			return false, nil
		}
	}
	return true, nil
}

func match(fields map[string]any, cond Cond) bool {
	v, ok := fields[cond.Field]
	if !ok || v == nil {
		return false
	}
	if cond.Elem == "" {
		return scalarString(v) == cond.Value
	}
	elems, ok := v.([]any)
	if !ok {
		return false
	}
	for _, e := range elems {
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if ev, ok := obj[cond.Elem]; ok && ev != nil && scalarString(ev) == cond.Value {
			return true
		}
	}
	return false
}

// scalarString renders a decoded JSON scalar the way Postgres ->> does.
func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(x)
	}
}

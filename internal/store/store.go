// Package store defines the document storage port and its implementations.
//
// Documents are JSON values addressed by (collection, key). A Store offers
// atomic per-document read-modify-write through Update; there are no
// cross-document transactions.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
)

// Store persists JSON documents.
type Store interface {
	// Get returns the document, or an apperr.ErrNotFound error.
	Get(ctx context.Context, collection, key string) ([]byte, error)
	// Scan returns every document in the collection matching all conds.
	Scan(ctx context.Context, collection string, conds ...Cond) ([][]byte, error)
	// Insert stores a new document, or fails with apperr.ErrConflict if the key exists.
	Insert(ctx context.Context, collection, key string, doc []byte) error
	// Put stores the document, replacing any existing one.
	Put(ctx context.Context, collection, key string, doc []byte) error
	// Update atomically replaces the document with fn's result. If fn
	// returns an error nothing is written.
	Update(ctx context.Context, collection, key string, fn func(doc []byte) ([]byte, error)) ([]byte, error)
	// Delete removes the document, or fails with apperr.ErrNotFound.
	Delete(ctx context.Context, collection, key string) error
}

// Cond is a scan predicate on a top-level document field.
type Cond struct {
	Field string
	Value string
	// Elem, when set, makes Field an array of objects; the condition holds
	// if any element has Elem equal to Value.
	Elem string
}

// Eq matches documents whose top-level string field equals value.
func Eq(field, value string) Cond {
	return Cond{Field: field, Value: value}
}

// HasElem matches documents whose array field holds an object with key == value.
func HasElem(field, key, value string) Cond {
	return Cond{Field: field, Elem: key, Value: value}
}

func notFound(collection, key string) error {
	return apperr.New(apperr.ErrNotFound, "%s %s not found", singular(collection), key)
}

func conflict(collection, key string) error {
	return apperr.New(apperr.ErrConflict, "%s %s already exists", singular(collection), key)
}

func singular(collection string) string {
	if n := len(collection); n > 1 && collection[n-1] == 's' && collection[n-2] != 's' {
		return collection[:n-1]
	}
	return collection
}

// Collection is a typed view over one collection of a Store.
type Collection[T any] struct {
	store Store
	name  string
}

// NewCollection returns a typed view of the named collection.
func NewCollection[T any](s Store, name string) *Collection[T] {
	return &Collection[T]{store: s, name: name}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.name
}

func (c *Collection[T]) Get(ctx context.Context, key string) (*T, error) {
	raw, err := c.store.Get(ctx, c.name, key)
	if err != nil {
		return nil, err
	}
	return c.decode(raw)
}

func (c *Collection[T]) Scan(ctx context.Context, conds ...Cond) ([]T, error) {
	raws, err := c.store.Scan(ctx, c.name, conds...)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		v, err := c.decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

func (c *Collection[T]) Insert(ctx context.Context, key string, v *T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", singular(c.name), key, err)
	}
	return c.store.Insert(ctx, c.name, key, raw)
}

func (c *Collection[T]) Put(ctx context.Context, key string, v *T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", singular(c.name), key, err)
	}
	return c.store.Put(ctx, c.name, key, raw)
}

// Update decodes the stored value, applies fn to it and writes it back
// atomically. The updated value is returned.
func (c *Collection[T]) Update(ctx context.Context, key string, fn func(*T) error) (*T, error) {
	var updated *T
	_, err := c.store.Update(ctx, c.name, key, func(raw []byte) ([]byte, error) {
		v, err := c.decode(raw)
		if err != nil {
			return nil, err
		}
		if err := fn(v); err != nil {
			return nil, err
		}
		updated = v
		return json.Marshal(v)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (c *Collection[T]) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, c.name, key)
}

func (c *Collection[T]) decode(raw []byte) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, apperr.Storage("decode "+singular(c.name), err)
	}
	return v, nil
}

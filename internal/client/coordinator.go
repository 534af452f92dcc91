package client

import (
	"context"
	"log/slog"
	"sync"

	"github.com/p-n-ai/pai-learn/internal/progress"
)

// ProgressAPI is the remote side of progress updates. *Client implements it.
type ProgressAPI interface {
	GetProgress(ctx context.Context, userID, courseID string) (*progress.View, error)
	UpdateProgress(ctx context.Context, userID, courseID string, sections []progress.SectionProgress) (*progress.View, error)
}

// Coordinator applies progress updates to a ProgressCache before the server
// confirms them and reverts them when the write fails.
//
// Each key tracks only its latest mutation. A newer update supersedes an
// in-flight one: the older request's failure is ignored, and its success
// becomes the state the newer mutation reverts to. Only the latest
// mutation's failure reverts the cache, and it does so once. A success
// older than one already confirmed never replaces it.
type Coordinator struct {
	api   ProgressAPI
	cache *ProgressCache

	mu      sync.Mutex
	seq     uint64
	pending map[string]*mutation
}

type mutation struct {
	token     uint64 // latest issued mutation
	confirmed uint64 // newest mutation the server accepted
	inflight  int

	// base is the cache state to restore if the latest mutation fails.
	base    progress.Record
	hasBase bool

	settled bool // latest mutation resolved
	failed  bool // and it failed
}

func NewCoordinator(api ProgressAPI, cache *ProgressCache) *Coordinator {
	return &Coordinator{
		api:     api,
		cache:   cache,
		pending: make(map[string]*mutation),
	}
}

// Cache returns the cache the coordinator writes to.
func (c *Coordinator) Cache() *ProgressCache {
	return c.cache
}

// Update replaces the cached sections for (userID, courseID) immediately,
// then sends the write. On success the cache holds the server's merged
// record; on failure it is restored unless a newer update has replaced it.
func (c *Coordinator) Update(ctx context.Context, userID, courseID string, sections []progress.SectionProgress) (*progress.View, error) {
	token := c.begin(userID, courseID, sections)

	v, err := c.api.UpdateProgress(ctx, userID, courseID, sections)

	c.finish(userID, courseID, token, v, err)
	return v, err
}

func (c *Coordinator) begin(userID, courseID string, sections []progress.SectionProgress) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := progress.Key(userID, courseID)
	current, ok := c.cache.Get(userID, courseID)

	m := c.pending[key]
	if m == nil {
		m = &mutation{}
		c.pending[key] = m
	}
	if m.inflight == 0 || m.settled {
		m.base, m.hasBase = current, ok
	}
	c.seq++
	m.token = c.seq
	m.inflight++
	m.settled, m.failed = false, false

	next := current
	next.UserID, next.CourseID = userID, courseID
	next.Sections = cloneSections(sections)
	if next.Sections == nil {
		next.Sections = []progress.SectionProgress{}
	}
	c.cache.Set(next)
	return m.token
}

func (c *Coordinator) finish(userID, courseID string, token uint64, v *progress.View, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := progress.Key(userID, courseID)
	m := c.pending[key]
	m.inflight--
	defer func() {
		if m.inflight == 0 {
			delete(c.pending, key)
		}
	}()

	latest := token == m.token
	newer := token > m.confirmed
	if err == nil && newer {
		m.confirmed = token
	}
	switch {
	case err == nil && latest:
		c.cache.Set(v.Record)
		m.settled = true
	case err == nil && !newer:
		// a newer write is already confirmed
	case err == nil && !m.settled:
		// superseded; the newer mutation now reverts to this result
		m.base, m.hasBase = cloneRecord(v.Record), true
	case err == nil && m.failed:
		// the newer mutation already reverted past this write
		c.cache.Set(v.Record)
	case err == nil:
	case latest:
		if m.hasBase {
			c.cache.Set(m.base)
		} else {
			c.cache.Delete(userID, courseID)
		}
		m.settled, m.failed = true, true
		slog.Warn("reverted optimistic progress update",
			"user_id", userID,
			"course_id", courseID,
			"error", err,
		)
	default:
		slog.Debug("ignoring failure of superseded progress update",
			"user_id", userID,
			"course_id", courseID,
			"error", err,
		)
	}
}

// Refresh loads the server's record into the cache. A pending mutation for
// the key keeps its optimistic value.
func (c *Coordinator) Refresh(ctx context.Context, userID, courseID string) (*progress.View, error) {
	v, err := c.api.GetProgress(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if m := c.pending[progress.Key(userID, courseID)]; m != nil && !m.settled {
		m.base, m.hasBase = cloneRecord(v.Record), true
		return v, nil
	}
	c.cache.Set(v.Record)
	return v, nil
}

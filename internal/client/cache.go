package client

import (
	"sync"

	"github.com/p-n-ai/pai-learn/internal/progress"
)

// ProgressCache holds the caller's view of progress records keyed by
// (userID, courseID). Values are copied in and out, so readers never share
// slices with a pending mutation.
type ProgressCache struct {
	mu      sync.RWMutex
	records map[string]progress.Record
}

func NewProgressCache() *ProgressCache {
	return &ProgressCache{records: make(map[string]progress.Record)}
}

// Get returns a copy of the cached record.
func (c *ProgressCache) Get(userID, courseID string) (progress.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[progress.Key(userID, courseID)]
	if !ok {
		return progress.Record{}, false
	}
	return cloneRecord(r), true
}

// Set stores a copy of r under its own user and course.
func (c *ProgressCache) Set(r progress.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[progress.Key(r.UserID, r.CourseID)] = cloneRecord(r)
}

func (c *ProgressCache) Delete(userID, courseID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, progress.Key(userID, courseID))
}

func cloneRecord(r progress.Record) progress.Record {
	r.Sections = cloneSections(r.Sections)
	return r
}

func cloneSections(in []progress.SectionProgress) []progress.SectionProgress {
	if in == nil {
		return nil
	}
	out := make([]progress.SectionProgress, len(in))
	for i, s := range in {
		out[i] = progress.SectionProgress{
			SectionID: s.SectionID,
			Chapters:  append([]progress.ChapterProgress(nil), s.Chapters...),
		}
	}
	return out
}

// Package progress tracks per-user chapter completion for a course.
//
// A Record mirrors the course's section and chapter ids as of its last
// write. The overall percentage is derived on read from the live course
// tree; record entries the course no longer has are ignored.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/p-n-ai/pai-learn/internal/course"
	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
	"github.com/p-n-ai/pai-learn/internal/platform/auth"
	"github.com/p-n-ai/pai-learn/internal/store"
)

// Collection is the store collection holding progress records.
const Collection = "progress"

type Record struct {
	UserID    string            `json:"userId"`
	CourseID  string            `json:"courseId"`
	Sections  []SectionProgress `json:"sections"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

type SectionProgress struct {
	SectionID string            `json:"sectionId"`
	Chapters  []ChapterProgress `json:"chapters"`
}

type ChapterProgress struct {
	ChapterID string `json:"chapterId"`
	Completed bool   `json:"completed"`
}

// View is a record as returned to callers, with the derived percentage.
type View struct {
	Record
	OverallProgress int `json:"overallProgress"`
}

// Key returns the store key of the record for (userID, courseID).
func Key(userID, courseID string) string {
	return userID + "#" + courseID
}

// Tracker reads and merges progress records.
type Tracker struct {
	records *store.Collection[Record]
	courses *store.Collection[course.Course]
	now     func() time.Time
}

// NewTracker creates a tracker over st.
func NewTracker(st store.Store) *Tracker {
	return &Tracker{
		records: store.NewCollection[Record](st, Collection),
		courses: store.NewCollection[course.Course](st, course.Collection),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func requireSelf(caller auth.Caller, userID string) error {
	if caller.ID == "" {
		return apperr.New(apperr.ErrUnauthorized, "Unauthorized")
	}
	if caller.ID != userID {
		return apperr.New(apperr.ErrForbidden, "Permission denied. You can only access your own progress.")
	}
	return nil
}

// Get returns the caller's progress in a course. A user who has never
// recorded progress gets ErrNotFound, not 0%.
func (t *Tracker) Get(ctx context.Context, caller auth.Caller, userID, courseID string) (*View, error) {
	if err := requireSelf(caller, userID); err != nil {
		return nil, err
	}
	rec, err := t.records.Get(ctx, Key(userID, courseID))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.New(apperr.ErrNotFound, "Course progress not found for this user")
		}
		return nil, err
	}
	c, err := t.courses.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return &View{Record: *rec, OverallProgress: Overall(c, rec)}, nil
}

// Update merges sections into the caller's record, creating it on first
// write. The user must be enrolled in the course.
func (t *Tracker) Update(ctx context.Context, caller auth.Caller, userID, courseID string, sections []SectionProgress) (*View, error) {
	if err := requireSelf(caller, userID); err != nil {
		return nil, err
	}
	if err := validate(sections); err != nil {
		return nil, err
	}
	c, err := t.courses.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !c.Enrolled(userID) {
		return nil, apperr.New(apperr.ErrNotFound, "User %s is not enrolled in course %s", userID, courseID)
	}

	rec, err := t.upsert(ctx, userID, courseID, sections)
	if err != nil {
		return nil, err
	}
	slog.Debug("progress updated", "user_id", userID, "course_id", courseID)
	return &View{Record: *rec, OverallProgress: Overall(c, rec)}, nil
}

func (t *Tracker) upsert(ctx context.Context, userID, courseID string, sections []SectionProgress) (*Record, error) {
	key := Key(userID, courseID)
	// A concurrent first write can win the insert; one retry through
	// Update then merges on top of it.
	for attempt := 0; attempt < 2; attempt++ {
		rec, err := t.records.Update(ctx, key, func(r *Record) error {
			r.Sections = Merge(r.Sections, sections)
			r.UpdatedAt = t.now()
			return nil
		})
		if !errors.Is(err, apperr.ErrNotFound) {
			return rec, err
		}

		rec = &Record{
			UserID:    userID,
			CourseID:  courseID,
			Sections:  Merge(nil, sections),
			UpdatedAt: t.now(),
		}
		err = t.records.Insert(ctx, key, rec)
		if !errors.Is(err, apperr.ErrConflict) {
			if err != nil {
				return nil, err
			}
			return rec, nil
		}
	}
	return nil, apperr.Storage("update progress", fmt.Errorf("record %s kept changing", key))
}

func validate(sections []SectionProgress) error {
	for _, s := range sections {
		if s.SectionID == "" {
			return apperr.New(apperr.ErrValidation, "Every section requires a sectionId")
		}
		for _, ch := range s.Chapters {
			if ch.ChapterID == "" {
				return apperr.New(apperr.ErrValidation, "Every chapter requires a chapterId")
			}
		}
	}
	return nil
}

// ForCourse returns every stored record for a course.
func (t *Tracker) ForCourse(ctx context.Context, courseID string) ([]Record, error) {
	return t.records.Scan(ctx, store.Eq("courseId", courseID))
}

// Merge folds incoming into stored. Matched chapters take the incoming
// completed flag; unmatched sections and chapters are appended; stored
// entries absent from incoming are kept. The result is never nil.
func Merge(stored, incoming []SectionProgress) []SectionProgress {
	out := make([]SectionProgress, 0, len(stored)+len(incoming))
	for _, s := range stored {
		out = append(out, SectionProgress{
			SectionID: s.SectionID,
			Chapters:  append([]ChapterProgress{}, s.Chapters...),
		})
	}

	for _, in := range incoming {
		idx := -1
		for i := range out {
			if out[i].SectionID == in.SectionID {
				idx = i
				break
			}
		}
		if idx < 0 {
			out = append(out, SectionProgress{SectionID: in.SectionID, Chapters: []ChapterProgress{}})
			idx = len(out) - 1
		}
		out[idx].Chapters = mergeChapters(out[idx].Chapters, in.Chapters)
	}
	return out
}

func mergeChapters(stored, incoming []ChapterProgress) []ChapterProgress {
	for _, in := range incoming {
		matched := false
		for i := range stored {
			if stored[i].ChapterID == in.ChapterID {
				stored[i].Completed = in.Completed
				matched = true
				break
			}
		}
		if !matched {
			stored = append(stored, in)
		}
	}
	return stored
}

// Overall returns round(100 * completed / total) where total is the number
// of chapters in c. Completed entries for chapters c no longer has do not
// count. A course without chapters is 0%.
func Overall(c *course.Course, r *Record) int {
	total := c.ChapterCount()
	if total == 0 {
		return 0
	}

	live := make(map[string]bool, total)
	for _, s := range c.Sections {
		for _, ch := range s.Chapters {
			live[ch.ChapterID] = true
		}
	}

	done := make(map[string]bool)
	for _, s := range r.Sections {
		for _, ch := range s.Chapters {
			if ch.Completed && live[ch.ChapterID] {
				done[ch.ChapterID] = true
			}
		}
	}
	return int(math.Round(100 * float64(len(done)) / float64(total)))
}

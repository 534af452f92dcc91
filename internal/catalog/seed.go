package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/p-n-ai/pai-learn/internal/course"
	"github.com/p-n-ai/pai-learn/internal/grade"
	"github.com/p-n-ai/pai-learn/internal/ident"
	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
)

// GradeInserter stores a grade unless its id is taken.
type GradeInserter interface {
	Insert(ctx context.Context, g *grade.Grade) error
}

// CourseInserter stores a course unless its id is taken.
type CourseInserter interface {
	Insert(ctx context.Context, c *course.Course) error
}

// Result counts what a seed run inserted and skipped.
type Result struct {
	Grades   int
	Courses  int
	Existing int
	Invalid  int
}

// Seed inserts every loaded grade and course that the store lacks.
// Existing entries are left as they are.
func Seed(ctx context.Context, l *Loader, grades GradeInserter, courses CourseInserter) (Result, error) {
	var res Result
	now := time.Now().UTC()

	for _, g := range l.AllGrades() {
		gr, err := toGrade(g, now)
		if err != nil {
			slog.Warn("skipping catalog grade", "name", g.Name, "error", err)
			res.Invalid++
			continue
		}
		inserted, err := insert(ctx, func(ctx context.Context) error { return grades.Insert(ctx, gr) })
		if err != nil {
			return res, fmt.Errorf("seeding grade %s: %w", gr.GradeID, err)
		}
		if inserted {
			res.Grades++
		} else {
			res.Existing++
		}
	}

	for _, c := range l.AllCourses() {
		cr, err := toCourse(c, now)
		if err != nil {
			slog.Warn("skipping catalog course", "id", c.ID, "error", err)
			res.Invalid++
			continue
		}
		inserted, err := insert(ctx, func(ctx context.Context) error { return courses.Insert(ctx, cr) })
		if err != nil {
			return res, fmt.Errorf("seeding course %s: %w", cr.CourseID, err)
		}
		if inserted {
			res.Courses++
		} else {
			res.Existing++
		}
	}

	slog.Info("catalog seeded",
		"grades", res.Grades,
		"courses", res.Courses,
		"existing", res.Existing,
		"invalid", res.Invalid,
	)
	return res, nil
}

func insert(ctx context.Context, fn func(context.Context) error) (bool, error) {
	err := fn(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperr.ErrConflict):
		return false, nil
	default:
		return false, err
	}
}

func toGrade(g Grade, now time.Time) (*grade.Grade, error) {
	status := grade.Status(g.Status)
	if status == "" {
		status = grade.Active
	}
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status %q", g.Status)
	}
	return &grade.Grade{
		GradeID:     ident.GradeID(g.Order),
		Name:        g.Name,
		Order:       g.Order,
		Description: g.Description,
		Status:      status,
		CreatorID:   g.CreatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// toCourse converts a seed course. Missing section and chapter ids are
// derived from their position so that they are stable across runs.
func toCourse(c Course, now time.Time) (*course.Course, error) {
	level := course.Level(c.Level)
	if !level.Valid() {
		return nil, fmt.Errorf("invalid level %q", c.Level)
	}
	status := course.Status(c.Status)
	if status == "" {
		status = course.Draft
	}
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status %q", c.Status)
	}
	if c.Title == "" || c.Category == "" {
		return nil, errors.New("title and category are required")
	}

	sections := make([]course.Section, 0, len(c.Sections))
	for si, s := range c.Sections {
		sectionID := orPosition(s.ID, c.ID+"-s", si)
		chapters := make([]course.Chapter, 0, len(s.Chapters))
		for ci, ch := range s.Chapters {
			typ := course.ChapterType(ch.Type)
			if !typ.Valid() {
				return nil, fmt.Errorf("section %s chapter %d: invalid type %q", sectionID, ci+1, ch.Type)
			}
			chapters = append(chapters, course.Chapter{
				ChapterID: orPosition(ch.ID, sectionID+"-c", ci),
				Type:      typ,
				Title:     ch.Title,
				Content:   ch.Content,
				Video:     ch.Video,
				Comments:  []course.Comment{},
			})
		}
		sections = append(sections, course.Section{
			SectionID:          sectionID,
			SectionTitle:       s.Title,
			SectionDescription: s.Description,
			Chapters:           chapters,
		})
	}
	if err := course.CheckIDs(sections); err != nil {
		return nil, err
	}

	return &course.Course{
		CourseID:    c.ID,
		TeacherID:   c.TeacherID,
		TeacherName: c.TeacherName,
		Title:       c.Title,
		Description: c.Description,
		Category:    c.Category,
		GradeID:     c.GradeID,
		Image:       c.Image,
		Level:       level,
		Status:      status,
		Sections:    sections,
		Enrollments: []course.Enrollment{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func orPosition(id, prefix string, i int) string {
	if id != "" {
		return id
	}
	return prefix + strconv.Itoa(i+1)
}

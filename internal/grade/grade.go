// Package grade implements the grade taxonomy used to group courses.
package grade

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/p-n-ai/pai-learn/internal/course"
	"github.com/p-n-ai/pai-learn/internal/ident"
	"github.com/p-n-ai/pai-learn/internal/patch"
	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
	"github.com/p-n-ai/pai-learn/internal/platform/auth"
	"github.com/p-n-ai/pai-learn/internal/store"
)

// Collection is the store collection holding grades.
const Collection = "grades"

type Status string

const (
	Active   Status = "Active"
	Inactive Status = "Inactive"
)

// Valid reports whether s is Active or Inactive.
func (s Status) Valid() bool {
	return s == Active || s == Inactive
}

type Grade struct {
	GradeID     string    `json:"gradeId"`
	Name        string    `json:"name"`
	Order       int       `json:"order"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	CreatorID   string    `json:"creatorId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateInput holds the fields accepted when creating a grade. Order is a
// pointer so that a missing order is distinguishable from order 0.
type CreateInput struct {
	Name        string `json:"name"`
	Order       *int   `json:"order"`
	Description string `json:"description"`
	Status      Status `json:"status"`
}

// Patch is a partial grade update. The grade id never changes, even when
// the order does.
type Patch struct {
	Name        patch.Field[string] `json:"name,omitzero"`
	Order       patch.Field[int]    `json:"order,omitzero"`
	Description patch.Field[string] `json:"description,omitzero"`
	Status      patch.Field[Status] `json:"status,omitzero"`
}

// Courses lists courses by filter.
type Courses interface {
	List(ctx context.Context, f course.Filter) ([]course.Course, error)
}

// Service manages grades.
type Service struct {
	grades  *store.Collection[Grade]
	courses Courses
	now     func() time.Time
}

// NewService creates a grade service. courses is consulted when listing a
// grade's courses and before deleting a grade.
func NewService(st store.Store, courses Courses) *Service {
	return &Service{
		grades:  store.NewCollection[Grade](st, Collection),
		courses: courses,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new grade with id "grade-<order>". A second grade with
// the same order fails with ErrConflict and leaves the first untouched.
func (s *Service) Create(ctx context.Context, caller auth.Caller, in CreateInput) (*Grade, error) {
	if caller.ID == "" {
		return nil, apperr.New(apperr.ErrUnauthorized, "Unauthorized")
	}
	if in.Name == "" || in.Order == nil {
		return nil, apperr.New(apperr.ErrValidation, "Missing required fields: name, order")
	}
	if in.Status == "" {
		in.Status = Active
	}
	if !in.Status.Valid() {
		return nil, invalidStatus(in.Status)
	}

	now := s.now()
	g := &Grade{
		GradeID:     ident.GradeID(*in.Order),
		Name:        in.Name,
		Order:       *in.Order,
		Description: in.Description,
		Status:      in.Status,
		CreatorID:   caller.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.grades.Insert(ctx, g.GradeID, g); err != nil {
		return nil, err
	}
	slog.Info("grade created", "grade_id", g.GradeID)
	return g, nil
}

// Insert stores a fully formed grade, failing with ErrConflict if its id is
// taken. Used by catalog seeding.
func (s *Service) Insert(ctx context.Context, g *Grade) error {
	return s.grades.Insert(ctx, g.GradeID, g)
}

func invalidStatus(st Status) error {
	return apperr.New(apperr.ErrValidation, "Invalid status %q: must be Active or Inactive", st)
}

func (s *Service) Get(ctx context.Context, gradeID string) (*Grade, error) {
	return s.grades.Get(ctx, gradeID)
}

// List returns every grade ordered by order, then by name.
func (s *Service) List(ctx context.Context) ([]Grade, error) {
	grades, err := s.grades.Scan(ctx)
	if err != nil {
		return nil, err
	}
	// Collators are not safe for concurrent use.
	col := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(grades, func(i, j int) bool {
		if grades[i].Order != grades[j].Order {
			return grades[i].Order < grades[j].Order
		}
		return col.CompareString(grades[i].Name, grades[j].Name) < 0
	})
	return grades, nil
}

// Update applies p to a grade. Only its creator may update it.
func (s *Service) Update(ctx context.Context, caller auth.Caller, gradeID string, p Patch) (*Grade, error) {
	if caller.ID == "" {
		return nil, apperr.New(apperr.ErrUnauthorized, "Unauthorized")
	}
	return s.grades.Update(ctx, gradeID, func(g *Grade) error {
		if err := auth.RequireOwner(caller, g.CreatorID, "grade"); err != nil {
			return err
		}
		if name, ok := p.Name.Get(); ok && name == "" {
			return apperr.New(apperr.ErrValidation, "Field name cannot be empty")
		}
		if st, ok := p.Status.Get(); ok && !st.Valid() {
			return invalidStatus(st)
		}
		p.Name.Apply(&g.Name)
		p.Order.Apply(&g.Order)
		p.Description.Apply(&g.Description)
		p.Status.Apply(&g.Status)
		g.UpdatedAt = s.now()
		return nil
	})
}

// Delete removes a grade. It fails with ErrConflict, carrying the number of
// referencing courses, while any course uses the grade.
func (s *Service) Delete(ctx context.Context, caller auth.Caller, gradeID string) error {
	if caller.ID == "" {
		return apperr.New(apperr.ErrUnauthorized, "Unauthorized")
	}
	g, err := s.grades.Get(ctx, gradeID)
	if err != nil {
		return err
	}
	if err := auth.RequireOwner(caller, g.CreatorID, "grade"); err != nil {
		return err
	}

	courses, err := s.courses.List(ctx, course.Filter{GradeID: gradeID})
	if err != nil {
		return err
	}
	if len(courses) > 0 {
		return apperr.WithDetails(apperr.ErrConflict, map[string]int{"courseCount": len(courses)},
			"Cannot delete grade that has associated courses")
	}

	if err := s.grades.Delete(ctx, gradeID); err != nil {
		return err
	}
	slog.Info("grade deleted", "grade_id", gradeID)
	return nil
}

// WithCourses is a grade together with the courses filed under it.
type WithCourses struct {
	Grade   Grade           `json:"grade"`
	Courses []course.Course `json:"courses"`
}

// Courses returns the grade and its courses.
func (s *Service) Courses(ctx context.Context, gradeID string) (*WithCourses, error) {
	g, err := s.grades.Get(ctx, gradeID)
	if err != nil {
		return nil, err
	}
	courses, err := s.courses.List(ctx, course.Filter{GradeID: gradeID})
	if err != nil {
		return nil, err
	}
	return &WithCourses{Grade: *g, Courses: courses}, nil
}

package course

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/p-n-ai/pai-learn/internal/ident"
	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
	"github.com/p-n-ai/pai-learn/internal/platform/auth"
	"github.com/p-n-ai/pai-learn/internal/store"
)

// Service manages courses and their content trees.
type Service struct {
	courses *store.Collection[Course]
	ids     ident.Generator
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithIDs sets the identifier generator.
func WithIDs(g ident.Generator) Option {
	return func(s *Service) { s.ids = g }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a course service backed by st.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		courses: store.NewCollection[Course](st, Collection),
		ids:     ident.UUID{},
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the typed course collection. Enrollment and progress
// operate on the same documents.
func (s *Service) Store() *store.Collection[Course] {
	return s.courses
}

// Create stores a new Draft course owned by the caller.
func (s *Service) Create(ctx context.Context, caller auth.Caller, in CreateInput) (*Course, error) {
	if caller.ID == "" {
		return nil, apperr.New(apperr.ErrUnauthorized, "Unauthorized")
	}
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	now := s.now()
	b := treeBuilder{ids: s.ids, now: now, author: caller.ID}
	sections, err := b.mergeSections(nil, in.Sections)
	if err != nil {
		return nil, err
	}
	if err := CheckIDs(sections); err != nil {
		return nil, err
	}

	c := &Course{
		CourseID:    s.ids.NewID(),
		TeacherID:   caller.ID,
		TeacherName: in.TeacherName,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		GradeID:     in.GradeID,
		Image:       in.Image,
		Level:       in.Level,
		Status:      Draft,
		Sections:    sections,
		Enrollments: []Enrollment{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.courses.Insert(ctx, c.CourseID, c); err != nil {
		return nil, fmt.Errorf("creating course: %w", err)
	}

	slog.Info("course created", "course_id", c.CourseID, "teacher_id", c.TeacherID)
	return c, nil
}

// Insert stores a fully formed course, failing with ErrConflict if its id
// is taken. Used by catalog seeding.
func (s *Service) Insert(ctx context.Context, c *Course) error {
	if c.Sections == nil {
		c.Sections = []Section{}
	}
	if c.Enrollments == nil {
		c.Enrollments = []Enrollment{}
	}
	return s.courses.Insert(ctx, c.CourseID, c)
}

func validateCreate(in CreateInput) error {
	var missing []string
	if in.Title == "" {
		missing = append(missing, "title")
	}
	if in.Category == "" {
		missing = append(missing, "category")
	}
	if in.Level == "" {
		missing = append(missing, "level")
	}
	if len(missing) > 0 {
		return apperr.WithDetails(apperr.ErrValidation, map[string][]string{"missing": missing},
			"Missing required fields: title, category, level")
	}
	if !in.Level.Valid() {
		return invalidLevel(in.Level)
	}
	return nil
}

func invalidLevel(l Level) error {
	return apperr.New(apperr.ErrValidation, "Invalid level %q: must be Beginner, Intermediate or Advanced", l)
}

// Get returns a course by id.
func (s *Service) Get(ctx context.Context, courseID string) (*Course, error) {
	return s.courses.Get(ctx, courseID)
}

// List returns courses matching every filter field supplied.
func (s *Service) List(ctx context.Context, f Filter) ([]Course, error) {
	var conds []store.Cond
	if f.Category != "" && !strings.EqualFold(f.Category, "all") {
		conds = append(conds, store.Eq("category", f.Category))
	}
	if f.GradeID != "" {
		conds = append(conds, store.Eq("gradeId", f.GradeID))
	}
	return s.courses.Scan(ctx, conds...)
}

// ListByTeacher returns the courses created by teacherID.
func (s *Service) ListByTeacher(ctx context.Context, teacherID string) ([]Course, error) {
	return s.courses.Scan(ctx, store.Eq("teacherId", teacherID))
}

// Update applies p to the course. Only its creator may update it.
func (s *Service) Update(ctx context.Context, caller auth.Caller, courseID string, p Patch) (*Course, error) {
	return s.mutate(ctx, caller, courseID, func(c *Course, b treeBuilder) error {
		return applyPatch(c, p, b)
	})
}

func applyPatch(c *Course, p Patch, b treeBuilder) error {
	if v, ok := p.Title.Get(); ok && v == "" {
		return apperr.New(apperr.ErrValidation, "Field title cannot be empty")
	}
	if v, ok := p.Category.Get(); ok && v == "" {
		return apperr.New(apperr.ErrValidation, "Field category cannot be empty")
	}
	if l, ok := p.Level.Get(); ok && !l.Valid() {
		return invalidLevel(l)
	}
	if next, ok := p.Status.Get(); ok && !next.Valid() {
		return apperr.New(apperr.ErrValidation, "Invalid status %q: must be Draft or Published", next)
	}

	p.Title.Apply(&c.Title)
	p.Description.Apply(&c.Description)
	p.Category.Apply(&c.Category)
	p.GradeID.Apply(&c.GradeID)
	p.Image.Apply(&c.Image)
	p.Level.Apply(&c.Level)
	p.Status.Apply(&c.Status)
	p.TeacherName.Apply(&c.TeacherName)

	if in, ok := p.Sections.Get(); ok {
		sections, err := b.mergeSections(c.Sections, in)
		if err != nil {
			return err
		}
		c.Sections = sections
	}
	return nil
}

// Delete removes a course. Only its creator may delete it.
func (s *Service) Delete(ctx context.Context, caller auth.Caller, courseID string) error {
	if caller.ID == "" {
		return apperr.New(apperr.ErrUnauthorized, "Unauthorized")
	}
	c, err := s.courses.Get(ctx, courseID)
	if err != nil {
		return err
	}
	if err := auth.RequireOwner(caller, c.TeacherID, "course"); err != nil {
		return err
	}
	if err := s.courses.Delete(ctx, courseID); err != nil {
		return err
	}
	slog.Info("course deleted", "course_id", courseID)
	return nil
}

// AddSection appends a section to the course.
func (s *Service) AddSection(ctx context.Context, caller auth.Caller, courseID string, in SectionInput) (*Section, error) {
	var added Section
	_, err := s.mutate(ctx, caller, courseID, func(c *Course, b treeBuilder) error {
		if in.SectionID != "" {
			if _, ok := c.Section(in.SectionID); ok {
				return apperr.New(apperr.ErrConflict, "Section %s already exists", in.SectionID)
			}
		}
		merged, err := b.mergeSections(c.Sections, []SectionInput{in})
		if err != nil {
			return err
		}
		added = merged[0]
		c.Sections = append(c.Sections, added)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &added, nil
}

// UpdateSection applies p to one section of the course.
func (s *Service) UpdateSection(ctx context.Context, caller auth.Caller, courseID, sectionID string, p SectionPatch) (*Section, error) {
	var updated Section
	_, err := s.mutate(ctx, caller, courseID, func(c *Course, b treeBuilder) error {
		sec, ok := c.Section(sectionID)
		if !ok {
			return apperr.New(apperr.ErrNotFound, "Section %s not found", sectionID)
		}
		p.SectionTitle.Apply(&sec.SectionTitle)
		p.SectionDescription.Apply(&sec.SectionDescription)
		if in, ok := p.Chapters.Get(); ok {
			chapters, err := b.mergeChapters(storedChapters(c.Sections), in)
			if err != nil {
				return err
			}
			sec.Chapters = chapters
		}
		updated = *sec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// AddChapter appends a chapter to a section.
func (s *Service) AddChapter(ctx context.Context, caller auth.Caller, courseID, sectionID string, in ChapterInput) (*Chapter, error) {
	var added Chapter
	_, err := s.mutate(ctx, caller, courseID, func(c *Course, b treeBuilder) error {
		sec, ok := c.Section(sectionID)
		if !ok {
			return apperr.New(apperr.ErrNotFound, "Section %s not found", sectionID)
		}
		if in.ChapterID != "" {
			if _, ok := c.Chapter(in.ChapterID); ok {
				return apperr.New(apperr.ErrConflict, "Chapter %s already exists", in.ChapterID)
			}
		}
		ch, err := b.newChapter(in)
		if err != nil {
			return err
		}
		sec.Chapters = append(sec.Chapters, ch)
		added = ch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &added, nil
}

// AddComment appends a comment by the caller to a chapter. Any
// authenticated user may comment.
func (s *Service) AddComment(ctx context.Context, caller auth.Caller, courseID, sectionID, chapterID, text string) (*Comment, error) {
	if caller.ID == "" {
		return nil, apperr.New(apperr.ErrUnauthorized, "Unauthorized")
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperr.New(apperr.ErrValidation, "Comment text is required")
	}

	var added Comment
	_, err := s.courses.Update(ctx, courseID, func(c *Course) error {
		sec, ok := c.Section(sectionID)
		if !ok {
			return apperr.New(apperr.ErrNotFound, "Section %s not found", sectionID)
		}
		ch, ok := sec.Chapter(chapterID)
		if !ok {
			return apperr.New(apperr.ErrNotFound, "Chapter %s not found", chapterID)
		}
		b := treeBuilder{ids: s.ids, now: s.now(), author: caller.ID}
		added = b.comment(Comment{Text: text})
		ch.Comments = append(ch.Comments, added)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &added, nil
}

// mutate runs fn on the stored course under the store's atomic update after
// checking that the caller created it. The resulting tree must keep its ids
// unique.
func (s *Service) mutate(ctx context.Context, caller auth.Caller, courseID string, fn func(*Course, treeBuilder) error) (*Course, error) {
	if caller.ID == "" {
		return nil, apperr.New(apperr.ErrUnauthorized, "Unauthorized")
	}
	now := s.now()
	c, err := s.courses.Update(ctx, courseID, func(c *Course) error {
		if err := auth.RequireOwner(caller, c.TeacherID, "course"); err != nil {
			return err
		}
		if err := fn(c, treeBuilder{ids: s.ids, now: now, author: caller.ID}); err != nil {
			return err
		}
		if err := CheckIDs(c.Sections); err != nil {
			return err
		}
		c.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("course updated", "course_id", courseID)
	return c, nil
}

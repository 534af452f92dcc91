// Package course implements the course content tree: courses own sections,
// sections own chapters and chapters own comments.
package course

import (
	"time"

	"github.com/p-n-ai/pai-learn/internal/patch"
)

// Collection is the store collection holding courses.
const Collection = "courses"

// Level is the difficulty of a course.
type Level string

const (
	Beginner     Level = "Beginner"
	Intermediate Level = "Intermediate"
	Advanced     Level = "Advanced"
)

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	switch l {
	case Beginner, Intermediate, Advanced:
		return true
	}
	return false
}

// Status is the publication state of a course.
type Status string

const (
	Draft     Status = "Draft"
	Published Status = "Published"
)

// Valid reports whether s is Draft or Published. A course may move freely
// between the two.
func (s Status) Valid() bool {
	return s == Draft || s == Published
}

// ChapterType is the kind of content a chapter holds.
type ChapterType string

const (
	Text  ChapterType = "Text"
	Quiz  ChapterType = "Quiz"
	Video ChapterType = "Video"
)

// Valid reports whether t is Text, Quiz or Video.
func (t ChapterType) Valid() bool {
	switch t {
	case Text, Quiz, Video:
		return true
	}
	return false
}

// Course is the root of a content tree.
type Course struct {
	CourseID    string       `json:"courseId"`
	TeacherID   string       `json:"teacherId"`
	TeacherName string       `json:"teacherName,omitempty"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	GradeID     string       `json:"gradeId,omitempty"`
	Image       string       `json:"image,omitempty"`
	Level       Level        `json:"level"`
	Status      Status       `json:"status"`
	Sections    []Section    `json:"sections"`
	Enrollments []Enrollment `json:"enrollments"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Enrollment records that a user joined the course.
type Enrollment struct {
	UserID string `json:"userId"`
}

// Enrolled reports whether userID appears in the course's enrollments.
func (c *Course) Enrolled(userID string) bool {
	for _, e := range c.Enrollments {
		if e.UserID == userID {
			return true
		}
	}
	return false
}

// Section returns the section with the given id.
func (c *Course) Section(id string) (*Section, bool) {
	for i := range c.Sections {
		if c.Sections[i].SectionID == id {
			return &c.Sections[i], true
		}
	}
	return nil, false
}

// Chapter returns the chapter with the given id from any section.
func (c *Course) Chapter(id string) (*Chapter, bool) {
	for i := range c.Sections {
		if ch, ok := c.Sections[i].Chapter(id); ok {
			return ch, true
		}
	}
	return nil, false
}

// ChapterCount returns the number of chapters across all sections.
func (c *Course) ChapterCount() int {
	n := 0
	for _, s := range c.Sections {
		n += len(s.Chapters)
	}
	return n
}

type Section struct {
	SectionID          string    `json:"sectionId"`
	SectionTitle       string    `json:"sectionTitle"`
	SectionDescription string    `json:"sectionDescription,omitempty"`
	Chapters           []Chapter `json:"chapters"`
}

// Chapter returns the chapter with the given id.
func (s *Section) Chapter(id string) (*Chapter, bool) {
	for i := range s.Chapters {
		if s.Chapters[i].ChapterID == id {
			return &s.Chapters[i], true
		}
	}
	return nil, false
}

type Chapter struct {
	ChapterID string      `json:"chapterId"`
	Type      ChapterType `json:"type"`
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	Video     string      `json:"video,omitempty"`
	Comments  []Comment   `json:"comments"`
}

type Comment struct {
	CommentID string    `json:"commentId"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// CreateInput holds the fields accepted when creating a course.
type CreateInput struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	GradeID     string         `json:"gradeId"`
	Image       string         `json:"image"`
	Level       Level          `json:"level"`
	TeacherName string         `json:"teacherName"`
	Sections    []SectionInput `json:"sections"`
}

// SectionInput is a section as submitted by an editor. Empty ids are
// generated; present ids are kept.
type SectionInput struct {
	SectionID          string         `json:"sectionId,omitempty"`
	SectionTitle       string         `json:"sectionTitle"`
	SectionDescription string         `json:"sectionDescription,omitempty"`
	Chapters           []ChapterInput `json:"chapters"`
}

// ChapterInput is a chapter as submitted by an editor. Comments are only
// ever appended to what is stored.
type ChapterInput struct {
	ChapterID string      `json:"chapterId,omitempty"`
	Type      ChapterType `json:"type,omitempty"`
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	Video     string      `json:"video,omitempty"`
	Comments  []Comment   `json:"comments,omitempty"`
}

// Patch is a partial course update. Sections, when set, replaces the
// whole section list while keeping child identity.
type Patch struct {
	Title       patch.Field[string]         `json:"title,omitzero"`
	Description patch.Field[string]         `json:"description,omitzero"`
	Category    patch.Field[string]         `json:"category,omitzero"`
	GradeID     patch.Field[string]         `json:"gradeId,omitzero"`
	Image       patch.Field[string]         `json:"image,omitzero"`
	Level       patch.Field[Level]          `json:"level,omitzero"`
	Status      patch.Field[Status]         `json:"status,omitzero"`
	TeacherName patch.Field[string]         `json:"teacherName,omitzero"`
	Sections    patch.Field[[]SectionInput] `json:"sections,omitzero"`
}

// SectionPatch is a partial section update.
type SectionPatch struct {
	SectionTitle       patch.Field[string]         `json:"sectionTitle,omitzero"`
	SectionDescription patch.Field[string]         `json:"sectionDescription,omitzero"`
	Chapters           patch.Field[[]ChapterInput] `json:"chapters,omitzero"`
}

// Filter narrows a course listing. Empty fields, and a Category of "all",
// do not filter.
type Filter struct {
	Category string
	GradeID  string
}

package course

import (
	"time"

	"github.com/p-n-ai/pai-learn/internal/ident"
	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
)

// treeBuilder turns editor input into stored tree nodes.
type treeBuilder struct {
	ids    ident.Generator
	now    time.Time
	author string
}

// mergeSections replaces the section list with in. Sections and chapters
// that carry an id keep it. A chapter that matches a stored chapter keeps
// its stored comments, and any submitted comments it does not already
// have are appended.
func (b treeBuilder) mergeSections(existing []Section, in []SectionInput) ([]Section, error) {
	stored := storedChapters(existing)

	out := make([]Section, 0, len(in))
	for _, si := range in {
		chapters, err := b.mergeChapters(stored, si.Chapters)
		if err != nil {
			return nil, err
		}
		out = append(out, Section{
			SectionID:          ident.OrDefault(b.ids, si.SectionID),
			SectionTitle:       si.SectionTitle,
			SectionDescription: si.SectionDescription,
			Chapters:           chapters,
		})
	}
	return out, nil
}

// CheckIDs fails with ErrValidation when two sections, or two chapters
// anywhere in the tree, share an id.
func CheckIDs(sections []Section) error {
	seenSections := make(map[string]bool, len(sections))
	seenChapters := make(map[string]bool)
	for _, s := range sections {
		if seenSections[s.SectionID] {
			return apperr.New(apperr.ErrValidation, "Duplicate sectionId %s", s.SectionID)
		}
		seenSections[s.SectionID] = true
		for _, ch := range s.Chapters {
			if seenChapters[ch.ChapterID] {
				return apperr.New(apperr.ErrValidation, "Duplicate chapterId %s", ch.ChapterID)
			}
			seenChapters[ch.ChapterID] = true
		}
	}
	return nil
}

func storedChapters(sections []Section) map[string]Chapter {
	stored := make(map[string]Chapter)
	for _, s := range sections {
		for _, ch := range s.Chapters {
			stored[ch.ChapterID] = ch
		}
	}
	return stored
}

func (b treeBuilder) mergeChapters(stored map[string]Chapter, in []ChapterInput) ([]Chapter, error) {
	out := make([]Chapter, 0, len(in))
	for _, ci := range in {
		if prev, ok := stored[ci.ChapterID]; ok && ci.ChapterID != "" {
			ch, err := b.updateChapter(prev, ci)
			if err != nil {
				return nil, err
			}
			out = append(out, ch)
			continue
		}
		ch, err := b.newChapter(ci)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, nil
}

func (b treeBuilder) newChapter(ci ChapterInput) (Chapter, error) {
	if !ci.Type.Valid() {
		return Chapter{}, apperr.New(apperr.ErrValidation, "Invalid chapter type %q: must be Text, Quiz or Video", ci.Type)
	}
	return Chapter{
		ChapterID: ident.OrDefault(b.ids, ci.ChapterID),
		Type:      ci.Type,
		Title:     ci.Title,
		Content:   ci.Content,
		Video:     ci.Video,
		Comments:  b.appendComments(nil, ci.Comments),
	}, nil
}

func (b treeBuilder) updateChapter(prev Chapter, ci ChapterInput) (Chapter, error) {
	if ci.Type != "" && ci.Type != prev.Type {
		return Chapter{}, apperr.New(apperr.ErrValidation, "Chapter %s type cannot change from %s to %s", prev.ChapterID, prev.Type, ci.Type)
	}
	return Chapter{
		ChapterID: prev.ChapterID,
		Type:      prev.Type,
		Title:     ci.Title,
		Content:   ci.Content,
		Video:     ci.Video,
		Comments:  b.appendComments(prev.Comments, ci.Comments),
	}, nil
}

// appendComments returns existing followed by the submitted comments whose
// id is not already present. The result is never nil.
func (b treeBuilder) appendComments(existing, submitted []Comment) []Comment {
	out := make([]Comment, 0, len(existing)+len(submitted))
	out = append(out, existing...)

	seen := make(map[string]bool, len(existing))
	for _, c := range existing {
		seen[c.CommentID] = true
	}
	for _, c := range submitted {
		if c.CommentID != "" && seen[c.CommentID] {
			continue
		}
		c = b.comment(c)
		seen[c.CommentID] = true
		out = append(out, c)
	}
	return out
}

func (b treeBuilder) comment(c Comment) Comment {
	c.CommentID = ident.OrDefault(b.ids, c.CommentID)
	if c.UserID == "" {
		c.UserID = b.author
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = b.now
	}
	return c
}

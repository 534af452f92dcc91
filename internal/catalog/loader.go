// Package catalog loads seed grades and courses from YAML files and inserts
// the ones the store does not have yet.
package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Loader loads and caches catalog content from the filesystem.
type Loader struct {
	rootDir string
	grades  map[int]Grade
	courses map[string]Course
	mu      sync.RWMutex
}

// NewLoader creates a new catalog loader and loads all content.
func NewLoader(rootDir string) (*Loader, error) {
	if _, err := os.Stat(rootDir); err != nil {
		return nil, fmt.Errorf("catalog root: %w", err)
	}

	l := &Loader{
		rootDir: rootDir,
		grades:  make(map[int]Grade),
		courses: make(map[string]Course),
	}

	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	slog.Info("catalog loaded", "grades", len(l.grades), "courses", len(l.courses))
	return l, nil
}

// GetCourse returns a seeded course by ID.
func (l *Loader) GetCourse(id string) (Course, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.courses[id]
	return c, ok
}

// AllGrades returns all loaded grades ordered by order.
func (l *Loader) AllGrades() []Grade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	grades := make([]Grade, 0, len(l.grades))
	for _, g := range l.grades {
		grades = append(grades, g)
	}
	sort.Slice(grades, func(i, j int) bool { return grades[i].Order < grades[j].Order })
	return grades
}

// AllCourses returns all loaded courses ordered by ID.
func (l *Loader) AllCourses() []Course {
	l.mu.RLock()
	defer l.mu.RUnlock()
	courses := make([]Course, 0, len(l.courses))
	for _, c := range l.courses {
		courses = append(courses, c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses
}

func (l *Loader) loadAll() error {
	return filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
			return l.loadFile(path)
		}
		return nil
	})
}

func (l *Loader) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		slog.Warn("skipping invalid catalog YAML", "path", path, "error", err)
		return nil
	}

	dir := filepath.Dir(path)
	for i := range f.Courses {
		if err := resolveContent(dir, &f.Courses[i]); err != nil {
			return err
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, g := range f.Grades {
		if g.Name == "" {
			continue
		}
		l.grades[g.Order] = g
	}
	for _, c := range f.Courses {
		if c.ID == "" {
			slog.Warn("skipping catalog course without id", "path", path, "title", c.Title)
			continue
		}
		l.courses[c.ID] = c
	}
	return nil
}

func resolveContent(dir string, c *Course) error {
	for si := range c.Sections {
		for ci := range c.Sections[si].Chapters {
			ch := &c.Sections[si].Chapters[ci]
			if ch.ContentFile == "" {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, ch.ContentFile))
			if err != nil {
				return fmt.Errorf("course %s chapter %q: %w", c.ID, ch.Title, err)
			}
			ch.Content = string(data)
		}
	}
	return nil
}

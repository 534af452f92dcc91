package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/p-n-ai/pai-learn/internal/course"
)

func (c *Client) ListCourses(ctx context.Context, f course.Filter) ([]course.Course, error) {
	q := url.Values{}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.GradeID != "" {
		q.Set("gradeId", f.GradeID)
	}
	path := "/courses"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []course.Course
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MyCourses lists the courses created by the caller.
func (c *Client) MyCourses(ctx context.Context) ([]course.Course, error) {
	var out []course.Course
	if err := c.do(ctx, http.MethodGet, "/courses/teacher/my-courses", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetCourse(ctx context.Context, courseID string) (*course.Course, error) {
	var out course.Course
	if err := c.do(ctx, http.MethodGet, pathf("/courses/%s", courseID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateCourse(ctx context.Context, in course.CreateInput) (*course.Course, error) {
	var out course.Course
	if err := c.do(ctx, http.MethodPost, "/courses", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateCourse(ctx context.Context, courseID string, p course.Patch) (*course.Course, error) {
	var out course.Course
	if err := c.do(ctx, http.MethodPut, pathf("/courses/%s", courseID), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteCourse(ctx context.Context, courseID string) error {
	return c.do(ctx, http.MethodDelete, pathf("/courses/%s", courseID), nil, nil)
}

func (c *Client) AddSection(ctx context.Context, courseID string, in course.SectionInput) (*course.Section, error) {
	var out course.Section
	if err := c.do(ctx, http.MethodPost, pathf("/courses/%s/sections", courseID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateSection(ctx context.Context, courseID, sectionID string, p course.SectionPatch) (*course.Section, error) {
	var out course.Section
	if err := c.do(ctx, http.MethodPut, pathf("/courses/%s/sections/%s", courseID, sectionID), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddChapter(ctx context.Context, courseID, sectionID string, in course.ChapterInput) (*course.Chapter, error) {
	var out course.Chapter
	path := pathf("/courses/%s/sections/%s/chapters", courseID, sectionID)
	if err := c.do(ctx, http.MethodPost, path, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddComment(ctx context.Context, courseID, sectionID, chapterID, text string) (*course.Comment, error) {
	var out course.Comment
	path := pathf("/courses/%s/sections/%s/chapters/%s/comments", courseID, sectionID, chapterID)
	in := struct {
		Text string `json:"text"`
	}{text}
	if err := c.do(ctx, http.MethodPost, path, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProgressReport downloads the course's progress workbook.
func (c *Client) ProgressReport(ctx context.Context, courseID string) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodGet, pathf("/courses/%s/progress-report", courseID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			env.Message = string(body)
		}
		return nil, &APIError{Status: resp.StatusCode, Message: env.Message, Data: env.Data}
	}
	return body, nil
}

package client

import (
	"context"
	"net/http"

	"github.com/p-n-ai/pai-learn/internal/grade"
)

func (c *Client) ListGrades(ctx context.Context) ([]grade.Grade, error) {
	var out []grade.Grade
	if err := c.do(ctx, http.MethodGet, "/grades", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetGrade(ctx context.Context, gradeID string) (*grade.Grade, error) {
	var out grade.Grade
	if err := c.do(ctx, http.MethodGet, pathf("/grades/%s", gradeID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateGrade(ctx context.Context, in grade.CreateInput) (*grade.Grade, error) {
	var out grade.Grade
	if err := c.do(ctx, http.MethodPost, "/grades", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateGrade(ctx context.Context, gradeID string, p grade.Patch) (*grade.Grade, error) {
	var out grade.Grade
	if err := c.do(ctx, http.MethodPut, pathf("/grades/%s", gradeID), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteGrade fails with apperr.ErrValidation while courses reference the
// grade; the APIError's Data carries {"courseCount": n}.
func (c *Client) DeleteGrade(ctx context.Context, gradeID string) error {
	return c.do(ctx, http.MethodDelete, pathf("/grades/%s", gradeID), nil, nil)
}

func (c *Client) GradeCourses(ctx context.Context, gradeID string) (*grade.WithCourses, error) {
	var out grade.WithCourses
	if err := c.do(ctx, http.MethodGet, pathf("/grades/%s/courses", gradeID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

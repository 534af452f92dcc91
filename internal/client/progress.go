package client

import (
	"context"
	"net/http"

	"github.com/p-n-ai/pai-learn/internal/course"
	"github.com/p-n-ai/pai-learn/internal/progress"
)

func (c *Client) Enroll(ctx context.Context, userID, courseID string) (*course.Course, error) {
	in := struct {
		UserID   string `json:"userId"`
		CourseID string `json:"courseId"`
	}{userID, courseID}

	var out course.Course
	if err := c.do(ctx, http.MethodPost, "/users/course-progress/enroll", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) EnrolledCourses(ctx context.Context, userID string) ([]course.Course, error) {
	var out []course.Course
	if err := c.do(ctx, http.MethodGet, pathf("/users/course-progress/%s/enrolled-courses", userID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetProgress(ctx context.Context, userID, courseID string) (*progress.View, error) {
	var out progress.View
	if err := c.do(ctx, http.MethodGet, pathf("/users/course-progress/%s/courses/%s", userID, courseID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProgress(ctx context.Context, userID, courseID string, sections []progress.SectionProgress) (*progress.View, error) {
	in := struct {
		Sections []progress.SectionProgress `json:"sections"`
	}{sections}
	if in.Sections == nil {
		in.Sections = []progress.SectionProgress{}
	}

	var out progress.View
	if err := c.do(ctx, http.MethodPut, pathf("/users/course-progress/%s/courses/%s", userID, courseID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

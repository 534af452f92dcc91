package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/p-n-ai/pai-learn/internal/client"
	"github.com/p-n-ai/pai-learn/internal/course"
	"github.com/p-n-ai/pai-learn/internal/discussion"
	"github.com/p-n-ai/pai-learn/internal/enrollment"
	"github.com/p-n-ai/pai-learn/internal/grade"
	"github.com/p-n-ai/pai-learn/internal/httpapi"
	"github.com/p-n-ai/pai-learn/internal/patch"
	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
	"github.com/p-n-ai/pai-learn/internal/platform/auth"
	"github.com/p-n-ai/pai-learn/internal/progress"
	"github.com/p-n-ai/pai-learn/internal/store"
)

// newAPI starts the real HTTP surface over a memory store and returns a
// function that builds clients signed in as a given user.
func newAPI(t *testing.T) func(userID string) *client.Client {
	t.Helper()
	st := store.NewMemoryStore()
	courses := course.NewService(st)
	v := auth.NewVerifier("client-test", "")
	srv := httpapi.New(httpapi.Services{
		Courses:     courses,
		Grades:      grade.NewService(st, courses),
		Enrollment:  enrollment.NewLedger(st),
		Progress:    progress.NewTracker(st),
		Discussions: discussion.NewService(st, nil),
	}, v, nil)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return func(userID string) *client.Client {
		opts := []client.Option{client.WithBaseURL(ts.URL), client.WithHTTPClient(ts.Client())}
		if userID != "" {
			token, err := v.Sign(userID, time.Minute)
			if err != nil {
				t.Fatal(err)
			}
			opts = append(opts, client.WithToken(token))
		}
		return client.New(opts...)
	}
}

func TestClient_CourseAndProgressFlow(t *testing.T) {
	as := newAPI(t)
	ctx := context.Background()
	teacher, learner := as("teacher-1"), as("u1")

	c, err := teacher.CreateCourse(ctx, course.CreateInput{
		Title:    "Algebra I",
		Category: "Mathematics",
		Level:    course.Beginner,
		Sections: []course.SectionInput{{
			SectionID:    "s1",
			SectionTitle: "Intro",
			Chapters: []course.ChapterInput{
				{ChapterID: "ch1", Type: course.Text, Title: "Welcome"},
				{ChapterID: "ch2", Type: course.Quiz, Title: "Check"},
			},
		}},
	})
	if err != nil {
		t.Fatalf("CreateCourse() error = %v", err)
	}

	published, err := teacher.UpdateCourse(ctx, c.CourseID, course.Patch{Status: patch.Of(course.Published)})
	if err != nil {
		t.Fatalf("UpdateCourse() error = %v", err)
	}
	if published.Status != course.Published || len(published.Sections) != 1 {
		t.Errorf("published = %+v", published)
	}

	if _, err := learner.Enroll(ctx, "u1", c.CourseID); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
	enrolled, err := learner.EnrolledCourses(ctx, "u1")
	if err != nil || len(enrolled) != 1 {
		t.Fatalf("EnrolledCourses() = %d, %v", len(enrolled), err)
	}

	cache := client.NewProgressCache()
	co := client.NewCoordinator(learner, cache)
	v, err := co.Update(ctx, "u1", c.CourseID, []progress.SectionProgress{{
		SectionID: "s1",
		Chapters:  []progress.ChapterProgress{{ChapterID: "ch1", Completed: true}},
	}})
	if err != nil {
		t.Fatalf("Coordinator.Update() error = %v", err)
	}
	if v.OverallProgress != 50 {
		t.Errorf("OverallProgress = %d, want 50", v.OverallProgress)
	}
	if r, ok := cache.Get("u1", c.CourseID); !ok || r.UpdatedAt.IsZero() {
		t.Errorf("cache should hold the server record, got %+v", r)
	}

	// A learner who is not enrolled gets a NotFound and the cache reverts.
	stranger := client.NewCoordinator(as("u2"), cache)
	_, err = stranger.Update(ctx, "u2", c.CourseID, []progress.SectionProgress{{SectionID: "s1"}})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Update() for a non-enrolled user error = %v, want not found", err)
	}
	if _, ok := cache.Get("u2", c.CourseID); ok {
		t.Error("failed update should leave no cached record")
	}

	report, err := teacher.ProgressReport(ctx, c.CourseID)
	if err != nil || len(report) == 0 {
		t.Errorf("ProgressReport() = %d bytes, %v", len(report), err)
	}
	if _, err := learner.ProgressReport(ctx, c.CourseID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("ProgressReport() as learner error = %v, want forbidden", err)
	}
}

func TestClient_Errors(t *testing.T) {
	as := newAPI(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"anonymous create", func() error {
			_, err := as("").CreateCourse(ctx, course.CreateInput{Title: "x"})
			return err
		}, apperr.ErrUnauthorized},
		{"missing fields", func() error {
			_, err := as("teacher-1").CreateCourse(ctx, course.CreateInput{Title: "x"})
			return err
		}, apperr.ErrValidation},
		{"unknown course", func() error {
			_, err := as("").GetCourse(ctx, "missing")
			return err
		}, apperr.ErrNotFound},
		{"unknown grade", func() error {
			return as("admin-1").DeleteGrade(ctx, "grade-404")
		}, apperr.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			var apiErr *client.APIError
			if !errors.As(err, &apiErr) || apiErr.Message == "" {
				t.Errorf("error %v should be an APIError with a message", err)
			}
		})
	}
}

func TestClient_GradeDeleteConflictDetails(t *testing.T) {
	as := newAPI(t)
	ctx := context.Background()
	admin := as("admin-1")

	order := 3
	g, err := admin.CreateGrade(ctx, grade.CreateInput{Name: "Form 3", Order: &order})
	if err != nil {
		t.Fatalf("CreateGrade() error = %v", err)
	}
	if g.GradeID != "grade-3" {
		t.Errorf("GradeID = %q, want grade-3", g.GradeID)
	}
	if _, err := admin.CreateCourse(ctx, course.CreateInput{
		Title: "Physics", Category: "Science", Level: course.Intermediate, GradeID: g.GradeID,
	}); err != nil {
		t.Fatal(err)
	}

	err = admin.DeleteGrade(ctx, g.GradeID)
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("DeleteGrade() error = %v, want APIError", err)
	}
	var details struct {
		CourseCount int `json:"courseCount"`
	}
	if err := json.Unmarshal(apiErr.Data, &details); err != nil || details.CourseCount != 1 {
		t.Errorf("details = %s (%v), want courseCount 1", apiErr.Data, err)
	}

	gc, err := admin.GradeCourses(ctx, g.GradeID)
	if err != nil || len(gc.Courses) != 1 {
		t.Errorf("GradeCourses() = %+v, %v", gc, err)
	}
}

func TestClient_Discussions(t *testing.T) {
	as := newAPI(t)
	ctx := context.Background()
	author, other := as("user-1"), as("user-2")

	th, err := author.CreateThread(ctx, discussion.ThreadInput{CourseID: "c1", Title: "Limits", Content: "?"})
	if err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}
	p, err := other.CreatePost(ctx, th.ThreadID, discussion.PostInput{Content: "Try epsilon-delta"})
	if err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}
	if _, err := author.AddReply(ctx, th.ThreadID, p.PostID, discussion.PostInput{Content: "Thanks"}); err != nil {
		t.Fatalf("AddReply() error = %v", err)
	}
	if _, err := author.UpdatePost(ctx, th.ThreadID, p.PostID, discussion.PostPatch{IsAnswer: patch.Of(true)}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("UpdatePost() by non-author error = %v, want forbidden", err)
	}

	got, err := author.GetThread(ctx, th.ThreadID)
	if err != nil {
		t.Fatalf("GetThread() error = %v", err)
	}
	if got.Thread.ResponseCount != 1 || len(got.Posts) != 1 || len(got.Posts[0].Replies) != 1 {
		t.Errorf("thread = %+v", got)
	}

	if err := other.DeletePost(ctx, th.ThreadID, p.PostID); err != nil {
		t.Fatalf("DeletePost() error = %v", err)
	}
	threads, err := author.ListThreads(ctx, "c1")
	if err != nil || len(threads) != 1 || threads[0].ResponseCount != 0 {
		t.Errorf("ListThreads() = %+v, %v", threads, err)
	}
}

func TestClient_SendsBearerToken(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"Grades retrieved successfully","data":[]}`))
	}))
	defer ts.Close()

	grades, err := client.New(client.WithBaseURL(ts.URL+"/"), client.WithToken("tok")).ListGrades(context.Background())
	if err != nil {
		t.Fatalf("ListGrades() error = %v", err)
	}
	if len(grades) != 0 {
		t.Errorf("grades = %v, want empty", grades)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q, want Bearer tok", gotAuth)
	}
}

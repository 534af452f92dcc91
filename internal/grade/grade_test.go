package grade_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/p-n-ai/pai-learn/internal/course"
	"github.com/p-n-ai/pai-learn/internal/grade"
	"github.com/p-n-ai/pai-learn/internal/patch"
	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
	"github.com/p-n-ai/pai-learn/internal/platform/auth"
	"github.com/p-n-ai/pai-learn/internal/store"
)

var admin = auth.Caller{ID: "admin-1"}

func setup() (*grade.Service, *course.Service) {
	st := store.NewMemoryStore()
	courses := course.NewService(st)
	return grade.NewService(st, courses), courses
}

func order(n int) *int { return &n }

func TestCreate(t *testing.T) {
	svc, _ := setup()

	g, err := svc.Create(context.Background(), admin, grade.CreateInput{Name: "Form 1", Order: order(1)})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if g.GradeID != "grade-1" {
		t.Errorf("GradeID = %q, want grade-1", g.GradeID)
	}
	if g.Status != grade.Active {
		t.Errorf("Status = %q, want Active", g.Status)
	}
	if g.CreatorID != admin.ID {
		t.Errorf("CreatorID = %q, want %q", g.CreatorID, admin.ID)
	}
}

func TestCreate_OrderZero(t *testing.T) {
	svc, _ := setup()

	g, err := svc.Create(context.Background(), admin, grade.CreateInput{Name: "Preschool", Order: order(0)})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if g.GradeID != "grade-0" {
		t.Errorf("GradeID = %q, want grade-0", g.GradeID)
	}
}

func TestCreate_SameOrderConflicts(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup()

	if _, err := svc.Create(ctx, admin, grade.CreateInput{Name: "Year 10", Order: order(10)}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, err := svc.Create(ctx, admin, grade.CreateInput{Name: "Form 4", Order: order(10)})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("second Create() error = %v, want ErrConflict", err)
	}

	g, err := svc.Get(ctx, "grade-10")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if g.Name != "Year 10" {
		t.Errorf("Name = %q, first grade should be kept", g.Name)
	}
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name    string
		caller  auth.Caller
		in      grade.CreateInput
		wantErr error
	}{
		{"missing name", admin, grade.CreateInput{Order: order(1)}, apperr.ErrValidation},
		{"missing order", admin, grade.CreateInput{Name: "Form 1"}, apperr.ErrValidation},
		{"bad status", admin, grade.CreateInput{Name: "Form 1", Order: order(1), Status: "Retired"}, apperr.ErrValidation},
		{"anonymous", auth.Caller{}, grade.CreateInput{Name: "Form 1", Order: order(1)}, apperr.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := setup()
			if _, err := svc.Create(context.Background(), tt.caller, tt.in); !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestList_Ordering(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup()

	for _, g := range []grade.Grade{
		{GradeID: "g-c", Name: "form 3", Order: 3},
		{GradeID: "g-b", Name: "Form 2b", Order: 2},
		{GradeID: "g-a", Name: "Form 2a", Order: 2},
		{GradeID: "g-z", Name: "Form 1", Order: 1},
	} {
		if err := svc.Insert(ctx, &g); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	got, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"g-z", "g-a", "g-b", "g-c"}
	for i, g := range got {
		if g.GradeID != want[i] {
			t.Errorf("List()[%d] = %s, want %s", i, g.GradeID, want[i])
		}
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup()
	if _, err := svc.Create(ctx, admin, grade.CreateInput{Name: "Form 1", Order: order(1), Description: "First year"}); err != nil {
		t.Fatal(err)
	}

	var p grade.Patch
	if err := json.Unmarshal([]byte(`{"order":0,"description":""}`), &p); err != nil {
		t.Fatal(err)
	}
	g, err := svc.Update(ctx, admin, "grade-1", p)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if g.Order != 0 || g.Description != "" {
		t.Errorf("Update() = %+v, want order 0 and empty description", g)
	}
	if g.Name != "Form 1" || g.GradeID != "grade-1" {
		t.Errorf("Update() = %+v, name and id should be unchanged", g)
	}

	tests := []struct {
		name    string
		caller  auth.Caller
		id      string
		p       grade.Patch
		wantErr error
	}{
		{"unknown grade", admin, "grade-9", grade.Patch{Name: patch.Of("x")}, apperr.ErrNotFound},
		{"not creator", auth.Caller{ID: "teacher-1"}, "grade-1", grade.Patch{Name: patch.Of("x")}, apperr.ErrForbidden},
		{"anonymous", auth.Caller{}, "grade-1", grade.Patch{Name: patch.Of("x")}, apperr.ErrUnauthorized},
		{"empty name", admin, "grade-1", grade.Patch{Name: patch.Of("")}, apperr.ErrValidation},
		{"bad status", admin, "grade-1", grade.Patch{Status: patch.Of(grade.Status("Retired"))}, apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Update(ctx, tt.caller, tt.id, tt.p); !errors.Is(err, tt.wantErr) {
				t.Errorf("Update() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDelete_GuardedByCourses(t *testing.T) {
	ctx := context.Background()
	svc, courses := setup()
	if _, err := svc.Create(ctx, admin, grade.CreateInput{Name: "Form 1", Order: order(1)}); err != nil {
		t.Fatal(err)
	}
	teacher := auth.Caller{ID: "teacher-1"}
	c, err := courses.Create(ctx, teacher, course.CreateInput{
		Title: "Algebra I", Category: "Mathematics", Level: course.Beginner, GradeID: "grade-1",
	})
	if err != nil {
		t.Fatal(err)
	}

	err = svc.Delete(ctx, admin, "grade-1")
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("Delete() error = %v, want ErrConflict", err)
	}
	details, ok := apperr.Details(err).(map[string]int)
	if !ok || details["courseCount"] != 1 {
		t.Errorf("Details() = %#v, want courseCount 1", apperr.Details(err))
	}
	if _, err := svc.Get(ctx, "grade-1"); err != nil {
		t.Errorf("grade should still exist: %v", err)
	}
	stored, err := courses.Get(ctx, c.CourseID)
	if err != nil || stored.GradeID != "grade-1" {
		t.Errorf("course should be unchanged: %+v, %v", stored, err)
	}

	if err := courses.Delete(ctx, teacher, c.CourseID); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, admin, "grade-1"); err != nil {
		t.Fatalf("Delete() after removing course error = %v", err)
	}
	if err := svc.Delete(ctx, admin, "grade-1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Delete() twice error = %v, want ErrNotFound", err)
	}
}

func TestCourses(t *testing.T) {
	ctx := context.Background()
	svc, courses := setup()
	if _, err := svc.Create(ctx, admin, grade.CreateInput{Name: "Form 2", Order: order(2)}); err != nil {
		t.Fatal(err)
	}
	teacher := auth.Caller{ID: "teacher-1"}
	for _, gid := range []string{"grade-2", "grade-3", "grade-2"} {
		if _, err := courses.Create(ctx, teacher, course.CreateInput{Title: "T", Category: "C", Level: course.Beginner, GradeID: gid}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := svc.Courses(ctx, "grade-2")
	if err != nil {
		t.Fatalf("Courses() error = %v", err)
	}
	if got.Grade.GradeID != "grade-2" || len(got.Courses) != 2 {
		t.Errorf("Courses() = grade %s with %d courses, want grade-2 with 2", got.Grade.GradeID, len(got.Courses))
	}

	if _, err := svc.Courses(ctx, "grade-9"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Courses() unknown grade error = %v, want ErrNotFound", err)
	}
}

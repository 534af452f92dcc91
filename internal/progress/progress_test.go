package progress_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/p-n-ai/pai-learn/internal/course"
	"github.com/p-n-ai/pai-learn/internal/enrollment"
	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
	"github.com/p-n-ai/pai-learn/internal/platform/auth"
	"github.com/p-n-ai/pai-learn/internal/progress"
	"github.com/p-n-ai/pai-learn/internal/store"
)

var student = auth.Caller{ID: "u1"}

// setup creates a course with sections s1{ch1,ch2} and s2{ch3} and
// enrolls u1.
func setup(t *testing.T) (*progress.Tracker, *course.Service, string) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()
	courses := course.NewService(st)
	teacher := auth.Caller{ID: "teacher-1"}

	c, err := courses.Create(ctx, teacher, course.CreateInput{
		Title: "Algebra I", Category: "Mathematics", Level: course.Beginner,
		Sections: []course.SectionInput{
			{SectionID: "s1", SectionTitle: "Intro", Chapters: []course.ChapterInput{
				{ChapterID: "ch1", Type: course.Text, Title: "Welcome"},
				{ChapterID: "ch2", Type: course.Quiz, Title: "Check"},
			}},
			{SectionID: "s2", SectionTitle: "Linear", Chapters: []course.ChapterInput{
				{ChapterID: "ch3", Type: course.Video, Title: "Lines"},
			}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enrollment.NewLedger(st).Enroll(ctx, student, student.ID, c.CourseID); err != nil {
		t.Fatal(err)
	}
	return progress.NewTracker(st), courses, c.CourseID
}

func sections(t *testing.T, body string) []progress.SectionProgress {
	t.Helper()
	var s []progress.SectionProgress
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestGet_NotFoundBeforeFirstUpdate(t *testing.T) {
	tracker, _, courseID := setup(t)

	_, err := tracker.Get(context.Background(), student, student.ID, courseID)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestUpdate_MergesSubsets(t *testing.T) {
	ctx := context.Background()
	tracker, _, courseID := setup(t)

	initial := sections(t, `[
		{"sectionId":"s1","chapters":[{"chapterId":"ch1","completed":false},{"chapterId":"ch2","completed":false}]},
		{"sectionId":"s2","chapters":[{"chapterId":"ch3","completed":false}]}
	]`)
	v, err := tracker.Update(ctx, student, student.ID, courseID, initial)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if v.OverallProgress != 0 {
		t.Errorf("OverallProgress = %d, want 0", v.OverallProgress)
	}

	subset := sections(t, `[{"sectionId":"s1","chapters":[{"chapterId":"ch1","completed":true}]}]`)
	var first, second []byte
	for i := 0; i < 2; i++ {
		v, err = tracker.Update(ctx, student, student.ID, courseID, subset)
		if err != nil {
			t.Fatalf("Update() #%d error = %v", i, err)
		}
		b, _ := json.Marshal(v.Sections)
		if i == 0 {
			first = b
		} else {
			second = b
		}
	}
	if string(first) != string(second) {
		t.Errorf("resubmitting changed the record:\n%s\n%s", first, second)
	}

	want := `[{"sectionId":"s1","chapters":[{"chapterId":"ch1","completed":true},{"chapterId":"ch2","completed":false}]},{"sectionId":"s2","chapters":[{"chapterId":"ch3","completed":false}]}]`
	if string(second) != want {
		t.Errorf("Sections = %s\nwant       %s", second, want)
	}
	if v.OverallProgress != 33 {
		t.Errorf("OverallProgress = %d, want 33", v.OverallProgress)
	}

	got, err := tracker.Get(ctx, student, student.ID, courseID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.OverallProgress != 33 {
		t.Errorf("Get().OverallProgress = %d, want 33", got.OverallProgress)
	}
}

func TestUpdate_Errors(t *testing.T) {
	tracker, courses, courseID := setup(t)
	other, err := courses.Create(context.Background(), auth.Caller{ID: "teacher-1"}, course.CreateInput{
		Title: "Biology", Category: "Science", Level: course.Beginner,
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		caller   auth.Caller
		userID   string
		courseID string
		body     string
		wantErr  error
	}{
		{"anonymous", auth.Caller{}, "u1", courseID, `[]`, apperr.ErrUnauthorized},
		{"someone else", auth.Caller{ID: "u2"}, "u1", courseID, `[]`, apperr.ErrForbidden},
		{"unknown course", student, "u1", "missing", `[]`, apperr.ErrNotFound},
		{"not enrolled", student, "u1", other.CourseID, `[]`, apperr.ErrNotFound},
		{"missing chapter id", student, "u1", courseID, `[{"sectionId":"s1","chapters":[{"completed":true}]}]`, apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tracker.Update(context.Background(), tt.caller, tt.userID, tt.courseID, sections(t, tt.body))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Update() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := tracker.Get(context.Background(), student, student.ID, courseID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("failed updates should not create a record, Get() error = %v", err)
	}
}

func TestOverall_IgnoresStaleEntries(t *testing.T) {
	ctx := context.Background()
	tracker, courses, courseID := setup(t)

	if _, err := tracker.Update(ctx, student, student.ID, courseID, sections(t,
		`[{"sectionId":"s2","chapters":[{"chapterId":"ch3","completed":true}]}]`)); err != nil {
		t.Fatal(err)
	}

	// The editor drops section s2; ch3 stays in the record but no longer counts.
	c, _ := courses.Get(ctx, courseID)
	var p course.Patch
	if err := json.Unmarshal([]byte(`{"sections":[{"sectionId":"s1","sectionTitle":"Intro","chapters":[{"chapterId":"ch1","title":"Welcome"},{"chapterId":"ch2","title":"Check"}]}]}`), &p); err != nil {
		t.Fatal(err)
	}
	if _, err := courses.Update(ctx, auth.Caller{ID: c.TeacherID}, courseID, p); err != nil {
		t.Fatal(err)
	}

	v, err := tracker.Get(ctx, student, student.ID, courseID)
	if err != nil {
		t.Fatal(err)
	}
	if v.OverallProgress != 0 {
		t.Errorf("OverallProgress = %d, want 0 with stale entry ignored", v.OverallProgress)
	}
	if len(v.Sections) != 1 || v.Sections[0].SectionID != "s2" {
		t.Errorf("stale entry should remain stored, got %+v", v.Sections)
	}
}

func TestOverall(t *testing.T) {
	twoChapters := &course.Course{Sections: []course.Section{{
		SectionID: "s1",
		Chapters:  []course.Chapter{{ChapterID: "a"}, {ChapterID: "b"}},
	}}}

	tests := []struct {
		name   string
		course *course.Course
		record *progress.Record
		want   int
	}{
		{"no chapters", &course.Course{}, &progress.Record{}, 0},
		{"no chapters with entries", &course.Course{}, &progress.Record{Sections: []progress.SectionProgress{
			{SectionID: "s1", Chapters: []progress.ChapterProgress{{ChapterID: "a", Completed: true}}},
		}}, 0},
		{"half", twoChapters, &progress.Record{Sections: []progress.SectionProgress{
			{SectionID: "s1", Chapters: []progress.ChapterProgress{{ChapterID: "a", Completed: true}, {ChapterID: "b"}}},
		}}, 50},
		{"duplicate entries count once", twoChapters, &progress.Record{Sections: []progress.SectionProgress{
			{SectionID: "s1", Chapters: []progress.ChapterProgress{{ChapterID: "a", Completed: true}}},
			{SectionID: "s9", Chapters: []progress.ChapterProgress{{ChapterID: "a", Completed: true}}},
		}}, 50},
		{"all", twoChapters, &progress.Record{Sections: []progress.SectionProgress{
			{SectionID: "s1", Chapters: []progress.ChapterProgress{{ChapterID: "a", Completed: true}, {ChapterID: "b", Completed: true}}},
		}}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := progress.Overall(tt.course, tt.record); got != tt.want {
				t.Errorf("Overall() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMerge_DoesNotAliasStored(t *testing.T) {
	stored := []progress.SectionProgress{{SectionID: "s1", Chapters: []progress.ChapterProgress{{ChapterID: "a"}}}}
	merged := progress.Merge(stored, []progress.SectionProgress{
		{SectionID: "s1", Chapters: []progress.ChapterProgress{{ChapterID: "a", Completed: true}}},
	})

	if stored[0].Chapters[0].Completed {
		t.Error("Merge() modified its stored argument")
	}
	if !merged[0].Chapters[0].Completed {
		t.Error("Merge() did not apply the incoming flag")
	}
	if progress.Merge(nil, nil) == nil {
		t.Error("Merge(nil, nil) should return an empty non-nil slice")
	}
}

func TestForCourse(t *testing.T) {
	ctx := context.Background()
	tracker, _, courseID := setup(t)
	if _, err := tracker.Update(ctx, student, student.ID, courseID, nil); err != nil {
		t.Fatal(err)
	}

	recs, err := tracker.ForCourse(ctx, courseID)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].UserID != student.ID {
		t.Errorf("ForCourse() = %+v, want the u1 record", recs)
	}
}

package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/p-n-ai/pai-learn/internal/activity"
	"github.com/p-n-ai/pai-learn/internal/course"
	"github.com/p-n-ai/pai-learn/internal/platform/auth"
	"github.com/p-n-ai/pai-learn/internal/report"
)

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	courses, err := s.svc.Courses.List(r.Context(), course.Filter{
		Category: q.Get("category"),
		GradeID:  q.Get("gradeId"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Courses retrieved successfully", courses)
}

func (s *Server) handleMyCourses(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	courses, err := s.svc.Courses.ListByTeacher(r.Context(), caller.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Courses retrieved successfully", courses)
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Courses.Get(r.Context(), r.PathValue("courseId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, "Course retrieved successfully", c)
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	var in course.CreateInput
	if err := decode(r, courseCreateSchema, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.svc.Courses.Create(r.Context(), caller, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Course created successfully", c)
}

func (s *Server) handleUpdateCourse(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	var p course.Patch
	if err := decode(r, coursePatchSchema, &p); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.svc.Courses.Update(r.Context(), caller, r.PathValue("courseId"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if st, ok := p.Status.Get(); ok && st == course.Published {
		s.record(r, activity.Event{UserID: caller.ID, CourseID: c.CourseID, Type: activity.CoursePublished})
	}
	writeJSON(w, http.StatusOK, "Course updated successfully", c)
}

func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	if err := s.svc.Courses.Delete(r.Context(), caller, r.PathValue("courseId")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Course deleted successfully", nil)
}

func (s *Server) handleAddSection(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	var in course.SectionInput
	if err := decode(r, sectionSchema, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sec, err := s.svc.Courses.AddSection(r.Context(), caller, r.PathValue("courseId"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Section added successfully", sec)
}

func (s *Server) handleUpdateSection(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	var p course.SectionPatch
	if err := decode(r, sectionPatchSchema, &p); err != nil {
		writeError(w, r, err)
		return
	}
	sec, err := s.svc.Courses.UpdateSection(r.Context(), caller, r.PathValue("courseId"), r.PathValue("sectionId"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Section updated successfully", sec)
}

func (s *Server) handleAddChapter(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	var in course.ChapterInput
	if err := decode(r, chapterSchema, &in); err != nil {
		writeError(w, r, err)
		return
	}
	ch, err := s.svc.Courses.AddChapter(r.Context(), caller, r.PathValue("courseId"), r.PathValue("sectionId"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Chapter added successfully", ch)
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	var in struct {
		Text string `json:"text"`
	}
	if err := decode(r, commentSchema, &in); err != nil {
		writeError(w, r, err)
		return
	}
	cm, err := s.svc.Courses.AddComment(r.Context(), caller,
		r.PathValue("courseId"), r.PathValue("sectionId"), r.PathValue("chapterId"), in.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.record(r, activity.Event{
		UserID:   caller.ID,
		CourseID: r.PathValue("courseId"),
		Type:     activity.CommentAdded,
		Data:     map[string]any{"chapterId": r.PathValue("chapterId"), "commentId": cm.CommentID},
	})
	writeJSON(w, http.StatusCreated, "Comment added successfully", cm)
}

// handleProgressReport serves the course's progress workbook to its creator.
func (s *Server) handleProgressReport(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	ctx := r.Context()
	c, err := s.svc.Courses.Get(ctx, r.PathValue("courseId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := auth.RequireOwner(caller, c.TeacherID, "course"); err != nil {
		writeError(w, r, err)
		return
	}
	records, err := s.svc.Progress.ForCourse(ctx, c.CourseID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	f, err := report.ProgressWorkbook(c, records)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-progress.xlsx"`, c.CourseID))
	w.WriteHeader(http.StatusOK)
	if err := f.Write(w); err != nil {
		slog.Warn("writing progress report", "course_id", c.CourseID, "error", err)
	}
}

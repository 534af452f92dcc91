package httpapi

import (
	"net/http"

	"github.com/p-n-ai/pai-learn/internal/activity"
	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
	"github.com/p-n-ai/pai-learn/internal/platform/auth"
	"github.com/p-n-ai/pai-learn/internal/progress"
)

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	var in struct {
		UserID   string `json:"userId"`
		CourseID string `json:"courseId"`
	}
	if err := decode(r, enrollSchema, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.svc.Enrollment.Enroll(r.Context(), caller, in.UserID, in.CourseID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.record(r, activity.Event{UserID: in.UserID, CourseID: c.CourseID, Type: activity.Enrolled})
	writeJSON(w, http.StatusOK, "Enrolled successfully", c)
}

func (s *Server) handleEnrolledCourses(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	userID := r.PathValue("userId")
	if caller.ID != userID {
		writeError(w, r, apperr.New(apperr.ErrForbidden, "Permission denied. You can only list your own courses."))
		return
	}
	courses, err := s.svc.Enrollment.EnrolledCourses(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Enrolled courses retrieved successfully", courses)
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	v, err := s.svc.Progress.Get(r.Context(), caller, r.PathValue("userId"), r.PathValue("courseId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, "Course progress retrieved successfully", v)
}

func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	var in struct {
		Sections []progress.SectionProgress `json:"sections"`
	}
	if err := decode(r, progressSchema, &in); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := s.svc.Progress.Update(r.Context(), caller, r.PathValue("userId"), r.PathValue("courseId"), in.Sections)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.record(r, activity.Event{
		UserID:   v.UserID,
		CourseID: v.CourseID,
		Type:     activity.ProgressUpdated,
		Data:     map[string]any{"overallProgress": v.OverallProgress},
	})
	writeJSON(w, http.StatusOK, "Course progress updated successfully", v)
}

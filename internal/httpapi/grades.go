package httpapi

import (
	"net/http"

	"github.com/p-n-ai/pai-learn/internal/grade"
	"github.com/p-n-ai/pai-learn/internal/platform/auth"
)

func (s *Server) handleListGrades(w http.ResponseWriter, r *http.Request) {
	grades, err := s.svc.Grades.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Grades retrieved successfully", grades)
}

func (s *Server) handleGetGrade(w http.ResponseWriter, r *http.Request) {
	g, err := s.svc.Grades.Get(r.Context(), r.PathValue("gradeId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Grade retrieved successfully", g)
}

func (s *Server) handleCreateGrade(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	var in grade.CreateInput
	if err := decode(r, gradeCreateSchema, &in); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.svc.Grades.Create(r.Context(), caller, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Grade created successfully", g)
}

func (s *Server) handleUpdateGrade(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	var p grade.Patch
	if err := decode(r, gradePatchSchema, &p); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.svc.Grades.Update(r.Context(), caller, r.PathValue("gradeId"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Grade updated successfully", g)
}

func (s *Server) handleDeleteGrade(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	if err := s.svc.Grades.Delete(r.Context(), caller, r.PathValue("gradeId")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Grade deleted successfully", nil)
}

func (s *Server) handleGradeCourses(w http.ResponseWriter, r *http.Request) {
	gc, err := s.svc.Grades.Courses(r.Context(), r.PathValue("gradeId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Grade courses retrieved successfully", gc)
}

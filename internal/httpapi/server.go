// Package httpapi serves the REST surface of the learning platform.
//
// Every JSON response is an envelope {message, data}. Callers are identified
// by bearer tokens; routes that mutate state require one.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/p-n-ai/pai-learn/internal/activity"
	"github.com/p-n-ai/pai-learn/internal/course"
	"github.com/p-n-ai/pai-learn/internal/discussion"
	"github.com/p-n-ai/pai-learn/internal/enrollment"
	"github.com/p-n-ai/pai-learn/internal/grade"
	"github.com/p-n-ai/pai-learn/internal/platform/auth"
	"github.com/p-n-ai/pai-learn/internal/progress"
)

// Services are the domain components behind the routes.
type Services struct {
	Courses     *course.Service
	Grades      *grade.Service
	Enrollment  *enrollment.Ledger
	Progress    *progress.Tracker
	Discussions *discussion.Service
	Activity    activity.Logger // optional
}

// Check reports whether a dependency is ready to serve traffic.
type Check func(ctx context.Context) error

// Server routes requests to the services.
type Server struct {
	svc      Services
	verifier *auth.Verifier
	checks   map[string]Check
}

// New creates a server. checks are run by /readyz.
func New(svc Services, verifier *auth.Verifier, checks map[string]Check) *Server {
	if svc.Activity == nil {
		svc.Activity = activity.NopLogger{}
	}
	return &Server{svc: svc, verifier: verifier, checks: checks}
}

// record logs an activity event. Failures never fail the request.
func (s *Server) record(r *http.Request, e activity.Event) {
	if err := s.svc.Activity.LogEvent(r.Context(), e); err != nil {
		slog.Warn("recording activity failed", "type", e.Type, "user_id", e.UserID, "error", err)
	}
}

// Handler returns the HTTP handler with logging and authentication applied.
func (s *Server) Handler() http.Handler {
	return logRequests(s.verifier.Middleware(s.mux()))
}

func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("GET /courses", s.handleListCourses)
	mux.HandleFunc("POST /courses", s.authed(s.handleCreateCourse))
	mux.HandleFunc("GET /courses/teacher/my-courses", s.authed(s.handleMyCourses))
	mux.HandleFunc("GET /courses/{courseId}", s.handleGetCourse)
	mux.HandleFunc("PUT /courses/{courseId}", s.authed(s.handleUpdateCourse))
	mux.HandleFunc("DELETE /courses/{courseId}", s.authed(s.handleDeleteCourse))
	mux.HandleFunc("POST /courses/{courseId}/sections", s.authed(s.handleAddSection))
	mux.HandleFunc("PUT /courses/{courseId}/sections/{sectionId}", s.authed(s.handleUpdateSection))
	mux.HandleFunc("POST /courses/{courseId}/sections/{sectionId}/chapters", s.authed(s.handleAddChapter))
	mux.HandleFunc("POST /courses/{courseId}/sections/{sectionId}/chapters/{chapterId}/comments", s.authed(s.handleAddComment))
	mux.HandleFunc("GET /courses/{courseId}/progress-report", s.authed(s.handleProgressReport))

	mux.HandleFunc("GET /grades", s.handleListGrades)
	mux.HandleFunc("POST /grades", s.authed(s.handleCreateGrade))
	mux.HandleFunc("GET /grades/{gradeId}", s.handleGetGrade)
	mux.HandleFunc("PUT /grades/{gradeId}", s.authed(s.handleUpdateGrade))
	mux.HandleFunc("DELETE /grades/{gradeId}", s.authed(s.handleDeleteGrade))
	mux.HandleFunc("GET /grades/{gradeId}/courses", s.handleGradeCourses)

	mux.HandleFunc("POST /users/course-progress/enroll", s.authed(s.handleEnroll))
	mux.HandleFunc("GET /users/course-progress/{userId}/enrolled-courses", s.authed(s.handleEnrolledCourses))
	mux.HandleFunc("GET /users/course-progress/{userId}/courses/{courseId}", s.authed(s.handleGetProgress))
	mux.HandleFunc("PUT /users/course-progress/{userId}/courses/{courseId}", s.authed(s.handleUpdateProgress))

	mux.HandleFunc("GET /discussions", s.handleListThreads)
	mux.HandleFunc("POST /discussions", s.authed(s.handleCreateThread))
	mux.HandleFunc("GET /discussions/{threadId}", s.handleGetThread)
	mux.HandleFunc("PUT /discussions/{threadId}", s.authed(s.handleUpdateThread))
	mux.HandleFunc("DELETE /discussions/{threadId}", s.authed(s.handleDeleteThread))
	mux.HandleFunc("GET /discussions/{threadId}/posts", s.handleListPosts)
	mux.HandleFunc("POST /discussions/{threadId}/posts", s.authed(s.handleCreatePost))
	mux.HandleFunc("PUT /discussions/{threadId}/posts/{postId}", s.authed(s.handleUpdatePost))
	mux.HandleFunc("DELETE /discussions/{threadId}/posts/{postId}", s.authed(s.handleDeletePost))
	mux.HandleFunc("POST /discussions/{threadId}/posts/{postId}/replies", s.authed(s.handleAddReply))
	return mux
}

type callerHandler func(w http.ResponseWriter, r *http.Request, caller auth.Caller)

// authed rejects anonymous requests before the handler runs.
func (s *Server) authed(h callerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := auth.Require(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		h(w, r, caller)
	}
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := map[string]string{}
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if len(failed) > 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{"status": "not ready", "checks": failed})
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

package httpapi

import (
	"net/http"

	"github.com/p-n-ai/pai-learn/internal/discussion"
	"github.com/p-n-ai/pai-learn/internal/platform/auth"
)

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.svc.Discussions.ListThreads(r.Context(), r.URL.Query().Get("courseId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Success", threads)
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	var in discussion.ThreadInput
	if err := decode(r, threadCreateSchema, &in); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.svc.Discussions.CreateThread(r.Context(), caller, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Discussion thread created successfully", t)
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	tp, err := s.svc.Discussions.GetThread(r.Context(), r.PathValue("threadId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Success", tp)
}

func (s *Server) handleUpdateThread(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	var p discussion.ThreadPatch
	if err := decode(r, threadPatchSchema, &p); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.svc.Discussions.UpdateThread(r.Context(), caller, r.PathValue("threadId"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Discussion thread updated successfully", t)
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	if err := s.svc.Discussions.DeleteThread(r.Context(), caller, r.PathValue("threadId")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Discussion thread deleted successfully", nil)
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.svc.Discussions.ListPosts(r.Context(), r.PathValue("threadId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Success", posts)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	var in discussion.PostInput
	if err := decode(r, postCreateSchema, &in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.svc.Discussions.CreatePost(r.Context(), caller, r.PathValue("threadId"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Post created successfully", p)
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	var pp discussion.PostPatch
	if err := decode(r, postPatchSchema, &pp); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.svc.Discussions.UpdatePost(r.Context(), caller, r.PathValue("threadId"), r.PathValue("postId"), pp)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Post updated successfully", p)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	if err := s.svc.Discussions.DeletePost(r.Context(), caller, r.PathValue("threadId"), r.PathValue("postId")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Post deleted successfully", nil)
}

func (s *Server) handleAddReply(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	var in discussion.PostInput
	if err := decode(r, postCreateSchema, &in); err != nil {
		writeError(w, r, err)
		return
	}
	reply, err := s.svc.Discussions.AddReply(r.Context(), caller, r.PathValue("threadId"), r.PathValue("postId"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Reply created successfully", reply)
}

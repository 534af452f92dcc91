package discussion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/p-n-ai/pai-learn/internal/ident"
	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
	"github.com/p-n-ai/pai-learn/internal/platform/auth"
	"github.com/p-n-ai/pai-learn/internal/store"
)

// Service manages threads, posts and replies.
type Service struct {
	threads *store.Collection[Thread]
	posts   *store.Collection[Post]
	ids     ident.Generator
	now     func() time.Time
}

// NewService creates a discussion service backed by st.
func NewService(st store.Store, ids ident.Generator) *Service {
	if ids == nil {
		ids = ident.UUID{}
	}
	return &Service{
		threads: store.NewCollection[Thread](st, ThreadCollection),
		posts:   store.NewCollection[Post](st, PostCollection),
		ids:     ids,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func unauthorized() error {
	return apperr.New(apperr.ErrUnauthorized, "Unauthorized")
}

func threadNotFound(id string) error {
	return apperr.New(apperr.ErrNotFound, "Discussion thread %s not found", id)
}

func postNotFound(id string) error {
	return apperr.New(apperr.ErrNotFound, "Post %s not found", id)
}

// ListThreads returns every thread, or only those of courseID when set.
func (s *Service) ListThreads(ctx context.Context, courseID string) ([]Thread, error) {
	if courseID == "" {
		return s.threads.Scan(ctx)
	}
	return s.threads.Scan(ctx, store.Eq("courseId", courseID))
}

func (s *Service) CreateThread(ctx context.Context, caller auth.Caller, in ThreadInput) (*Thread, error) {
	if caller.ID == "" {
		return nil, unauthorized()
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Content) == "" {
		return nil, apperr.New(apperr.ErrValidation, "Missing required fields: title, content")
	}
	if in.Tags == nil {
		in.Tags = []string{}
	}

	now := s.now()
	t := &Thread{
		ThreadID:    s.ids.NewID(),
		CourseID:    in.CourseID,
		Title:       in.Title,
		Content:     in.Content,
		CreatorID:   caller.ID,
		CreatorName: in.CreatorName,
		Category:    in.Category,
		Status:      Open,
		Tags:        in.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.threads.Insert(ctx, t.ThreadID, t); err != nil {
		return nil, fmt.Errorf("creating thread: %w", err)
	}
	slog.Info("thread created", "thread_id", t.ThreadID, "course_id", t.CourseID)
	return t, nil
}

// GetThread returns a thread with its posts and counts the view.
func (s *Service) GetThread(ctx context.Context, threadID string) (*ThreadWithPosts, error) {
	t, err := s.threads.Update(ctx, threadID, func(t *Thread) error {
		t.ViewCount++
		return nil
	})
	if err != nil {
		return nil, mapThreadErr(err, threadID)
	}
	posts, err := s.posts.Scan(ctx, store.Eq("threadId", threadID))
	if err != nil {
		return nil, err
	}
	return &ThreadWithPosts{Thread: *t, Posts: posts}, nil
}

func (s *Service) UpdateThread(ctx context.Context, caller auth.Caller, threadID string, p ThreadPatch) (*Thread, error) {
	if caller.ID == "" {
		return nil, unauthorized()
	}
	t, err := s.threads.Update(ctx, threadID, func(t *Thread) error {
		if err := auth.RequireOwner(caller, t.CreatorID, "thread"); err != nil {
			return err
		}
		if st, ok := p.Status.Get(); ok && st != Open && st != Closed {
			return apperr.New(apperr.ErrValidation, "Invalid status %q: must be Open or Closed", st)
		}
		p.Title.Apply(&t.Title)
		p.Content.Apply(&t.Content)
		p.Category.Apply(&t.Category)
		p.Tags.Apply(&t.Tags)
		p.Status.Apply(&t.Status)
		if t.Tags == nil {
			t.Tags = []string{}
		}
		t.UpdatedAt = s.now()
		return nil
	})
	return t, mapThreadErr(err, threadID)
}

// DeleteThread removes a thread and every post in it. Posts go first so a
// failed delete leaves the thread in place to retry.
func (s *Service) DeleteThread(ctx context.Context, caller auth.Caller, threadID string) error {
	if caller.ID == "" {
		return unauthorized()
	}
	t, err := s.threads.Get(ctx, threadID)
	if err != nil {
		return mapThreadErr(err, threadID)
	}
	if err := auth.RequireOwner(caller, t.CreatorID, "thread"); err != nil {
		return err
	}

	posts, err := s.posts.Scan(ctx, store.Eq("threadId", threadID))
	if err != nil {
		return err
	}
	for _, p := range posts {
		if err := s.posts.Delete(ctx, p.PostID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("deleting post %s: %w", p.PostID, err)
		}
	}
	if err := s.threads.Delete(ctx, threadID); err != nil {
		return mapThreadErr(err, threadID)
	}
	slog.Info("thread deleted", "thread_id", threadID, "posts", len(posts))
	return nil
}

func (s *Service) ListPosts(ctx context.Context, threadID string) ([]Post, error) {
	if _, err := s.threads.Get(ctx, threadID); err != nil {
		return nil, mapThreadErr(err, threadID)
	}
	return s.posts.Scan(ctx, store.Eq("threadId", threadID))
}

// CreatePost adds a post to a thread and bumps its response count.
func (s *Service) CreatePost(ctx context.Context, caller auth.Caller, threadID string, in PostInput) (*Post, error) {
	if caller.ID == "" {
		return nil, unauthorized()
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperr.New(apperr.ErrValidation, "Content is required")
	}
	if _, err := s.threads.Get(ctx, threadID); err != nil {
		return nil, mapThreadErr(err, threadID)
	}
	if in.Images == nil {
		in.Images = []string{}
	}

	now := s.now()
	p := &Post{
		PostID:    s.ids.NewID(),
		ThreadID:  threadID,
		UserID:    caller.ID,
		UserName:  in.UserName,
		Content:   in.Content,
		Images:    in.Images,
		Replies:   []Reply{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.posts.Insert(ctx, p.PostID, p); err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}

	if err := s.bumpResponses(ctx, threadID, 1); err != nil {
		// The thread vanished after the check; drop the orphan.
		if delErr := s.posts.Delete(ctx, p.PostID); delErr != nil {
			slog.Warn("orphaned post", "post_id", p.PostID, "error", delErr)
		}
		return nil, err
	}
	return p, nil
}

func (s *Service) bumpResponses(ctx context.Context, threadID string, delta int) error {
	_, err := s.threads.Update(ctx, threadID, func(t *Thread) error {
		t.ResponseCount = max(t.ResponseCount+delta, 0)
		return nil
	})
	return mapThreadErr(err, threadID)
}

// post returns a post of the given thread.
func (s *Service) post(ctx context.Context, threadID, postID string) (*Post, error) {
	p, err := s.posts.Get(ctx, postID)
	if errors.Is(err, apperr.ErrNotFound) || (err == nil && p.ThreadID != threadID) {
		return nil, postNotFound(postID)
	}
	return p, err
}

func (s *Service) UpdatePost(ctx context.Context, caller auth.Caller, threadID, postID string, pp PostPatch) (*Post, error) {
	if caller.ID == "" {
		return nil, unauthorized()
	}
	if _, err := s.post(ctx, threadID, postID); err != nil {
		return nil, err
	}
	p, err := s.posts.Update(ctx, postID, func(p *Post) error {
		if err := auth.RequireOwner(caller, p.UserID, "post"); err != nil {
			return err
		}
		if c, ok := pp.Content.Get(); ok && strings.TrimSpace(c) == "" {
			return apperr.New(apperr.ErrValidation, "Content is required")
		}
		pp.Content.Apply(&p.Content)
		pp.Images.Apply(&p.Images)
		pp.IsAnswer.Apply(&p.IsAnswer)
		if p.Images == nil {
			p.Images = []string{}
		}
		p.UpdatedAt = s.now()
		return nil
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, postNotFound(postID)
	}
	return p, err
}

func (s *Service) DeletePost(ctx context.Context, caller auth.Caller, threadID, postID string) error {
	if caller.ID == "" {
		return unauthorized()
	}
	p, err := s.post(ctx, threadID, postID)
	if err != nil {
		return err
	}
	if err := auth.RequireOwner(caller, p.UserID, "post"); err != nil {
		return err
	}
	if err := s.posts.Delete(ctx, postID); err != nil {
		return err
	}
	if err := s.bumpResponses(ctx, threadID, -1); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	return nil
}

// AddReply appends a reply by the caller to a post.
func (s *Service) AddReply(ctx context.Context, caller auth.Caller, threadID, postID string, in PostInput) (*Reply, error) {
	if caller.ID == "" {
		return nil, unauthorized()
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperr.New(apperr.ErrValidation, "Content is required")
	}
	if _, err := s.post(ctx, threadID, postID); err != nil {
		return nil, err
	}

	r := Reply{
		ReplyID:   s.ids.NewID(),
		UserID:    caller.ID,
		UserName:  in.UserName,
		Content:   in.Content,
		CreatedAt: s.now(),
	}
	_, err := s.posts.Update(ctx, postID, func(p *Post) error {
		p.Replies = append(p.Replies, r)
		return nil
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, postNotFound(postID)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func mapThreadErr(err error, threadID string) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return threadNotFound(threadID)
	}
	return err
}

package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/p-n-ai/pai-learn/internal/discussion"
)

// ListThreads lists discussion threads, optionally for one course.
func (c *Client) ListThreads(ctx context.Context, courseID string) ([]discussion.Thread, error) {
	path := "/discussions"
	if courseID != "" {
		path += "?courseId=" + url.QueryEscape(courseID)
	}
	var out []discussion.Thread
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateThread(ctx context.Context, in discussion.ThreadInput) (*discussion.Thread, error) {
	var out discussion.Thread
	if err := c.do(ctx, http.MethodPost, "/discussions", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetThread(ctx context.Context, threadID string) (*discussion.ThreadWithPosts, error) {
	var out discussion.ThreadWithPosts
	if err := c.do(ctx, http.MethodGet, pathf("/discussions/%s", threadID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateThread(ctx context.Context, threadID string, p discussion.ThreadPatch) (*discussion.Thread, error) {
	var out discussion.Thread
	if err := c.do(ctx, http.MethodPut, pathf("/discussions/%s", threadID), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	return c.do(ctx, http.MethodDelete, pathf("/discussions/%s", threadID), nil, nil)
}

func (c *Client) ListPosts(ctx context.Context, threadID string) ([]discussion.Post, error) {
	var out []discussion.Post
	if err := c.do(ctx, http.MethodGet, pathf("/discussions/%s/posts", threadID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreatePost(ctx context.Context, threadID string, in discussion.PostInput) (*discussion.Post, error) {
	var out discussion.Post
	if err := c.do(ctx, http.MethodPost, pathf("/discussions/%s/posts", threadID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdatePost(ctx context.Context, threadID, postID string, p discussion.PostPatch) (*discussion.Post, error) {
	var out discussion.Post
	if err := c.do(ctx, http.MethodPut, pathf("/discussions/%s/posts/%s", threadID, postID), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeletePost(ctx context.Context, threadID, postID string) error {
	return c.do(ctx, http.MethodDelete, pathf("/discussions/%s/posts/%s", threadID, postID), nil, nil)
}

func (c *Client) AddReply(ctx context.Context, threadID, postID string, in discussion.PostInput) (*discussion.Reply, error) {
	var out discussion.Reply
	if err := c.do(ctx, http.MethodPost, pathf("/discussions/%s/posts/%s/replies", threadID, postID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Package discussion implements course discussion threads, their posts and
// the replies under each post.
package discussion

import (
	"time"

	"github.com/p-n-ai/pai-learn/internal/patch"
)

// Store collections.
const (
	ThreadCollection = "threads"
	PostCollection   = "posts"
)

type ThreadStatus string

const (
	Open   ThreadStatus = "Open"
	Closed ThreadStatus = "Closed"
)

type Thread struct {
	ThreadID      string       `json:"threadId"`
	CourseID      string       `json:"courseId,omitempty"`
	Title         string       `json:"title"`
	Content       string       `json:"content"`
	CreatorID     string       `json:"creatorId"`
	CreatorName   string       `json:"creatorName,omitempty"`
	Category      string       `json:"category,omitempty"`
	Status        ThreadStatus `json:"status"`
	Tags          []string     `json:"tags"`
	ViewCount     int          `json:"viewCount"`
	ResponseCount int          `json:"responseCount"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

type Post struct {
	PostID    string    `json:"postId"`
	ThreadID  string    `json:"threadId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName,omitempty"`
	Content   string    `json:"content"`
	Images    []string  `json:"images"`
	IsAnswer  bool      `json:"isAnswer"`
	Reactions Reactions `json:"reactions"`
	Replies   []Reply   `json:"replies"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Reactions struct {
	Likes   int `json:"likes"`
	Helpful int `json:"helpful"`
}

type Reply struct {
	ReplyID   string    `json:"replyId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ThreadWithPosts is a thread and all of its posts.
type ThreadWithPosts struct {
	Thread Thread `json:"thread"`
	Posts  []Post `json:"posts"`
}

type ThreadInput struct {
	CourseID    string   `json:"courseId"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	CreatorName string   `json:"creatorName"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
}

type ThreadPatch struct {
	Title    patch.Field[string]       `json:"title,omitzero"`
	Content  patch.Field[string]       `json:"content,omitzero"`
	Category patch.Field[string]       `json:"category,omitzero"`
	Tags     patch.Field[[]string]     `json:"tags,omitzero"`
	Status   patch.Field[ThreadStatus] `json:"status,omitzero"`
}

// PostInput carries a new post or reply. Images are URLs of files already
// uploaded elsewhere.
type PostInput struct {
	Content  string   `json:"content"`
	UserName string   `json:"userName"`
	Images   []string `json:"images"`
}

type PostPatch struct {
	Content  patch.Field[string]   `json:"content,omitzero"`
	Images   patch.Field[[]string] `json:"images,omitzero"`
	IsAnswer patch.Field[bool]     `json:"isAnswer,omitzero"`
}

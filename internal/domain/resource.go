package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// User is the public profile returned by the auth and like-list endpoints.
type User struct {
	ID                string    `json:"id"`
	FirstName         string    `json:"firstName"`
	LastName          string    `json:"lastName"`
	Email             string    `json:"email,omitempty"`
	ProfilePictureURL string    `json:"profilePictureUrl,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// UnmarshalJSON accepts the user id as either a JSON string or a number.
func (u *User) UnmarshalJSON(b []byte) error {
	type plain User
	aux := struct {
		ID json.RawMessage `json:"id"`
		*plain
	}{plain: (*plain)(u)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	raw := bytes.TrimSpace(aux.ID)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		u.ID = ""
	case raw[0] == '"':
		return json.Unmarshal(raw, &u.ID)
	default:
		u.ID = string(raw)
	}
	return nil
}

// DisplayName returns "First Last", or "Unknown User" for a nil user.
func (u *User) DisplayName() string {
	if u == nil {
		return "Unknown User"
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Initials returns the upper-cased first letters of first and last name.
func (u *User) Initials() string {
	if u == nil {
		return ""
	}
	var b strings.Builder
	for _, name := range []string{u.FirstName, u.LastName} {
		for _, r := range name {
			b.WriteString(strings.ToUpper(string(r)))
			break
		}
	}
	return b.String()
}

// LikeState is the per-record like information shown to the current user.
type LikeState struct {
	LikedByCurrentUser bool `json:"isLikedByCurrentUser"`
	LikeCount          int  `json:"likeCount"`
}

// Toggled returns the state after the current user flips their like.
func (s LikeState) Toggled() LikeState {
	if s.LikedByCurrentUser {
		count := s.LikeCount - 1
		if count < 0 {
			count = 0
		}
		return LikeState{LikedByCurrentUser: false, LikeCount: count}
	}
	return LikeState{LikedByCurrentUser: true, LikeCount: s.LikeCount + 1}
}

// Post is a feed entry.
type Post struct {
	ID           int64     `json:"id"`
	Content      string    `json:"content"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	IsPublic     bool      `json:"isPublic"`
	Author       *User     `json:"user"`
	LikedBy      []User    `json:"likedBy,omitempty"`
	CommentCount int       `json:"commentCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	LikeState
}

// Comment belongs to a post; ParentCommentID is nil for root comments.
// Replies is only populated on server payloads and on assembled trees' source data;
// the cache always stores comments flattened.
type Comment struct {
	ID              int64     `json:"id"`
	Content         string    `json:"content"`
	Author          *User     `json:"user"`
	PostID          int64     `json:"postId"`
	ParentCommentID *int64    `json:"parentCommentId,omitempty"`
	Replies         []Comment `json:"replies,omitempty"`
	LikedBy         []User    `json:"likedBy,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	LikeState
}

// IsRoot reports whether the comment has no parent.
func (c Comment) IsRoot() bool {
	return c.ParentCommentID == nil
}

// IsPostOwner reports whether userID authored the post.
func IsPostOwner(p *Post, userID string) bool {
	return p != nil && p.Author != nil && userID != "" && p.Author.ID == userID
}

// IsCommentOwner reports whether userID authored the comment.
func IsCommentOwner(c *Comment, userID string) bool {
	return c != nil && c.Author != nil && userID != "" && c.Author.ID == userID
}

// Page is one page of a cursor-paginated collection.
// Cursor is the page index that produced it, NextCursor is only meaningful when IsLastPage is false.
type Page[T any] struct {
	Items         []T
	Cursor        int
	NextCursor    int
	IsLastPage    bool
	TotalPages    int
	TotalElements int64
}

// PostInput is the body of create and update post calls. Nil fields are left untouched on update.
type PostInput struct {
	Content  *string `json:"content,omitempty"`
	ImageURL *string `json:"imageUrl,omitempty"`
	IsPublic *bool   `json:"isPublic,omitempty"`
}

// CommentInput is the body of create/reply/update comment calls.
type CommentInput struct {
	Content         string `json:"content"`
	ParentCommentID *int64 `json:"parentCommentId,omitempty"`
}

// RegisterInput is the body of the register call.
type RegisterInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// LoginInput is the body of the login call.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is what login and register return once the envelope is unwrapped.
type AuthResult struct {
	User        User
	Credentials CredentialPair
}

// Truncate shortens text to maxLen runes, appending "..." when it cut something.
func Truncate(text string, maxLen int) string {
	runes := []rune(text)
	if maxLen <= 0 || len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

const listPreviewLen = 120

// renderer prints command results as plain text, or as indented JSON with --json.
type renderer struct {
	out    io.Writer
	json   bool
	userID string
}

type pageView[T any] struct {
	Items         []T   `json:"items"`
	Cursor        int   `json:"cursor"`
	NextCursor    *int  `json:"nextCursor,omitempty"`
	IsLastPage    bool  `json:"isLastPage"`
	TotalPages    int   `json:"totalPages"`
	TotalElements int64 `json:"totalElements"`
}

func (r *renderer) encode(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func (r *renderer) author(u *domain.User, owned bool) string {
	name := u.DisplayName()
	if initials := u.Initials(); initials != "" {
		name += " [" + initials + "]"
	}
	if owned {
		name += " (you)"
	}
	return name
}

func likeLine(s domain.LikeState) string {
	if s.LikedByCurrentUser {
		return fmt.Sprintf("♥ %d (liked)", s.LikeCount)
	}
	return fmt.Sprintf("♡ %d", s.LikeCount)
}

func (r *renderer) user(u domain.User) error {
	if r.json {
		return r.encode(u)
	}
	fmt.Fprintf(r.out, "%s [%s]\n", u.DisplayName(), u.Initials())
	fmt.Fprintf(r.out, "  id:     %s\n", u.ID)
	if u.Email != "" {
		fmt.Fprintf(r.out, "  email:  %s\n", u.Email)
	}
	fmt.Fprintf(r.out, "  joined: %s\n", stamp(u.CreatedAt))
	return nil
}

func (r *renderer) users(us []domain.User) error {
	if r.json {
		if us == nil {
			us = []domain.User{}
		}
		return r.encode(us)
	}
	if len(us) == 0 {
		fmt.Fprintln(r.out, "No likes yet.")
		return nil
	}
	for _, u := range us {
		fmt.Fprintf(r.out, "%-8s %s\n", u.ID, u.DisplayName())
	}
	return nil
}

func (r *renderer) writePost(p domain.Post, preview bool) {
	fmt.Fprintf(r.out, "#%d  %s  %s\n", p.ID, r.author(p.Author, domain.IsPostOwner(&p, r.userID)), stamp(p.CreatedAt))
	content := p.Content
	if preview {
		content = domain.Truncate(content, listPreviewLen)
	}
	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(r.out, "    %s\n", line)
	}
	meta := []string{likeLine(p.LikeState), fmt.Sprintf("%d comments", p.CommentCount)}
	if !p.IsPublic {
		meta = append(meta, "private")
	}
	if p.ImageURL != "" {
		meta = append(meta, "image: "+p.ImageURL)
	}
	fmt.Fprintf(r.out, "    %s\n", strings.Join(meta, " · "))
}

func (r *renderer) post(p domain.Post) error {
	if r.json {
		return r.encode(p)
	}
	r.writePost(p, false)
	return nil
}

func (r *renderer) posts(page domain.Page[domain.Post]) error {
	if r.json {
		view := pageView[domain.Post]{
			Items:         page.Items,
			Cursor:        page.Cursor,
			IsLastPage:    page.IsLastPage,
			TotalPages:    page.TotalPages,
			TotalElements: page.TotalElements,
		}
		if view.Items == nil {
			view.Items = []domain.Post{}
		}
		if !page.IsLastPage {
			next := page.NextCursor
			view.NextCursor = &next
		}
		return r.encode(view)
	}
	if len(page.Items) == 0 {
		fmt.Fprintln(r.out, "No posts yet.")
		return nil
	}
	for i, p := range page.Items {
		if i > 0 {
			fmt.Fprintln(r.out)
		}
		r.writePost(p, true)
	}
	if page.IsLastPage {
		fmt.Fprintf(r.out, "\n-- page %d, end of feed --\n", page.Cursor)
	} else {
		fmt.Fprintf(r.out, "\n-- page %d of %d, next: --page %d --\n", page.Cursor, page.TotalPages, page.NextCursor)
	}
	return nil
}

func (r *renderer) comment(c domain.Comment) error {
	if r.json {
		return r.encode(c)
	}
	r.writeComment(c, 0)
	return nil
}

func (r *renderer) writeComment(c domain.Comment, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(r.out, "%s- #%d %s  %s  %s\n", indent, c.ID, r.author(c.Author, domain.IsCommentOwner(&c, r.userID)), stamp(c.CreatedAt), likeLine(c.LikeState))
	for _, line := range strings.Split(c.Content, "\n") {
		fmt.Fprintf(r.out, "%s  %s\n", indent, line)
	}
}

// nested turns tree nodes back into comments carrying their replies, the
// shape the server uses for nested payloads.
func nested(nodes []*domain.CommentNode) []domain.Comment {
	out := make([]domain.Comment, 0, len(nodes))
	for _, n := range nodes {
		c := n.Comment
		c.Replies = nested(n.Children)
		out = append(out, c)
	}
	return out
}

func (r *renderer) commentTree(tree []*domain.CommentNode) error {
	if r.json {
		return r.encode(nested(tree))
	}
	if len(tree) == 0 {
		fmt.Fprintln(r.out, "No comments yet.")
		return nil
	}
	var walk func(nodes []*domain.CommentNode, depth int)
	walk = func(nodes []*domain.CommentNode, depth int) {
		for _, n := range nodes {
			r.writeComment(n.Comment, depth)
			walk(n.Children, depth+1)
		}
	}
	walk(tree, 0)
	return nil
}

func (r *renderer) count(n int) error {
	if r.json {
		return r.encode(map[string]int{"commentCount": n})
	}
	fmt.Fprintf(r.out, "%d comments\n", n)
	return nil
}

// likeState prints one displayed like state; pending marks the optimistic guess.
func (r *renderer) likeState(s domain.LikeState, pending bool) {
	if pending {
		fmt.Fprintf(r.out, "%s  (pending)\n", likeLine(s))
		return
	}
	fmt.Fprintln(r.out, likeLine(s))
}

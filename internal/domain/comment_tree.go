package domain

// CommentNode is a comment with its direct replies in original order.
type CommentNode struct {
	Comment  Comment
	Children []*CommentNode
}

// BuildCommentTree assembles a forest from a flat comment list.
// Roots keep their relative order, children keep the order they appear in flat.
// A reply whose parent is not in the list is dropped, not promoted to root.
// A repeated id keeps only its first occurrence.
// The Replies field of the input comments is ignored; flatten first if the
// list came from a nested payload.
func BuildCommentTree(flat []Comment) []*CommentNode {
	index := make(map[int64]*CommentNode, len(flat))
	unique := make([]Comment, 0, len(flat))
	for _, c := range flat {
		if _, seen := index[c.ID]; seen {
			continue
		}
		c.Replies = nil
		index[c.ID] = &CommentNode{Comment: c, Children: []*CommentNode{}}
		unique = append(unique, c)
	}

	roots := make([]*CommentNode, 0)
	for _, c := range unique {
		node := index[c.ID]
		if c.ParentCommentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := index[*c.ParentCommentID]
		if !ok || parent == node {
			continue
		}
		parent.Children = append(parent.Children, node)
	}
	return roots
}

// FlattenComments turns a nested payload (comments carrying Replies) into a
// flat list in depth-first order. Replies missing a ParentCommentID get the
// id of the comment they were nested under.
func FlattenComments(nested []Comment) []Comment {
	out := make([]Comment, 0, len(nested))
	var walk func(list []Comment, parent *int64)
	walk = func(list []Comment, parent *int64) {
		for _, c := range list {
			replies := c.Replies
			c.Replies = nil
			if c.ParentCommentID == nil && parent != nil {
				p := *parent
				c.ParentCommentID = &p
			}
			out = append(out, c)
			if len(replies) > 0 {
				id := c.ID
				walk(replies, &id)
			}
		}
	}
	walk(nested, nil)
	return out
}

// FlattenTree is the inverse of BuildCommentTree for nodes that survived assembly.
func FlattenTree(forest []*CommentNode) []Comment {
	out := make([]Comment, 0)
	var walk func(nodes []*CommentNode)
	walk = func(nodes []*CommentNode) {
		for _, n := range nodes {
			out = append(out, n.Comment)
			walk(n.Children)
		}
	}
	walk(forest)
	return out
}

// ReplaceComment returns a copy of flat with the comment sharing updated.ID replaced.
// The second result is false when no comment matched.
func ReplaceComment(flat []Comment, updated Comment) ([]Comment, bool) {
	out := make([]Comment, len(flat))
	copy(out, flat)
	for i := range out {
		if out[i].ID == updated.ID {
			updated.Replies = nil
			if updated.ParentCommentID == nil {
				updated.ParentCommentID = out[i].ParentCommentID
			}
			out[i] = updated
			return out, true
		}
	}
	return out, false
}

// RemoveComment returns a copy of flat without the comment id.
// Its replies stay in the list and become orphans, which BuildCommentTree drops.
func RemoveComment(flat []Comment, id int64) ([]Comment, bool) {
	out := make([]Comment, 0, len(flat))
	removed := false
	for _, c := range flat {
		if c.ID == id {
			removed = true
			continue
		}
		out = append(out, c)
	}
	return out, removed
}

// CountComments counts every node of the forest.
func CountComments(forest []*CommentNode) int {
	n := 0
	for _, node := range forest {
		n += 1 + CountComments(node.Children)
	}
	return n
}

package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"gitlab.com/timkado/api/daisi-feed-client/internal/application"
	"gitlab.com/timkado/api/daisi-feed-client/internal/bootstrap"
	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

func newCommentsCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comments",
		Short: "Read and manage comments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newCommentsTreeCommand(g))
	cmd.AddCommand(newCommentsCountCommand(g))
	cmd.AddCommand(newCommentsGetCommand(g))
	cmd.AddCommand(newCommentsCreateCommand(g))
	cmd.AddCommand(newCommentsReplyCommand(g))
	cmd.AddCommand(newCommentsUpdateCommand(g))
	cmd.AddCommand(newCommentsDeleteCommand(g))
	cmd.AddCommand(newCommentsLikeCommand(g))
	cmd.AddCommand(newCommentsLikesCommand(g))
	return cmd
}

// postAndComment parses the <post-id> <comment-id> argument pair.
func postAndComment(args []string) (int64, int64, error) {
	postID, err := parseID("post", args[0])
	if err != nil {
		return 0, 0, err
	}
	commentID, err := parseID("comment", args[1])
	if err != nil {
		return 0, 0, err
	}
	return postID, commentID, nil
}

func newCommentsTreeCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tree <post-id>",
		Short: "Show a post's comments as a threaded tree",
		Args:  cobra.ExactArgs(1),
		RunE: g.run("comments.tree", func(ctx context.Context, app *bootstrap.App, out io.Writer, args []string) error {
			postID, err := parseID("post", args[0])
			if err != nil {
				return err
			}
			tree, err := app.Feed().CommentTree(ctx, postID)
			if err != nil {
				return err
			}
			return g.renderer(app, out).commentTree(tree)
		}),
	}
}

func newCommentsCountCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count <post-id>",
		Short: "Show how many comments a post has",
		Args:  cobra.ExactArgs(1),
		RunE: g.run("comments.count", func(ctx context.Context, app *bootstrap.App, out io.Writer, args []string) error {
			postID, err := parseID("post", args[0])
			if err != nil {
				return err
			}
			n, err := app.Feed().CommentCount(ctx, postID)
			if err != nil {
				return err
			}
			return g.renderer(app, out).count(n)
		}),
	}
}

func newCommentsGetCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <comment-id>",
		Short: "Show one comment",
		Args:  cobra.ExactArgs(1),
		RunE: g.run("comments.get", func(ctx context.Context, app *bootstrap.App, out io.Writer, args []string) error {
			id, err := parseID("comment", args[0])
			if err != nil {
				return err
			}
			comment, err := app.Feed().Comment(ctx, id)
			if err != nil {
				return err
			}
			return g.renderer(app, out).comment(comment)
		}),
	}
}

func newCommentsCreateCommand(g *globalOptions) *cobra.Command {
	var content string
	cmd := &cobra.Command{
		Use:   "create <post-id>",
		Short: "Comment on a post",
		Args:  cobra.ExactArgs(1),
		RunE: g.run("comments.create", func(ctx context.Context, app *bootstrap.App, out io.Writer, args []string) error {
			postID, err := parseID("post", args[0])
			if err != nil {
				return err
			}
			comment, err := app.Feed().CreateComment(ctx, postID, domain.CommentInput{Content: content})
			if err != nil {
				return err
			}
			return g.renderer(app, out).comment(comment)
		}),
	}
	cmd.Flags().StringVar(&content, "content", "", "Comment text")
	return cmd
}

func newCommentsReplyCommand(g *globalOptions) *cobra.Command {
	var content string
	cmd := &cobra.Command{
		Use:   "reply <post-id> <comment-id>",
		Short: "Reply to a comment",
		Args:  cobra.ExactArgs(2),
		RunE: g.run("comments.reply", func(ctx context.Context, app *bootstrap.App, out io.Writer, args []string) error {
			postID, parentID, err := postAndComment(args)
			if err != nil {
				return err
			}
			comment, err := app.Feed().ReplyToComment(ctx, postID, parentID, content)
			if err != nil {
				return err
			}
			return g.renderer(app, out).comment(comment)
		}),
	}
	cmd.Flags().StringVar(&content, "content", "", "Reply text")
	return cmd
}

func newCommentsUpdateCommand(g *globalOptions) *cobra.Command {
	var content string
	cmd := &cobra.Command{
		Use:   "update <post-id> <comment-id>",
		Short: "Edit a comment",
		Args:  cobra.ExactArgs(2),
		RunE: g.run("comments.update", func(ctx context.Context, app *bootstrap.App, out io.Writer, args []string) error {
			postID, id, err := postAndComment(args)
			if err != nil {
				return err
			}
			comment, err := app.Feed().UpdateComment(ctx, postID, id, content)
			if err != nil {
				return err
			}
			return g.renderer(app, out).comment(comment)
		}),
	}
	cmd.Flags().StringVar(&content, "content", "", "New comment text")
	return cmd
}

func newCommentsDeleteCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <post-id> <comment-id>",
		Short: "Delete a comment and its replies",
		Args:  cobra.ExactArgs(2),
		RunE: g.run("comments.delete", func(ctx context.Context, app *bootstrap.App, _ io.Writer, args []string) error {
			postID, id, err := postAndComment(args)
			if err != nil {
				return err
			}
			return app.Feed().DeleteComment(ctx, postID, id)
		}),
	}
}

func newCommentsLikeCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "like <post-id> <comment-id>",
		Short: "Like or unlike a comment",
		Args:  cobra.ExactArgs(2),
		RunE: g.run("comments.like", func(ctx context.Context, app *bootstrap.App, out io.Writer, args []string) error {
			postID, id, err := postAndComment(args)
			if err != nil {
				return err
			}
			return toggleLike(ctx, g, app, out, application.CommentTarget(postID, id))
		}),
	}
}

func newCommentsLikesCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "likes <comment-id>",
		Short: "List who liked a comment",
		Args:  cobra.ExactArgs(1),
		RunE: g.run("comments.likes", func(ctx context.Context, app *bootstrap.App, out io.Writer, args []string) error {
			id, err := parseID("comment", args[0])
			if err != nil {
				return err
			}
			users, err := app.Feed().CommentLikes(ctx, id)
			if err != nil {
				return err
			}
			return g.renderer(app, out).users(users)
		}),
	}
}

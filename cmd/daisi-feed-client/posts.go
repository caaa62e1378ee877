package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"gitlab.com/timkado/api/daisi-feed-client/internal/application"
	"gitlab.com/timkado/api/daisi-feed-client/internal/bootstrap"
	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

func parseID(kind, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, raw)
	}
	return id, nil
}

func newFeedCommand(g *globalOptions) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "List the newest posts",
		Args:  cobra.NoArgs,
		RunE: g.run("posts.feed", func(ctx context.Context, app *bootstrap.App, out io.Writer, _ []string) error {
			result, err := app.Feed().Feed(ctx, page)
			if err != nil {
				return err
			}
			return g.renderer(app, out).posts(result)
		}),
	}
	cmd.Flags().IntVar(&page, "page", 0, "Page cursor (0 is the newest page)")
	return cmd
}

func newPostsCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "Read and manage posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newPostsGetCommand(g))
	cmd.AddCommand(newPostsByUserCommand(g))
	cmd.AddCommand(newPostsCreateCommand(g))
	cmd.AddCommand(newPostsUpdateCommand(g))
	cmd.AddCommand(newPostsDeleteCommand(g))
	cmd.AddCommand(newPostsLikeCommand(g))
	cmd.AddCommand(newPostsLikesCommand(g))
	return cmd
}

func newPostsGetCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <post-id>",
		Short: "Show one post",
		Args:  cobra.ExactArgs(1),
		RunE: g.run("posts.get", func(ctx context.Context, app *bootstrap.App, out io.Writer, args []string) error {
			id, err := parseID("post", args[0])
			if err != nil {
				return err
			}
			post, err := app.Feed().Post(ctx, id)
			if err != nil {
				return err
			}
			return g.renderer(app, out).post(post)
		}),
	}
}

func newPostsByUserCommand(g *globalOptions) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "by-user <user-id>",
		Short: "List a user's posts",
		Args:  cobra.ExactArgs(1),
		RunE: g.run("posts.by_user", func(ctx context.Context, app *bootstrap.App, out io.Writer, args []string) error {
			result, err := app.Feed().UserPosts(ctx, args[0], page)
			if err != nil {
				return err
			}
			return g.renderer(app, out).posts(result)
		}),
	}
	cmd.Flags().IntVar(&page, "page", 0, "Page cursor")
	return cmd
}

func newPostsCreateCommand(g *globalOptions) *cobra.Command {
	var (
		content  string
		imageURL string
		private  bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a post",
		Args:  cobra.NoArgs,
		RunE: g.run("posts.create", func(ctx context.Context, app *bootstrap.App, out io.Writer, _ []string) error {
			public := !private
			post, err := app.Feed().CreatePost(ctx, domain.PostInput{Content: &content, ImageURL: &imageURL, IsPublic: &public})
			if err != nil {
				return err
			}
			return g.renderer(app, out).post(post)
		}),
	}
	cmd.Flags().StringVar(&content, "content", "", "Post text")
	cmd.Flags().StringVar(&imageURL, "image-url", "", "Optional image URL")
	cmd.Flags().BoolVar(&private, "private", false, "Hide the post from the public feed")
	return cmd
}

func newPostsUpdateCommand(g *globalOptions) *cobra.Command {
	var (
		content  string
		imageURL string
		public   bool
	)
	cmd := &cobra.Command{
		Use:   "update <post-id>",
		Short: "Edit a post; only the given flags change",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = g.run("posts.update", func(ctx context.Context, app *bootstrap.App, out io.Writer, args []string) error {
		id, err := parseID("post", args[0])
		if err != nil {
			return err
		}
		var in domain.PostInput
		if cmd.Flags().Changed("content") {
			in.Content = &content
		}
		if cmd.Flags().Changed("image-url") {
			in.ImageURL = &imageURL
		}
		if cmd.Flags().Changed("public") {
			in.IsPublic = &public
		}
		post, err := app.Feed().UpdatePost(ctx, id, in)
		if err != nil {
			return err
		}
		return g.renderer(app, out).post(post)
	})
	cmd.Flags().StringVar(&content, "content", "", "New post text")
	cmd.Flags().StringVar(&imageURL, "image-url", "", "New image URL")
	cmd.Flags().BoolVar(&public, "public", true, "Whether the post is public")
	return cmd
}

func newPostsDeleteCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <post-id>",
		Short: "Delete a post",
		Args:  cobra.ExactArgs(1),
		RunE: g.run("posts.delete", func(ctx context.Context, app *bootstrap.App, _ io.Writer, args []string) error {
			id, err := parseID("post", args[0])
			if err != nil {
				return err
			}
			return app.Feed().DeletePost(ctx, id)
		}),
	}
}

func newPostsLikeCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "like <post-id>",
		Short: "Like or unlike a post",
		Args:  cobra.ExactArgs(1),
		RunE: g.run("posts.like", func(ctx context.Context, app *bootstrap.App, out io.Writer, args []string) error {
			id, err := parseID("post", args[0])
			if err != nil {
				return err
			}
			return toggleLike(ctx, g, app, out, application.PostTarget(id))
		}),
	}
}

func newPostsLikesCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "likes <post-id>",
		Short: "List who liked a post",
		Args:  cobra.ExactArgs(1),
		RunE: g.run("posts.likes", func(ctx context.Context, app *bootstrap.App, out io.Writer, args []string) error {
			id, err := parseID("post", args[0])
			if err != nil {
				return err
			}
			users, err := app.Feed().PostLikes(ctx, id)
			if err != nil {
				return err
			}
			return g.renderer(app, out).users(users)
		}),
	}
}

// toggleLike flips a like through the optimistic controller. In text mode
// the tentative state is printed before the server answers.
func toggleLike(ctx context.Context, g *globalOptions, app *bootstrap.App, out io.Writer, target application.LikeTarget) error {
	r := g.renderer(app, out)
	if !g.jsonOutput {
		pending := true
		app.Likes().Subscribe(func(t application.LikeTarget, s domain.LikeState) {
			if t != target {
				return
			}
			r.likeState(s, pending)
			pending = false
		})
	}
	state, err := app.Likes().Toggle(ctx, target)
	if err != nil {
		return err
	}
	if g.jsonOutput {
		return r.encode(state)
	}
	return nil
}

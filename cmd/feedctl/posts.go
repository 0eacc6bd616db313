package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/socialfeed/feedclient/feed"
)

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id: %s", arg)
	}

	return id, nil
}

func printPosts(w io.Writer, posts []feed.Post) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tCATEGORY\tLIKES\tCREATED")

	for _, post := range posts {
		likes := strconv.Itoa(post.LikeCount)
		if post.IsLiked {
			likes += " *"
		}

		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", post.ID, post.Title, post.AuthorUsername, post.CategoryName, likes, post.CreatedAt)
	}

	return tw.Flush()
}

type listFlags struct {
	page     int
	pageSize int
	all      bool
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.page, "page", 1, "Page to show")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 0, "Posts per page (server default if 0)")
	cmd.Flags().BoolVar(&f.all, "all", false, "Show every page starting at --page")
}

func (a *app) postListCommand(use string, short string, pager func(*feed.API, feed.ListParams) *feed.Pager[feed.Post]) *cobra.Command {
	var flags listFlags

	cmd := &cobra.Command{
		Use:     use,
		Short:   short,
		Args:    cobra.NoArgs,
		PreRunE: a.requireSession,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := pager(a.api, feed.ListParams{Page: flags.page, PageSize: flags.pageSize})

			if flags.all {
				posts, err := p.All(cmd.Context())
				if err != nil {
					return err
				}

				return printPosts(cmd.OutOrStdout(), posts)
			}

			response, err := p.Next(cmd.Context())
			if err != nil {
				return err
			}

			if err := printPosts(cmd.OutOrStdout(), response.Results); err != nil {
				return err
			}

			if p.More() {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d posts in total, next page: --page %d\n", response.Count, p.Page())
			}

			return nil
		},
	}

	flags.register(cmd)

	return cmd
}

func (a *app) postsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "Browse and write posts",
	}

	cmd.AddCommand(
		a.postListCommand("list", "List the feed", (*feed.API).PostPager),
		a.postListCommand("mine", "List your posts", (*feed.API).MyPostPager),
		a.postListCommand("liked", "List the posts you liked", (*feed.API).LikedPostPager),
		a.postListCommand("recommended", "List recommended posts", func(api *feed.API, params feed.ListParams) *feed.Pager[feed.Post] {
			return api.RecommendedPager(params.Page)
		}),
		a.createPostCommand(),
		a.renderCommand(),
	)

	return cmd
}

func (a *app) createPostCommand() *cobra.Command {
	var (
		payload feed.CreatePostPayload
		images  []string
	)

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Publish a post",
		Args:    cobra.NoArgs,
		PreRunE: a.requireSession,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, image := range images {
				url, err := a.uploadImage(cmd, image)
				if err != nil {
					return err
				}

				payload.Body += "\n" + feed.ImageToken(url)
			}

			response, err := a.api.CreatePost(cmd.Context(), payload)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created post %d\n", response.PostID)

			return nil
		},
	}

	cmd.Flags().StringVar(&payload.Title, "title", "", "Title")
	cmd.Flags().StringVar(&payload.Body, "body", "", "Content")
	cmd.Flags().StringVar(&payload.Category, "category", "", "Category ID")
	cmd.Flags().BoolVar(&payload.IsNSFW, "nsfw", false, "Mark the post as not safe for work")
	cmd.Flags().BoolVar(&payload.IsProfane, "profane", false, "Mark the post as containing profanity")
	cmd.Flags().StringArrayVar(&images, "image", nil, "Image file to upload and append (repeatable)")

	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("body")

	return cmd
}

func (a *app) renderCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "render <file>",
		Short: "Render post content with media tokens as HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				content []byte
				err     error
			)

			if args[0] == "-" {
				content, err = io.ReadAll(cmd.InOrStdin())
			} else {
				content, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), feed.RenderHTML(string(content)))

			return nil
		},
	}
}

func (a *app) categoriesCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "categories",
		Short:   "List post categories",
		Args:    cobra.NoArgs,
		PreRunE: a.requireSession,
		RunE: func(cmd *cobra.Command, _ []string) error {
			categories, err := a.api.Categories(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

			fmt.Fprintln(tw, "ID\tNAME")

			for _, category := range categories {
				fmt.Fprintf(tw, "%s\t%s\n", category.ID, category.Name)
			}

			return tw.Flush()
		},
	}
}

func (a *app) commentsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comments",
		Short: "Read and write comments",
	}

	list := &cobra.Command{
		Use:     "list <post-id>",
		Short:   "List the comments of a post",
		Args:    cobra.ExactArgs(1),
		PreRunE: a.requireSession,
		RunE: func(cmd *cobra.Command, args []string) error {
			postID, err := parseID(args[0])
			if err != nil {
				return err
			}

			response, err := a.api.Comments(cmd.Context(), postID)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

			fmt.Fprintln(tw, "ID\tAUTHOR\tCREATED\tCONTENT")

			for _, comment := range response.Comments {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", comment.ID, comment.AuthorUsername, comment.CreatedAt, comment.Content)
			}

			return tw.Flush()
		},
	}

	add := &cobra.Command{
		Use:     "add <post-id> <content>",
		Short:   "Comment on a post",
		Args:    cobra.ExactArgs(2),
		PreRunE: a.requireSession,
		RunE: func(cmd *cobra.Command, args []string) error {
			postID, err := parseID(args[0])
			if err != nil {
				return err
			}

			comment, err := a.api.CreateComment(cmd.Context(), postID, args[1])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created comment %d\n", comment.ID)

			return nil
		},
	}

	remove := &cobra.Command{
		Use:     "delete <comment-id>",
		Short:   "Delete a comment",
		Args:    cobra.ExactArgs(1),
		PreRunE: a.requireSession,
		RunE: func(cmd *cobra.Command, args []string) error {
			commentID, err := parseID(args[0])
			if err != nil {
				return err
			}

			if err := a.api.DeleteComment(cmd.Context(), commentID); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted comment %d\n", commentID)

			return nil
		},
	}

	cmd.AddCommand(list, add, remove)

	return cmd
}

func (a *app) likeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "like <post-id>",
		Short:   "Like a post, or unlike it if you liked it already",
		Args:    cobra.ExactArgs(1),
		PreRunE: a.requireSession,
		RunE: func(cmd *cobra.Command, args []string) error {
			postID, err := parseID(args[0])
			if err != nil {
				return err
			}

			response, err := a.api.ToggleLike(cmd.Context(), postID)
			if err != nil {
				return err
			}

			state := "Unliked"
			if response.IsLiked {
				state = "Liked"
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s post %d (%d likes)\n", state, postID, response.LikeCount)

			return nil
		},
	}
}

func (a *app) reportCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "report <post-id> <reason>",
		Short:   "Report a post",
		Args:    cobra.ExactArgs(2),
		PreRunE: a.requireSession,
		RunE: func(cmd *cobra.Command, args []string) error {
			postID, err := parseID(args[0])
			if err != nil {
				return err
			}

			if _, err := a.api.Report(cmd.Context(), postID, args[1]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Reported post %d\n", postID)

			return nil
		},
	}
}

func (a *app) viewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view <post-id>",
		Short: "Record a view of a post",
		Long: `Record a view of a post.

The view starts when the command starts and ends when a line (or EOF) is read
from stdin. Views shorter than a second are not recorded.`,
		Args:    cobra.ExactArgs(1),
		PreRunE: a.requireSession,
		RunE: func(cmd *cobra.Command, args []string) error {
			postID, err := parseID(args[0])
			if err != nil {
				return err
			}

			tracker := feed.NewViewTracker(a.api, postID)
			tracker.Start()

			fmt.Fprintln(cmd.ErrOrStderr(), "Viewing, press enter when done")

			if _, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n'); err != nil && !errors.Is(err, io.EOF) {
				return err
			}

			return tracker.Stop(cmd.Context())
		},
	}
}

func (a *app) searchCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "search <query>",
		Short:   "Search posts by meaning",
		Args:    cobra.ExactArgs(1),
		PreRunE: a.requireSession,
		RunE: func(cmd *cobra.Command, args []string) error {
			response, err := a.api.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

			fmt.Fprintln(tw, "ID\tSCORE\tTITLE\tAUTHOR")

			for _, result := range response.Results {
				fmt.Fprintf(tw, "%s\t%.2f\t%s\t%s\n", result.ID, result.Score, result.Title, result.Author)
			}

			return tw.Flush()
		},
	}
}

func (a *app) uploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "upload <image>",
		Short:   "Upload an image and print the token embedding it into a post",
		Args:    cobra.ExactArgs(1),
		PreRunE: a.requireSession,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := a.uploadImage(cmd, args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), feed.ImageToken(url))

			return nil
		},
	}
}

func (a *app) uploadImage(cmd *cobra.Command, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	response, err := a.api.UploadImage(cmd.Context(), filepath.Base(path), file)
	if err != nil {
		return "", err
	}

	return response.URL, nil
}

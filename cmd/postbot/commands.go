package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"postbot/internal/blog"
	"postbot/internal/drafts"
)

func newListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			listing, err := c.poster.ListPosts(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing posts: %w", err)
			}
			printListing(cmd.OutOrStdout(), listing)
			return nil
		},
	}
}

func newTreeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Show posts grouped by folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := c.poster.Tree(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing posts: %w", err)
			}
			printTree(cmd.OutOrStdout(), tree)
			return nil
		},
	}
}

func newShowCmd(c *cli) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show <path>",
		Short: "Print a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			post, err := c.poster.GetPost(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("reading post: %w", err)
			}
			printPost(cmd.OutOrStdout(), post, raw)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the file only, without the header summary")
	return cmd
}

func newCreateCmd(c *cli) *cobra.Command {
	var (
		form       blog.PostForm
		categories []string
		tags       string
		bodyFile   string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a post",
		Long: `Create a post under the posts root, named after today's date and the
title. The body comes from --body or --body-file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bodyFile != "" {
				data, err := os.ReadFile(bodyFile)
				if err != nil {
					return fmt.Errorf("reading body: %w", err)
				}
				form.Body = string(data)
			}
			form.Categories = categories
			form.Tags = blog.SplitTags(tags)

			post, err := c.poster.CreatePost(cmd.Context(), form)
			if err != nil {
				return fmt.Errorf("creating post: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", green("created"), post.Path, shortSHA(post.Revision))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&form.Title, "title", "", "post title")
	f.StringVar(&form.Description, "description", "", "short description")
	f.StringSliceVar(&categories, "category", nil, "category (repeatable)")
	f.StringVar(&tags, "tags", "", "comma separated tags")
	f.BoolVar(&form.Pin, "pin", false, "pin the post")
	f.StringVar(&form.Author, "author", "", "author id")
	f.StringVar(&form.Body, "body", "", "markdown body")
	f.StringVar(&bodyFile, "body-file", "", "read the markdown body from a file")
	f.StringVarP(&form.Message, "message", "m", "", "commit message")
	cmd.MarkFlagsMutuallyExclusive("body", "body-file")
	return cmd
}

func newEditCmd(c *cli) *cobra.Command {
	var (
		file    string
		images  []string
		message string
	)
	cmd := &cobra.Command{
		Use:   "edit <path>",
		Short: "Replace a post's content and attach images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading content: %w", err)
			}
			req := blog.UpdateRequest{Path: args[0], Content: string(data), Message: message}
			for _, name := range images {
				img, err := os.ReadFile(name)
				if err != nil {
					return fmt.Errorf("reading image: %w", err)
				}
				req.Images = append(req.Images, blog.Attachment{Name: filepath.Base(name), Data: img})
			}

			report, err := c.poster.UpdatePost(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("updating post: %w", err)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "file with the new post content")
	cmd.Flags().StringArrayVar(&images, "image", nil, "image to attach (repeatable)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.MarkFlagRequired("file")
	return cmd
}

func newDeleteCmd(c *cli) *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "delete <path>...",
		Short: "Delete posts",
		Long:  `Delete each post separately. A post that cannot be deleted does not stop the others.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c.poster.DeletePosts(cmd.Context(), args, message)
			if err != nil {
				return fmt.Errorf("deleting posts: %w", err)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	return cmd
}

func newReportsCmd(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Show recent bulk operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reports, err := c.poster.Reports(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("reading reports: %w", err)
			}
			if len(reports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No reports yet")
				return nil
			}
			for _, r := range reports {
				printReport(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of reports")
	return cmd
}

func newWatchCmd(c *cli) *cobra.Command {
	var (
		dir  string
		sync bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Publish drafts as they are saved",
		Long: `Watch the drafts directory and publish every markdown file saved there
to the same relative path under the posts root.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.local(); err != nil {
				return err
			}
			if dir == "" {
				dir = c.app.Config.Drafts.Dir
			}

			w, err := drafts.NewWatcher(dir, c.app.Config.Blog.PostsRoot, c.app.Service, c.logger)
			if err != nil {
				return err
			}
			defer w.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if sync {
				result, err := w.SyncAll(ctx)
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), result)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s, press Ctrl-C to stop\n", dir)
			return w.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "drafts directory (default from config)")
	cmd.Flags().BoolVar(&sync, "sync", false, "publish every draft once before watching")
	return cmd
}

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"postbot/internal/batch"
	"postbot/internal/blog"
	"postbot/internal/inventory"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	blue   = color.New(color.FgBlue).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func printSkipped(w io.Writer, skipped []string) {
	if len(skipped) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s some folders could not be read, the list is incomplete:\n", yellow("!"))
	for _, p := range skipped {
		fmt.Fprintf(w, "\t%s\n", p)
	}
}

func printListing(w io.Writer, listing *inventory.Listing) {
	if len(listing.Posts) == 0 {
		fmt.Fprintln(w, "No posts found")
	}
	for _, p := range listing.Posts {
		fmt.Fprintln(w, p.Path)
	}
	printSkipped(w, listing.Skipped)
}

func printTree(w io.Writer, tree *blog.Tree) {
	if tree.Root == nil || tree.Root.Count() == 0 {
		fmt.Fprintln(w, "No posts found")
	} else {
		printFolder(w, tree.Root, 0)
	}
	printSkipped(w, tree.Skipped)
}

func printFolder(w io.Writer, f *inventory.Folder, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, name := range f.FolderNames() {
		fmt.Fprintf(w, "%s%s/\n", indent, blue(name))
		printFolder(w, f.Folders[name], depth+1)
	}
	for _, file := range f.Files {
		fmt.Fprintf(w, "%s%s\n", indent, file.Name)
	}
}

func printPost(w io.Writer, post *blog.Post, raw bool) {
	if !raw {
		fmt.Fprintf(w, "%s %s\n", bold(post.Path), shortSHA(post.Revision))
		if fm := post.FrontMatter; fm != nil {
			fmt.Fprintf(w, "title: %s\ndate:  %s\n", fm.Title, fm.Date)
			if len(fm.Tags) > 0 {
				fmt.Fprintf(w, "tags:  %s\n", strings.Join(fm.Tags, ", "))
			}
		}
		fmt.Fprintln(w)
	}
	fmt.Fprint(w, post.Content)
}

func printEntries(w io.Writer, entries []batch.Entry) {
	for _, e := range entries {
		switch {
		case e.Status == batch.Succeeded && e.Detail != "":
			fmt.Fprintf(w, "\t%s %s → %s\n", green("✓"), e.Key, e.Detail)
		case e.Status == batch.Succeeded:
			fmt.Fprintf(w, "\t%s %s\n", green("✓"), e.Key)
		default:
			fmt.Fprintf(w, "\t%s %s: %s\n", red("✗"), e.Key, e.Reason)
		}
	}
}

func printReport(w io.Writer, r *batch.Report) {
	result := r.Result()
	fmt.Fprintf(w, "%s %s at %s: %d succeeded, %d failed\n",
		bold(r.Operation), shortSHA(r.ID), r.FinishedAt.Format("2006-01-02 15:04:05"),
		len(result.Succeeded()), len(result.Failed()))
	printEntries(w, r.Entries)
}

func printResult(w io.Writer, result batch.Result) {
	fmt.Fprintf(w, "published %d drafts, %d failed\n", len(result.Succeeded()), len(result.Failed()))
	printEntries(w, result.Entries())
}

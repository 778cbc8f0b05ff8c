package main

import (
	"github.com/spf13/cobra"

	"github.com/maauso/audimeta-splitter/internal/audimeta"
	"github.com/maauso/audimeta-splitter/internal/bootstrap"
)

func searchCMD(a *app) *cobra.Command {
	var q audimeta.SearchQuery

	cmd := &cobra.Command{
		Use:     "search",
		Short:   "Search AudiMeta for a book",
		Example: `  audimeta-splitter search --title "The Hobbit" --author Tolkien`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := a.dependencies(cmd.Context(), bootstrap.Options{NoCache: true})
			if err != nil {
				return err
			}
			defer func() { _ = deps.Close() }()

			books, err := deps.Metadata.Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			renderBooks(cmd.OutOrStdout(), books)
			return nil
		},
	}

	cmd.Flags().StringVar(&q.Title, "title", "", "book title")
	cmd.Flags().StringVar(&q.Author, "author", "", "author name")

	return cmd
}

func chaptersCMD(a *app) *cobra.Command {
	var noCache bool

	cmd := &cobra.Command{
		Use:   "chapters <asin>",
		Short: "Print the chapter list AudiMeta has for a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := a.dependencies(cmd.Context(), bootstrap.Options{NoCache: noCache})
			if err != nil {
				return err
			}
			defer func() { _ = deps.Close() }()

			chapters, err := deps.Metadata.Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderChapters(cmd.OutOrStdout(), chapters)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the chapter cache")

	return cmd
}

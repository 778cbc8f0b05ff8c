package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/maauso/audimeta-splitter/internal/bootstrap"
	"github.com/maauso/audimeta-splitter/internal/job"
)

// resolveFlags are the book resolution flags shared by split and plan.
type resolveFlags struct {
	asin    string
	title   string
	author  string
	pick    int
	epsilon float64
	noCache bool
}

func (f *resolveFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.asin, "asin", "", "Audible ASIN of the book (skips tag lookup and search)")
	fs.StringVar(&f.title, "title", "", "title to search for (default: title or album tag of the first input)")
	fs.StringVar(&f.author, "author", "", "author to search for (default: artist tag of the first input)")
	fs.IntVar(&f.pick, "pick", 1, "which search result to use, 1-based")
	fs.Float64Var(&f.epsilon, "epsilon", 1, "merge chapters starting less than this many seconds apart (default from DEDUP_EPSILON_SEC)")
	fs.BoolVar(&f.noCache, "no-cache", false, "bypass the chapter cache")
}

// input builds a SplitInput, taking epsilon from config unless the flag was set.
func (f *resolveFlags) input(cmd *cobra.Command, a *app, args []string) job.SplitInput {
	epsilon := a.cfg.DedupEpsilonSec
	if cmd.Flags().Changed("epsilon") {
		epsilon = f.epsilon
	}
	return job.SplitInput{
		Inputs:  args,
		ASIN:    f.asin,
		Title:   f.title,
		Author:  f.author,
		Pick:    f.pick,
		Epsilon: epsilon,
	}
}

func splitCMD(a *app) *cobra.Command {
	var (
		resolve         resolveFlags
		output          string
		concurrency     int
		removeOriginals bool
		publish         bool
		dryRun          bool
	)

	cmd := &cobra.Command{
		Use:   "split [inputs...]",
		Short: "Split audio files into one tagged file per chapter",
		Long: `Split joins the inputs in the given order (or every audio file of a single
directory, sorted by name), resolves the book on AudiMeta and writes one
file per chapter named "NN - Title.ext" into the output directory.`,
		Example: `  audimeta-splitter split --asin B0036UC3EU book.m4b
  audimeta-splitter split --title "The Hobbit" -o out/ part1.mp3 part2.mp3
  audimeta-splitter split ./audiobook-folder`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := a.dependencies(cmd.Context(), bootstrap.Options{NoCache: resolve.noCache})
			if err != nil {
				return err
			}
			defer func() { _ = deps.Close() }()

			if cmd.Flags().Changed("concurrency") {
				deps.SplitService.SetConcurrency(concurrency)
			}

			in := resolve.input(cmd, a, args)
			in.OutputDir = output
			in.RemoveOriginals = removeOriginals
			in.Publish = publish
			in.DryRun = dryRun

			out, err := deps.SplitService.Split(cmd.Context(), in)
			renderRun(cmd.OutOrStdout(), out)
			return err
		},
	}

	resolve.register(cmd.Flags())
	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory (default: directory of the first input)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "segments to extract in parallel (default from MAX_CONCURRENT_EXPORTS)")
	cmd.Flags().BoolVar(&removeOriginals, "remove-originals", false, "delete the inputs after every chapter was written")
	cmd.Flags().BoolVar(&publish, "publish", false, "upload written chapters to the configured S3 bucket")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan only, write nothing")

	return cmd
}

func planCMD(a *app) *cobra.Command {
	var resolve resolveFlags

	cmd := &cobra.Command{
		Use:   "plan [inputs...]",
		Short: "Show the split plan without writing any files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := a.dependencies(cmd.Context(), bootstrap.Options{NoCache: resolve.noCache})
			if err != nil {
				return err
			}
			defer func() { _ = deps.Close() }()

			in := resolve.input(cmd, a, args)
			in.DryRun = true

			out, err := deps.SplitService.Split(cmd.Context(), in)
			renderRun(cmd.OutOrStdout(), out)
			return err
		},
	}

	resolve.register(cmd.Flags())

	return cmd
}

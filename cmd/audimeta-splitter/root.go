package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maauso/audimeta-splitter/internal/bootstrap"
	"github.com/maauso/audimeta-splitter/internal/config"
	apperrors "github.com/maauso/audimeta-splitter/internal/errors"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// app carries the state shared by all commands.
type app struct {
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
	stderr  io.Writer
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "audimeta-splitter",
		Short: "Split audiobooks into one file per chapter using AudiMeta chapter data",
		Long: `audimeta-splitter joins the given audio files, looks the book up on
AudiMeta, reconciles the chapter list with the measured audio duration and
writes one tagged file per chapter with ffmpeg.

Configuration is read from the environment (AUDIMETA_*, FFMPEG_PATH,
TOOL_TIMEOUT, CACHE_DIR, S3_*, LOG_*); flags override it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		splitCMD(a),
		planCMD(a),
		searchCMD(a),
		chaptersCMD(a),
		versionCMD(),
	)

	return root
}

// init loads configuration and sets up logging.
func (a *app) init() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.verbose {
		cfg.LogLevel = "debug"
	}

	a.cfg = cfg
	a.logger = cfg.NewLoggerTo(a.stderr)
	slog.SetDefault(a.logger)

	a.logger.Debug("configuration loaded", slog.String("config", cfg.String()))
	return nil
}

func (a *app) dependencies(ctx context.Context, opts bootstrap.Options) (*bootstrap.Dependencies, error) {
	deps, err := bootstrap.NewDependencies(ctx, a.cfg, a.logger, opts)
	if err != nil {
		return nil, fmt.Errorf("initialize dependencies: %w", err)
	}
	return deps, nil
}

// execute runs the CLI and returns the process exit status.
func execute(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{stderr: stderr}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	printError(stderr, err)
	return apperrors.ExitCode(err)
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)

	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr.Detail != "" {
		fmt.Fprintf(w, "detail:\n%s\n", appErr.Detail)
	}
}

func versionCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// Skip config loading.
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "audimeta-splitter %s\n", version)
		},
	}
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sha1n/relic-search/internal/app"
	"github.com/spf13/cobra"
)

var (
	// Version is injected at build time
	Version = "dev"
	// Build is injected at build time
	Build = "unknown"
	// ProgramName is injected at build time
	ProgramName = app.ProgramName
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(Version, Build, ProgramName, args[1:]); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(version, build, programName string, args []string) error {
	return ExecuteWithParams(app.DefaultRunParams(), version, build, programName, args)
}

// ExecuteWithParams runs the CLI with the given dependencies.
func ExecuteWithParams(params app.RunParams, version, build, programName string, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:     programName,
		Short:   "Full-text search over version-controlled repositories",
		Long:    "relic-search keeps a search index of repository files current and answers word queries over it, via CLI, HTTP and MCP.",
		Version: version,
	}
	rootCmd.SetVersionTemplate(`{{.Version}}
`)
	app.RegisterFlags(rootCmd.PersistentFlags())

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server (stdio or HTTP) with scheduled reindexing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.RunWithDeps(ctx, params, cmd.Flags(), version+" ("+build+")")
		},
	}
	app.RegisterServeFlags(serveCmd.Flags())

	var paths []string
	reindexCmd := &cobra.Command{
		Use:   "reindex [repository...]",
		Short: "Reindex repositories, all of them when none are named",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunReindex(ctx, params, cmd.Flags(), args, paths)
		},
	}
	reindexCmd.Flags().StringSliceVar(&paths, "path", nil, "Reindex only these paths of a single repository")

	var limit int
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "List files matching a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunSearch(ctx, params, cmd.Flags(), args[0], limit)
		},
	}
	searchCmd.Flags().IntVarP(&limit, "limit", "n", app.DefaultSearchLimit, "Maximum number of matches to print")

	hookCmd := &cobra.Command{
		Use:   "hook <repository> <old-revision> <new-revision>",
		Short: "Reindex the files changed between two revisions, for git hooks",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunHook(ctx, params, cmd.Flags(), args[0], args[1], args[2])
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last recorded pass of every repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.RunStatus(ctx, params, cmd.Flags())
		},
	}

	rootCmd.AddCommand(serveCmd, reindexCmd, searchCmd, hookCmd, statusCmd)
	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}

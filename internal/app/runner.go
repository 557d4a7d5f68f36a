package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/relic-search/internal/config"
	mcputil "github.com/sha1n/relic-search/internal/mcp"
	"github.com/sha1n/relic-search/internal/watch"
	"github.com/spf13/pflag"
)

// ProgramName is the MCP implementation name and the default binary name.
const ProgramName = "relic-search"

// RunParams contains dependencies for the run functions
type RunParams struct {
	LoadSettings    func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings   func(*config.Settings) error
	BuildComponents func(*config.Settings, *slog.Logger) (*Components, error)
	StartHTTPServer func(context.Context, *http.Server) error
	// CustomIOTransport is optional: for testing with custom IO
	CustomIOTransport mcp.Transport
	// Out receives command output; nil means os.Stdout.
	Out io.Writer
	// LogOutput receives logs; nil means os.Stderr.
	LogOutput io.Writer
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:    config.LoadSettingsWithFlags,
		ValidSettings:   config.ValidateSettings,
		BuildComponents: BuildComponents,
		StartHTTPServer: StartHTTPServer,
	}
}

func (p RunParams) out() io.Writer {
	if p.Out == nil {
		return os.Stdout
	}
	return p.Out
}

// setup loads and validates settings, configures logging and builds the components.
func (p RunParams) setup(flags *pflag.FlagSet) (*config.Settings, *Components, error) {
	settings, err := p.loadSettings(flags)
	if err != nil {
		return nil, nil, err
	}

	// Validate settings for conflicting configurations
	if err := p.ValidSettings(settings); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	comps, err := p.BuildComponents(settings, slog.Default())
	if err != nil {
		return nil, nil, err
	}
	return settings, comps, nil
}

func (p RunParams) loadSettings(flags *pflag.FlagSet) (*config.Settings, error) {
	settings, err := p.LoadSettings(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	configureLogging(p.LogOutput, settings.LogLevel)
	return settings, nil
}

// configureLogging installs a text handler on w at level. Logs always go to
// stderr by default because stdout carries the stdio MCP transport.
func configureLogging(w io.Writer, level string) {
	if w == nil {
		w = os.Stderr
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
}

// RunWithDeps executes the server with the provided dependencies
func RunWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	settings, comps, err := params.setup(flags)
	if err != nil {
		return err
	}
	defer func() {
		if err := comps.Close(); err != nil {
			slog.Error("Failed to close components", "error", err)
		}
	}()

	slog.Info("Starting relic-search", "version", version)
	config.Log(settings)
	slog.Debug("Resolved settings", "settings", *settings)

	ctx, cancel := context.WithCancel(ctx)
	var background sync.WaitGroup
	defer func() {
		cancel()
		background.Wait()
	}()

	startBackground(ctx, &background, settings, comps)

	mcpServer := mcputil.CreateServer(mcputil.ServerConfig{
		Name:        ProgramName,
		Version:     version,
		Engine:      comps.Engine,
		Repos:       comps.Repos,
		MaxFileSize: settings.Repos.MaxFileSize,
		Logger:      comps.Logger,
	})

	// Start server
	if settings.Transport == config.TransportStdio {
		// Use custom transport if provided (for testing), otherwise use stdio
		transport := params.CustomIOTransport
		if transport == nil {
			transport = &mcp.StdioTransport{}
		}
		return mcpServer.Run(ctx, transport)
	}

	srv, err := NewHTTPServer(mcpServer, comps, settings)
	if err != nil {
		return err
	}
	slog.Info("Starting HTTP server", "host", settings.Host, "port", settings.Port)
	return params.StartHTTPServer(ctx, srv)
}

// startBackground starts the bulk reindex scheduler and, when enabled, the ref
// watcher. Both stop when ctx is done.
func startBackground(ctx context.Context, wg *sync.WaitGroup, settings *config.Settings, comps *Components) {
	names := comps.Repos.Names()
	if len(names) == 0 {
		return
	}

	scheduler := watch.NewScheduler(comps.ReindexAll, names, watch.Options{
		Interval: settings.Repos.SyncInterval,
		Lock:     comps.Lock,
		Tracker:  comps.Journal,
		Logger:   comps.Logger,
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := scheduler.Run(ctx); err != nil {
			comps.Logger.Error("Reindex scheduler stopped", "error", err)
		}
	}()

	if !settings.Repos.Watch {
		return
	}
	dirs := comps.LocalRepositoryDirs()
	if len(dirs) == 0 {
		comps.Logger.Info("No local repositories to watch")
		return
	}
	watcher, err := watch.NewRefWatcher(dirs, watch.DefaultDebounce, comps.Logger)
	if err != nil {
		comps.Logger.Error("Failed to start ref watcher", "error", err)
		return
	}
	comps.Logger.Info("Watching repository refs", "dirs", len(watcher.Watched()))

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() { _ = watcher.Close() }()
		_ = watcher.Run(ctx, func(ctx context.Context, name string) {
			_, _ = comps.Engine.ReindexRepository(ctx, name, nil)
		})
	}()
}

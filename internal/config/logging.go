package config

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
)

const mask = "****"

// Log logs the resolved settings in a granular way, skipping irrelevant ones
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: transport", "value", s.Transport)
	if s.Transport == TransportHTTP {
		logger.InfoContext(ctx, "Config: host", "value", s.Host)
		logger.InfoContext(ctx, "Config: port", "value", s.Port)

		logger.InfoContext(ctx, "Config: auth.type", "value", s.Auth.Type)
		switch s.Auth.Type {
		case AuthTypeBasic:
			logger.InfoContext(ctx, "Config: auth.basic.username", "value", s.Auth.Basic.Username)
			logger.InfoContext(ctx, "Config: auth.basic.password", "value", mask)
		case AuthTypeAPIKey:
			logger.InfoContext(ctx, "Config: auth.api_keys", "count", len(s.Auth.APIKeys))
		}
	}

	logger.InfoContext(ctx, "Config: backend.url", "value", MaskURL(s.Backend.URL))
	logger.InfoContext(ctx, "Config: backend.timeout", "value", s.Backend.TimeoutDuration())
	logger.DebugContext(ctx, "Config: backend.batch_size", "value", s.Backend.BatchSize)
	logger.DebugContext(ctx, "Config: backend.batch_bytes", "value", s.Backend.BatchBytes)

	logger.InfoContext(ctx, "Config: repos.list", "count", len(s.Repos.List))
	for _, entry := range s.Repos.List {
		logger.DebugContext(ctx, "Config: repos.list entry", "value", MaskURL(entry))
	}
	logger.InfoContext(ctx, "Config: repos.base_dir", "value", s.Repos.BaseDir)
	logger.InfoContext(ctx, "Config: repos.sync_interval", "value", s.Repos.SyncInterval)
	logger.InfoContext(ctx, "Config: repos.watch", "value", s.Repos.Watch)
	logger.DebugContext(ctx, "Config: repos.max_file_size", "value", s.Repos.MaxFileSize)
	logger.DebugContext(ctx, "Config: repos.max_parallel", "value", s.Repos.MaxParallel)
	logger.DebugContext(ctx, "Config: search.page_size", "value", s.Search.PageSize)
}

// MaskURL redacts the password of any user info embedded in raw. Values that
// do not parse as URLs are returned unchanged.
func MaskURL(raw string) string {
	// Repository entries may carry a "name=" prefix.
	prefix := ""
	if name, rest, ok := strings.Cut(raw, "="); ok && !strings.Contains(name, "/") {
		prefix, raw = name+"=", rest
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return prefix + raw
	}
	return prefix + u.Redacted()
}

// AuthSettingsLogValue returns a slog.Value for AuthSettings with masked data
func AuthSettingsLogValue(s AuthSettings) slog.Value {
	keys := make([]string, len(s.APIKeys))
	for i := range s.APIKeys {
		keys[i] = mask
	}
	return slog.GroupValue(
		slog.String("type", s.Type),
		slog.Any("basic", BasicAuthSettingsLogValue(s.Basic)),
		slog.Any("api_keys", keys),
	)
}

// BasicAuthSettingsLogValue returns a slog.Value for BasicAuthSettings with masked data
func BasicAuthSettingsLogValue(s BasicAuthSettings) slog.Value {
	return slog.GroupValue(
		slog.String("username", s.Username),
		slog.String("password", mask),
	)
}

// LogValue implements slog.LogValuer so settings never log secrets.
func (s Settings) LogValue() slog.Value {
	return SettingsLogValue(s)
}

// SettingsLogValue returns a slog.Value for Settings with masked data
func SettingsLogValue(s Settings) slog.Value {
	return slog.GroupValue(
		slog.String("transport", s.Transport),
		slog.String("host", s.Host),
		slog.Int("port", s.Port),
		slog.Any("auth", AuthSettingsLogValue(s.Auth)),
		slog.Group("backend",
			slog.String("url", MaskURL(s.Backend.URL)),
			slog.Duration("timeout", s.Backend.TimeoutDuration()),
		),
		slog.Group("repos",
			slog.Int("count", len(s.Repos.List)),
			slog.String("base_dir", s.Repos.BaseDir),
			slog.Duration("sync_interval", s.Repos.SyncInterval),
			slog.Bool("watch", s.Repos.Watch),
		),
	)
}

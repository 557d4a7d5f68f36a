package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sha1n/relic-search/internal/domain"
	"github.com/sha1n/relic-search/internal/repository"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by LoadSettings.
const EnvPrefix = "RELIC_SEARCH"

// Auth type constants
const (
	AuthTypeNone   = "none"
	AuthTypeBasic  = "basic"
	AuthTypeAPIKey = "apikey"
)

// Transport constants
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// AuthSettings configuration for authentication
type AuthSettings struct {
	Type    string            `mapstructure:"type"` // AuthTypeNone, AuthTypeBasic, or AuthTypeAPIKey
	Basic   BasicAuthSettings `mapstructure:"basic"`
	APIKeys []string          `mapstructure:"api_keys"`
}

// BasicAuthSettings configuration for basic auth
type BasicAuthSettings struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// BackendSettings configures the search backend.
type BackendSettings struct {
	// URL selects the backend by scheme: bleve://, sqlite:// or http(s):// (Solr).
	URL string `mapstructure:"url"`
	// Timeout in seconds, applied to every backend call.
	Timeout    float64 `mapstructure:"timeout"`
	BatchSize  int     `mapstructure:"batch_size"`
	BatchBytes int     `mapstructure:"batch_bytes"`
}

// TimeoutDuration returns Timeout as a duration.
func (b BackendSettings) TimeoutDuration() time.Duration {
	return time.Duration(b.Timeout * float64(time.Second))
}

// ReposSettings configures the indexed repositories.
type ReposSettings struct {
	// List entries are "name=location" or a bare location.
	List         []string      `mapstructure:"list"`
	BaseDir      string        `mapstructure:"base_dir"`
	MaxFileSize  int64         `mapstructure:"max_file_size"`
	SyncInterval time.Duration `mapstructure:"sync_interval"`
	MaxParallel  int           `mapstructure:"max_parallel"`
	Watch        bool          `mapstructure:"watch"`
}

// SearchSettings configures query paging.
type SearchSettings struct {
	PageSize int `mapstructure:"page_size"`
}

// Settings application settings
type Settings struct {
	Transport string          `mapstructure:"transport"`
	Host      string          `mapstructure:"host"`
	Port      int             `mapstructure:"port"`
	LogLevel  string          `mapstructure:"log_level"`
	Auth      AuthSettings    `mapstructure:"auth"`
	Backend   BackendSettings `mapstructure:"backend"`
	Repos     ReposSettings   `mapstructure:"repos"`
	Search    SearchSettings  `mapstructure:"search"`
}

// binding ties a settings key to its CLI flag. The environment variable is
// derived from the key.
type binding struct {
	key  string
	flag string
}

var bindings = []binding{
	{"transport", "transport"},
	{"host", "host"},
	{"port", "port"},
	{"log_level", "log-level"},
	{"auth.type", "auth-type"},
	{"auth.basic.username", "auth-basic-username"},
	{"auth.basic.password", "auth-basic-password"},
	{"auth.api_keys", "auth-api-keys"},
	{"backend.url", "backend-url"},
	{"backend.timeout", "backend-timeout"},
	{"backend.batch_size", "backend-batch-size"},
	{"backend.batch_bytes", "backend-batch-bytes"},
	{"repos.list", "repos"},
	{"repos.base_dir", "repos-base-dir"},
	{"repos.max_file_size", "repos-max-file-size"},
	{"repos.sync_interval", "repos-sync-interval"},
	{"repos.max_parallel", "repos-max-parallel"},
	{"repos.watch", "repos-watch"},
	{"search.page_size", "search-page-size"},
}

// envName returns the environment variable bound to a settings key.
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > config file > defaults.
// The config file is the YAML file named by --config (or RELIC_SEARCH_CONFIG)
// when given, otherwise an optional .env file in the working directory.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	v.SetDefault("transport", TransportStdio)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("auth.type", AuthTypeNone)

	v.SetDefault("backend.timeout", 30.0)
	v.SetDefault("backend.batch_size", 100)
	v.SetDefault("backend.batch_bytes", 10*1024*1024)

	v.SetDefault("repos.base_dir", defaultBaseDir())
	v.SetDefault("repos.max_file_size", int64(256*1024)) // 256KB
	v.SetDefault("repos.sync_interval", 15*time.Minute)
	v.SetDefault("repos.max_parallel", 4)
	v.SetDefault("repos.watch", false)

	v.SetDefault("search.page_size", 50)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, b := range bindings {
		_ = v.BindEnv(b.key, envName(b.key))
		if flags != nil {
			_ = v.BindPFlag(b.key, flags.Lookup(b.flag))
		}
	}

	configFile := os.Getenv(EnvPrefix + "_CONFIG")
	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Changed {
			configFile = f.Value.String()
		}
	}

	if configFile != "" {
		v.SetConfigFile(expandHomeDir(configFile))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName(".env")
		v.SetConfigType("env")
		v.AddConfigPath(".")
		_ = v.ReadInConfig() // Ignore error if .env doesn't exist
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	settings.Auth.APIKeys = splitEnvList(settings.Auth.APIKeys, envName("auth.api_keys"))
	settings.Repos.List = splitEnvList(settings.Repos.List, envName("repos.list"))

	settings.Repos.BaseDir = expandHomeDir(settings.Repos.BaseDir)
	settings.Backend.URL = strings.TrimSpace(settings.Backend.URL)
	settings.LogLevel = strings.ToLower(settings.LogLevel)

	return &settings, nil
}

// splitEnvList splits a comma-separated environment value that viper left as a
// single element, then trims and drops empty entries.
func splitEnvList(values []string, env string) []string {
	if raw := os.Getenv(env); raw != "" {
		if len(values) == 0 || (len(values) == 1 && strings.Contains(values[0], ",")) {
			values = strings.Split(raw, ",")
		}
	}
	for i := range values {
		values[i] = strings.TrimSpace(values[i])
	}
	return filterEmptyStrings(values)
}

// defaultBaseDir returns the default directory for mirrors and local state
func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".relic-search"
	}
	return filepath.Join(home, ".relic-search")
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// filterEmptyStrings removes empty strings from a slice
func filterEmptyStrings(s []string) []string {
	var result []string
	for _, str := range s {
		if str != "" {
			result = append(result, str)
		}
	}
	return result
}

// ValidateSettings checks for missing, invalid or conflicting configuration.
// Every failure is a *domain.ConfigurationError naming the offending key.
func ValidateSettings(s *Settings) error {
	switch s.Transport {
	case TransportStdio, TransportHTTP:
		// valid
	default:
		return domain.NewConfigurationError("transport", "must be 'stdio' or 'http', got: "+s.Transport)
	}

	switch s.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return domain.NewConfigurationError("log_level", "unknown level: "+s.LogLevel)
	}

	if err := validateAuthSettings(&s.Auth); err != nil {
		return domain.NewConfigurationError("auth.type", err.Error())
	}
	if err := ValidateBackendSettings(&s.Backend); err != nil {
		return err
	}
	if err := validateReposSettings(&s.Repos); err != nil {
		return err
	}
	if s.Search.PageSize <= 0 {
		return domain.NewConfigurationError("search.page_size", "must be positive")
	}
	return nil
}

func validateAuthSettings(a *AuthSettings) error {
	hasBasicCreds := a.Basic.Username != "" || a.Basic.Password != ""
	hasAPIKeys := len(a.APIKeys) > 0

	switch a.Type {
	case AuthTypeNone, "":
		if hasBasicCreds || hasAPIKeys {
			return errors.New("auth-type 'none' is incompatible with auth credentials")
		}
	case AuthTypeBasic:
		if hasAPIKeys {
			return errors.New("auth-type 'basic' is mutually exclusive with auth-api-keys")
		}
		if a.Basic.Username == "" || a.Basic.Password == "" {
			return errors.New("auth-type 'basic' requires both username and password")
		}
	case AuthTypeAPIKey:
		if hasBasicCreds {
			return errors.New("auth-type 'apikey' is mutually exclusive with basic auth credentials")
		}
		if !hasAPIKeys {
			return errors.New("auth-type 'apikey' requires at least one API key")
		}
	default:
		return errors.New("unknown auth-type: " + a.Type)
	}
	return nil
}

// ValidateBackendSettings checks the backend section on its own. Commands that
// only talk to the backend use it without requiring a repository list.
func ValidateBackendSettings(b *BackendSettings) error {
	if b.URL == "" {
		return domain.NewConfigurationError("backend.url", "a search backend URL is required")
	}
	if b.Timeout <= 0 {
		return domain.NewConfigurationError("backend.timeout", "must be positive")
	}
	if b.BatchSize <= 0 {
		return domain.NewConfigurationError("backend.batch_size", "must be positive")
	}
	if b.BatchBytes <= 0 {
		return domain.NewConfigurationError("backend.batch_bytes", "must be positive")
	}
	return nil
}

func validateReposSettings(r *ReposSettings) error {
	if r.BaseDir == "" {
		return domain.NewConfigurationError("repos.base_dir", "cannot be empty")
	}
	if r.MaxFileSize <= 0 {
		return domain.NewConfigurationError("repos.max_file_size", "must be positive")
	}
	if r.SyncInterval < 0 {
		return domain.NewConfigurationError("repos.sync_interval", "cannot be negative")
	}
	if r.MaxParallel <= 0 {
		return domain.NewConfigurationError("repos.max_parallel", "must be positive")
	}

	seen := make(map[string]bool, len(r.List))
	for _, entry := range r.List {
		spec, err := repository.ParseSpec(entry)
		if err != nil {
			return domain.NewConfigurationError("repos.list", err.Error())
		}
		if seen[spec.Name] {
			return domain.NewConfigurationError("repos.list", "duplicate repository name: "+spec.Name)
		}
		seen[spec.Name] = true
	}
	return nil
}

package app

import "github.com/spf13/pflag"

// RegisterFlags registers the flags shared by every command on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("config", "c", "", "Path to a YAML config file")
	flags.StringP("log-level", "l", "", "Log level: debug, info, warn, or error")
	flags.StringP("backend-url", "b", "", "Search backend URL: bleve://, sqlite://, or http(s):// (Solr)")
	flags.Float64("backend-timeout", 0, "Backend call timeout in seconds")
	flags.Int("backend-batch-size", 0, "Records per backend add call")
	flags.Int("backend-batch-bytes", 0, "Content bytes per backend add call")
	flags.StringSliceP("repos", "r", nil, "Repositories as name=location or location (comma-separated)")
	flags.String("repos-base-dir", "", "Directory for mirrors, the journal, and the reindex lock")
	flags.Int64("repos-max-file-size", 0, "Largest file, in bytes, that is indexed or read")
	flags.Int("repos-max-parallel", 0, "Repositories reindexed concurrently")
	flags.Int("search-page-size", 0, "Backend page size when iterating matches")
}

// RegisterServeFlags registers the flags of the serve command on the given FlagSet
func RegisterServeFlags(flags *pflag.FlagSet) {
	flags.StringP("transport", "t", "", "Transport type: stdio or http")
	flags.StringP("host", "H", "", "Host for HTTP transport")
	flags.IntP("port", "p", 0, "Port for HTTP transport")
	flags.StringP("auth-type", "a", "", "Authentication type: none, basic, or apikey")
	flags.StringP("auth-basic-username", "u", "", "Basic auth username")
	flags.StringP("auth-basic-password", "P", "", "Basic auth password")
	flags.StringSliceP("auth-api-keys", "k", nil, "API keys (comma-separated)")
	flags.Duration("repos-sync-interval", 0, "Interval between bulk reindex runs, 0 disables them")
	flags.Bool("repos-watch", false, "Reindex local repositories when their refs move")
}

package backend

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sha1n/relic-search/internal/domain"
)

const (
	// SchemeBleve selects the embedded bleve backend.
	SchemeBleve = "bleve"
	// SchemeSQLite selects the SQLite FTS5 backend.
	SchemeSQLite = "sqlite"

	// MemoryHost selects an in-memory index for the embedded backends.
	MemoryHost = "memory"
)

const configKeyURL = "backend.url"

// Open creates the backend addressed by rawURL:
//
//	bleve:///abs/path, bleve://memory
//	sqlite:///abs/path.db, sqlite://memory
//	http(s)://host:port/solr/core
//
// An empty or unsupported URL yields a *domain.ConfigurationError.
func Open(rawURL string, opts Options) (Backend, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, domain.NewConfigurationError(configKeyURL, "backend URL is required")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, domain.NewConfigurationError(configKeyURL, fmt.Sprintf("invalid backend URL: %v", err))
	}

	switch strings.ToLower(u.Scheme) {
	case SchemeBleve:
		if u.Host == MemoryHost {
			return NewMemoryBleve(opts)
		}
		p, err := localPath(u)
		if err != nil {
			return nil, err
		}
		return OpenBleve(p, opts)

	case SchemeSQLite:
		if u.Host == MemoryHost {
			return OpenSQLite("", opts)
		}
		p, err := localPath(u)
		if err != nil {
			return nil, err
		}
		return OpenSQLite(p, opts)

	case "http", "https":
		if u.Host == "" {
			return nil, domain.NewConfigurationError(configKeyURL, "solr URL has no host")
		}
		return NewSolr(u.String(), opts), nil

	default:
		return nil, domain.NewConfigurationError(configKeyURL, fmt.Sprintf("unsupported backend scheme %q", u.Scheme))
	}
}

// localPath joins host and path so both bleve:///abs and bleve://rel/dir work.
func localPath(u *url.URL) (string, error) {
	p := u.Host + u.Path
	if p == "" {
		return "", domain.NewConfigurationError(configKeyURL, fmt.Sprintf("%s URL has no path", u.Scheme))
	}
	return p, nil
}

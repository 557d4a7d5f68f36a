package repository

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrInvalidRemoteURL indicates the location is not a recognized git remote URL
	ErrInvalidRemoteURL = errors.New("invalid git remote URL")

	// Matches: git@github.com:org/repo.git or git@github.com:org/subgroup/repo.git
	scpPattern = regexp.MustCompile(`^[\w.-]+@([^:/]+):(.+?)(?:\.git)?/?$`)

	// Matches: ssh://git@github.com/org/repo.git, https://github.com/org/repo.git,
	// git://host:9418/org/repo
	schemePattern = regexp.MustCompile(`^(?:ssh|https?|git)://(?:[^@/]+@)?([^/:]+)(?::\d+)?/(.+?)(?:\.git)?/?$`)
)

// ParseRemoteURL parses a git remote URL and returns its host and repository path.
//
// Examples:
//   - git@github.com:org/repo.git -> github.com, org/repo
//   - ssh://git@gitlab.com/group/sub/repo.git -> gitlab.com, group/sub/repo
//   - https://github.com/org/repo -> github.com, org/repo
func ParseRemoteURL(url string) (host, path string, err error) {
	url = strings.TrimSpace(url)

	if matches := scpPattern.FindStringSubmatch(url); matches != nil {
		return matches[1], matches[2], nil
	}
	if matches := schemePattern.FindStringSubmatch(url); matches != nil {
		return matches[1], matches[2], nil
	}

	return "", "", ErrInvalidRemoteURL
}

// IsRemoteURL reports whether a repository location is a remote URL rather
// than a local path.
func IsRemoteURL(location string) bool {
	_, _, err := ParseRemoteURL(location)
	return err == nil
}

// RemoteName derives a repository name from a remote URL.
//
// Examples:
//   - git@github.com:org/repo.git -> github.com/org/repo
//   - https://gitlab.com/group/sub/repo -> gitlab.com/group/sub/repo
func RemoteName(url string) string {
	host, path, err := ParseRemoteURL(url)
	if err != nil {
		return sanitizeForFilesystem(url)
	}
	return host + "/" + path
}

// LocalName derives a repository name from a local directory, dropping a
// trailing ".git" of bare repositories.
func LocalName(dir string) string {
	base := filepath.Base(filepath.Clean(dir))
	return strings.TrimSuffix(base, ".git")
}

// MirrorDirName converts a repository name into a filesystem-safe directory name.
//
// Examples:
//   - github.com/org/repo -> github.com_org_repo
func MirrorDirName(name string) string {
	return sanitizeForFilesystem(name)
}

// sanitizeForFilesystem replaces separators and URL punctuation with underscores.
func sanitizeForFilesystem(s string) string {
	s = strings.TrimPrefix(s, "ssh://")
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "git@")
	s = strings.TrimSuffix(s, ".git")
	return strings.NewReplacer("/", "_", ":", "_", "@", "_", "\\", "_").Replace(s)
}

package repository

import (
	"errors"
	"testing"
)

func TestParseRemoteURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantHost string
		wantPath string
		wantErr  error
	}{
		{name: "scp style with .git", url: "git@github.com:org/repo.git", wantHost: "github.com", wantPath: "org/repo"},
		{name: "scp style without .git", url: "git@github.com:org/repo", wantHost: "github.com", wantPath: "org/repo"},
		{name: "gitlab subgroups", url: "git@gitlab.com:group/sub1/sub2/repo.git", wantHost: "gitlab.com", wantPath: "group/sub1/sub2/repo"},
		{name: "ssh url", url: "ssh://git@github.com/org/repo.git", wantHost: "github.com", wantPath: "org/repo"},
		{name: "ssh url with port", url: "ssh://git@example.com:2222/team/repo.git", wantHost: "example.com", wantPath: "team/repo"},
		{name: "https", url: "https://github.com/org/repo", wantHost: "github.com", wantPath: "org/repo"},
		{name: "https with trailing slash and spaces", url: "  https://github.com/org/repo.git/ ", wantHost: "github.com", wantPath: "org/repo"},
		{name: "local absolute path", url: "/srv/git/repo.git", wantErr: ErrInvalidRemoteURL},
		{name: "local relative path", url: "repos/docs", wantErr: ErrInvalidRemoteURL},
		{name: "empty", url: "", wantErr: ErrInvalidRemoteURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, path, err := ParseRemoteURL(tt.url)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if host != tt.wantHost {
				t.Errorf("host = %q, want %q", host, tt.wantHost)
			}
			if path != tt.wantPath {
				t.Errorf("path = %q, want %q", path, tt.wantPath)
			}
		})
	}
}

func TestRemoteName(t *testing.T) {
	tests := map[string]string{
		"git@github.com:org/repo.git":        "github.com/org/repo",
		"ssh://git@gitlab.com/group/sub/r":   "gitlab.com/group/sub/r",
		"https://bitbucket.org/team/project": "bitbucket.org/team/project",
	}

	for url, want := range tests {
		if got := RemoteName(url); got != want {
			t.Errorf("RemoteName(%q) = %q, want %q", url, got, want)
		}
	}
}

func TestLocalName(t *testing.T) {
	tests := map[string]string{
		"/srv/git/docs.git": "docs",
		"/home/me/project/": "project",
		"relative/thing":    "thing",
	}

	for dir, want := range tests {
		if got := LocalName(dir); got != want {
			t.Errorf("LocalName(%q) = %q, want %q", dir, got, want)
		}
	}
}

func TestMirrorDirName(t *testing.T) {
	if got := MirrorDirName("github.com/org/repo"); got != "github.com_org_repo" {
		t.Errorf("MirrorDirName = %q", got)
	}
	if got := MirrorDirName("git@host:team/repo.git"); got != "host_team_repo" {
		t.Errorf("MirrorDirName = %q", got)
	}
}

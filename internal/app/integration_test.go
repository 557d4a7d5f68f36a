package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sha1n/relic-search/internal/config"
	"github.com/spf13/pflag"
)

// ========================================
// Test helpers
// ========================================

// gitWorkTree is a scratch git repository driven through the git binary.
type gitWorkTree struct {
	t   *testing.T
	dir string
}

func newGitWorkTree(t *testing.T) *gitWorkTree {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	w := &gitWorkTree{t: t, dir: t.TempDir()}
	w.git("init", "-q")
	return w
}

func (w *gitWorkTree) git(args ...string) string {
	w.t.Helper()
	base := []string{"-c", "user.name=Test", "-c", "user.email=test@example.com", "-c", "commit.gpgsign=false"}
	cmd := exec.Command("git", append(base, args...)...)
	cmd.Dir = w.dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		w.t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

func (w *gitWorkTree) commit(files map[string]string, message string) string {
	w.t.Helper()
	for name, content := range files {
		p := filepath.Join(w.dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			w.t.Fatalf("Failed to create dir: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			w.t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	w.git("add", "-A")
	w.git("commit", "-q", "-m", message)
	return w.git("rev-parse", "HEAD")
}

// mustGetFreePort returns a free port from the kernel or fails the test
func mustGetFreePort(t testing.TB) int {
	t.Helper()
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("Failed to resolve address: %v", err)
	}
	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		t.Fatalf("Failed to get free port: %v", err)
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port
}

// newTestFlags creates a parsed flag set as the CLI would, pointing at a
// sqlite index and base directory under baseDir.
func newTestFlags(t *testing.T, baseDir string, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	RegisterServeFlags(flags)

	all := append([]string{
		"--backend-url", "sqlite://" + filepath.ToSlash(filepath.Join(baseDir, "index.db")),
		"--repos-base-dir", baseDir,
		"--log-level", "error",
	}, args...)
	if err := flags.Parse(all); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}
	return flags
}

func integrationParams() (RunParams, *bytes.Buffer) {
	out := &bytes.Buffer{}
	params := DefaultRunParams()
	params.Out = out
	params.LogOutput = io.Discard
	return params, out
}

// ========================================
// End-to-end tests over a real git repository
// ========================================

func TestIntegration_ReindexSearchHookStatus(t *testing.T) {
	repo := newGitWorkTree(t)
	first := repo.commit(map[string]string{
		"main.go":      "package main\n\nfunc main() {\n\tprintln(\"hello world\")\n}\n",
		"lib/utils.go": "package lib\n\nfunc Helper() string {\n\treturn \"helper\"\n}\n",
	}, "initial")

	baseDir := t.TempDir()
	flags := newTestFlags(t, baseDir, "--repos", "demo="+repo.dir)
	params, out := integrationParams()
	ctx := context.Background()

	if err := RunReindex(ctx, params, flags, nil, nil); err != nil {
		t.Fatalf("RunReindex failed: %v", err)
	}
	want := fmt.Sprintf("Reindexed demo at revision %s (full pass): 2 files added", first)
	if !strings.Contains(out.String(), want) {
		t.Errorf("Expected %q in output:\n%s", want, out.String())
	}

	out.Reset()
	if err := RunSearch(ctx, params, flags, "hello", 0); err != nil {
		t.Fatalf("RunSearch failed: %v", err)
	}
	if !strings.Contains(out.String(), "demo:/main.go") {
		t.Errorf("Expected main.go match, got:\n%s", out.String())
	}

	second := repo.commit(map[string]string{
		"lib/utils.go": "package lib\n\nfunc Helper() string {\n\treturn \"goodbye\"\n}\n",
		"docs/new.md":  "goodbye notes\n",
		":memo.txt":    "goodbye memo\n",
	}, "second")

	out.Reset()
	if err := RunHook(ctx, params, flags, "demo", first, second); err != nil {
		t.Fatalf("RunHook failed: %v", err)
	}
	if !strings.Contains(out.String(), "(targeted pass): 3 files added") {
		t.Errorf("Expected targeted pass over three files, got:\n%s", out.String())
	}

	out.Reset()
	if err := RunSearch(ctx, params, flags, "goodbye", 0); err != nil {
		t.Fatalf("RunSearch failed: %v", err)
	}
	for _, want := range []string{"demo:/lib/utils.go", "demo:/docs/new.md", "demo:/:memo.txt"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected %q after hook, got:\n%s", want, out.String())
		}
	}

	out.Reset()
	if err := RunStatus(ctx, params, flags); err != nil {
		t.Fatalf("RunStatus failed: %v", err)
	}
	if !strings.Contains(out.String(), "demo") || !strings.Contains(out.String(), second) {
		t.Errorf("Expected status for demo at %s, got:\n%s", second, out.String())
	}
	if _, err := os.Stat(filepath.Join(baseDir, "journal.json")); err != nil {
		t.Errorf("Expected journal file: %v", err)
	}
}

func TestIntegration_HookWithoutChangesDoesNothing(t *testing.T) {
	repo := newGitWorkTree(t)
	rev := repo.commit(map[string]string{"a.txt": "alpha\n"}, "initial")

	flags := newTestFlags(t, t.TempDir(), "--repos", "demo="+repo.dir)
	params, out := integrationParams()

	if err := RunHook(context.Background(), params, flags, "demo", rev, rev); err != nil {
		t.Fatalf("RunHook failed: %v", err)
	}
	if !strings.Contains(out.String(), "No changes in demo") {
		t.Errorf("Unexpected output:\n%s", out.String())
	}
}

func TestIntegration_HookSkipsPushToOtherBranch(t *testing.T) {
	repo := newGitWorkTree(t)
	base := repo.commit(map[string]string{"a.txt": "alpha\n"}, "initial")
	repo.git("checkout", "-q", "-b", "feature")
	feature := repo.commit(map[string]string{"new.txt": "feature work\n"}, "feature")
	repo.git("checkout", "-q", "-")

	flags := newTestFlags(t, t.TempDir(), "--repos", "demo="+repo.dir)
	params, out := integrationParams()
	ctx := context.Background()

	if err := RunHook(ctx, params, flags, "demo", base, feature); err != nil {
		t.Fatalf("RunHook failed: %v", err)
	}
	if !strings.Contains(out.String(), "Skipping demo") {
		t.Errorf("Expected push to feature to be skipped, got:\n%s", out.String())
	}

	out.Reset()
	if err := RunSearch(ctx, params, flags, "feature", 0); err != nil {
		t.Fatalf("RunSearch failed: %v", err)
	}
	if !strings.Contains(out.String(), "No files found") {
		t.Errorf("Expected feature branch content to stay unindexed, got:\n%s", out.String())
	}
}

func TestIntegration_MissingBackendURL(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	if err := flags.Parse([]string{"--repos-base-dir", t.TempDir()}); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}
	params, _ := integrationParams()

	err := RunSearch(context.Background(), params, flags, "hello", 0)
	if err == nil || !strings.Contains(err.Error(), "backend.url") {
		t.Errorf("Expected backend.url configuration error, got %v", err)
	}
}

func TestIntegration_ServeHTTP(t *testing.T) {
	repo := newGitWorkTree(t)
	repo.commit(map[string]string{"main.go": "package main // hello\n"}, "initial")

	port := mustGetFreePort(t)
	flags := newTestFlags(t, t.TempDir(),
		"--repos", "demo="+repo.dir,
		"--transport", config.TransportHTTP,
		"--host", "127.0.0.1",
		"--port", fmt.Sprintf("%d", port),
	)
	params, _ := integrationParams()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunWithDeps(ctx, params, flags, "test") }()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	deadline := time.Now().Add(5 * time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("Expected health 200, got %d", resp.StatusCode)
			}
			lastErr = nil
			break
		}
		lastErr = err
		time.Sleep(20 * time.Millisecond)
	}
	if lastErr != nil {
		t.Errorf("Server never became healthy: %v", lastErr)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("RunWithDeps did not return after cancel")
	}
}

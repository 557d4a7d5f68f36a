package app

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestRegisterFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)

	expectedFlags := []string{
		"config",
		"log-level",
		"backend-url",
		"backend-timeout",
		"backend-batch-size",
		"backend-batch-bytes",
		"repos",
		"repos-base-dir",
		"repos-max-file-size",
		"repos-max-parallel",
		"search-page-size",
	}

	for _, name := range expectedFlags {
		if flags.Lookup(name) == nil {
			t.Errorf("Expected flag %q to be registered", name)
		}
	}
	if flags.Lookup("transport") != nil {
		t.Error("Serve flags should not be registered as shared flags")
	}
}

func TestRegisterServeFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterServeFlags(flags)

	expectedFlags := []string{
		"transport",
		"host",
		"port",
		"auth-type",
		"auth-basic-username",
		"auth-basic-password",
		"auth-api-keys",
		"repos-sync-interval",
		"repos-watch",
	}

	for _, name := range expectedFlags {
		if flags.Lookup(name) == nil {
			t.Errorf("Expected flag %q to be registered", name)
		}
	}
}

func TestRegisterFlags_Shorthand(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	RegisterServeFlags(flags)

	shorthandFlags := map[string]string{
		"config":              "c",
		"log-level":           "l",
		"backend-url":         "b",
		"repos":               "r",
		"transport":           "t",
		"host":                "H",
		"port":                "p",
		"auth-type":           "a",
		"auth-basic-username": "u",
		"auth-basic-password": "P",
		"auth-api-keys":       "k",
	}

	for name, shorthand := range shorthandFlags {
		flag := flags.Lookup(name)
		if flag == nil {
			t.Errorf("Flag %q not found", name)
			continue
		}
		if flag.Shorthand != shorthand {
			t.Errorf("Flag %q expected shorthand %q, got %q", name, shorthand, flag.Shorthand)
		}
	}
}

func TestRegisterFlags_SetValues(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	RegisterServeFlags(flags)

	err := flags.Parse([]string{
		"--transport", "http",
		"--port", "9090",
		"-b", "sqlite://memory",
		"-r", "app=/src/app,lib=/src/lib",
		"--repos-sync-interval", "5m",
		"--repos-watch",
	})
	if err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	transport, _ := flags.GetString("transport")
	if transport != "http" {
		t.Errorf("Expected transport 'http', got '%s'", transport)
	}

	port, _ := flags.GetInt("port")
	if port != 9090 {
		t.Errorf("Expected port 9090, got %d", port)
	}

	url, _ := flags.GetString("backend-url")
	if url != "sqlite://memory" {
		t.Errorf("Expected backend-url 'sqlite://memory', got '%s'", url)
	}

	repos, _ := flags.GetStringSlice("repos")
	if len(repos) != 2 || repos[1] != "lib=/src/lib" {
		t.Errorf("Unexpected repos %v", repos)
	}

	interval, _ := flags.GetDuration("repos-sync-interval")
	if interval != 5*time.Minute {
		t.Errorf("Expected sync interval 5m, got %v", interval)
	}

	watch, _ := flags.GetBool("repos-watch")
	if !watch {
		t.Error("Expected repos-watch to be set")
	}
}

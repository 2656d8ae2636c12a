package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load([]string{"/data"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	want := Default()
	want.AllowedDirectories = []string{"/data"}
	if !slices.Equal(cfg.AllowedDirectories, want.AllowedDirectories) {
		t.Errorf("Expected directories %v, got %v", want.AllowedDirectories, cfg.AllowedDirectories)
	}
	if cfg.Transport != TransportStdio || cfg.ToolTimeout != 60*time.Second || cfg.MaxConcurrency != 8 {
		t.Errorf("Unexpected defaults %+v", cfg)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := strings.Join([]string{
		"allowed_directories: [/from-file]",
		"transport: sse",
		"addr: \":9000\"",
		"log_level: warn",
		"tool_timeout: 5s",
		"rate_limit: 2.5",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv("FS_ADDR", ":9100")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load([]string{"-config", path, "-log-level", "error"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !slices.Equal(cfg.AllowedDirectories, []string{"/from-file"}) {
		t.Errorf("Expected directories from file, got %v", cfg.AllowedDirectories)
	}
	if cfg.Transport != TransportSSE {
		t.Errorf("Expected transport from file, got %s", cfg.Transport)
	}
	if cfg.Addr != ":9100" {
		t.Errorf("Expected env to override file, got %s", cfg.Addr)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("Expected flag to override env, got %s", cfg.LogLevel)
	}
	if cfg.ToolTimeout != 5*time.Second || cfg.RateLimit != 2.5 {
		t.Errorf("Expected limits from file, got %v %v", cfg.ToolTimeout, cfg.RateLimit)
	}
	if cfg.MaxConcurrency != 8 {
		t.Errorf("Expected default concurrency to survive, got %d", cfg.MaxConcurrency)
	}
}

func TestLoadDirectoriesFromEnv(t *testing.T) {
	t.Setenv("FS_ALLOWED_DIRECTORIES", strings.Join([]string{"/a", "/b"}, string(os.PathListSeparator)))

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !slices.Equal(cfg.AllowedDirectories, []string{"/a", "/b"}) {
		t.Errorf("Expected directories from env, got %v", cfg.AllowedDirectories)
	}

	cfg, err = Load([]string{"/c"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !slices.Equal(cfg.AllowedDirectories, []string{"/c"}) {
		t.Errorf("Expected positional directories to win, got %v", cfg.AllowedDirectories)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
		want string
	}{
		{name: "no directories", want: "allowed directory"},
		{name: "bad transport", args: []string{"-transport", "carrier-pigeon", "/d"}, want: "unknown transport"},
		{name: "auth without secret", args: []string{"-transport", "http", "-auth", "/d"}, want: "JWT secret"},
		{name: "bad env bool", env: map[string]string{"FS_AUTH_ENABLED": "maybe"}, args: []string{"/d"}, want: "FS_AUTH_ENABLED"},
		{name: "bad env duration", env: map[string]string{"FS_TOOL_TIMEOUT": "soon"}, args: []string{"/d"}, want: "FS_TOOL_TIMEOUT"},
		{name: "negative rate", args: []string{"-rate-limit", "-1", "/d"}, want: "rate limit"},
		{name: "missing file", args: []string{"-config", "/does/not/exist.yaml", "/d"}, want: "config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.args)
			if err == nil {
				t.Fatal("Expected error, got none")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestAuthOnStdioNeedsNoSecret(t *testing.T) {
	cfg := Default()
	cfg.AllowedDirectories = []string{"/d"}
	cfg.AuthEnabled = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected stdio auth without secret to validate, got %v", err)
	}
}

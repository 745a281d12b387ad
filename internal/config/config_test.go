package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"deploy/internal/failure"
)

// clearEnv blanks every variable the loader reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"GITHUB_TOKEN", "DEPLOY_TOKEN", "DEPLOY_API_URL", "DEPLOY_UPLOAD_URL",
		"DEPLOY_GITHUB_HOST", "DEPLOY_API_TIMEOUT", "DEPLOY_DOWNLOAD_TIMEOUT",
		"DEPLOY_GIT_TIMEOUT", "DEPLOY_POLL_INTERVAL", "DEPLOY_WATCH_TIMEOUT",
		"DEPLOY_RELEASE_OWNER", "DEPLOY_RELEASE_REPO", "DEPLOY_BINARY_NAME",
		"DEPLOY_DESCRIPTION",
	} {
		t.Setenv(name, "")
	}
}

func writeConfig(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if err := os.Chmod(path, perm); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := (&Loader{SearchPaths: []string{}}).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("APIURL = %q, want %q", cfg.APIURL, DefaultAPIURL)
	}
	if cfg.GitHubHost != DefaultGitHubHost {
		t.Errorf("GitHubHost = %q, want %q", cfg.GitHubHost, DefaultGitHubHost)
	}
	if cfg.APITimeout != DefaultAPITimeout {
		t.Errorf("APITimeout = %v, want %v", cfg.APITimeout, DefaultAPITimeout)
	}
	if cfg.DownloadTimeout != DefaultDownloadTimeout {
		t.Errorf("DownloadTimeout = %v, want %v", cfg.DownloadTimeout, DefaultDownloadTimeout)
	}
	if cfg.GitTimeout != DefaultGitTimeout {
		t.Errorf("GitTimeout = %v, want %v", cfg.GitTimeout, DefaultGitTimeout)
	}
	if cfg.ReleaseRepository() != "keelerm84/deploy" {
		t.Errorf("ReleaseRepository() = %q, want keelerm84/deploy", cfg.ReleaseRepository())
	}
	if cfg.Token != "" {
		t.Errorf("Token = %q, want empty", cfg.Token)
	}
	if cfg.Path != "" {
		t.Errorf("Path = %q, want empty", cfg.Path)
	}

	err = cfg.RequireToken()
	var configErr *failure.ConfigurationError
	if !errors.As(err, &configErr) {
		t.Errorf("RequireToken() error = %v, want ConfigurationError", err)
	}
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
token: file-token
api_url: https://ghe.example.com/api/v3/
github_host: ghe.example.com
api_timeout: 10s
description: from file
`, 0600)

	t.Setenv("DEPLOY_API_TIMEOUT", "45s")
	t.Setenv("GITHUB_TOKEN", "env-token")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Path != path {
		t.Errorf("Path = %q, want %q", cfg.Path, path)
	}
	if cfg.APIURL != "https://ghe.example.com/api/v3/" {
		t.Errorf("APIURL = %q, want file value", cfg.APIURL)
	}
	if cfg.GitHubHost != "ghe.example.com" {
		t.Errorf("GitHubHost = %q, want ghe.example.com", cfg.GitHubHost)
	}
	if cfg.APITimeout != 45*time.Second {
		t.Errorf("APITimeout = %v, want env value 45s", cfg.APITimeout)
	}
	if cfg.Token != "env-token" {
		t.Errorf("Token = %q, want env-token", cfg.Token)
	}
	if cfg.Description != "from file" {
		t.Errorf("Description = %q, want %q", cfg.Description, "from file")
	}
	if cfg.WebURL() != "https://ghe.example.com" {
		t.Errorf("WebURL() = %q", cfg.WebURL())
	}
	if len(cfg.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none for a 0600 file", cfg.Warnings)
	}
}

func TestLoadDeployTokenWinsOverGitHubToken(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEPLOY_TOKEN", "deploy-token")
	t.Setenv("GITHUB_TOKEN", "github-token")

	cfg, err := (&Loader{SearchPaths: []string{}}).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Token != "deploy-token" {
		t.Errorf("Token = %q, want deploy-token", cfg.Token)
	}
}

func TestLoadFlagsOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEPLOY_GIT_TIMEOUT", "20s")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("git-timeout", "", "")
	flags.String("unrelated", "", "")
	if err := flags.Parse([]string{"--git-timeout=3s"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := (&Loader{SearchPaths: []string{}, Flags: flags}).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GitTimeout != 3*time.Second {
		t.Errorf("GitTimeout = %v, want 3s from flag", cfg.GitTimeout)
	}
}

func TestLoadSearchPaths(t *testing.T) {
	clearEnv(t)

	found := writeConfig(t, "binary_name: deploy-cli\n", 0600)
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	cfg, err := (&Loader{SearchPaths: []string{missing, found}}).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Path != found {
		t.Errorf("Path = %q, want %q", cfg.Path, found)
	}
	if cfg.BinaryName != "deploy-cli" {
		t.Errorf("BinaryName = %q, want deploy-cli", cfg.BinaryName)
	}
}

func TestLoadWarnsOnReadableTokenFile(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, "token: secret\n", 0644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Warnings) != 1 || !strings.Contains(cfg.Warnings[0], "world-readable") {
		t.Errorf("Warnings = %v, want one world-readable warning", cfg.Warnings)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"unknown key", "tokn: abc\n", "field tokn not found"},
		{"bad duration", "api_timeout: soon\n", "api_timeout"},
		{"zero timeout", "git_timeout: 0s\n", "git_timeout: must be positive"},
		{"relative api url", "api_url: /api\n", "api_url: must be an absolute URL"},
		{"host with scheme", "github_host: https://github.com\n", "github_host"},
		{"invalid yaml", "token: [\n", "failed to parse YAML"},
		{"token with newline", "token: \"abc def\"\n", "token:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			path := writeConfig(t, tt.content, 0600)

			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			var configErr *failure.ConfigurationError
			if !errors.As(err, &configErr) {
				t.Errorf("Load() error type = %T, want ConfigurationError", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Load() error = %q, want it to contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("Load() error = %v, want config file not found", err)
	}
}

func TestEmptyFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "", 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("APIURL = %q, want default", cfg.APIURL)
	}
}

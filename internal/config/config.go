// Package config loads the CLI configuration. Values come from built-in
// defaults, an optional YAML file, and DEPLOY_* environment variables, in
// increasing order of precedence; flags bound by the caller win over all
// of them.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"deploy/internal/failure"
	"deploy/internal/security"
	"deploy/pkg/fileutil"
)

const (
	AppName = "deploy"

	DefaultAPIURL          = "https://api.github.com/"
	DefaultUploadURL       = "https://uploads.github.com/"
	DefaultGitHubHost      = "github.com"
	DefaultAPITimeout      = 30 * time.Second
	DefaultDownloadTimeout = 5 * time.Minute
	DefaultGitTimeout      = 10 * time.Second
	DefaultPollInterval    = 2 * time.Second
	DefaultWatchTimeout    = 30 * time.Minute
	DefaultReleaseOwner    = "keelerm84"
	DefaultReleaseRepo     = "deploy"
	DefaultBinaryName      = "deploy"
)

// Config is the resolved configuration for one invocation.
type Config struct {
	Token           string
	APIURL          string
	UploadURL       string
	GitHubHost      string
	APITimeout      time.Duration
	DownloadTimeout time.Duration
	GitTimeout      time.Duration
	PollInterval    time.Duration
	WatchTimeout    time.Duration
	ReleaseOwner    string
	ReleaseRepo     string
	BinaryName      string
	Description     string

	// Path is the config file that was loaded, empty when none was found.
	Path string
	// Warnings are non-fatal problems found while loading.
	Warnings []string
}

// File mirrors the YAML config file. Durations are Go duration strings
// ("30s", "5m").
type File struct {
	Token           string `yaml:"token"`
	APIURL          string `yaml:"api_url"`
	UploadURL       string `yaml:"upload_url"`
	GitHubHost      string `yaml:"github_host"`
	APITimeout      string `yaml:"api_timeout"`
	DownloadTimeout string `yaml:"download_timeout"`
	GitTimeout      string `yaml:"git_timeout"`
	PollInterval    string `yaml:"poll_interval"`
	WatchTimeout    string `yaml:"watch_timeout"`
	ReleaseOwner    string `yaml:"release_owner"`
	ReleaseRepo     string `yaml:"release_repo"`
	BinaryName      string `yaml:"binary_name"`
	Description     string `yaml:"description"`
}

func (f *File) values() map[string]any {
	all := map[string]string{
		"token":            f.Token,
		"api_url":          f.APIURL,
		"upload_url":       f.UploadURL,
		"github_host":      f.GitHubHost,
		"api_timeout":      f.APITimeout,
		"download_timeout": f.DownloadTimeout,
		"git_timeout":      f.GitTimeout,
		"poll_interval":    f.PollInterval,
		"watch_timeout":    f.WatchTimeout,
		"release_owner":    f.ReleaseOwner,
		"release_repo":     f.ReleaseRepo,
		"binary_name":      f.BinaryName,
		"description":      f.Description,
	}
	values := make(map[string]any, len(all))
	for k, v := range all {
		if v != "" {
			values[k] = v
		}
	}
	return values
}

var defaults = map[string]any{
	"api_url":          DefaultAPIURL,
	"upload_url":       DefaultUploadURL,
	"github_host":      DefaultGitHubHost,
	"api_timeout":      DefaultAPITimeout.String(),
	"download_timeout": DefaultDownloadTimeout.String(),
	"git_timeout":      DefaultGitTimeout.String(),
	"poll_interval":    DefaultPollInterval.String(),
	"watch_timeout":    DefaultWatchTimeout.String(),
	"release_owner":    DefaultReleaseOwner,
	"release_repo":     DefaultReleaseRepo,
	"binary_name":      DefaultBinaryName,
	"description":      "",
	"token":            "",
}

// Loader resolves configuration. The zero value searches the default
// paths and reads the process environment.
type Loader struct {
	// Path is an explicit config file; it must exist when set.
	Path string
	// SearchPaths overrides the default search order.
	SearchPaths []string
	// Flags are bound over every other source by key name
	// (e.g. a flag named "api-url" binds "api_url").
	Flags *pflag.FlagSet
}

// Load reads configuration using the default search paths.
func Load(path string) (*Config, error) {
	return (&Loader{Path: path}).Load()
}

// Load resolves and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix("DEPLOY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("token", "DEPLOY_TOKEN", "GITHUB_TOKEN"); err != nil {
		return nil, &failure.ConfigurationError{Msg: "binding token environment", Err: err}
	}

	path, err := l.locate()
	if err != nil {
		return nil, err
	}

	var warnings []string
	if path != "" {
		file, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := v.MergeConfigMap(file.values()); err != nil {
			return nil, &failure.ConfigurationError{Msg: "merging " + path, Err: err}
		}
		if file.Token != "" {
			if err := security.CheckSecretFile(path); err != nil {
				warnings = append(warnings, err.Error())
			}
		}
	}

	if l.Flags != nil {
		if err := bindFlags(v, l.Flags); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Token:        strings.TrimSpace(v.GetString("token")),
		APIURL:       v.GetString("api_url"),
		UploadURL:    v.GetString("upload_url"),
		GitHubHost:   v.GetString("github_host"),
		ReleaseOwner: v.GetString("release_owner"),
		ReleaseRepo:  v.GetString("release_repo"),
		BinaryName:   v.GetString("binary_name"),
		Description:  v.GetString("description"),
		Path:         path,
		Warnings:     warnings,
	}

	var problems []string
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"api_timeout", &cfg.APITimeout},
		{"download_timeout", &cfg.DownloadTimeout},
		{"git_timeout", &cfg.GitTimeout},
		{"poll_interval", &cfg.PollInterval},
		{"watch_timeout", &cfg.WatchTimeout},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(v.GetString(d.key))
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", d.key, err))
			continue
		}
		*d.dst = parsed
	}

	problems = append(problems, cfg.Validate()...)
	if cfg.Token != "" {
		if err := security.ValidateToken(cfg.Token); err != nil {
			problems = append(problems, fmt.Sprintf("token: %v", err))
		}
	}
	if len(problems) > 0 {
		return nil, failure.Configuration("invalid configuration: %s", strings.Join(problems, "; "))
	}

	return cfg, nil
}

func (l *Loader) locate() (string, error) {
	if l.Path != "" {
		if !fileutil.FileExists(l.Path) {
			return "", failure.Configuration("config file not found: %s", l.Path)
		}
		return l.Path, nil
	}
	paths := l.SearchPaths
	if paths == nil {
		paths = fileutil.ConfigPaths(AppName, "config.yaml")
	}
	return fileutil.SearchPathsOptional(paths), nil
}

// ReadFile parses a YAML config file. Unknown keys are rejected so typos
// do not silently fall back to defaults.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &failure.ConfigurationError{Msg: "failed to read config file", Err: err}
	}

	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, &failure.ConfigurationError{Msg: "failed to parse YAML config " + path, Err: err}
	}

	return &file, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if _, known := defaults[key]; !known {
			return
		}
		if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
			bindErr = &failure.ConfigurationError{Msg: "binding flag --" + f.Name, Err: err}
		}
	})
	return bindErr
}

// Validate checks the resolved values. The token is not required here;
// commands that call the API check it themselves.
func (c *Config) Validate() []string {
	var problems []string

	for _, u := range []struct{ key, value string }{
		{"api_url", c.APIURL},
		{"upload_url", c.UploadURL},
	} {
		parsed, err := url.Parse(u.value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			problems = append(problems, fmt.Sprintf("%s: must be an absolute URL, got %q", u.key, u.value))
		}
	}

	if c.GitHubHost == "" || strings.ContainsAny(c.GitHubHost, "/: ") {
		problems = append(problems, fmt.Sprintf("github_host: must be a bare host name, got %q", c.GitHubHost))
	}

	for _, d := range []struct {
		key   string
		value time.Duration
	}{
		{"api_timeout", c.APITimeout},
		{"download_timeout", c.DownloadTimeout},
		{"git_timeout", c.GitTimeout},
		{"poll_interval", c.PollInterval},
		{"watch_timeout", c.WatchTimeout},
	} {
		// zero would mean no bound at all
		if d.value <= 0 {
			problems = append(problems, fmt.Sprintf("%s: must be positive", d.key))
		}
	}

	if c.ReleaseOwner == "" || c.ReleaseRepo == "" {
		problems = append(problems, "release_owner and release_repo: must both be set")
	}
	if c.BinaryName == "" {
		problems = append(problems, "binary_name: must be set")
	}

	return problems
}

// ReleaseRepository is the owner/name the self-updater reads releases from.
func (c *Config) ReleaseRepository() string {
	return c.ReleaseOwner + "/" + c.ReleaseRepo
}

// WebURL is the browser base URL of the configured GitHub host.
func (c *Config) WebURL() string {
	return "https://" + c.GitHubHost
}

// RequireToken fails with a ConfigurationError when no token is configured.
func (c *Config) RequireToken() error {
	if c.Token == "" {
		return failure.Configuration("no GitHub token configured: set GITHUB_TOKEN, DEPLOY_TOKEN or token in %s", configHint(c.Path))
	}
	return nil
}

func configHint(path string) string {
	if path != "" {
		return path
	}
	return "the config file"
}

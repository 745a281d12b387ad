package main

import (
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"deploy/internal/config"
	"deploy/internal/deploy"
	"deploy/internal/platform"
	"deploy/internal/ui"
)

// app holds what every command shares once the root's pre-run has loaded
// the configuration.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	verbose    bool
	quiet      bool

	cfg     *config.Config
	logger  *slog.Logger
	printer *ui.Printer

	// newGit and executable are replaced by tests.
	newGit     func(dir string, timeout time.Duration) deploy.GitRunner
	executable string
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
		newGit: deploy.NewGitRunner,
	}
}

const skipConfig = "skip-config"

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "deploy [owner/repo]",
		Short: "Create GitHub deployments from the command line",
		Long: `deploy creates a deployment on GitHub for a repository and ref, after
checking that the commit's status checks have passed.

Without arguments it deploys the current branch of the checkout in the
working directory to the environment given with --env.`,
		Example: `  deploy --env staging
  deploy --env production --ref v1.4.2
  deploy keelerm84/deploy --ref main --env staging --detached`,
		Args:              cobra.MaximumNArgs(1),
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		RunE:              a.runDeploy,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: ./.deploy.yaml, then ~/.config/deploy/config.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "only print failures")

	addDeployFlags(root.Flags())
	root.SetGlobalNormalizationFunc(flagAliases)

	root.AddCommand(newUpdateCommand(a))
	root.AddCommand(newVersionCommand(a))
	return root
}

// flagAliases accepts --environment for --env and --branch, --commit or
// --tag for --ref.
func flagAliases(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	switch name {
	case "environment":
		name = "env"
	case "branch", "commit", "tag":
		name = "ref"
	}
	return pflag.NormalizedName(name)
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.logger = newLogger(a.stderr, a.verbose, a.quiet)
	slog.SetDefault(a.logger)
	a.printer = ui.New(a.stdout, a.quiet)

	if cmd.Annotations[skipConfig] == "true" {
		return nil
	}

	loader := &config.Loader{Path: a.configPath, Flags: cmd.Flags()}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	for _, w := range cfg.Warnings {
		a.logger.Warn(w)
	}
	if cfg.Path != "" {
		a.logger.Debug("loaded config", "path", cfg.Path)
	}
	a.cfg = cfg
	return nil
}

func newLogger(w io.Writer, verbose, quiet bool) *slog.Logger {
	level := log.WarnLevel
	switch {
	case verbose:
		level = log.DebugLevel
	case quiet:
		level = log.ErrorLevel
	}
	handler := log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: verbose,
		TimeFormat:      time.TimeOnly,
	})
	return slog.New(handler)
}

func (a *app) newClient() (*platform.Client, error) {
	return platform.NewClient(platform.Options{
		Token:           a.cfg.Token,
		BaseURL:         a.cfg.APIURL,
		UploadURL:       a.cfg.UploadURL,
		APITimeout:      a.cfg.APITimeout,
		DownloadTimeout: a.cfg.DownloadTimeout,
		UserAgent:       a.cfg.BinaryName + "/" + version,
		Logger:          a.logger,
	})
}

package main

import (
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ochairo/tfpublish/internal/domain/interfaces"
	"github.com/ochairo/tfpublish/internal/domain/interfaces/repositories"
	"github.com/ochairo/tfpublish/internal/external-adapters/hclog"
	"github.com/ochairo/tfpublish/internal/external-adapters/httpclient"
	"github.com/ochairo/tfpublish/internal/external-adapters/yaml"
)

const (
	envLogLevel    = "TFPUBLISH_LOG_LEVEL"
	envGitHubToken = "GITHUB_TOKEN"
	envTFEToken    = "TFE_TOKEN"
)

// app carries what every subcommand shares
type app struct {
	configFile string
	logLevel   string
	logJSON    bool

	stdout     io.Writer
	stderr     io.Writer
	getenv     func(string) string
	configRepo repositories.ConfigRepository

	logger interfaces.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	return newApp(stdout, stderr, os.Getenv).rootCmd()
}

func newApp(stdout, stderr io.Writer, getenv func(string) string) *app {
	return &app{
		stdout:     stdout,
		stderr:     stderr,
		getenv:     getenv,
		configRepo: yaml.NewConfigRepository(),
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tfpublish",
		Short: "Publish GitHub release artifacts to a private Terraform provider registry",
		Long: `tfpublish resolves the latest release of a GitHub repository, downloads the
provider archives for the requested platforms together with the SHA256SUMS
manifest and its signature, and publishes them as a new provider version in a
Terraform Cloud / Enterprise private registry.

Secrets are read from the environment:
  GITHUB_TOKEN  source repository access
  TFE_TOKEN     registry access`,
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.initLogger(cmd)
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn, error (env "+envLogLevel+")")
	root.PersistentFlags().BoolVar(&a.logJSON, "log-json", false, "emit logs as JSON")

	root.AddCommand(
		newPublishCmd(a),
		newFetchCmd(a),
		newShasumCmd(a),
		newProviderCmd(a),
		newVersionCmd(a),
	)

	return root
}

func (a *app) initLogger(cmd *cobra.Command) {
	level := a.logLevel
	if !cmd.Flags().Changed("log-level") {
		if env := a.getenv(envLogLevel); env != "" {
			level = env
		}
	}

	a.logger = hclog.New(hclog.Options{
		Name:   "tfpublish",
		Level:  level,
		JSON:   a.logJSON,
		Output: a.stderr,
	})
}

func (a *app) httpClient(timeout time.Duration) *http.Client {
	return httpclient.New(version, timeout)
}

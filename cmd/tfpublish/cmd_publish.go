package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ochairo/tfpublish/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/tfpublish/internal/domain-orchestrators"
	"github.com/ochairo/tfpublish/internal/domain/entities"
	"github.com/ochairo/tfpublish/internal/domain/interfaces"
)

func newPublishCmd(a *app) *cobra.Command {
	f := &configFlags{}

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish the latest release as a new provider version",
		Long: `Resolve the latest release of --repo, stage the archives of every --platform
together with the checksum manifest and its signature, then create the provider
version on the registry, upload the manifest and signature, and register and
upload each platform in the order given.

The first failing platform stops the run. Platforms published before it stay
published; the rest are reported as PENDING.`,
		Example: `  # Publish linux and darwin builds of acme/terraform-provider-widget
  GITHUB_TOKEN=... TFE_TOKEN=... tfpublish publish \
    --repo acme/terraform-provider-widget --provider widget \
    --organization acme --namespace acme --key-id 51852D87348FFC4C \
    -p linux_amd64 -p darwin_arm64

  # Everything from a config file, one platform overridden
  tfpublish publish -c tfpublish.yaml -p linux_arm64`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runPublish(cmd, f)
		},
	}

	f.addSourceFlags(cmd)
	f.addRegistryFlags(cmd)
	return cmd
}

func (a *app) runPublish(cmd *cobra.Command, f *configFlags) error {
	ctx := cmd.Context()

	cfg, err := a.loadConfig(ctx, cmd, f)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	orch, err := a.newOrchestrator(cfg, true)
	if err != nil {
		return err
	}

	a.logger.Info("Publishing provider",
		interfaces.F("repository", cfg.Source.Repository),
		interfaces.F("provider", cfg.Registry.Provider),
		interfaces.F("platforms", cfg.Platforms),
	)

	result, err := orch.Run(ctx)
	if result != nil {
		_, _ = fmt.Fprint(a.stdout, result.Summary())
	}
	return err
}

// newOrchestrator wires the gateways for cfg. The registry side is only
// built when withRegistry is set.
func (a *app) newOrchestrator(cfg *entities.PublishConfig, withRegistry bool) (*orchestrators.PublishOrchestrator, error) {
	client := a.httpClient(cfg.Timeout)

	source := gateways.NewHTTPGitHubGateway(client, cfg.Source.APIURL, cfg.Source.Token, a.logger).
		UseDirectDownload(cfg.Source.DirectDownload)

	deps := orchestrators.PublishDeps{
		Source: source,
		Stager: gateways.NewDownloader(source, cfg.Concurrency, a.logger),
		Logger: a.logger,
	}
	if !withRegistry {
		return orchestrators.NewPublishOrchestrator(cfg, deps), nil
	}

	registry, err := gateways.NewHTTPRegistryGateway(client, cfg.Registry, a.logger)
	if err != nil {
		return nil, err
	}
	deps.Registry = registry
	deps.Checksums = gateways.NewChecksumVerifier()
	if cfg.Signing.PublicKeyPath != "" {
		deps.Signatures = gateways.NewGPGVerifier(client, cfg.Signing.PublicKeyPath)
	}

	return orchestrators.NewPublishOrchestrator(cfg, deps), nil
}

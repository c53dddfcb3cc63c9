package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ochairo/tfpublish/internal/domain/entities"
	"github.com/ochairo/tfpublish/internal/domain/interfaces"
)

// configFlags are command-line overrides of the YAML config file
type configFlags struct {
	repo           string
	artifactName   string
	apiURL         string
	directDownload bool
	platforms      []string
	outputDir      string
	concurrency    int
	timeout        time.Duration

	registryURL     string
	address         string
	provider        string
	protocols       []string
	keyID           string
	publicKey       string
	verifyChecksums bool
	createProvider  bool
	organization    string
	namespace       string
}

func (f *configFlags) addSourceFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.repo, "repo", "", "source repository (owner/name)")
	fs.StringVar(&f.artifactName, "artifact-name", "", "artifact filename prefix (default: repository name)")
	fs.StringVar(&f.apiURL, "github-api-url", "", "GitHub API URL (default "+entities.DefaultGitHubAPIURL+")")
	fs.BoolVar(&f.directDownload, "direct-download", false, "download assets via browser_download_url")
	fs.StringSliceVarP(&f.platforms, "platform", "p", nil, "platform to publish as os_arch (repeatable)")
	fs.StringVarP(&f.outputDir, "output-dir", "o", "", "directory assets are staged in (default "+entities.DefaultOutputDir+")")
	fs.IntVar(&f.concurrency, "concurrency", 0, "parallel downloads (default 1)")
	fs.DurationVar(&f.timeout, "timeout", 0, "per-request HTTP timeout (default 5m)")
}

func (f *configFlags) addRegistryFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.registryURL, "registry-url", "", "provider collection URL, e.g. https://app.terraform.io/api/v2/organizations/ORG/registry-providers/private/NS")
	fs.StringVar(&f.address, "address", "", "registry API host (default "+entities.DefaultTFEAddress+")")
	fs.StringVar(&f.provider, "provider", "", "provider name")
	fs.StringSliceVar(&f.protocols, "protocol", nil, "supported provider protocol versions (default "+entities.DefaultProtocol+")")
	fs.StringVar(&f.keyID, "key-id", "", "registry GPG key id the manifest is signed with")
	fs.StringVar(&f.publicKey, "public-key", "", "public key file or URL; verifies the manifest signature before publishing")
	fs.BoolVar(&f.verifyChecksums, "verify-checksums", true, "check staged archives against the manifest")
	fs.BoolVar(&f.createProvider, "create-provider", false, "create the provider before publishing (an existing one is kept)")
	fs.StringVar(&f.organization, "organization", "", "registry organization")
	fs.StringVar(&f.namespace, "namespace", "", "registry namespace")
}

// apply copies every flag the user set onto cfg
func (f *configFlags) apply(cmd *cobra.Command, cfg *entities.PublishConfig) {
	changed := cmd.Flags().Changed

	if changed("repo") {
		cfg.Source.Repository = f.repo
	}
	if changed("artifact-name") {
		cfg.Source.ArtifactName = f.artifactName
	}
	if changed("github-api-url") {
		cfg.Source.APIURL = f.apiURL
	}
	if changed("direct-download") {
		cfg.Source.DirectDownload = f.directDownload
	}
	if changed("platform") {
		cfg.Platforms = f.platforms
	}
	if changed("output-dir") {
		cfg.OutputDir = f.outputDir
	}
	if changed("concurrency") {
		cfg.Concurrency = f.concurrency
	}
	if changed("timeout") {
		cfg.Timeout = f.timeout
	}

	if changed("registry-url") {
		cfg.Registry.URL = f.registryURL
	}
	if changed("address") {
		cfg.Registry.Address = f.address
	}
	if changed("provider") {
		cfg.Registry.Provider = f.provider
	}
	if changed("protocol") {
		cfg.Registry.Protocols = f.protocols
	}
	if changed("key-id") {
		cfg.Signing.KeyID = f.keyID
	}
	if changed("public-key") {
		cfg.Signing.PublicKeyPath = f.publicKey
	}
	if changed("verify-checksums") {
		cfg.VerifyChecksums = f.verifyChecksums
	}
	if changed("create-provider") {
		cfg.Registry.CreateProvider = f.createProvider
	}
	if changed("organization") {
		cfg.Registry.Organization = f.organization
	}
	if changed("namespace") {
		cfg.Registry.Namespace = f.namespace
	}
}

// loadConfig layers the config file, the flags and the environment tokens,
// in that order, and fills in defaults
func (a *app) loadConfig(ctx context.Context, cmd *cobra.Command, f *configFlags) (*entities.PublishConfig, error) {
	cfg := &entities.PublishConfig{VerifyChecksums: true}

	if a.configFile != "" {
		loaded, err := a.configRepo.LoadConfig(ctx, a.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		a.logger.Debug("Loaded config file", interfaces.F("path", a.configFile))
	}

	f.apply(cmd, cfg)

	if token := a.getenv(envGitHubToken); token != "" {
		cfg.Source.Token = token
	}
	if token := a.getenv(envTFEToken); token != "" {
		cfg.Registry.Token = token
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// validateSource checks the subset of a PublishConfig a stage-only run needs
func validateSource(cfg *entities.PublishConfig) error {
	switch {
	case cfg.Source.Repository == "":
		return fmt.Errorf("source repository is required")
	case !strings.Contains(cfg.Source.Repository, "/"):
		return fmt.Errorf("source repository %q must be owner/name", cfg.Source.Repository)
	case len(cfg.Platforms) == 0:
		return fmt.Errorf("at least one platform is required")
	}
	_, err := entities.ParsePlatforms(cfg.Platforms)
	return err
}

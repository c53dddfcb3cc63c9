package entities

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Defaults applied when a PublishConfig leaves a field empty
const (
	DefaultGitHubAPIURL = "https://api.github.com"
	DefaultTFEAddress   = "https://app.terraform.io"
	DefaultOutputDir    = "dist"
	DefaultProtocol     = "6.0"
	DefaultTimeout      = 5 * time.Minute
)

// PublishConfig is the run-scoped configuration of one publishing pipeline.
// Credentials live here and are passed once into the pipeline runner.
type PublishConfig struct {
	Source   SourceConfig
	Registry RegistryConfig
	Signing  SigningConfig

	// Platforms are the requested "os_arch" identifiers, in request order
	Platforms []string
	OutputDir string
	// Concurrency bounds parallel downloads; 1 means strictly sequential
	Concurrency     int
	VerifyChecksums bool
	Timeout         time.Duration
}

// SourceConfig describes where releases are resolved from
type SourceConfig struct {
	Repository string // owner/name
	// ArtifactName prefixes every artifact filename; defaults to the repository name
	ArtifactName   string
	APIURL         string
	Token          string
	DirectDownload bool // fetch via browser_download_url instead of the assets API
}

// RegistryConfig describes the destination private registry
type RegistryConfig struct {
	// URL is the provider collection base, e.g.
	// https://app.terraform.io/api/v2/organizations/acme/registry-providers/private/acme
	URL       string
	Address   string // API host used for provider creation
	Token     string
	Provider  string
	Protocols []string

	CreateProvider bool
	Organization   string
	Namespace      string
}

// SigningConfig describes the GPG key the manifest is signed with
type SigningConfig struct {
	KeyID         string
	PublicKeyPath string // optional; enables local signature verification
}

// ProviderCollectionURL returns the private registry provider collection
// of Organization/Namespace on Address
func (r RegistryConfig) ProviderCollectionURL() string {
	return fmt.Sprintf("%s/api/v2/organizations/%s/registry-providers/private/%s",
		strings.TrimSuffix(r.Address, "/"), url.PathEscape(r.Organization), url.PathEscape(r.Namespace))
}

// ArtifactPrefix returns the name artifact filenames start with
func (c *PublishConfig) ArtifactPrefix() string {
	if c.Source.ArtifactName != "" {
		return c.Source.ArtifactName
	}
	return RepoName(c.Source.Repository)
}

// ApplyDefaults fills empty fields with their defaults
func (c *PublishConfig) ApplyDefaults() {
	if c.Source.APIURL == "" {
		c.Source.APIURL = DefaultGitHubAPIURL
	}
	if c.Registry.Address == "" {
		c.Registry.Address = DefaultTFEAddress
	}
	if c.Registry.URL == "" && c.Registry.Organization != "" && c.Registry.Namespace != "" {
		c.Registry.URL = c.Registry.ProviderCollectionURL()
	}
	if len(c.Registry.Protocols) == 0 {
		c.Registry.Protocols = []string{DefaultProtocol}
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// Validate checks the fields a publish run cannot do without
func (c *PublishConfig) Validate() error {
	switch {
	case c.Source.Repository == "":
		return fmt.Errorf("source repository is required")
	case !strings.Contains(c.Source.Repository, "/"):
		return fmt.Errorf("source repository %q must be owner/name", c.Source.Repository)
	case c.Registry.URL == "":
		return fmt.Errorf("registry URL is required (or organization and namespace)")
	case c.Registry.Provider == "":
		return fmt.Errorf("registry provider name is required")
	case c.Registry.Token == "":
		return fmt.Errorf("registry token is required")
	case c.Signing.KeyID == "":
		return fmt.Errorf("signing key id is required")
	case len(c.Platforms) == 0:
		return fmt.Errorf("at least one platform is required")
	case c.Registry.CreateProvider && (c.Registry.Organization == "" || c.Registry.Namespace == ""):
		return fmt.Errorf("organization and namespace are required to create the provider")
	}
	if _, err := ParsePlatforms(c.Platforms); err != nil {
		return err
	}
	return nil
}

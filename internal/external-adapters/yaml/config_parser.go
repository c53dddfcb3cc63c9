// Package yaml provides YAML-based publish configuration parsing and repository implementations.
package yaml

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ochairo/tfpublish/internal/domain/entities"
	"gopkg.in/yaml.v3"
)

// yamlConfig represents the raw YAML structure.
// Tokens are deliberately absent: credentials come from the environment.
type yamlConfig struct {
	Source          yamlSource   `yaml:"source"`
	Registry        yamlRegistry `yaml:"registry"`
	Signing         yamlSigning  `yaml:"signing"`
	Platforms       []string     `yaml:"platforms"`
	OutputDir       string       `yaml:"output_dir"`
	Concurrency     int          `yaml:"concurrency"`
	VerifyChecksums *bool        `yaml:"verify_checksums"`
	Timeout         string       `yaml:"timeout"`
}

type yamlSource struct {
	Repository     string `yaml:"repository"`
	ArtifactName   string `yaml:"artifact_name"`
	APIURL         string `yaml:"api_url"`
	DirectDownload bool   `yaml:"direct_download"`
}

type yamlRegistry struct {
	URL            string   `yaml:"url"`
	Address        string   `yaml:"address"`
	Provider       string   `yaml:"provider"`
	Protocols      []string `yaml:"protocols"`
	CreateProvider bool     `yaml:"create_provider"`
	Organization   string   `yaml:"organization"`
	Namespace      string   `yaml:"namespace"`
}

type yamlSigning struct {
	KeyID     string `yaml:"key_id"`
	PublicKey string `yaml:"public_key"`
}

// ConfigParser parses YAML publish configuration files
type ConfigParser struct{}

// NewConfigParser creates a new YAML parser
func NewConfigParser() *ConfigParser {
	return &ConfigParser{}
}

// ParseFile parses a YAML configuration file into a PublishConfig entity
func (p *ConfigParser) ParseFile(filePath string) (*entities.PublishConfig, error) {
	//nolint:gosec // G304: filePath is the user-selected configuration file
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	return p.Parse(data)
}

// Parse parses YAML bytes into a PublishConfig entity. Unknown keys are rejected.
func (p *ConfigParser) Parse(data []byte) (*entities.PublishConfig, error) {
	var yc yamlConfig

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&yc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if yc.Concurrency < 0 {
		return nil, fmt.Errorf("concurrency must not be negative, got %d", yc.Concurrency)
	}

	var timeout time.Duration
	if yc.Timeout != "" {
		d, err := time.ParseDuration(yc.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", yc.Timeout, err)
		}
		timeout = d
	}

	if _, err := entities.ParsePlatforms(yc.Platforms); err != nil {
		return nil, err
	}

	verify := true
	if yc.VerifyChecksums != nil {
		verify = *yc.VerifyChecksums
	}

	cfg := &entities.PublishConfig{
		Source:          convertSource(yc.Source),
		Registry:        convertRegistry(yc.Registry),
		Signing:         convertSigning(yc.Signing),
		Platforms:       yc.Platforms,
		OutputDir:       yc.OutputDir,
		Concurrency:     yc.Concurrency,
		VerifyChecksums: verify,
		Timeout:         timeout,
	}

	return cfg, nil
}

func convertSource(ys yamlSource) entities.SourceConfig {
	return entities.SourceConfig{
		Repository:     ys.Repository,
		ArtifactName:   ys.ArtifactName,
		APIURL:         ys.APIURL,
		DirectDownload: ys.DirectDownload,
	}
}

func convertRegistry(yr yamlRegistry) entities.RegistryConfig {
	return entities.RegistryConfig{
		URL:            yr.URL,
		Address:        yr.Address,
		Provider:       yr.Provider,
		Protocols:      yr.Protocols,
		CreateProvider: yr.CreateProvider,
		Organization:   yr.Organization,
		Namespace:      yr.Namespace,
	}
}

func convertSigning(ys yamlSigning) entities.SigningConfig {
	return entities.SigningConfig{
		KeyID:         ys.KeyID,
		PublicKeyPath: ys.PublicKey,
	}
}

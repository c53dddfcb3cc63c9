package gateways

import (
	"context"

	"github.com/ochairo/tfpublish/internal/domain/entities"
)

// RegistryGateway defines operations against the private provider registry
type RegistryGateway interface {
	// CreateProvider creates the provider resource under an organization
	CreateProvider(ctx context.Context, organization string, provider *entities.RegistryProvider) error

	// CreateVersion creates a provider version and returns its manifest upload targets
	CreateVersion(ctx context.Context, version, keyID string, protocols []string) (*entities.RegistryVersion, error)

	// CreatePlatform registers a platform under an existing version and returns its binary upload target
	CreatePlatform(ctx context.Context, version string, platform *entities.RegistryPlatform) (*entities.RegistryPlatform, error)

	// Upload PUTs a local file as a raw byte stream to an upload target
	Upload(ctx context.Context, targetURL, filePath string) error
}

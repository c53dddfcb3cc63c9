// Package repositories defines interfaces for data access layers.
package repositories

import (
	"context"

	"github.com/ochairo/tfpublish/internal/domain/entities"
)

// ConfigRepository defines the interface for loading publish configuration
type ConfigRepository interface {
	// LoadConfig reads the publish configuration stored at path
	LoadConfig(ctx context.Context, path string) (*entities.PublishConfig, error)
}

// Package gateways defines interfaces for external service adapters.
package gateways

import (
	"context"
	"io"

	"github.com/ochairo/tfpublish/internal/domain/entities"
)

// ReleaseSource defines read operations against the source hosting platform
type ReleaseSource interface {
	// LatestRelease resolves the latest release of an owner/name repository
	LatestRelease(ctx context.Context, repo string) (*entities.Release, error)

	// OpenAsset opens a stream over an asset's binary content.
	// The caller must close the returned reader.
	OpenAsset(ctx context.Context, repo string, asset entities.Asset) (io.ReadCloser, error)
}

// AssetStager writes release assets into a local directory
type AssetStager interface {
	// StageAll downloads every asset into outputDir, in order
	StageAll(ctx context.Context, repo string, assets []entities.Asset, outputDir string) ([]*entities.StagedAsset, error)
}

package gateways

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/ochairo/tfpublish/internal/domain/entities"
	"github.com/ochairo/tfpublish/internal/domain/interfaces"
	"github.com/ochairo/tfpublish/internal/domain/interfaces/gateways"
)

var _ gateways.AssetStager = (*Downloader)(nil)

// Downloader stages release assets into a local directory
type Downloader struct {
	source      gateways.ReleaseSource
	concurrency int
	logger      interfaces.Logger
}

// NewDownloader creates a new downloader. A concurrency below 1 means sequential.
func NewDownloader(source gateways.ReleaseSource, concurrency int, logger interfaces.Logger) *Downloader {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &Downloader{
		source:      source,
		concurrency: concurrency,
		logger:      logger,
	}
}

// StageAll downloads every asset into outputDir. Results are returned in
// input order. The first failure cancels downloads that have not started.
func (d *Downloader) StageAll(ctx context.Context, repo string, assets []entities.Asset, outputDir string) ([]*entities.StagedAsset, error) {
	if err := os.MkdirAll(outputDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	staged := make([]*entities.StagedAsset, len(assets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i, asset := range assets {
		i, asset := i, asset
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := d.Stage(gctx, repo, asset, outputDir)
			if err != nil {
				return err
			}
			staged[i] = s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return staged, nil
}

// Stage streams one asset to <outputDir>/<name>. The file is created only
// once the source answered 200 and is removed again on any write failure.
func (d *Downloader) Stage(ctx context.Context, repo string, asset entities.Asset, outputDir string) (*entities.StagedAsset, error) {
	if asset.Name == "" || asset.Name != filepath.Base(asset.Name) {
		return nil, fmt.Errorf("invalid asset name %q", asset.Name)
	}

	body, err := d.source.OpenAsset(ctx, repo, asset)
	if err != nil {
		return nil, err
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer body.Close()

	dest := filepath.Join(outputDir, asset.Name)

	//nolint:gosec // G304: dest is the output directory joined with a base name
	out, err := os.Create(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w: %w", dest, entities.ErrStreamWrite, err)
	}

	written, copyErr := io.Copy(out, body)
	closeErr := out.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(dest)
		return nil, fmt.Errorf("failed to write %s: %w: %w", asset.Name, entities.ErrStreamWrite, err)
	}

	d.logger.Debug("Staged asset",
		interfaces.F("name", asset.Name),
		interfaces.F("bytes", written),
	)

	return &entities.StagedAsset{
		Asset: asset,
		Path:  dest,
		Bytes: written,
	}, nil
}

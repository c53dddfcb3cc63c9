// Package orchestrators coordinates complex workflows across multiple domain services.
package orchestrators

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/ochairo/tfpublish/internal/domain/entities"
	"github.com/ochairo/tfpublish/internal/domain/interfaces"
	"github.com/ochairo/tfpublish/internal/domain/interfaces/gateways"
	"github.com/ochairo/tfpublish/internal/domain/services"
)

// PublishOrchestrator runs the release-to-registry pipeline for one PublishConfig
type PublishOrchestrator struct {
	config     *entities.PublishConfig
	source     gateways.ReleaseSource
	stager     gateways.AssetStager
	registry   gateways.RegistryGateway
	checksums  gateways.ChecksumVerifier
	signatures gateways.SignatureVerifier
	selector   *services.AssetSelector
	shasums    *services.ChecksumService
	logger     interfaces.Logger
}

// PublishDeps holds the collaborators of a PublishOrchestrator.
// Registry may be nil for stage-only runs, Signatures when no public key is configured.
type PublishDeps struct {
	Source     gateways.ReleaseSource
	Stager     gateways.AssetStager
	Registry   gateways.RegistryGateway
	Checksums  gateways.ChecksumVerifier
	Signatures gateways.SignatureVerifier
	Logger     interfaces.Logger
}

// NewPublishOrchestrator creates a new publish orchestrator
func NewPublishOrchestrator(config *entities.PublishConfig, deps PublishDeps) *PublishOrchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}

	return &PublishOrchestrator{
		config:     config,
		source:     deps.Source,
		stager:     deps.Stager,
		registry:   deps.Registry,
		checksums:  deps.Checksums,
		signatures: deps.Signatures,
		selector:   services.NewAssetSelector(),
		shasums:    services.NewChecksumService(),
		logger:     logger,
	}
}

// StageResult contains the outcome of resolving and staging a release
type StageResult struct {
	Release   *entities.Release
	Selection *services.Selection
	Staged    []*entities.StagedAsset
	Duration  time.Duration
}

// PublishResult contains the result of a publish run. It is returned even
// when the run fails so callers can report which platforms completed.
type PublishResult struct {
	Version         string
	Stage           *StageResult
	RegistryVersion *entities.RegistryVersion
	// Platforms holds one result per requested platform, in request order
	Platforms       []*entities.PlatformResult
	PublishDuration time.Duration
	TotalDuration   time.Duration
	Success         bool
	Error           error
}

// Stage resolves the latest release and downloads the assets the requested
// platforms need into the output directory
func (o *PublishOrchestrator) Stage(ctx context.Context) (*StageResult, error) {
	start := time.Now()

	platforms, err := entities.ParsePlatforms(o.config.Platforms)
	if err != nil {
		return nil, err
	}

	repo := o.config.Source.Repository
	release, err := o.source.LatestRelease(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve latest release: %w", err)
	}
	o.logger.Info("Resolved latest release",
		interfaces.F("repository", repo),
		interfaces.F("tag", release.TagName),
		interfaces.F("assets", len(release.Assets)),
	)

	selection, err := o.selector.SelectAssets(release, o.config.ArtifactPrefix(), platforms)
	if err != nil {
		return nil, err
	}
	if !selection.IsComplete() {
		o.logger.Warn("Release is missing expected assets", interfaces.F("missing", selection.Missing))
	}

	staged, err := o.stager.StageAll(ctx, repo, selection.Assets, o.config.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stage release assets: %w", err)
	}
	o.logger.Info("Staged release assets",
		interfaces.F("count", len(staged)),
		interfaces.F("output_dir", o.config.OutputDir),
	)

	return &StageResult{
		Release:   release,
		Selection: selection,
		Staged:    staged,
		Duration:  time.Since(start),
	}, nil
}

// Run executes the complete publish workflow:
// stage, extract digests, create the version, upload the manifest and
// signature, then register and upload every platform in request order.
func (o *PublishOrchestrator) Run(ctx context.Context) (*PublishResult, error) {
	startTime := time.Now()
	result := &PublishResult{}

	fail := func(err error) (*PublishResult, error) {
		result.Error = err
		result.TotalDuration = time.Since(startTime)
		return result, err
	}

	platforms, err := entities.ParsePlatforms(o.config.Platforms)
	if err != nil {
		return fail(err)
	}
	for _, p := range platforms {
		result.Platforms = append(result.Platforms, &entities.PlatformResult{Platform: p, State: entities.PlatformPending})
	}

	// Step 1: Make sure the provider exists (optional)
	if o.config.Registry.CreateProvider {
		if err := o.ensureProvider(ctx); err != nil {
			return fail(err)
		}
	}

	// Step 2: Resolve, select and stage
	stage, err := o.Stage(ctx)
	if err != nil {
		return fail(err)
	}
	result.Stage = stage
	result.Version = stage.Selection.Version

	publishStart := time.Now()

	// Step 3: Digests for every platform, before touching the registry
	if err := o.resolveDigests(ctx, result); err != nil {
		return fail(err)
	}

	manifestPath := filepath.Join(o.config.OutputDir, entities.ShasumsName(o.config.ArtifactPrefix(), result.Version))
	sigPath := filepath.Join(o.config.OutputDir, entities.ShasumsSigName(o.config.ArtifactPrefix(), result.Version))
	if err := requireStaged(stage, filepath.Base(sigPath)); err != nil {
		return fail(err)
	}

	// Step 4: Signature check (optional)
	if o.signatures != nil {
		if err := o.signatures.VerifyManifestSignature(ctx, manifestPath, sigPath, o.config.Signing.KeyID); err != nil {
			return fail(err)
		}
		o.logger.Info("Verified manifest signature", interfaces.F("key_id", o.config.Signing.KeyID))
	}

	// Step 5: Create the version; nothing platform-related happens before this returns
	version, err := o.registry.CreateVersion(ctx, result.Version, o.config.Signing.KeyID, o.config.Registry.Protocols)
	if err != nil {
		return fail(fmt.Errorf("failed to create provider version: %w", err))
	}
	result.RegistryVersion = version
	o.logger.Info("Created provider version",
		interfaces.F("provider", o.config.Registry.Provider),
		interfaces.F("version", version.Version),
	)

	// Step 6: Manifest and signature. Platforms depend on the published manifest.
	if err := o.registry.Upload(ctx, version.ShasumsUploadURL, manifestPath); err != nil {
		return fail(fmt.Errorf("failed to upload checksum manifest: %w", err))
	}
	if err := o.registry.Upload(ctx, version.ShasumsSigUploadURL, sigPath); err != nil {
		return fail(fmt.Errorf("failed to upload checksum signature: %w", err))
	}
	o.logger.Info("Uploaded checksum manifest and signature")

	// Step 7: Platforms, sequentially; the first failure ends the run
	for _, pr := range result.Platforms {
		if err := o.publishPlatform(ctx, version.Version, pr); err != nil {
			return fail(err)
		}
	}

	result.PublishDuration = time.Since(publishStart)
	result.TotalDuration = time.Since(startTime)
	result.Success = true
	return result, nil
}

// ensureProvider creates the provider resource. A provider that already
// exists is not an error here.
func (o *PublishOrchestrator) ensureProvider(ctx context.Context) error {
	reg := o.config.Registry
	provider := &entities.RegistryProvider{
		Name:      reg.Provider,
		Namespace: reg.Namespace,
	}

	err := o.registry.CreateProvider(ctx, reg.Organization, provider)
	if err != nil && entities.StatusCode(err) == http.StatusUnprocessableEntity {
		o.logger.Info("Registry provider already exists", interfaces.F("name", reg.Provider))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create registry provider: %w", err)
	}
	return nil
}

// resolveDigests fills in each platform's archive name and manifest digest,
// verifying the staged archive against it when enabled
func (o *PublishOrchestrator) resolveDigests(ctx context.Context, result *PublishResult) error {
	prefix := o.config.ArtifactPrefix()

	for _, pr := range result.Platforms {
		pr.Filename = entities.ArchiveName(prefix, result.Version, pr.Platform)

		shasum, err := o.shasums.ExtractShasum(o.config.OutputDir, prefix, result.Version, pr.Platform)
		if err != nil {
			return fmt.Errorf("platform %s: %w", pr.Platform, err)
		}
		pr.Shasum = shasum

		if err := requireStaged(result.Stage, pr.Filename); err != nil {
			return fmt.Errorf("platform %s: %w", pr.Platform, err)
		}

		if o.config.VerifyChecksums && o.checksums != nil {
			archivePath := filepath.Join(o.config.OutputDir, pr.Filename)
			if err := o.checksums.VerifyChecksum(ctx, archivePath, shasum); err != nil {
				return fmt.Errorf("platform %s: %w", pr.Platform, err)
			}
		}

		o.logger.Debug("Resolved platform digest",
			interfaces.F("platform", pr.Platform.String()),
			interfaces.F("shasum", shasum),
		)
	}
	return nil
}

// publishPlatform moves one platform through PENDING → REGISTERED → UPLOADED,
// or to FAILED at either step
func (o *PublishOrchestrator) publishPlatform(ctx context.Context, version string, pr *entities.PlatformResult) error {
	logger := o.logger.With(interfaces.F("platform", pr.Platform.String()))

	platform, err := o.registry.CreatePlatform(ctx, version, &entities.RegistryPlatform{
		OS:       pr.Platform.OS,
		Arch:     pr.Platform.Arch,
		Shasum:   pr.Shasum,
		Filename: pr.Filename,
	})
	if err != nil {
		pr.State = entities.PlatformFailed
		pr.Err = fmt.Errorf("failed to register platform %s: %w", pr.Platform, err)
		logger.Error("Platform registration failed", interfaces.F("error", err.Error()))
		return pr.Err
	}
	pr.State = entities.PlatformRegistered
	logger.Info("Registered platform", interfaces.F("filename", pr.Filename))

	archivePath := filepath.Join(o.config.OutputDir, pr.Filename)
	if err := o.registry.Upload(ctx, platform.BinaryUploadURL, archivePath); err != nil {
		pr.State = entities.PlatformFailed
		pr.Err = fmt.Errorf("failed to upload platform %s binary: %w", pr.Platform, err)
		logger.Error("Platform upload failed", interfaces.F("error", err.Error()))
		return pr.Err
	}
	pr.State = entities.PlatformUploaded
	logger.Info("Uploaded platform binary")

	return nil
}

// requireStaged fails when name was expected but the release did not carry it
func requireStaged(stage *StageResult, name string) error {
	for _, s := range stage.Staged {
		if s.Asset.Name == name {
			return nil
		}
	}
	return fmt.Errorf("%w: release %s has no asset %s", entities.ErrAssetNotFound, stage.Release.TagName, name)
}

// Summary returns a human-readable summary of the run
func (r *PublishResult) Summary() string {
	var b strings.Builder

	if r.Success {
		fmt.Fprintf(&b, "Published version %s\n", r.Version)
	} else {
		fmt.Fprintf(&b, "Publish failed: %v\n", r.Error)
	}

	unfinished := 0
	for _, pr := range r.Platforms {
		fmt.Fprintf(&b, "  %-20s %s", pr.Platform, pr.State)
		if pr.Shasum != "" {
			fmt.Fprintf(&b, "  %s", pr.Shasum)
		}
		b.WriteString("\n")
		if !pr.Done() {
			unfinished++
		}
	}
	if !r.Success && unfinished > 0 {
		fmt.Fprintf(&b, "%d of %d platforms not published\n", unfinished, len(r.Platforms))
	}

	if r.Success {
		fmt.Fprintf(&b, "Stage: %v\nPublish: %v\nTotal: %v\n",
			r.Stage.Duration.Round(time.Millisecond),
			r.PublishDuration.Round(time.Millisecond),
			r.TotalDuration.Round(time.Millisecond),
		)
	}

	return b.String()
}

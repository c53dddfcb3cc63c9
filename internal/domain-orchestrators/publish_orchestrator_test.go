package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ochairo/tfpublish/internal/domain/entities"
)

// Mock implementations for testing

type mockSource struct {
	release *entities.Release
	err     error
}

func (m *mockSource) LatestRelease(_ context.Context, _ string) (*entities.Release, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.release, nil
}

func (m *mockSource) OpenAsset(_ context.Context, _ string, _ entities.Asset) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

// mockStager writes in-memory content for each asset into the output directory
type mockStager struct {
	content map[string]string
	err     error
	staged  []string
}

func (m *mockStager) StageAll(_ context.Context, _ string, assets []entities.Asset, outputDir string) ([]*entities.StagedAsset, error) {
	if m.err != nil {
		return nil, m.err
	}
	if err := os.MkdirAll(outputDir, 0750); err != nil {
		return nil, err
	}
	var out []*entities.StagedAsset
	for _, a := range assets {
		path := filepath.Join(outputDir, a.Name)
		if err := os.WriteFile(path, []byte(m.content[a.Name]), 0600); err != nil {
			return nil, err
		}
		m.staged = append(m.staged, a.Name)
		out = append(out, &entities.StagedAsset{Asset: a, Path: path, Bytes: int64(len(m.content[a.Name]))})
	}
	return out, nil
}

// mockRegistry records every call in order
type mockRegistry struct {
	calls []string

	providerErr error
	versionErr  error
	// failures keyed by the recorded call, e.g. "CreatePlatform linux_amd64"
	failures map[string]error
}

func (m *mockRegistry) fail(call string) error {
	m.calls = append(m.calls, call)
	return m.failures[call]
}

func (m *mockRegistry) CreateProvider(_ context.Context, organization string, provider *entities.RegistryProvider) error {
	m.calls = append(m.calls, fmt.Sprintf("CreateProvider %s/%s/%s", organization, provider.Namespace, provider.Name))
	return m.providerErr
}

func (m *mockRegistry) CreateVersion(_ context.Context, version, keyID string, protocols []string) (*entities.RegistryVersion, error) {
	m.calls = append(m.calls, fmt.Sprintf("CreateVersion %s %s %s", version, keyID, strings.Join(protocols, ",")))
	if m.versionErr != nil {
		return nil, m.versionErr
	}
	return &entities.RegistryVersion{
		Version:             version,
		KeyID:               keyID,
		Protocols:           protocols,
		ShasumsUploadURL:    "https://upload.example.com/sums",
		ShasumsSigUploadURL: "https://upload.example.com/sig",
	}, nil
}

func (m *mockRegistry) CreatePlatform(_ context.Context, _ string, platform *entities.RegistryPlatform) (*entities.RegistryPlatform, error) {
	id := platform.OS + "_" + platform.Arch
	if err := m.fail("CreatePlatform " + id); err != nil {
		return nil, err
	}
	registered := *platform
	registered.BinaryUploadURL = "https://upload.example.com/" + id
	return &registered, nil
}

func (m *mockRegistry) Upload(_ context.Context, targetURL, filePath string) error {
	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("%w: %w", entities.ErrStreamWrite, err)
	}
	return m.fail("Upload " + filepath.Base(filePath) + " -> " + targetURL)
}

type mockChecksums struct {
	err   error
	calls int
}

func (m *mockChecksums) VerifyChecksum(_ context.Context, _, _ string) error {
	m.calls++
	return m.err
}

type mockSignatures struct {
	err                     error
	manifest, sig, gotKeyID string
}

func (m *mockSignatures) VerifyManifestSignature(_ context.Context, manifestPath, sigPath, keyID string) error {
	m.manifest, m.sig, m.gotKeyID = manifestPath, sigPath, keyID
	return m.err
}

// widgetFixture is the org/widget v1.2.0 release with three platforms
func widgetFixture(t *testing.T, platforms ...string) (*entities.PublishConfig, *mockSource, *mockStager) {
	t.Helper()

	content := map[string]string{
		"widget_1.2.0_SHA256SUMS": "abc123  widget_1.2.0_linux_amd64.zip\n" +
			"def456  widget_1.2.0_darwin_arm64.zip\n" +
			"789fed  widget_1.2.0_windows_amd64.zip\n",
		"widget_1.2.0_SHA256SUMS.sig":    "sig",
		"widget_1.2.0_linux_amd64.zip":   "linux",
		"widget_1.2.0_darwin_arm64.zip":  "darwin",
		"widget_1.2.0_windows_amd64.zip": "windows",
		"widget_1.2.0_freebsd_386.zip":   "freebsd",
		"widget_1.2.0_manifest.json":     "{}",
	}

	release := &entities.Release{TagName: "v1.2.0"}
	id := int64(1)
	for _, name := range []string{
		"widget_1.2.0_darwin_arm64.zip",
		"widget_1.2.0_freebsd_386.zip",
		"widget_1.2.0_linux_amd64.zip",
		"widget_1.2.0_manifest.json",
		"widget_1.2.0_SHA256SUMS",
		"widget_1.2.0_SHA256SUMS.sig",
		"widget_1.2.0_windows_amd64.zip",
	} {
		release.Assets = append(release.Assets, entities.Asset{ID: id, Name: name})
		id++
	}

	if len(platforms) == 0 {
		platforms = []string{"linux_amd64"}
	}

	cfg := &entities.PublishConfig{
		Source:   entities.SourceConfig{Repository: "org/widget"},
		Registry: entities.RegistryConfig{URL: "https://registry.example.com", Provider: "widget", Token: "t"},
		Signing:  entities.SigningConfig{KeyID: "ABCDEF0123456789"},

		Platforms:       platforms,
		OutputDir:       t.TempDir(),
		VerifyChecksums: true,
	}
	cfg.ApplyDefaults()

	return cfg, &mockSource{release: release}, &mockStager{content: content}
}

func newTestOrchestrator(cfg *entities.PublishConfig, source *mockSource, stager *mockStager, registry *mockRegistry) *PublishOrchestrator {
	return NewPublishOrchestrator(cfg, PublishDeps{
		Source:    source,
		Stager:    stager,
		Registry:  registry,
		Checksums: &mockChecksums{},
	})
}

func states(result *PublishResult) []entities.PlatformState {
	var out []entities.PlatformState
	for _, pr := range result.Platforms {
		out = append(out, pr.State)
	}
	return out
}

// Test the complete workflow and the order of registry calls
func TestPublishOrchestrator_Run_Success(t *testing.T) {
	cfg, source, stager := widgetFixture(t, "linux_amd64", "darwin_arm64")
	registry := &mockRegistry{}

	result, err := newTestOrchestrator(cfg, source, stager, registry).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Success {
		t.Error("Expected success = true")
	}
	if result.Version != "1.2.0" {
		t.Errorf("Version = %s, want 1.2.0", result.Version)
	}

	wantCalls := []string{
		"CreateVersion 1.2.0 ABCDEF0123456789 6.0",
		"Upload widget_1.2.0_SHA256SUMS -> https://upload.example.com/sums",
		"Upload widget_1.2.0_SHA256SUMS.sig -> https://upload.example.com/sig",
		"CreatePlatform linux_amd64",
		"Upload widget_1.2.0_linux_amd64.zip -> https://upload.example.com/linux_amd64",
		"CreatePlatform darwin_arm64",
		"Upload widget_1.2.0_darwin_arm64.zip -> https://upload.example.com/darwin_arm64",
	}
	if diff := cmp.Diff(wantCalls, registry.calls); diff != "" {
		t.Errorf("registry calls mismatch (-want +got):\n%s", diff)
	}

	// only the needed assets are staged, in release order
	wantStaged := []string{
		"widget_1.2.0_darwin_arm64.zip",
		"widget_1.2.0_linux_amd64.zip",
		"widget_1.2.0_SHA256SUMS",
		"widget_1.2.0_SHA256SUMS.sig",
	}
	if diff := cmp.Diff(wantStaged, stager.staged); diff != "" {
		t.Errorf("staged assets mismatch (-want +got):\n%s", diff)
	}

	want := []*entities.PlatformResult{
		{Platform: entities.Platform{OS: "linux", Arch: "amd64"}, State: entities.PlatformUploaded, Shasum: "abc123", Filename: "widget_1.2.0_linux_amd64.zip"},
		{Platform: entities.Platform{OS: "darwin", Arch: "arm64"}, State: entities.PlatformUploaded, Shasum: "def456", Filename: "widget_1.2.0_darwin_arm64.zip"},
	}
	if diff := cmp.Diff(want, result.Platforms); diff != "" {
		t.Errorf("platform results mismatch (-want +got):\n%s", diff)
	}

	if summary := result.Summary(); !strings.Contains(summary, "Published version 1.2.0") {
		t.Errorf("Summary() = %q", summary)
	}
}

func TestPublishOrchestrator_Run_RepeatedPlatform(t *testing.T) {
	cfg, source, stager := widgetFixture(t, "linux_amd64", "darwin_arm64", "linux_amd64")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	registry := &mockRegistry{}

	result, err := newTestOrchestrator(cfg, source, stager, registry).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantCalls := []string{
		"CreateVersion 1.2.0 ABCDEF0123456789 6.0",
		"Upload widget_1.2.0_SHA256SUMS -> https://upload.example.com/sums",
		"Upload widget_1.2.0_SHA256SUMS.sig -> https://upload.example.com/sig",
		"CreatePlatform linux_amd64",
		"Upload widget_1.2.0_linux_amd64.zip -> https://upload.example.com/linux_amd64",
		"CreatePlatform darwin_arm64",
		"Upload widget_1.2.0_darwin_arm64.zip -> https://upload.example.com/darwin_arm64",
	}
	if diff := cmp.Diff(wantCalls, registry.calls); diff != "" {
		t.Errorf("registry calls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]entities.PlatformState{entities.PlatformUploaded, entities.PlatformUploaded}, states(result)); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}
}

// No platform call may precede a successful version creation
func TestPublishOrchestrator_Run_VersionFailureStopsPlatforms(t *testing.T) {
	cfg, source, stager := widgetFixture(t)
	registry := &mockRegistry{versionErr: &entities.HTTPError{Kind: entities.ErrRegistry, Op: "create version", StatusCode: 422}}

	result, err := newTestOrchestrator(cfg, source, stager, registry).Run(context.Background())
	if !errors.Is(err, entities.ErrRegistry) {
		t.Fatalf("Run() error = %v, want ErrRegistry", err)
	}
	if len(registry.calls) != 1 {
		t.Errorf("registry calls = %v, want only CreateVersion", registry.calls)
	}
	if result.Success || result.Error == nil {
		t.Error("Expected failed result with error set")
	}
	if diff := cmp.Diff([]entities.PlatformState{entities.PlatformPending}, states(result)); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}
}

func TestPublishOrchestrator_Run_ManifestUploadFailureAborts(t *testing.T) {
	for _, file := range []string{"widget_1.2.0_SHA256SUMS -> https://upload.example.com/sums", "widget_1.2.0_SHA256SUMS.sig -> https://upload.example.com/sig"} {
		cfg, source, stager := widgetFixture(t, "linux_amd64", "darwin_arm64")
		registry := &mockRegistry{failures: map[string]error{"Upload " + file: entities.ErrUpload}}

		result, err := newTestOrchestrator(cfg, source, stager, registry).Run(context.Background())
		if !errors.Is(err, entities.ErrUpload) {
			t.Fatalf("Run() error = %v, want ErrUpload", err)
		}
		for _, call := range registry.calls {
			if strings.HasPrefix(call, "CreatePlatform") {
				t.Errorf("platform registered after manifest upload failed: %v", registry.calls)
			}
		}
		want := []entities.PlatformState{entities.PlatformPending, entities.PlatformPending}
		if diff := cmp.Diff(want, states(result)); diff != "" {
			t.Errorf("states mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestPublishOrchestrator_Run_PlatformFailure(t *testing.T) {
	tests := []struct {
		name    string
		failing string
	}{
		{name: "registration fails", failing: "CreatePlatform darwin_arm64"},
		{name: "binary upload fails", failing: "Upload widget_1.2.0_darwin_arm64.zip -> https://upload.example.com/darwin_arm64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, source, stager := widgetFixture(t, "linux_amd64", "darwin_arm64", "windows_amd64")
			registry := &mockRegistry{failures: map[string]error{tt.failing: entities.ErrRegistry}}

			result, err := newTestOrchestrator(cfg, source, stager, registry).Run(context.Background())
			if !errors.Is(err, entities.ErrRegistry) {
				t.Fatalf("Run() error = %v, want ErrRegistry", err)
			}

			// earlier platforms stay published, later ones are never attempted
			want := []entities.PlatformState{entities.PlatformUploaded, entities.PlatformFailed, entities.PlatformPending}
			if diff := cmp.Diff(want, states(result)); diff != "" {
				t.Errorf("states mismatch (-want +got):\n%s", diff)
			}
			if result.Platforms[1].Err == nil {
				t.Error("failed platform has no error recorded")
			}
			if last := registry.calls[len(registry.calls)-1]; last != tt.failing {
				t.Errorf("last registry call = %q, want %q", last, tt.failing)
			}
			summary := result.Summary()
			if !strings.Contains(summary, "FAILED") {
				t.Errorf("Summary() does not report the failed platform:\n%s", summary)
			}
			if !strings.Contains(summary, "1 of 3 platforms not published") {
				t.Errorf("Summary() does not count the pending platform:\n%s", summary)
			}
		})
	}
}

// Missing digests and archives are detected before the registry is touched
func TestPublishOrchestrator_Run_FailsBeforeRegistry(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(cfg *entities.PublishConfig, source *mockSource, stager *mockStager)
		wantKind error
	}{
		{
			name: "platform absent from manifest",
			mutate: func(_ *entities.PublishConfig, _ *mockSource, stager *mockStager) {
				stager.content["widget_1.2.0_SHA256SUMS"] = "def456  widget_1.2.0_darwin_arm64.zip\n"
			},
			wantKind: entities.ErrShasumNotFound,
		},
		{
			name: "substring of another filename",
			mutate: func(_ *entities.PublishConfig, _ *mockSource, stager *mockStager) {
				stager.content["widget_1.2.0_SHA256SUMS"] = "fff000  widget_1.2.0_linux_amd64.zip.bak\n"
			},
			wantKind: entities.ErrShasumNotFound,
		},
		{
			name: "manifest not in release",
			mutate: func(_ *entities.PublishConfig, source *mockSource, _ *mockStager) {
				source.release.Assets = withoutAsset(source.release.Assets, "widget_1.2.0_SHA256SUMS")
			},
			wantKind: entities.ErrShasumNotFound,
		},
		{
			name: "archive not in release",
			mutate: func(_ *entities.PublishConfig, source *mockSource, _ *mockStager) {
				source.release.Assets = withoutAsset(source.release.Assets, "widget_1.2.0_linux_amd64.zip")
			},
			wantKind: entities.ErrAssetNotFound,
		},
		{
			name: "signature not in release",
			mutate: func(_ *entities.PublishConfig, source *mockSource, _ *mockStager) {
				source.release.Assets = withoutAsset(source.release.Assets, "widget_1.2.0_SHA256SUMS.sig")
			},
			wantKind: entities.ErrAssetNotFound,
		},
		{
			name: "invalid tag",
			mutate: func(_ *entities.PublishConfig, source *mockSource, _ *mockStager) {
				source.release.TagName = "latest"
			},
			wantKind: entities.ErrInvalidTag,
		},
		{
			name: "release lookup fails",
			mutate: func(_ *entities.PublishConfig, source *mockSource, _ *mockStager) {
				source.err = &entities.HTTPError{Kind: entities.ErrReleaseNotFound, Op: "get latest release", StatusCode: 404}
			},
			wantKind: entities.ErrReleaseNotFound,
		},
		{
			name: "download fails",
			mutate: func(_ *entities.PublishConfig, _ *mockSource, stager *mockStager) {
				stager.err = fmt.Errorf("%w: disk full", entities.ErrStreamWrite)
			},
			wantKind: entities.ErrStreamWrite,
		},
		{
			name: "invalid platform",
			mutate: func(cfg *entities.PublishConfig, _ *mockSource, _ *mockStager) {
				cfg.Platforms = []string{"linux"}
			},
			wantKind: entities.ErrInvalidPlatform,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, source, stager := widgetFixture(t)
			tt.mutate(cfg, source, stager)
			registry := &mockRegistry{}

			_, err := newTestOrchestrator(cfg, source, stager, registry).Run(context.Background())
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("Run() error = %v, want %v", err, tt.wantKind)
			}
			if len(registry.calls) != 0 {
				t.Errorf("registry was called: %v", registry.calls)
			}
		})
	}
}

func TestPublishOrchestrator_Run_ChecksumVerification(t *testing.T) {
	cfg, source, stager := widgetFixture(t, "linux_amd64", "darwin_arm64")
	registry := &mockRegistry{}
	checksums := &mockChecksums{err: entities.ErrChecksumMismatch}

	orch := NewPublishOrchestrator(cfg, PublishDeps{Source: source, Stager: stager, Registry: registry, Checksums: checksums})
	if _, err := orch.Run(context.Background()); !errors.Is(err, entities.ErrChecksumMismatch) {
		t.Fatalf("Run() error = %v, want ErrChecksumMismatch", err)
	}
	if len(registry.calls) != 0 {
		t.Errorf("registry was called: %v", registry.calls)
	}

	// disabled verification never hashes
	cfg, source, stager = widgetFixture(t, "linux_amd64", "darwin_arm64")
	cfg.VerifyChecksums = false
	checksums = &mockChecksums{err: entities.ErrChecksumMismatch}

	orch = NewPublishOrchestrator(cfg, PublishDeps{Source: source, Stager: stager, Registry: &mockRegistry{}, Checksums: checksums})
	if _, err := orch.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if checksums.calls != 0 {
		t.Errorf("VerifyChecksum called %d times with verification disabled", checksums.calls)
	}
}

func TestPublishOrchestrator_Run_SignatureVerification(t *testing.T) {
	cfg, source, stager := widgetFixture(t)
	signatures := &mockSignatures{}

	orch := NewPublishOrchestrator(cfg, PublishDeps{Source: source, Stager: stager, Registry: &mockRegistry{}, Signatures: signatures})
	if _, err := orch.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if signatures.manifest != filepath.Join(cfg.OutputDir, "widget_1.2.0_SHA256SUMS") {
		t.Errorf("manifest path = %s", signatures.manifest)
	}
	if signatures.sig != filepath.Join(cfg.OutputDir, "widget_1.2.0_SHA256SUMS.sig") {
		t.Errorf("signature path = %s", signatures.sig)
	}
	if signatures.gotKeyID != "ABCDEF0123456789" {
		t.Errorf("key id = %s", signatures.gotKeyID)
	}

	cfg, source, stager = widgetFixture(t)
	registry := &mockRegistry{}
	orch = NewPublishOrchestrator(cfg, PublishDeps{
		Source:     source,
		Stager:     stager,
		Registry:   registry,
		Signatures: &mockSignatures{err: entities.ErrSignature},
	})
	if _, err := orch.Run(context.Background()); !errors.Is(err, entities.ErrSignature) {
		t.Fatalf("Run() error = %v, want ErrSignature", err)
	}
	if len(registry.calls) != 0 {
		t.Errorf("registry was called after a bad signature: %v", registry.calls)
	}
}

func TestPublishOrchestrator_Run_CreateProvider(t *testing.T) {
	tests := []struct {
		name        string
		providerErr error
		wantErr     bool
	}{
		{name: "created"},
		{name: "already exists", providerErr: &entities.HTTPError{Kind: entities.ErrRegistry, Op: "create provider", StatusCode: 422}},
		{name: "forbidden", providerErr: &entities.HTTPError{Kind: entities.ErrRegistry, Op: "create provider", StatusCode: 403}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, source, stager := widgetFixture(t)
			cfg.Registry.CreateProvider = true
			cfg.Registry.Organization = "org"
			cfg.Registry.Namespace = "org"
			registry := &mockRegistry{providerErr: tt.providerErr}

			_, err := newTestOrchestrator(cfg, source, stager, registry).Run(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if registry.calls[0] != "CreateProvider org/org/widget" {
				t.Errorf("first registry call = %q", registry.calls[0])
			}
			if tt.wantErr && len(registry.calls) != 1 {
				t.Errorf("registry calls after provider failure: %v", registry.calls)
			}
		})
	}
}

func TestPublishOrchestrator_Stage(t *testing.T) {
	cfg, source, stager := widgetFixture(t, "windows_amd64")

	stage, err := NewPublishOrchestrator(cfg, PublishDeps{Source: source, Stager: stager}).Stage(context.Background())
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}

	var names []string
	for _, s := range stage.Staged {
		names = append(names, s.Asset.Name)
	}
	want := []string{"widget_1.2.0_SHA256SUMS", "widget_1.2.0_SHA256SUMS.sig", "widget_1.2.0_windows_amd64.zip"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("staged mismatch (-want +got):\n%s", diff)
	}
	if !stage.Selection.IsComplete() {
		t.Errorf("Missing = %v", stage.Selection.Missing)
	}
}

func withoutAsset(assets []entities.Asset, name string) []entities.Asset {
	var out []entities.Asset
	for _, a := range assets {
		if a.Name != name {
			out = append(out, a)
		}
	}
	return out
}

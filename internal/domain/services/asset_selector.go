// Package services implements domain logic that needs no I/O beyond local files.
package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/ochairo/tfpublish/internal/domain/entities"
)

// Selection is the subset of a release's assets a publish run needs
type Selection struct {
	// Version is the release tag without its leading "v"
	Version string
	// Expected lists the expected filenames: one archive per platform in
	// request order, then the shared manifest and signature
	Expected []string
	// Assets are the matching release assets, in release order
	Assets []entities.Asset
	// Missing are expected names the release does not carry, sorted
	Missing []string
}

// IsComplete returns true if every expected file is present in the release
func (s *Selection) IsComplete() bool {
	return len(s.Missing) == 0
}

// AssetSelector matches requested platforms to release assets
type AssetSelector struct{}

// NewAssetSelector creates a new asset selector
func NewAssetSelector() *AssetSelector {
	return &AssetSelector{}
}

// ResolveVersion validates a release tag (vX.Y.Z) and returns the registry
// version string, which drops the leading "v". The rest of the tag is kept
// as written so it matches the artifact filenames.
func ResolveVersion(tag string) (string, error) {
	if tag == "" {
		return "", fmt.Errorf("%w: empty tag", entities.ErrInvalidTag)
	}
	if _, err := version.NewSemver(tag); err != nil {
		return "", fmt.Errorf("%w: %q: %v", entities.ErrInvalidTag, tag, err)
	}
	return strings.TrimPrefix(tag, "v"), nil
}

// ExpectedNames returns the deduplicated set of filenames the platforms need.
// The manifest and signature are shared by every platform and appear once.
func (s *AssetSelector) ExpectedNames(artifactPrefix, version string, platforms []entities.Platform) []string {
	seen := make(map[string]bool)
	names := make([]string, 0, len(platforms)+2)

	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	for _, p := range platforms {
		add(entities.ArchiveName(artifactPrefix, version, p))
	}
	add(entities.ShasumsName(artifactPrefix, version))
	add(entities.ShasumsSigName(artifactPrefix, version))

	return names
}

// SelectAssets filters the release's assets down to the expected set.
// Missing assets are not an error here; they surface when the checksum
// lookup or the download fails.
func (s *AssetSelector) SelectAssets(release *entities.Release, artifactPrefix string, platforms []entities.Platform) (*Selection, error) {
	v, err := ResolveVersion(release.TagName)
	if err != nil {
		return nil, err
	}

	selection := &Selection{
		Version:  v,
		Expected: s.ExpectedNames(artifactPrefix, v, platforms),
	}

	expectedSet := make(map[string]bool, len(selection.Expected))
	for _, name := range selection.Expected {
		expectedSet[name] = true
	}

	found := make(map[string]bool)
	for _, asset := range release.Assets {
		if expectedSet[asset.Name] && !found[asset.Name] {
			found[asset.Name] = true
			selection.Assets = append(selection.Assets, asset)
		}
	}

	for _, name := range selection.Expected {
		if !found[name] {
			selection.Missing = append(selection.Missing, name)
		}
	}
	sort.Strings(selection.Missing)

	return selection, nil
}

package entities

import (
	"fmt"
	"strings"
)

// Platform identifies one os/arch build of a provider
type Platform struct {
	OS   string
	Arch string
}

// ParsePlatform parses an "os_arch" identifier such as "linux_amd64".
// The string is split on the first underscore.
func ParsePlatform(s string) (Platform, error) {
	osName, arch, ok := strings.Cut(strings.TrimSpace(s), "_")
	if !ok || osName == "" || arch == "" {
		return Platform{}, fmt.Errorf("%w: %q (want os_arch)", ErrInvalidPlatform, s)
	}
	return Platform{OS: osName, Arch: arch}, nil
}

// ParsePlatforms parses every identifier, failing on the first invalid one.
// Repeated platforms are dropped; the first occurrence keeps its position.
func ParsePlatforms(ids []string) ([]Platform, error) {
	platforms := make([]Platform, 0, len(ids))
	seen := make(map[Platform]bool, len(ids))
	for _, id := range ids {
		p, err := ParsePlatform(id)
		if err != nil {
			return nil, err
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		platforms = append(platforms, p)
	}
	return platforms, nil
}

// String returns the "os_arch" form
func (p Platform) String() string {
	return p.OS + "_" + p.Arch
}

// ArtifactNames holds the three release filenames a platform depends on
type ArtifactNames struct {
	Archive    string
	Shasums    string
	ShasumsSig string
}

// ArtifactNames returns the expected filenames for this platform.
// version is the registry version string, without a leading "v".
func (p Platform) ArtifactNames(repoName, version string) ArtifactNames {
	return ArtifactNames{
		Archive:    ArchiveName(repoName, version, p),
		Shasums:    ShasumsName(repoName, version),
		ShasumsSig: ShasumsSigName(repoName, version),
	}
}

// ArchiveName returns <repo>_<version>_<os>_<arch>.zip
func ArchiveName(repoName, version string, p Platform) string {
	return fmt.Sprintf("%s_%s_%s_%s.zip", repoName, version, p.OS, p.Arch)
}

// ShasumsName returns <repo>_<version>_SHA256SUMS
func ShasumsName(repoName, version string) string {
	return fmt.Sprintf("%s_%s_SHA256SUMS", repoName, version)
}

// ShasumsSigName returns <repo>_<version>_SHA256SUMS.sig
func ShasumsSigName(repoName, version string) string {
	return ShasumsName(repoName, version) + ".sig"
}

// RepoName returns the name part of an "owner/name" repository identifier
func RepoName(repo string) string {
	if i := strings.LastIndex(repo, "/"); i >= 0 {
		return repo[i+1:]
	}
	return repo
}

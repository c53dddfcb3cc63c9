package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ochairo/tfpublish/internal/domain/entities"
)

// ChecksumService reads digests out of a SHA256SUMS manifest
type ChecksumService struct{}

// NewChecksumService creates a new checksum service
func NewChecksumService() *ChecksumService {
	return &ChecksumService{}
}

// ParseManifest parses "<hex-digest>  <filename>" lines. Blank lines and
// "#" comments are skipped, a leading "*" (binary mode) on the filename is
// dropped. Lines with fewer than two fields are ignored.
func ParseManifest(data []byte) []entities.ChecksumEntry {
	var entries []entities.ChecksumEntry
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		entries = append(entries, entities.ChecksumEntry{
			Digest:   fields[0],
			Filename: strings.TrimPrefix(fields[len(fields)-1], "*"),
		})
	}
	return entries
}

// LookupDigest returns the digest of the first entry whose filename equals
// filename exactly
func LookupDigest(entries []entities.ChecksumEntry, filename string) (string, error) {
	for _, e := range entries {
		if e.Filename == filename {
			return e.Digest, nil
		}
	}
	return "", fmt.Errorf("%w: %s", entities.ErrShasumNotFound, filename)
}

// ExtractShasum reads <outputDir>/<prefix>_<version>_SHA256SUMS and returns
// the digest recorded for the platform's archive
func (s *ChecksumService) ExtractShasum(outputDir, artifactPrefix, version string, platform entities.Platform) (string, error) {
	manifestPath := filepath.Join(outputDir, entities.ShasumsName(artifactPrefix, version))

	//nolint:gosec // G304: manifest path is built from the configured output directory
	data, err := os.ReadFile(manifestPath)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: manifest %s was not staged", entities.ErrShasumNotFound, filepath.Base(manifestPath))
	}
	if err != nil {
		return "", fmt.Errorf("failed to read checksum manifest: %w", err)
	}

	return LookupDigest(ParseManifest(data), entities.ArchiveName(artifactPrefix, version, platform))
}

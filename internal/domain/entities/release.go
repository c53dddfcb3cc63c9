// Package entities defines core domain models and data structures.
package entities

// Release represents the latest tagged release of a source repository
type Release struct {
	TagName string
	Assets  []Asset
}

// Asset represents a single downloadable file attached to a release.
// Name is used for matching, ID for re-fetching the binary content.
type Asset struct {
	ID                 int64
	Name               string
	BrowserDownloadURL string
	Size               int64
}

// StagedAsset represents an asset written to the local output directory
type StagedAsset struct {
	Asset Asset
	Path  string
	Bytes int64
}


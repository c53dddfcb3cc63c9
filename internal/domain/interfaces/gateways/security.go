package gateways

import (
	"context"
)

// ChecksumVerifier validates staged files against their manifest digests
type ChecksumVerifier interface {
	VerifyChecksum(ctx context.Context, filePath, expectedSum string) error
}

// SignatureVerifier checks the detached signature of the checksum manifest
type SignatureVerifier interface {
	// VerifyManifestSignature verifies sigPath over manifestPath and checks
	// that the signer matches keyID
	VerifyManifestSignature(ctx context.Context, manifestPath, sigPath, keyID string) error
}

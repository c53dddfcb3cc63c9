package gateways

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/ochairo/tfpublish/internal/domain/entities"
	"github.com/ochairo/tfpublish/internal/domain/interfaces/gateways"
	"github.com/ochairo/tfpublish/internal/external-adapters/gpg"
)

var _ gateways.SignatureVerifier = (*gpgVerifier)(nil)

// gpgVerifier wraps the external GPG adapter to implement the domain gateway interface.
// The public key is imported on first use.
type gpgVerifier struct {
	verifier    *gpg.Verifier
	keyLocation string
	importOnce  sync.Once
	importErr   error
}

// NewGPGVerifier creates a GPG verifier for the public key at keyLocation
// (a local path or an http(s) URL)
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewGPGVerifier(httpClient *http.Client, keyLocation string) *gpgVerifier {
	return &gpgVerifier{
		verifier:    gpg.NewVerifier(httpClient),
		keyLocation: keyLocation,
	}
}

// VerifyManifestSignature verifies the detached signature over the checksum
// manifest and checks the signer against the key id the registry will advertise
func (g *gpgVerifier) VerifyManifestSignature(ctx context.Context, manifestPath, sigPath, keyID string) error {
	g.importOnce.Do(func() {
		if err := g.verifier.ImportKeys(ctx, g.keyLocation); err != nil {
			g.importErr = fmt.Errorf("failed to import GPG key from %s: %w", g.keyLocation, err)
			return
		}
		if g.verifier.GetKeyringSize() == 0 {
			g.importErr = fmt.Errorf("no public keys found in %s", g.keyLocation)
		}
	})
	if g.importErr != nil {
		return fmt.Errorf("%w: %w", entities.ErrSignature, g.importErr)
	}

	signer, err := g.verifier.VerifyDetached(manifestPath, sigPath)
	if err != nil {
		return fmt.Errorf("%w: %w", entities.ErrSignature, err)
	}

	if keyID != "" && !strings.EqualFold(signer, keyID) {
		return fmt.Errorf("%w: manifest signed by key %s, registry key id is %s", entities.ErrSignature, signer, keyID)
	}

	return nil
}

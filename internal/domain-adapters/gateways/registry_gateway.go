package gateways

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/jsonapi"

	"github.com/ochairo/tfpublish/internal/domain/entities"
	"github.com/ochairo/tfpublish/internal/domain/interfaces"
	"github.com/ochairo/tfpublish/internal/domain/interfaces/gateways"
)

const (
	jsonAPIMediaType = "application/vnd.api+json"

	linkShasumsUpload    = "shasums-upload"
	linkShasumsSigUpload = "shasums-sig-upload"
	linkBinaryUpload     = "provider-binary-upload"

	privateRegistryName = "private"
)

var _ gateways.RegistryGateway = (*HTTPRegistryGateway)(nil)

// HTTPRegistryGateway implements RegistryGateway against the private registry JSON:API
type HTTPRegistryGateway struct {
	client       *http.Client
	providerURL  string
	address      string
	token        string
	registryHost string
	logger       interfaces.Logger
}

// providerCreateOptions is the request body of a provider creation
type providerCreateOptions struct {
	Type         string `jsonapi:"primary,registry-providers"`
	Name         string `jsonapi:"attr,name"`
	Namespace    string `jsonapi:"attr,namespace"`
	RegistryName string `jsonapi:"attr,registry-name"`
}

// providerVersionCreateOptions is the request body of a version creation
type providerVersionCreateOptions struct {
	Type      string   `jsonapi:"primary,registry-provider-versions"`
	Version   string   `jsonapi:"attr,version"`
	KeyID     string   `jsonapi:"attr,key-id"`
	Protocols []string `jsonapi:"attr,protocols"`
}

type providerVersion struct {
	ID        string                 `jsonapi:"primary,registry-provider-versions"`
	Version   string                 `jsonapi:"attr,version"`
	KeyID     string                 `jsonapi:"attr,key-id"`
	Protocols []string               `jsonapi:"attr,protocols"`
	Links     map[string]interface{} `jsonapi:"links,omitempty"`
}

// providerPlatformCreateOptions is the request body of a platform registration
type providerPlatformCreateOptions struct {
	Type     string `jsonapi:"primary,registry-provider-version-platforms"`
	OS       string `jsonapi:"attr,os"`
	Arch     string `jsonapi:"attr,arch"`
	Shasum   string `jsonapi:"attr,shasum"`
	Filename string `jsonapi:"attr,filename"`
}

type providerPlatform struct {
	ID       string                 `jsonapi:"primary,registry-provider-version-platforms"`
	OS       string                 `jsonapi:"attr,os"`
	Arch     string                 `jsonapi:"attr,arch"`
	Shasum   string                 `jsonapi:"attr,shasum"`
	Filename string                 `jsonapi:"attr,filename"`
	Links    map[string]interface{} `jsonapi:"links,omitempty"`
}

// NewHTTPRegistryGateway creates a registry gateway for the provider
// collection at cfg.URL
func NewHTTPRegistryGateway(client *http.Client, cfg entities.RegistryConfig, logger interfaces.Logger) (*HTTPRegistryGateway, error) {
	base, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid registry URL %q: %w", cfg.URL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid registry URL %q: scheme and host are required", cfg.URL)
	}

	address := cfg.Address
	if address == "" {
		address = entities.DefaultTFEAddress
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}

	return &HTTPRegistryGateway{
		client:       client,
		providerURL:  strings.TrimSuffix(cfg.URL, "/") + "/" + url.PathEscape(cfg.Provider),
		address:      strings.TrimSuffix(address, "/"),
		token:        cfg.Token,
		registryHost: base.Host,
		logger:       logger,
	}, nil
}

// CreateProvider creates the provider resource in the organization's private registry
func (g *HTTPRegistryGateway) CreateProvider(ctx context.Context, organization string, provider *entities.RegistryProvider) error {
	registryName := provider.RegistryName
	if registryName == "" {
		registryName = privateRegistryName
	}

	endpoint := fmt.Sprintf("%s/api/v2/organizations/%s/registry-providers", g.address, url.PathEscape(organization))
	opts := &providerCreateOptions{
		Name:         provider.Name,
		Namespace:    provider.Namespace,
		RegistryName: registryName,
	}

	resp, err := g.postJSONAPI(ctx, "create provider "+provider.Name, endpoint, opts)
	if err != nil {
		return err
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	g.logger.Info("Created registry provider",
		interfaces.F("organization", organization),
		interfaces.F("namespace", provider.Namespace),
		interfaces.F("name", provider.Name),
	)
	return nil
}

// CreateVersion creates a provider version and returns its manifest upload targets
func (g *HTTPRegistryGateway) CreateVersion(ctx context.Context, version, keyID string, protocols []string) (*entities.RegistryVersion, error) {
	opts := &providerVersionCreateOptions{
		Version:   version,
		KeyID:     keyID,
		Protocols: protocols,
	}

	op := "create version " + version
	resp, err := g.postJSONAPI(ctx, op, g.providerURL+"/versions", opts)
	if err != nil {
		return nil, err
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	var result providerVersion
	if err := jsonapi.UnmarshalPayload(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("%s: %w: failed to decode response: %w", op, entities.ErrRegistry, err)
	}

	shasumsURL, err := link(result.Links, linkShasumsUpload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, entities.ErrRegistry, err)
	}
	sigURL, err := link(result.Links, linkShasumsSigUpload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, entities.ErrRegistry, err)
	}

	return &entities.RegistryVersion{
		Version:             version,
		KeyID:               keyID,
		Protocols:           protocols,
		ShasumsUploadURL:    shasumsURL,
		ShasumsSigUploadURL: sigURL,
	}, nil
}

// CreatePlatform registers a platform under an existing version and returns its binary upload target
func (g *HTTPRegistryGateway) CreatePlatform(ctx context.Context, version string, platform *entities.RegistryPlatform) (*entities.RegistryPlatform, error) {
	opts := &providerPlatformCreateOptions{
		OS:       platform.OS,
		Arch:     platform.Arch,
		Shasum:   platform.Shasum,
		Filename: platform.Filename,
	}

	op := fmt.Sprintf("create platform %s_%s", platform.OS, platform.Arch)
	endpoint := fmt.Sprintf("%s/versions/%s/platforms", g.providerURL, url.PathEscape(version))

	resp, err := g.postJSONAPI(ctx, op, endpoint, opts)
	if err != nil {
		return nil, err
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	var result providerPlatform
	if err := jsonapi.UnmarshalPayload(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("%s: %w: failed to decode response: %w", op, entities.ErrRegistry, err)
	}

	uploadURL, err := link(result.Links, linkBinaryUpload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, entities.ErrRegistry, err)
	}

	registered := *platform
	registered.BinaryUploadURL = uploadURL
	return &registered, nil
}

// Upload PUTs a local file as a raw byte stream. The registry token is only
// sent when the target lives on the registry host.
func (g *HTTPRegistryGateway) Upload(ctx context.Context, targetURL, filePath string) error {
	name := filepath.Base(filePath)

	target, err := url.Parse(targetURL)
	if err != nil || target.Host == "" {
		return fmt.Errorf("upload %s: %w: invalid target URL %q", name, entities.ErrUpload, targetURL)
	}

	//nolint:gosec // G304: filePath is a staged release asset
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("upload %s: %w: %w", name, entities.ErrStreamWrite, err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("upload %s: %w: %w", name, entities.ErrStreamWrite, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, targetURL, f)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = info.Size()
	if info.Size() == 0 {
		// a zero length with a non-nil body would go out chunked
		req.Body = http.NoBody
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if target.Host == g.registryHost && g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s: %w: %w", name, entities.ErrUpload, err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &entities.HTTPError{
			Kind:       entities.ErrUpload,
			Op:         "upload " + name,
			StatusCode: resp.StatusCode,
			Message:    readBody(resp.Body),
		}
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	g.logger.Debug("Uploaded file",
		interfaces.F("file", name),
		interfaces.F("bytes", info.Size()),
	)
	return nil
}

// postJSONAPI POSTs a JSON:API document and returns the response when the
// registry accepted it. Rejections carry the response body verbatim.
func (g *HTTPRegistryGateway) postJSONAPI(ctx context.Context, op, endpoint string, model interface{}) (*http.Response, error) {
	var body bytes.Buffer
	if err := jsonapi.MarshalPayloadWithoutIncluded(&body, model); err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Content-Type", jsonAPIMediaType)
	req.Header.Set("Accept", jsonAPIMediaType)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, entities.ErrRegistry, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		//nolint:errcheck // Close body of rejected response
		defer resp.Body.Close()
		return nil, &entities.HTTPError{
			Kind:       entities.ErrRegistry,
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    readBody(resp.Body),
		}
	}

	return resp, nil
}

func link(links map[string]interface{}, name string) (string, error) {
	raw, ok := links[name]
	if !ok {
		return "", fmt.Errorf("response has no %q link", name)
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("response link %q is not a URL", name)
	}
	return s, nil
}

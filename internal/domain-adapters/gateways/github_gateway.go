package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ochairo/tfpublish/internal/domain/entities"
	"github.com/ochairo/tfpublish/internal/domain/interfaces"
)

// Below this many remaining requests the gateway logs a rate limit warning
const rateLimitWarnThreshold = 10

// HTTPGitHubGateway implements ReleaseSource against the GitHub REST API
type HTTPGitHubGateway struct {
	client         *http.Client
	apiURL         string
	token          string
	directDownload bool
	logger         interfaces.Logger
}

// NewHTTPGitHubGateway creates a new GitHub gateway. An empty apiURL means api.github.com.
func NewHTTPGitHubGateway(client *http.Client, apiURL, token string, logger interfaces.Logger) *HTTPGitHubGateway {
	if apiURL == "" {
		apiURL = entities.DefaultGitHubAPIURL
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &HTTPGitHubGateway{
		client: client,
		apiURL: strings.TrimSuffix(apiURL, "/"),
		token:  token,
		logger: logger,
	}
}

// UseDirectDownload makes OpenAsset fetch browser_download_url instead of the assets API
func (g *HTTPGitHubGateway) UseDirectDownload(direct bool) *HTTPGitHubGateway {
	g.directDownload = direct
	return g
}

// githubRelease represents the GitHub API release format
type githubRelease struct {
	ID      int64         `json:"id,omitempty"`
	TagName string        `json:"tag_name"`
	Name    string        `json:"name"`
	Draft   bool          `json:"draft"`
	Assets  []githubAsset `json:"assets"`
}

// githubAsset represents a GitHub release asset
type githubAsset struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Size               int64  `json:"size"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// checkRateLimit inspects GitHub rate limit headers on a rejected response
// and returns an error if the budget is exhausted
func (g *HTTPGitHubGateway) checkRateLimit(resp *http.Response) error {
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return nil
	}

	remainingInt, err := strconv.Atoi(remaining)
	if err != nil {
		return nil
	}

	if remainingInt == 0 && resp.StatusCode != http.StatusOK {
		msg := "GitHub API rate limit exceeded (0 remaining)"
		if resetUnix, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
			msg += ", resets at " + time.Unix(resetUnix, 0).UTC().Format(time.RFC3339)
		}
		return &entities.HTTPError{
			Kind:       entities.ErrUpstreamRequest,
			Op:         "github",
			StatusCode: resp.StatusCode,
			Message:    msg,
		}
	}

	if remainingInt <= rateLimitWarnThreshold {
		g.logger.Warn("GitHub API rate limit low", interfaces.F("remaining", remainingInt))
	}

	return nil
}

func (g *HTTPGitHubGateway) newRequest(ctx context.Context, url, accept string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	return req, nil
}

// LatestRelease resolves the latest published release of an owner/name repository
func (g *HTTPGitHubGateway) LatestRelease(ctx context.Context, repo string) (*entities.Release, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", g.apiURL, repo)

	req, err := g.newRequest(ctx, url, "application/vnd.github+json")
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest release of %s: %w: %w", repo, entities.ErrUpstreamRequest, err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if err := g.checkRateLimit(resp); err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		kind := entities.ErrUpstreamRequest
		if resp.StatusCode == http.StatusNotFound {
			kind = entities.ErrReleaseNotFound
		}
		return nil, &entities.HTTPError{
			Kind:       kind,
			Op:         "get latest release of " + repo,
			StatusCode: resp.StatusCode,
			Message:    readBody(resp.Body),
		}
	}

	var result githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode release: %w", err)
	}

	release := &entities.Release{
		TagName: result.TagName,
		Assets:  make([]entities.Asset, len(result.Assets)),
	}
	for i, a := range result.Assets {
		release.Assets[i] = entities.Asset{
			ID:                 a.ID,
			Name:               a.Name,
			BrowserDownloadURL: a.BrowserDownloadURL,
			Size:               a.Size,
		}
	}

	return release, nil
}

// OpenAsset opens a stream over an asset's binary content. Only a 200
// response yields a reader; the caller must close it.
func (g *HTTPGitHubGateway) OpenAsset(ctx context.Context, repo string, asset entities.Asset) (io.ReadCloser, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/assets/%d", g.apiURL, repo, asset.ID)
	if g.directDownload && asset.BrowserDownloadURL != "" {
		url = asset.BrowserDownloadURL
	}

	req, err := g.newRequest(ctx, url, "application/octet-stream")
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch asset %s: %w: %w", asset.Name, entities.ErrUpstreamRequest, err)
	}

	if resp.StatusCode != http.StatusOK {
		//nolint:errcheck // Close body of rejected response
		defer resp.Body.Close()

		kind := entities.ErrUnexpectedStatus
		if resp.StatusCode == http.StatusNotFound {
			kind = entities.ErrAssetNotFound
		}
		return nil, &entities.HTTPError{
			Kind:       kind,
			Op:         "fetch asset " + asset.Name,
			StatusCode: resp.StatusCode,
			Message:    readBody(resp.Body),
		}
	}

	return resp.Body, nil
}

// readBody returns at most 64KB of an error response body, verbatim
func readBody(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64*1024))
	if err != nil {
		return ""
	}
	return string(data)
}

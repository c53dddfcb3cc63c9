// Package httpclient builds the HTTP client shared by the source and registry gateways.
package httpclient

import (
	"fmt"
	"net/http"
	"time"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
)

// New returns the DefaultPooledClient from the cleanhttp package that
// sends a tfpublish User-Agent string. A zero timeout means no limit.
func New(appVersion string, timeout time.Duration) *http.Client {
	cli := cleanhttp.DefaultPooledClient()
	cli.Timeout = timeout
	cli.Transport = &userAgentRoundTripper{
		userAgent: UserAgent(appVersion),
		inner:     cli.Transport,
	}
	return cli
}

// UserAgent returns the User-Agent header value for appVersion
func UserAgent(appVersion string) string {
	return fmt.Sprintf("tfpublish/%s", appVersion)
}

type userAgentRoundTripper struct {
	inner     http.RoundTripper
	userAgent string
}

func (rt *userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if _, ok := req.Header["User-Agent"]; !ok {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", rt.userAgent)
	}
	return rt.inner.RoundTrip(req)
}

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// GoogleDiscoveryURL is Google's OpenID Connect discovery document.
// It publishes the endpoint URLs the login flow needs, so they are never
// hard-coded here — Google is free to move them.
const GoogleDiscoveryURL = "https://accounts.google.com/.well-known/openid-configuration"

// ErrProviderUnavailable means the discovery document could not be fetched
// or did not contain the required endpoints. The login attempt that hit it
// fails; the next attempt refetches.
var ErrProviderUnavailable = errors.New("auth: identity provider unavailable")

// ProviderMetadata is the portion of the discovery document we use.
// The full document is much larger — we only unmarshal the three endpoints.
type ProviderMetadata struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
}

// Discovery fetches and caches the provider's metadata.
//
// The document is fetched lazily on first use and then held for the process
// lifetime — Google rotates endpoint URLs on the order of years, not
// requests. Failures are not cached: a cold or failed fetch is retried by
// whichever request needs the metadata next.
type Discovery struct {
	url    string
	client *http.Client

	mu     sync.Mutex
	cached *ProviderMetadata
}

// NewDiscovery creates a Discovery for the given document URL.
// Production code passes GoogleDiscoveryURL; tests point it at an
// httptest.Server.
func NewDiscovery(discoveryURL string) *Discovery {
	return &Discovery{
		url: discoveryURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Metadata returns the provider metadata, fetching it if not yet cached.
// Safe for concurrent use; concurrent cold-cache callers serialize on the
// mutex and only one of them performs the fetch.
func (d *Discovery) Metadata(ctx context.Context) (*ProviderMetadata, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cached != nil {
		return d.cached, nil
	}

	md, err := d.fetch(ctx)
	if err != nil {
		return nil, err
	}

	d.cached = md
	return md, nil
}

func (d *Discovery) fetch(ctx context.Context) (*ProviderMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building discovery request: %v", ErrProviderUnavailable, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching discovery document: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: discovery document returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var md ProviderMetadata
	if err := json.NewDecoder(resp.Body).Decode(&md); err != nil {
		return nil, fmt.Errorf("%w: decoding discovery document: %v", ErrProviderUnavailable, err)
	}

	// A document missing any endpoint is as useless as no document at all.
	if md.AuthorizationEndpoint == "" || md.TokenEndpoint == "" || md.UserinfoEndpoint == "" {
		return nil, fmt.Errorf("%w: discovery document is missing required endpoints", ErrProviderUnavailable)
	}

	return &md, nil
}

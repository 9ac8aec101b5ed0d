package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Error taxonomy for the login flow. The callback handler branches on these
// with errors.Is: ErrEmailNotVerified is a policy rejection with its own
// user-visible message, everything else collapses to a failed login.
//
// None of these is retried automatically — the authorization code is
// single-use, so a blind retry after a partial failure is unsafe.
var (
	ErrTokenExchangeFailed = errors.New("auth: authorization code exchange failed")
	ErrClaimsFetchFailed   = errors.New("auth: fetching identity claims failed")
	ErrEmailNotVerified    = errors.New("auth: email not verified by provider")
)

// GoogleClaims is the portion of Google's userinfo response we care about.
//
// Userinfo docs: https://developers.google.com/identity/openid-connect/openid-connect#obtaininguserprofileinformation
type GoogleClaims struct {
	Sub           string `json:"sub"`            // Google's stable subject identifier
	Email         string `json:"email"`          // Account email
	EmailVerified bool   `json:"email_verified"` // Whether Google attests the email
	Name          string `json:"name"`           // Display name
	Picture       string `json:"picture"`        // Profile picture URL
}

// GoogleProvider wraps golang.org/x/oauth2 for Google's authorization code
// flow.
//
// The flow, in order:
//  1. AuthURL builds the consent-page redirect for the browser.
//  2. Google sends the browser back to the callback with a short-lived code.
//  3. Exchange trades the code for an access token (server-to-server, so
//     the client secret and the token never touch the browser).
//  4. FetchClaims calls the userinfo endpoint with the token and enforces
//     the email-verified policy.
//
// Endpoints come from the Discovery document on every step, so a provider
// that is down fails the login before any state is created.
//
// A GoogleProvider is immutable after construction and safe for concurrent
// use; per-request state (code, token) only ever lives on the stack.
type GoogleProvider struct {
	clientID     string
	clientSecret string
	callbackURL  string
	discovery    *Discovery

	// httpClient bounds the outbound calls to Google. oauth2 picks it up
	// through the context on each request.
	httpClient *http.Client
}

// NewGoogleProvider creates a GoogleProvider with the given credentials.
//
// callbackURL must match the "Authorized redirect URI" registered in the
// Google Cloud console exactly. Example:
// "http://localhost:8080/login/callback"
func NewGoogleProvider(clientID, clientSecret, callbackURL string, discovery *Discovery) *GoogleProvider {
	return &GoogleProvider{
		clientID:     clientID,
		clientSecret: clientSecret,
		callbackURL:  callbackURL,
		discovery:    discovery,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// config assembles an oauth2.Config from discovered endpoints.
// Built per call rather than stored: no process-wide mutable client state
// means concurrent logins can't trample each other.
func (p *GoogleProvider) config(md *ProviderMetadata) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		RedirectURL:  p.callbackURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  md.AuthorizationEndpoint,
			TokenURL: md.TokenEndpoint,
		},
	}
}

// withHTTPClient makes oauth2 use our timeout-bounded client for the
// server-to-server calls it issues under this context.
func (p *GoogleProvider) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// AuthURL returns the URL to redirect the browser to for authorization.
//
// The state is a random value the caller stores in a cookie before
// redirecting; the callback handler verifies Google echoed it back. That
// proves the callback completes a flow this server started, not one a
// CSRF attacker started.
func (p *GoogleProvider) AuthURL(ctx context.Context, state string) (string, error) {
	md, err := p.discovery.Metadata(ctx)
	if err != nil {
		return "", err
	}
	return p.config(md).AuthCodeURL(state), nil
}

// Exchange trades the single-use authorization code for an access token.
// The redirect URI sent along must equal the one in the authorization
// request — Google enforces the match, it is not advisory.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	md, err := p.discovery.Metadata(ctx)
	if err != nil {
		return nil, err
	}

	token, err := p.config(md).Exchange(p.withHTTPClient(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: response contained no access token", ErrTokenExchangeFailed)
	}

	return token, nil
}

// FetchClaims calls the userinfo endpoint with the obtained token and
// validates the returned identity.
//
// The identity is accepted if and only if Google reports the email as
// verified. An unverified email returns ErrEmailNotVerified — a policy
// rejection, distinct from the structural ErrClaimsFetchFailed, because the
// two get different user-visible responses.
func (p *GoogleProvider) FetchClaims(ctx context.Context, token *oauth2.Token) (*GoogleClaims, error) {
	md, err := p.discovery.Metadata(ctx)
	if err != nil {
		return nil, err
	}

	// oauth2.Config.Client returns an *http.Client that attaches
	// "Authorization: Bearer <token>" to every request it makes.
	client := p.config(md).Client(p.withHTTPClient(ctx), token)

	resp, err := client.Get(md.UserinfoEndpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: calling userinfo endpoint: %v", ErrClaimsFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: userinfo endpoint returned status %d", ErrClaimsFetchFailed, resp.StatusCode)
	}

	var claims GoogleClaims
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, fmt.Errorf("%w: decoding userinfo response: %v", ErrClaimsFetchFailed, err)
	}

	if claims.Sub == "" || claims.Email == "" {
		return nil, fmt.Errorf("%w: userinfo response missing sub or email", ErrClaimsFetchFailed)
	}

	if !claims.EmailVerified {
		return nil, fmt.Errorf("%w: %s", ErrEmailNotVerified, claims.Email)
	}

	return &claims, nil
}

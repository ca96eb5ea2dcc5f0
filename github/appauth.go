package github

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

const (
	// assertionDrift backdates the assertion's issued-at claim to tolerate
	// clock skew between this process and GitHub.
	assertionDrift = 60 * time.Second

	// assertionTTL is the validity window of a signed app assertion.
	assertionTTL = 10 * time.Minute

	// tokenFreshness is the safety buffer before an installation token's
	// expiry at which it is considered stale and refetched.
	tokenFreshness = 60 * time.Second
)

// installationToken is a cached installation access token with its expiry.
type installationToken struct {
	token     string
	expiresAt time.Time
}

// AppAuth authenticates as a GitHub App: it signs short-lived RS256
// assertions from the app's private key and exchanges them for per-installation
// access tokens, which it caches in memory until they go stale.
//
// AppAuth is safe for concurrent use. Concurrent token requests for the same
// installation are collapsed into a single issuance call.
type AppAuth struct {
	appID      string
	key        *rsa.PrivateKey
	httpClient *http.Client
	baseURL    string
	now        func() time.Time

	mu     sync.Mutex
	tokens map[int64]installationToken
	group  singleflight.Group
}

// AppAuthOption configures an AppAuth.
type AppAuthOption func(*AppAuth)

// WithAppBaseURL overrides the GitHub API base URL.
func WithAppBaseURL(url string) AppAuthOption {
	return func(a *AppAuth) { a.baseURL = url }
}

// WithAppHTTPClient overrides the HTTP client used for token exchange.
func WithAppHTTPClient(c *http.Client) AppAuthOption {
	return func(a *AppAuth) { a.httpClient = c }
}

// NewAppAuth creates an AppAuth from the app id and its PEM-encoded RSA
// private key. Malformed key material is a configuration error and fails
// here, at startup, rather than per request.
func NewAppAuth(appID string, privateKeyPEM []byte, opts ...AppAuthOption) (*AppAuth, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse app private key: %w", err)
	}

	a := &AppAuth{
		appID:      appID,
		key:        key,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		now:        time.Now,
		tokens:     make(map[int64]installationToken),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// SignAssertion builds and signs a short-lived app identity assertion.
// The issued-at claim is backdated by 60 seconds; validity is 10 minutes.
func (a *AppAuth) SignAssertion() (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-assertionDrift)),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionTTL)),
		Issuer:    a.appID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(a.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign app assertion: %w", err)
	}
	return signed, nil
}

// InstallationID resolves the installation id for a repository.
func (a *AppAuth) InstallationID(ctx context.Context, owner, repo string) (int64, error) {
	assertion, err := a.SignAssertion()
	if err != nil {
		return 0, err
	}

	url := fmt.Sprintf("%s/repos/%s/%s/installation", a.baseURL, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	setAppHeaders(req, assertion)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to look up installation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("failed to look up installation for %s/%s: status %d, body: %s", owner, repo, resp.StatusCode, string(body))
	}

	var install struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&install); err != nil {
		return 0, fmt.Errorf("failed to decode installation: %w", err)
	}
	if install.ID == 0 {
		return 0, fmt.Errorf("no installation found for %s/%s", owner, repo)
	}

	return install.ID, nil
}

// InstallationToken returns an access token for the given installation,
// serving a cached one while it is fresh and exchanging a new assertion
// otherwise. A token is stale once it is within 60 seconds of expiry.
func (a *AppAuth) InstallationToken(ctx context.Context, installationID int64) (string, error) {
	a.mu.Lock()
	a.sweepLocked()
	if entry, ok := a.tokens[installationID]; ok && a.freshLocked(entry) {
		a.mu.Unlock()
		return entry.token, nil
	}
	a.mu.Unlock()

	// Collapse concurrent refreshes for the same installation into one
	// issuance call; late arrivals reuse the first caller's result.
	token, err, _ := a.group.Do(strconv.FormatInt(installationID, 10), func() (any, error) {
		a.mu.Lock()
		if entry, ok := a.tokens[installationID]; ok && a.freshLocked(entry) {
			a.mu.Unlock()
			return entry.token, nil
		}
		a.mu.Unlock()

		entry, err := a.issueToken(ctx, installationID)
		if err != nil {
			// Leave the cache untouched on failure.
			return "", err
		}

		a.mu.Lock()
		a.tokens[installationID] = entry
		a.mu.Unlock()
		return entry.token, nil
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// TokenForRepo resolves a repository's installation and returns its token.
func (a *AppAuth) TokenForRepo(ctx context.Context, owner, repo string) (string, error) {
	installationID, err := a.InstallationID(ctx, owner, repo)
	if err != nil {
		return "", err
	}
	return a.InstallationToken(ctx, installationID)
}

// issueToken exchanges a signed assertion for a new installation token.
func (a *AppAuth) issueToken(ctx context.Context, installationID int64) (installationToken, error) {
	assertion, err := a.SignAssertion()
	if err != nil {
		return installationToken{}, err
	}

	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", a.baseURL, installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return installationToken{}, fmt.Errorf("failed to create request: %w", err)
	}
	setAppHeaders(req, assertion)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return installationToken{}, fmt.Errorf("installation token unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return installationToken{}, fmt.Errorf("installation token unavailable for installation %d: status %d, body: %s", installationID, resp.StatusCode, string(body))
	}

	var issued struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&issued); err != nil {
		return installationToken{}, fmt.Errorf("failed to decode installation token: %w", err)
	}
	if issued.Token == "" {
		return installationToken{}, fmt.Errorf("installation token unavailable for installation %d: empty token", installationID)
	}

	return installationToken{token: issued.Token, expiresAt: issued.ExpiresAt}, nil
}

// freshLocked reports whether a cached entry is outside the staleness buffer.
func (a *AppAuth) freshLocked(entry installationToken) bool {
	return a.now().Add(tokenFreshness).Before(entry.expiresAt)
}

// sweepLocked drops entries whose expiry has already passed. Housekeeping
// only: a stale-but-unexpired entry is replaced on its next access anyway.
func (a *AppAuth) sweepLocked() {
	now := a.now()
	for id, entry := range a.tokens {
		if !entry.expiresAt.After(now) {
			delete(a.tokens, id)
		}
	}
}

// setAppHeaders sets the headers for app-level (assertion-authenticated) calls.
func setAppHeaders(req *http.Request, assertion string) {
	req.Header.Set("Authorization", "Bearer "+assertion)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
}

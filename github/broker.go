package github

import (
	"context"
	"errors"
	"fmt"
)

// TokenSource produces the Authorization header value for GitHub API calls.
// Implementations must be safe for concurrent use.
type TokenSource interface {
	// AuthHeader returns a "Bearer <token>" value for calls against the
	// given repository. Implementations that do not scope credentials per
	// repository accept and ignore owner/repo, so call sites stay uniform.
	AuthHeader(ctx context.Context, owner, repo string) (string, error)
}

// ErrNoCredentials indicates neither a personal token nor app credentials
// were configured.
var ErrNoCredentials = errors.New("either a personal token or app credentials must be configured")

// ErrAmbiguousCredentials indicates both credential kinds were configured.
var ErrAmbiguousCredentials = errors.New("configure either a personal token or app credentials, not both")

// StaticTokenSource authenticates every call with a fixed personal token.
type StaticTokenSource struct {
	token string
}

// NewStaticTokenSource creates a TokenSource backed by a personal token.
func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

// AuthHeader implements TokenSource. Owner and repo are ignored.
func (s *StaticTokenSource) AuthHeader(_ context.Context, _, _ string) (string, error) {
	return "Bearer " + s.token, nil
}

// InstallationTokenSource authenticates calls with per-installation access
// tokens obtained through AppAuth. It never falls back to another credential:
// an app-auth failure is surfaced, not papered over.
type InstallationTokenSource struct {
	app *AppAuth
}

// NewInstallationTokenSource creates a TokenSource backed by app credentials.
func NewInstallationTokenSource(app *AppAuth) *InstallationTokenSource {
	return &InstallationTokenSource{app: app}
}

// AuthHeader implements TokenSource. Owner and repo are required to resolve
// the installation the token must be scoped to.
func (s *InstallationTokenSource) AuthHeader(ctx context.Context, owner, repo string) (string, error) {
	if owner == "" || repo == "" {
		return "", errors.New("owner and repo are required for app authentication")
	}

	token, err := s.app.TokenForRepo(ctx, owner, repo)
	if err != nil {
		return "", fmt.Errorf("app authentication failed for %s/%s (check app installation and permissions): %w", owner, repo, err)
	}
	return "Bearer " + token, nil
}

// NewTokenSource selects the credential strategy once, at construction.
// Exactly one of personalToken and app must be set.
func NewTokenSource(personalToken string, app *AppAuth) (TokenSource, error) {
	switch {
	case personalToken != "" && app != nil:
		return nil, ErrAmbiguousCredentials
	case personalToken != "":
		return NewStaticTokenSource(personalToken), nil
	case app != nil:
		return NewInstallationTokenSource(app), nil
	default:
		return nil, ErrNoCredentials
	}
}

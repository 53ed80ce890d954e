// Package googleauth owns the Google OAuth2 authorization-code flow and the
// persisted token used by the Gmail and Calendar adapters.
package googleauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrAuthRequired indicates no usable credential exists and the user must
// complete the login flow.
var ErrAuthRequired = errors.New("not authenticated: complete the Google login flow first")

// Authenticator manages the OAuth2 flow and token lifecycle. Token refresh is
// serialized behind a mutex so concurrent tool calls racing an expiring token
// trigger at most one refresh.
type Authenticator struct {
	conf      *oauth2.Config
	tokenPath string

	mu    sync.Mutex
	token *oauth2.Token
}

// New builds an Authenticator from a Google client credentials file.
func New(credentialsPath, tokenPath string, scopes []string) (*Authenticator, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read client credentials %q: %w", credentialsPath, err)
	}
	conf, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse client credentials: %w", err)
	}
	return &Authenticator{conf: conf, tokenPath: tokenPath}, nil
}

// NewWithConfig builds an Authenticator from an existing oauth2 config.
// Used by tests to point at a fake token endpoint.
func NewWithConfig(conf *oauth2.Config, tokenPath string) *Authenticator {
	return &Authenticator{conf: conf, tokenPath: tokenPath}
}

// AuthURL returns the Google consent page URL for the given callback.
func (a *Authenticator) AuthURL(redirectURI, state string) string {
	conf := a.withRedirect(redirectURI)
	return conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// Exchange trades an authorization code for a token and persists it.
func (a *Authenticator) Exchange(ctx context.Context, code, redirectURI string) error {
	conf := a.withRedirect(redirectURI)
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = token
	return a.saveLocked()
}

// Token returns a valid access token, refreshing and re-persisting it if
// expired. Returns ErrAuthRequired when no session exists or the refresh
// token has been revoked.
func (a *Authenticator) Token(ctx context.Context) (*oauth2.Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token == nil {
		if err := a.loadLocked(); err != nil {
			return nil, ErrAuthRequired
		}
	}
	if a.token.Valid() {
		return a.token, nil
	}
	if a.token.RefreshToken == "" {
		return nil, ErrAuthRequired
	}

	refreshed, err := a.conf.TokenSource(ctx, a.token).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh access token: %w", errors.Join(ErrAuthRequired, err))
	}
	// Google omits the refresh token on refresh responses; carry it forward.
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = a.token.RefreshToken
	}
	a.token = refreshed
	if err := a.saveLocked(); err != nil {
		return nil, err
	}
	return a.token, nil
}

// IsAuthenticated reports whether a valid (or refreshable) credential exists.
func (a *Authenticator) IsAuthenticated(ctx context.Context) bool {
	_, err := a.Token(ctx)
	return err == nil
}

// Logout clears the in-memory token and removes the persisted token file.
func (a *Authenticator) Logout() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.token = nil
	if err := os.Remove(a.tokenPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// TokenSource returns an oauth2.TokenSource backed by this Authenticator, so
// Google API clients share the serialized refresh path.
func (a *Authenticator) TokenSource(ctx context.Context) oauth2.TokenSource {
	return tokenSource{auth: a, ctx: ctx}
}

type tokenSource struct {
	auth *Authenticator
	ctx  context.Context
}

func (s tokenSource) Token() (*oauth2.Token, error) {
	return s.auth.Token(s.ctx)
}

func (a *Authenticator) withRedirect(redirectURI string) *oauth2.Config {
	conf := *a.conf
	conf.RedirectURL = redirectURI
	return &conf
}

func (a *Authenticator) loadLocked() error {
	data, err := os.ReadFile(a.tokenPath)
	if err != nil {
		return err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("parse token file: %w", err)
	}
	a.token = &token
	return nil
}

func (a *Authenticator) saveLocked() error {
	data, err := json.Marshal(a.token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(a.tokenPath), 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	if err := os.WriteFile(a.tokenPath, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

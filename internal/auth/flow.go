// Package auth implements the OAuth2 authorization-code login against the
// Intra platform: interactive consent, code-for-token exchange, and the
// single credential write on success.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/mgoubin/companion/internal/credential"
)

var (
	// ErrMissingConfig means the client id or secret is not configured.
	// Detected before any interactive or network activity.
	ErrMissingConfig = errors.New("client id and client secret are required")

	// ErrCancelled means the user dismissed the consent step. Not a loud
	// failure; the attempt simply does not proceed.
	ErrCancelled = errors.New("login cancelled")

	// ErrFailed covers malformed callbacks and token responses that are
	// neither a clean success nor a clean server rejection.
	ErrFailed = errors.New("login failed")

	// ErrConsentDismissed is returned by a Consent implementation when the
	// user walks away from the authorization prompt.
	ErrConsentDismissed = errors.New("consent dismissed")
)

// TokenExchangeError reports a rejected or unreachable token endpoint.
// Message carries the server's error_description when it sent one.
type TokenExchangeError struct {
	Message string
	Err     error
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed: %s", e.Message)
}

func (e *TokenExchangeError) Unwrap() error {
	return e.Err
}

// Consent is the interactive authorization step. Prompt presents authURL to
// the user and blocks until the platform redirects back with a code, the
// user dismisses the prompt (ErrConsentDismissed), or something else goes
// wrong. state must round-trip through the redirect unchanged.
type Consent interface {
	Prompt(ctx context.Context, authURL, state string) (code string, err error)
}

// FlowConfig carries the endpoints and client credentials for one flow.
type FlowConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	Scope        string
}

// Flow runs the authorization-code grant. One Authorize call makes at most
// one token request and at most one credential write; nothing is retried, a
// failed attempt starts over from the consent step.
type Flow struct {
	oauth   *oauth2.Config
	consent Consent
	store   credential.Store
}

func NewFlow(cfg FlowConfig, consent Consent, store credential.Store) *Flow {
	scope := cfg.Scope
	if scope == "" {
		scope = "public"
	}
	return &Flow{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{scope},
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
				// Intra expects client credentials in the form body.
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		consent: consent,
		store:   store,
	}
}

// Authorize runs the flow end to end. On success exactly one credential is
// written under credential.AccessTokenKey.
func (f *Flow) Authorize(ctx context.Context) error {
	if f.oauth.ClientID == "" || f.oauth.ClientSecret == "" {
		return ErrMissingConfig
	}

	state := uuid.NewString()
	authURL := f.oauth.AuthCodeURL(state)

	code, err := f.consent.Prompt(ctx, authURL, state)
	switch {
	case errors.Is(err, ErrConsentDismissed):
		return ErrCancelled
	case err != nil:
		return fmt.Errorf("%w: %v", ErrFailed, err)
	case code == "":
		return fmt.Errorf("%w: empty authorization code", ErrFailed)
	}

	tok, err := f.oauth.Exchange(ctx, code)
	if err != nil {
		return exchangeError(err)
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("%w: token response missing access_token", ErrFailed)
	}

	if err := f.store.Set(credential.AccessTokenKey, tok.AccessToken); err != nil {
		return fmt.Errorf("storing credential: %w", err)
	}
	return nil
}

// exchangeError classifies a failed code-for-token exchange. A server
// rejection surfaces its error_description; a transport failure surfaces
// the network reason. Anything else (e.g. a success response missing the
// token field) is ErrFailed.
func exchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		msg := retrieveErr.ErrorDescription
		if msg == "" {
			msg = strings.TrimSpace(string(retrieveErr.Body))
		}
		if msg == "" {
			msg = fmt.Sprintf("status %d", retrieveErr.Response.StatusCode)
		}
		return &TokenExchangeError{Message: msg, Err: err}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &TokenExchangeError{Message: fmt.Sprintf("network: %v", urlErr), Err: err}
	}

	return fmt.Errorf("%w: %v", ErrFailed, err)
}

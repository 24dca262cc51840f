package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/mgoubin/companion/internal/credential"
)

// mockConsent returns a scripted outcome and records what it was shown.
type mockConsent struct {
	code string
	err  error

	prompts  int
	authURL  string
	gotState string
}

func (m *mockConsent) Prompt(ctx context.Context, authURL, state string) (string, error) {
	m.prompts++
	m.authURL = authURL
	m.gotState = state
	return m.code, m.err
}

// mockStore counts writes so the single-write guarantee is checkable.
type mockStore struct {
	mu       sync.Mutex
	data     map[string]string
	setCalls int
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string)}
}

func (m *mockStore) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mockStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	m.data[key] = value
	return nil
}

func (m *mockStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// tokenEndpoint is an httptest token server that counts POSTs.
type tokenEndpoint struct {
	server *httptest.Server
	mu     sync.Mutex
	posts  int
	bodies []url.Values
}

func newTokenEndpoint(t *testing.T, handler http.HandlerFunc) *tokenEndpoint {
	t.Helper()
	te := &tokenEndpoint{}
	te.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		te.mu.Lock()
		te.posts++
		te.bodies = append(te.bodies, r.PostForm)
		te.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(te.server.Close)
	return te
}

func (te *tokenEndpoint) postCount() int {
	te.mu.Lock()
	defer te.mu.Unlock()
	return te.posts
}

func flowConfig(tokenURL string) FlowConfig {
	return FlowConfig{
		ClientID:     "uid-123",
		ClientSecret: "secret-456",
		RedirectURL:  "http://127.0.0.1:53682/callback",
		AuthURL:      "https://intra.test/oauth/authorize",
		TokenURL:     tokenURL,
		Scope:        "public",
	}
}

func TestAuthorizeMissingConfig(t *testing.T) {
	te := newTokenEndpoint(t, func(w http.ResponseWriter, r *http.Request) {})
	consent := &mockConsent{code: "abc"}
	store := newMockStore()

	for _, cfg := range []FlowConfig{
		{ClientSecret: "s", TokenURL: te.server.URL},
		{ClientID: "i", TokenURL: te.server.URL},
		{TokenURL: te.server.URL},
	} {
		f := NewFlow(cfg, consent, store)
		if err := f.Authorize(context.Background()); !errors.Is(err, ErrMissingConfig) {
			t.Errorf("err = %v, want ErrMissingConfig", err)
		}
	}

	// No interactive step, no network, no write.
	if consent.prompts != 0 {
		t.Errorf("consent prompted %d times, want 0", consent.prompts)
	}
	if te.postCount() != 0 {
		t.Errorf("token endpoint hit %d times, want 0", te.postCount())
	}
	if store.setCalls != 0 {
		t.Errorf("credential written %d times, want 0", store.setCalls)
	}
}

func TestAuthorizeCancelled(t *testing.T) {
	te := newTokenEndpoint(t, func(w http.ResponseWriter, r *http.Request) {})
	consent := &mockConsent{err: ErrConsentDismissed}
	store := newMockStore()

	f := NewFlow(flowConfig(te.server.URL), consent, store)
	err := f.Authorize(context.Background())

	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if te.postCount() != 0 {
		t.Errorf("token endpoint hit %d times, want 0", te.postCount())
	}
	if store.setCalls != 0 {
		t.Errorf("credential written %d times, want 0", store.setCalls)
	}
}

func TestAuthorizeConsentFailure(t *testing.T) {
	te := newTokenEndpoint(t, func(w http.ResponseWriter, r *http.Request) {})
	consent := &mockConsent{err: errors.New("malformed callback")}

	f := NewFlow(flowConfig(te.server.URL), consent, newMockStore())
	err := f.Authorize(context.Background())

	if !errors.Is(err, ErrFailed) {
		t.Fatalf("err = %v, want ErrFailed", err)
	}
	if errors.Is(err, ErrCancelled) {
		t.Error("a malformed callback must not look like a cancellation")
	}
	if te.postCount() != 0 {
		t.Errorf("token endpoint hit %d times, want 0", te.postCount())
	}
}

func TestAuthorizeSuccess(t *testing.T) {
	te := newTokenEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-xyz","token_type":"bearer"}`))
	})
	consent := &mockConsent{code: "code-1"}
	store := newMockStore()

	f := NewFlow(flowConfig(te.server.URL), consent, store)
	if err := f.Authorize(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v, ok, _ := store.Get(credential.AccessTokenKey); !ok || v != "tok-xyz" {
		t.Errorf("stored credential = (%q, %v), want (tok-xyz, true)", v, ok)
	}
	if store.setCalls != 1 {
		t.Errorf("credential written %d times, want exactly 1", store.setCalls)
	}

	// The exchange carried the grant, code, credentials, and the exact
	// redirect URI used in the consent step.
	if te.postCount() != 1 {
		t.Fatalf("token endpoint hit %d times, want 1", te.postCount())
	}
	body := te.bodies[0]
	if body.Get("grant_type") != "authorization_code" {
		t.Errorf("grant_type = %q", body.Get("grant_type"))
	}
	if body.Get("code") != "code-1" {
		t.Errorf("code = %q", body.Get("code"))
	}
	if body.Get("client_id") != "uid-123" || body.Get("client_secret") != "secret-456" {
		t.Errorf("client credentials = (%q, %q)", body.Get("client_id"), body.Get("client_secret"))
	}
	if body.Get("redirect_uri") != "http://127.0.0.1:53682/callback" {
		t.Errorf("redirect_uri = %q", body.Get("redirect_uri"))
	}
}

func TestAuthorizeBuildsAuthURL(t *testing.T) {
	te := newTokenEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"t"}`))
	})
	consent := &mockConsent{code: "c"}

	f := NewFlow(flowConfig(te.server.URL), consent, newMockStore())
	if err := f.Authorize(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u, err := url.Parse(consent.authURL)
	if err != nil {
		t.Fatalf("parsing auth URL: %v", err)
	}
	q := u.Query()
	if q.Get("response_type") != "code" {
		t.Errorf("response_type = %q, want code", q.Get("response_type"))
	}
	if q.Get("client_id") != "uid-123" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("scope") != "public" {
		t.Errorf("scope = %q, want public", q.Get("scope"))
	}
	if q.Get("state") == "" || q.Get("state") != consent.gotState {
		t.Errorf("state = %q, prompted with %q", q.Get("state"), consent.gotState)
	}
}

func TestAuthorizeTokenExchangeRejected(t *testing.T) {
	te := newTokenEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"The redirect uri included is not valid."}`))
	})
	store := newMockStore()

	f := NewFlow(flowConfig(te.server.URL), &mockConsent{code: "c"}, store)
	err := f.Authorize(context.Background())

	var exchErr *TokenExchangeError
	if !errors.As(err, &exchErr) {
		t.Fatalf("err = %v, want *TokenExchangeError", err)
	}
	if !strings.Contains(exchErr.Message, "redirect uri") {
		t.Errorf("Message = %q, want the server's error_description", exchErr.Message)
	}
	if store.setCalls != 0 {
		t.Errorf("credential written %d times on failure, want 0", store.setCalls)
	}
}

func TestAuthorizeTokenExchangeUnreachable(t *testing.T) {
	// Point at a closed port: the exchange is a transport failure, which
	// still classifies as a token-exchange error with a network reason.
	f := NewFlow(flowConfig("http://127.0.0.1:1/token"), &mockConsent{code: "c"}, newMockStore())
	err := f.Authorize(context.Background())

	var exchErr *TokenExchangeError
	if !errors.As(err, &exchErr) {
		t.Fatalf("err = %v, want *TokenExchangeError", err)
	}
	if !strings.Contains(exchErr.Message, "network") {
		t.Errorf("Message = %q, want a network reason", exchErr.Message)
	}
}

func TestAuthorizeMissingTokenInSuccess(t *testing.T) {
	te := newTokenEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token_type":"bearer"}`))
	})
	store := newMockStore()

	f := NewFlow(flowConfig(te.server.URL), &mockConsent{code: "c"}, store)
	err := f.Authorize(context.Background())

	if !errors.Is(err, ErrFailed) {
		t.Fatalf("err = %v, want ErrFailed", err)
	}
	if store.setCalls != 0 {
		t.Errorf("credential written %d times, want 0", store.setCalls)
	}
}

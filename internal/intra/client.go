package intra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mgoubin/companion/internal/credential"
)

// maxErrorBodySize caps how much of an error response body is surfaced.
const maxErrorBodySize = 4 << 10 // 4KB

// Client fetches user records from the Intra API. The bearer token is read
// from the credential store on every call, never cached: a concurrent
// logout between read and use simply surfaces as a server-side auth error.
type Client struct {
	baseURL    string
	store      credential.Store
	httpClient *http.Client
}

// New creates a Client for the given API base URL. The timeout is the full
// per-request transport timeout; a zero value falls back to 15s rather than
// relying on an implicit platform default.
func New(baseURL string, store credential.Store, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		store:      store,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// User fetches the raw profile record for a login.
//
// Errors: ErrInvalidLogin and ErrUnauthenticated are returned before any
// request is issued; *NotFoundError for 404; *APIError for any other
// non-2xx status or transport failure; ErrInvalidResponse for an
// undecodable success body. No retries at this layer.
func (c *Client) User(ctx context.Context, login string) (User, error) {
	if login == "" {
		return User{}, ErrInvalidLogin
	}

	token, ok, err := c.store.Get(credential.AccessTokenKey)
	if err != nil {
		return User{}, fmt.Errorf("reading credential: %w", err)
	}
	if !ok || token == "" {
		return User{}, ErrUnauthenticated
	}

	// Case and punctuation are preserved exactly; only reserved URI
	// characters are escaped.
	endpoint := c.baseURL + "/v2/users/" + url.PathEscape(login)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return User{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return User{}, &APIError{Message: fmt.Sprintf("network: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return User{}, &NotFoundError{Login: login}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return User{}, &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var u User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return u, nil
}

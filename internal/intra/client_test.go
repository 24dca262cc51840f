package intra

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mgoubin/companion/internal/credential"
)

// mockStore is an in-memory credential.Store.
type mockStore struct {
	mu   sync.Mutex
	data map[string]string
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
	m.data[key] = value
	return nil
}

func (m *mockStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type recordedRequest struct {
	Path   string
	Auth   string
	Accept string
}

type testAPI struct {
	server   *httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
}

func newTestAPI(t *testing.T, handler http.HandlerFunc) *testAPI {
	t.Helper()
	api := &testAPI{}
	api.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		api.requests = append(api.requests, recordedRequest{
			Path:   r.URL.EscapedPath(),
			Auth:   r.Header.Get("Authorization"),
			Accept: r.Header.Get("Accept"),
		})
		api.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(api.server.Close)
	return api
}

func (api *testAPI) count() int {
	api.mu.Lock()
	defer api.mu.Unlock()
	return len(api.requests)
}

func authedStore() *mockStore {
	s := newMockStore()
	s.Set(credential.AccessTokenKey, "tok-abc")
	return s
}

const profileBody = `{
	"login": "jdoe",
	"displayname": "John Doe",
	"email": "jdoe@student.42.fr",
	"phone": "hidden",
	"wallet": 50,
	"correction_point": 7,
	"location": null,
	"cursus_users": [
		{"cursus_id": 9, "level": 8.1, "skills": []},
		{"cursus_id": 21, "level": 5.42, "skills": [
			{"id": 1, "name": "C", "level": 6.0},
			{"id": 2, "name": "Unix", "level": 6.0}
		]}
	],
	"projects_users": [
		{"cursus_ids": [21], "final_mark": 125, "validated?": true,
		 "project": {"name": "libft"}, "status": "finished",
		 "updated_at": "2024-03-01T10:00:00.000Z"}
	]
}`

func TestUserSuccess(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(profileBody))
	})

	c := New(api.server.URL, authedStore(), 5*time.Second)

	u, err := c.User(context.Background(), "jdoe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Login != "jdoe" {
		t.Errorf("Login = %q, want jdoe", u.Login)
	}
	if len(u.CursusUsers) != 2 {
		t.Fatalf("got %d cursus memberships, want 2", len(u.CursusUsers))
	}
	if u.CursusUsers[1].Level != 5.42 {
		t.Errorf("level = %v, want 5.42", u.CursusUsers[1].Level)
	}
	if u.ProjectsUsers[0].Validated != Passed {
		t.Errorf("Validated = %v, want Passed", u.ProjectsUsers[0].Validated)
	}

	r := api.requests[0]
	if r.Path != "/v2/users/jdoe" {
		t.Errorf("path = %q, want /v2/users/jdoe", r.Path)
	}
	if r.Auth != "Bearer tok-abc" {
		t.Errorf("auth = %q, want Bearer tok-abc", r.Auth)
	}
	if r.Accept != "application/json" {
		t.Errorf("accept = %q, want application/json", r.Accept)
	}
}

func TestUserEscapesLogin(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"login":"x"}`))
	})

	c := New(api.server.URL, authedStore(), 5*time.Second)
	if _, err := c.User(context.Background(), "a b/c"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := api.requests[0].Path; got != "/v2/users/a%20b%2Fc" {
		t.Errorf("path = %q, want /v2/users/a%%20b%%2Fc", got)
	}
}

func TestUserEmptyLogin(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {})

	c := New(api.server.URL, authedStore(), 5*time.Second)
	_, err := c.User(context.Background(), "")
	if !errors.Is(err, ErrInvalidLogin) {
		t.Fatalf("err = %v, want ErrInvalidLogin", err)
	}
	if api.count() != 0 {
		t.Errorf("expected 0 requests, got %d", api.count())
	}
}

func TestUserMissingCredential(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {})

	c := New(api.server.URL, newMockStore(), 5*time.Second)
	_, err := c.User(context.Background(), "jdoe")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
	if api.count() != 0 {
		t.Errorf("expected 0 requests, got %d", api.count())
	}
}

func TestUserNotFound(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Not found"}`, http.StatusNotFound)
	})

	c := New(api.server.URL, authedStore(), 5*time.Second)
	_, err := c.User(context.Background(), "doesnotexist")

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want *NotFoundError", err)
	}
	if nf.Login != "doesnotexist" {
		t.Errorf("NotFoundError.Login = %q, want doesnotexist", nf.Login)
	}

	// 404 is a distinguished outcome, never an APIError.
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Error("404 must not surface as *APIError")
	}
}

func TestUserAPIError(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	})

	c := New(api.server.URL, authedStore(), 5*time.Second)
	_, err := c.User(context.Background(), "jdoe")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != 500 {
		t.Errorf("Status = %d, want 500", apiErr.Status)
	}
	if apiErr.Message != "boom" {
		t.Errorf("Message = %q, want boom", apiErr.Message)
	}
}

func TestUserExpiredToken(t *testing.T) {
	// An expired token is detected only from the server response; it is an
	// APIError, not ErrUnauthenticated.
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"The access token expired"}`))
	})

	c := New(api.server.URL, authedStore(), 5*time.Second)
	_, err := c.User(context.Background(), "jdoe")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != 401 {
		t.Errorf("Status = %d, want 401", apiErr.Status)
	}
	if errors.Is(err, ErrUnauthenticated) {
		t.Error("server-side 401 must not be ErrUnauthenticated")
	}
}

func TestUserInvalidResponse(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"login": `))
	})

	c := New(api.server.URL, authedStore(), 5*time.Second)
	_, err := c.User(context.Background(), "jdoe")
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("err = %v, want ErrInvalidResponse", err)
	}
}

func TestUserTimeout(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	c := New(api.server.URL, authedStore(), 20*time.Millisecond)
	_, err := c.User(context.Background(), "jdoe")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != 0 {
		t.Errorf("Status = %d, want 0 for transport failure", apiErr.Status)
	}
}

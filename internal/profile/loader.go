package profile

import (
	"context"
	"strings"

	"github.com/mgoubin/companion/internal/intra"
)

// UserFetcher abstracts the Intra client for the loading layer.
type UserFetcher interface {
	User(ctx context.Context, login string) (intra.User, error)
}

// Loader is the fetch-then-derive half of the pipeline. It performs no
// writes and keeps no memory of previous calls: the same login against the
// same server state yields identical output.
type Loader struct {
	fetcher      UserFetcher
	mainCursusID int
}

func NewLoader(fetcher UserFetcher, mainCursusID int) *Loader {
	return &Loader{fetcher: fetcher, mainCursusID: mainCursusID}
}

// Load validates the login, fetches the raw record, and derives the view.
// Empty and placeholder logins are rejected before any network activity.
func (l *Loader) Load(ctx context.Context, login string) (Derived, error) {
	if !validLogin(login) {
		return Derived{}, intra.ErrInvalidLogin
	}

	u, err := l.fetcher.User(ctx, login)
	if err != nil {
		return Derived{}, err
	}

	return Derive(u, l.mainCursusID), nil
}

// validLogin rejects the empty string and the navigation placeholder the
// original client used for a missing route parameter.
func validLogin(login string) bool {
	if login == "" {
		return false
	}
	return !strings.EqualFold(login, "unknown")
}

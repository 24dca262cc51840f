// Package credential holds the process-wide credential slot: a small,
// persisted key-value store for the Intra bearer token and the local API
// token. It is constructed once at startup and handed to every component
// that needs it; nothing reads it through a global.
package credential

// Keys used in the store. At most one value exists per key.
const (
	// AccessTokenKey holds the Intra OAuth2 bearer token. Written exactly
	// once per successful login, deleted on logout.
	AccessTokenKey = "access_token"

	// APITokenKey holds the bearer token guarding the local serve API.
	APITokenKey = "api_token"
)

// Store is a scoped key-value slot. Get reports absence explicitly so
// callers never confuse "no credential" with an empty credential.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}

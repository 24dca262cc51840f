package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Intra   IntraConfig
	Auth    AuthConfig
	Server  ServerConfig
	Storage StorageConfig
	Log     LogConfig
}

type IntraConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      string
	MainCursusID int
}

type AuthConfig struct {
	CallbackPort int
	Scope        string
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

// DefaultMainCursusID is the 42 main track ("42cursus") identifier.
const DefaultMainCursusID = 21

func defaults() Config {
	return Config{
		Intra: IntraConfig{
			BaseURL:      "https://api.intra.42.fr",
			Timeout:      "15s",
			MainCursusID: DefaultMainCursusID,
		},
		Auth: AuthConfig{
			CallbackPort: 53682,
			Scope:        "public",
		},
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, a .env file in
// the working directory (if present), environment variables, and the
// platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.companion.app) and the
// client secret falls back to macOS Keychain. On Linux the backend is a JSON
// file at $XDG_CONFIG_HOME/companion/config.json and the secret must come
// from the environment.
//
// Environment variables (COMPANION_*) override backend values on all
// platforms. Client credentials may be absent: only the login flow needs
// them, and it reports missing credentials itself before doing anything
// interactive.
func Load() (Config, error) {
	_ = godotenv.Load()
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret-store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Try the platform keychain for the client secret if still empty.
	if cfg.Intra.ClientSecret == "" {
		if secret, err := kc.Get("companion", "intra_client_secret"); err == nil && secret != "" {
			cfg.Intra.ClientSecret = secret
		}
	}

	if _, err := time.ParseDuration(cfg.Intra.Timeout); err != nil {
		return Config{}, fmt.Errorf("invalid intra.timeout %q: %w", cfg.Intra.Timeout, err)
	}

	return cfg, nil
}

// HTTPTimeout returns the parsed API transport timeout. Load validates the
// value, so a Config obtained from Load cannot fail here.
func (c Config) HTTPTimeout() time.Duration {
	d, err := time.ParseDuration(c.Intra.Timeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

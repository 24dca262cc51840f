package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "intra.base_url", typ: kString, env: "COMPANION_INTRA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Intra.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Intra.BaseURL },
	},
	{
		key: "intra.client_id", typ: kString, env: "COMPANION_INTRA_CLIENT_ID",
		apply:   func(cfg *Config, v any) { cfg.Intra.ClientID = v.(string) },
		extract: func(cfg Config) any { return cfg.Intra.ClientID },
	},
	{
		key: "intra.client_secret", typ: kString, env: "COMPANION_INTRA_CLIENT_SECRET",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Intra.ClientSecret = v.(string) },
		extract: func(cfg Config) any { return cfg.Intra.ClientSecret },
	},
	{
		key: "intra.timeout", typ: kString, env: "COMPANION_INTRA_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Intra.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Intra.Timeout },
	},
	{
		key: "intra.main_cursus_id", typ: kInt, env: "COMPANION_INTRA_MAIN_CURSUS_ID",
		apply:   func(cfg *Config, v any) { cfg.Intra.MainCursusID = v.(int) },
		extract: func(cfg Config) any { return cfg.Intra.MainCursusID },
	},
	{
		key: "auth.callback_port", typ: kInt, env: "COMPANION_AUTH_CALLBACK_PORT",
		apply:   func(cfg *Config, v any) { cfg.Auth.CallbackPort = v.(int) },
		extract: func(cfg Config) any { return cfg.Auth.CallbackPort },
	},
	{
		key: "server.port", typ: kInt, env: "COMPANION_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "COMPANION_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "COMPANION_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}

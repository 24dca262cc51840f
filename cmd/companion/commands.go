package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mgoubin/companion/internal/auth"
	"github.com/mgoubin/companion/internal/config"
	"github.com/mgoubin/companion/internal/credential"
	"github.com/mgoubin/companion/internal/intra"
	"github.com/mgoubin/companion/internal/profile"
)

func openStore(cfg config.Config) (*credential.SQLiteStore, error) {
	store, err := credential.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening credential store: %w", err)
	}
	return store, nil
}

// --- login ---

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to 42 Intra via the browser",
	Long: `Log in to 42 Intra using the OAuth2 authorization-code flow.

Opens the system browser on the Intra consent page and waits for the
redirect on a local loopback port. Requires intra.client_id and
intra.client_secret to be configured (see companion config).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		consent := auth.NewLoopbackConsent(cfg.Auth.CallbackPort)
		flow := auth.NewFlow(auth.FlowConfig{
			ClientID:     cfg.Intra.ClientID,
			ClientSecret: cfg.Intra.ClientSecret,
			RedirectURL:  consent.RedirectURL(),
			AuthURL:      cfg.Intra.BaseURL + "/oauth/authorize",
			TokenURL:     cfg.Intra.BaseURL + "/oauth/token",
			Scope:        cfg.Auth.Scope,
		}, consent, store)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		printStep("Opening your browser for 42 Intra consent...")

		err = flow.Authorize(ctx)
		switch {
		case errors.Is(err, auth.ErrMissingConfig):
			printError("intra.client_id and intra.client_secret are not configured")
			fmt.Fprintln(os.Stderr, "  Set them via COMPANION_INTRA_CLIENT_ID / COMPANION_INTRA_CLIENT_SECRET")
			return err
		case errors.Is(err, auth.ErrCancelled):
			// Dismissal is a normal outcome, not a failure.
			printWarning("Login cancelled")
			return nil
		case err != nil:
			printError("Login failed: %v", err)
			return err
		}

		printSuccess("Logged in")
		return nil
	},
}

// --- logout ---

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored Intra credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		_, ok, err := store.Get(credential.AccessTokenKey)
		if err != nil {
			return err
		}
		if !ok {
			printWarning("Not logged in")
			return nil
		}

		if err := store.Delete(credential.AccessTokenKey); err != nil {
			return err
		}
		printSuccess("Logged out")
		return nil
	},
}

// --- profile ---

var loginCharset = regexp.MustCompile(`[^a-z0-9-]`)

// sanitizeLogin applies the same rules as the original search form:
// lowercase, keep only [a-z0-9-], require at least 3 characters.
func sanitizeLogin(raw string) (string, error) {
	login := loginCharset.ReplaceAllString(strings.ToLower(strings.TrimSpace(raw)), "")
	if len(login) < 3 {
		return "", fmt.Errorf("login must be at least 3 characters of letters, digits, or '-'")
	}
	return login, nil
}

var profileCmd = &cobra.Command{
	Use:   "profile <login>",
	Short: "Show a user's derived profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		login, err := sanitizeLogin(args[0])
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		client := intra.New(cfg.Intra.BaseURL, store, cfg.HTTPTimeout())
		loader := profile.NewLoader(client, cfg.Intra.MainCursusID)

		d, err := loader.Load(cmd.Context(), login)
		if err != nil {
			return reportLoadError(login, err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(d)
		}

		renderProfile(cmd.OutOrStdout(), d)
		return nil
	},
}

// reportLoadError prints a kind-specific message and returns the error
// (nil for not-found, which is an expected outcome, not a failure).
func reportLoadError(login string, err error) error {
	var nf *intra.NotFoundError
	var apiErr *intra.APIError

	switch {
	case errors.As(err, &nf):
		printWarning("No such user %q", nf.Login)
		return nil
	case errors.Is(err, intra.ErrUnauthenticated):
		printError("Not logged in; run `companion login` first")
		return err
	case errors.Is(err, intra.ErrInvalidResponse):
		printError("Intra returned an unreadable profile for %q", login)
		return err
	case errors.As(err, &apiErr):
		printError("Intra API error: %v", apiErr)
		return err
	default:
		printError("Profile lookup failed: %v", err)
		return err
	}
}

func init() {
	profileCmd.Flags().Bool("json", false, "print the derived profile as JSON")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, info := range config.ShowAll(cfg) {
			printStatus(info.Key, "%s", info.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetKey(args[0], args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "valid keys: %s\n", strings.Join(config.ValidKeys(), ", "))
			return err
		}
		printSuccess("Set %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// LoopbackConsent implements Consent with a temporary HTTP listener on
// 127.0.0.1: the system browser is opened on the authorization URL and the
// platform redirects back to the local callback with either a code or an
// error indication. Context cancellation while waiting counts as a
// dismissal: the user walked away.
type LoopbackConsent struct {
	port        int
	openBrowser func(url string) error
}

func NewLoopbackConsent(port int) *LoopbackConsent {
	return &LoopbackConsent{port: port, openBrowser: openBrowser}
}

// RedirectURL is the redirect URI to register with the platform and to use
// verbatim in the token exchange.
func (l *LoopbackConsent) RedirectURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d/callback", l.port)
}

type callbackResult struct {
	code string
	err  error
}

func (l *LoopbackConsent) Prompt(ctx context.Context, authURL, state string) (string, error) {
	// Buffered so a second, late redirect cannot block the handler.
	results := make(chan callbackResult, 1)

	r := chi.NewRouter()
	r.Get("/callback", func(w http.ResponseWriter, req *http.Request) {
		res := parseCallback(req.URL.Query().Get("code"), req.URL.Query().Get("state"),
			req.URL.Query().Get("error"), req.URL.Query().Get("error_description"), state)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if res.err != nil {
			fmt.Fprint(w, "<html><body><p>Login did not complete. You can close this window.</p></body></html>")
		} else {
			fmt.Fprint(w, "<html><body><p>Login received. You can close this window.</p></body></html>")
		}

		select {
		case results <- res:
		default:
		}
	})

	addr := fmt.Sprintf("127.0.0.1:%d", l.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listening on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: r}
	go srv.Serve(ln)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := l.openBrowser(authURL); err != nil {
		return "", fmt.Errorf("opening browser: %w", err)
	}

	select {
	case res := <-results:
		return res.code, res.err
	case <-ctx.Done():
		return "", ErrConsentDismissed
	}
}

// parseCallback maps the redirect parameters onto the three consent
// outcomes: code, dismissed, or failure.
func parseCallback(code, gotState, errParam, errDesc, wantState string) callbackResult {
	if errParam == "access_denied" {
		return callbackResult{err: ErrConsentDismissed}
	}
	if errParam != "" {
		if errDesc != "" {
			return callbackResult{err: fmt.Errorf("authorization error: %s: %s", errParam, errDesc)}
		}
		return callbackResult{err: fmt.Errorf("authorization error: %s", errParam)}
	}
	if gotState != wantState {
		return callbackResult{err: errors.New("state mismatch in callback")}
	}
	if code == "" {
		return callbackResult{err: errors.New("callback missing authorization code")}
	}
	return callbackResult{code: code}
}

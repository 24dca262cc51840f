// Package api exposes the derivation pipeline to local consumers: a small
// read-only HTTP surface and an MCP server for agent tooling.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mgoubin/companion/internal/intra"
	"github.com/mgoubin/companion/internal/profile"
)

// Loader abstracts the profile pipeline for the API layer.
type Loader interface {
	Load(ctx context.Context, login string) (profile.Derived, error)
}

// Deps holds dependencies for the HTTP handler.
type Deps struct {
	Loader Loader
	Token  string
}

// NewHandler builds the serve-mode router. The profile route is guarded by
// the local bearer token; health is open.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Get("/v1/profile/{login}", handleProfile(deps))
	})

	return r
}

// profileResponse is the JSON shape of a derived profile. MainCursus is
// null when the user has no main-track membership.
type profileResponse struct {
	Login            string          `json:"login"`
	DisplayName      string          `json:"displayname"`
	Email            string          `json:"email,omitempty"`
	Phone            string          `json:"phone,omitempty"`
	Wallet           int             `json:"wallet"`
	CorrectionPoint  int             `json:"correction_point"`
	Location         string          `json:"location"`
	MainCursus       *intra.Cursus   `json:"main_cursus"`
	FinishedProjects []intra.Project `json:"finished_projects"`
	RankedSkills     []intra.Skill   `json:"ranked_skills"`
}

func toResponse(d profile.Derived) profileResponse {
	phone, _ := d.User.VisiblePhone()
	return profileResponse{
		Login:            d.User.Login,
		DisplayName:      d.User.DisplayName,
		Email:            d.User.Email,
		Phone:            phone,
		Wallet:           d.User.Wallet,
		CorrectionPoint:  d.User.CorrectionPoint,
		Location:         d.User.DisplayLocation(),
		MainCursus:       d.MainCursus,
		FinishedProjects: d.FinishedProjects,
		RankedSkills:     d.RankedSkills,
	}
}

func handleProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		login := chi.URLParam(r, "login")

		d, err := deps.Loader.Load(r.Context(), login)
		if err != nil {
			writeLoadError(w, login, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(toResponse(d))
	}
}

// writeLoadError maps pipeline errors onto HTTP statuses without conflating
// the kinds: a missing user is 404, a missing credential is 401 with the
// re-login remediation, everything upstream-shaped is 502.
func writeLoadError(w http.ResponseWriter, login string, err error) {
	var nf *intra.NotFoundError
	var apiErr *intra.APIError

	switch {
	case errors.Is(err, intra.ErrInvalidLogin):
		httpError(w, http.StatusBadRequest, "invalid_login", "invalid login %q", login)
	case errors.Is(err, intra.ErrUnauthenticated):
		httpError(w, http.StatusUnauthorized, "unauthenticated", "no stored credential; run `companion login`")
	case errors.As(err, &nf):
		httpError(w, http.StatusNotFound, "not_found", "no such user %q", nf.Login)
	case errors.Is(err, intra.ErrInvalidResponse):
		httpError(w, http.StatusBadGateway, "invalid_upstream_response", "intra returned an unreadable profile")
	case errors.As(err, &apiErr):
		httpError(w, http.StatusBadGateway, "upstream_error", "%s", apiErr.Error())
	default:
		slog.Error("profile load failed", "login", login, "error", err)
		httpError(w, http.StatusInternalServerError, "internal_error", "profile load failed")
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mgoubin/companion/internal/api"
	"github.com/mgoubin/companion/internal/config"
	"github.com/mgoubin/companion/internal/intra"
	"github.com/mgoubin/companion/internal/profile"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local profile API (foreground)",
	Long: `Run a local read-only API over the profile pipeline.

Exposes GET /v1/profile/{login} on 127.0.0.1 (guarded by a generated
bearer token) and the same lookup as MCP tools on stdio, for agent
tooling. Requires a prior login.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing credential store", "error", err)
		}
	}()

	apiToken, err := api.EnsureAPIToken(store)
	if err != nil {
		return err
	}

	client := intra.New(cfg.Intra.BaseURL, store, cfg.HTTPTimeout())
	loader := profile.NewLoader(client, cfg.Intra.MainCursusID)
	handler := api.NewHandler(api.Deps{Loader: loader, Token: apiToken})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: handler}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printStatus("API token", "%s", apiToken)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("companion listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		stdio := mcpserver.NewStdioServer(api.NewMCPServer(loader))
		if err := stdio.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/intelverse/intelverse-go/internal/chat"
	"github.com/intelverse/intelverse-go/internal/config"
	"github.com/intelverse/intelverse-go/internal/feed"
	"github.com/intelverse/intelverse-go/internal/hub"
	"github.com/intelverse/intelverse-go/internal/llm"
	"github.com/intelverse/intelverse-go/internal/logger"
	"github.com/intelverse/intelverse-go/internal/retriever"
	"github.com/intelverse/intelverse-go/internal/server"
	"github.com/intelverse/intelverse-go/internal/session"
	"github.com/intelverse/intelverse-go/internal/store"
)

func openStore(cfg config.Store) (store.SummaryStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return store.NewMemory(), nil
	case "sqlite":
		return store.OpenSQLite(cfg.Path)
	case "pebble":
		return store.OpenPebble(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Log.Level)

	summaries, err := openStore(cfg.Store)
	if err != nil {
		logger.L.Error("failed to open summary store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer summaries.Close()

	sessions := session.NewStore(0)
	coordinator := chat.NewCoordinator(retriever.New(summaries), sessions, llm.NewClient(cfg.LLM))
	feeds := feed.NewService(summaries, cfg.Feed.CacheTTL)
	broadcast := hub.New(summaries, cfg.Hub.PollInterval, cfg.Hub.BatchSize)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go broadcast.Run(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler: server.New(coordinator, feeds, broadcast, summaries, cfg.Rate).Router(),
	}

	go func() {
		logger.L.Info("starting server", "address", srv.Addr, "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.L.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.L.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.L.Error("shutdown failed", "error", err)
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devraulu/rjmeta/pkg/api"
	"github.com/devraulu/rjmeta/pkg/config"
	"github.com/devraulu/rjmeta/pkg/dlsite"
	"github.com/devraulu/rjmeta/pkg/imagecache"
	"github.com/devraulu/rjmeta/pkg/logger"
	"github.com/devraulu/rjmeta/pkg/mapper"
	"github.com/devraulu/rjmeta/pkg/provider"
)

func main() {
	configPath := flag.String("config", "config.toml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("fatal: couldn't load config", slog.Any("err", err))
		os.Exit(1)
	}

	logger.InitLogger(cfg)
	api.InitMetrics()

	client := dlsite.NewClient(cfg)
	defer client.Close()

	cache, err := imagecache.New(cfg.Images.CacheDir, client.HTTPClient(), cfg.Site.UserAgent)
	if err != nil {
		slog.Error("fatal: couldn't open image cache", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("image cache ready", slog.String("dir", cache.Dir()))

	if maxAge := cfg.Images.GetMaxAge(); maxAge > 0 {
		pruned, err := cache.Prune(maxAge)
		if err != nil {
			slog.Warn("cache prune failed", slog.Any("err", err))
		} else if pruned > 0 {
			slog.Info("pruned image cache", slog.Int("removed", pruned))
		}
	}

	svc := provider.New(client, mapper.New(cfg.Mapping, mapper.NewMemoryIndex()), cache, nil)
	handler := api.NewHandler(svc, client, cache)

	srv := &http.Server{
		Addr:    cfg.Daemon.Addr,
		Handler: handler.Router(),
	}

	appSignal := make(chan os.Signal, 1)
	signal.Notify(appSignal, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting daemon", slog.String("addr", cfg.Daemon.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case s := <-appSignal:
		slog.Info("received system signal", slog.String("signal", s.String()))
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("fatal: server failed", slog.Any("err", err))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", slog.Any("err", err))
	}
	slog.Info("shutdown complete")
}

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devraulu/rjmeta/pkg/batch"
	"github.com/devraulu/rjmeta/pkg/config"
	"github.com/devraulu/rjmeta/pkg/dlsite"
	"github.com/devraulu/rjmeta/pkg/imagecache"
	"github.com/devraulu/rjmeta/pkg/logger"
	"github.com/devraulu/rjmeta/pkg/mapper"
	"github.com/devraulu/rjmeta/pkg/provider"
)

func main() {
	var (
		configPath = flag.String("config", "config.toml", "Path to config file")
		namesFile  = flag.String("names", "", "File with one game name per line")
		auto       = flag.Bool("auto", false, "Unattended: take the best match without prompting")
		cover      = flag.Bool("cover", false, "Download the cover image into the cache")
		asJSON     = flag.Bool("json", false, "Emit one JSON document per lookup on stdout")
		workers    = flag.Int("workers", 4, "Concurrent lookups in unattended mode")
		delay      = flag.Duration("delay", time.Second, "Pause between dispatches in unattended mode")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("fatal: couldn't load config", slog.Any("err", err))
		os.Exit(1)
	}

	logger.InitLogger(cfg)

	names := flag.Args()
	if *namesFile != "" {
		fromFile, err := batch.LoadNames(*namesFile)
		if err != nil {
			slog.Error("fatal: couldn't load names", slog.Any("err", err))
			os.Exit(1)
		}
		names = append(fromFile, names...)
	}
	if len(names) == 0 {
		fmt.Fprintln(os.Stderr, "usage: rjmeta [flags] <game name, product code or work url>...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	client := dlsite.NewClient(cfg)
	defer client.Close()

	cache, err := imagecache.New(cfg.Images.CacheDir, client.HTTPClient(), cfg.Site.UserAgent)
	if err != nil {
		slog.Error("fatal: couldn't open image cache", slog.Any("err", err))
		os.Exit(1)
	}

	var picker provider.Picker
	if !*auto {
		picker = &terminalPicker{in: bufio.NewReader(os.Stdin), out: os.Stderr}
	}

	svc := provider.New(client, mapper.New(cfg.Mapping, mapper.NewMemoryIndex()), cache, picker)
	runner := batch.New(svc, *workers, *delay, *cover)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	appSignal := make(chan os.Signal, 1)
	signal.Notify(appSignal, syscall.SIGINT, syscall.SIGQUIT)
	go func() {
		s := <-appSignal
		slog.Info("received system signal", slog.String("signal", s.String()))
		stop()
	}()

	emit := func(res batch.Result) {
		printResult(ctx, os.Stdout, res, *asJSON)
	}

	if *auto {
		if err := runner.Run(ctx, names, emit); err != nil {
			slog.Error("batch interrupted", slog.Any("err", err))
			os.Exit(1)
		}
		return
	}

	// Interactive lookups share the terminal, so they run one at a time.
	for _, query := range names {
		if ctx.Err() != nil {
			break
		}
		emit(runner.Lookup(ctx, query, false))
	}
}

// loadConfig falls back to defaults when the config file is absent, so
// the tool works out of the box.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

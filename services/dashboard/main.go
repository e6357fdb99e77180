package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lowercolorado/flowpath-viewer/services/dashboard/catalog"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/config"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/dashboard"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/db"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/frame"
	httpserver "github.com/lowercolorado/flowpath-viewer/services/dashboard/http"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/hydrofabric"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/memo"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/netcdf"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/observability"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	clock := clockwork.NewRealClock()
	cacheOpts := memo.Options{
		MaxEntries: cfg.CacheMaxEntries,
		TTL:        cfg.CacheTTL,
		Clock:      clock,
		Observer:   metrics.ObserveCache,
	}

	locator := catalog.NewLocator(memo.New[[]string]("catalog", cacheOpts))
	loader := netcdf.NewLoader(memo.New[*frame.Frame]("frames", cacheOpts))
	loader.OnDecode(func(_ string, took time.Duration) { metrics.ObserveLoad("frame", took) })

	_, table := db.SplitTableRef(cfg.FlowpathsLayer)
	readerOpts := hydrofabric.ReaderOptions{
		Files:     hydrofabric.NewGeoPackage(table),
		Table:     cfg.FlowpathsLayer,
		Tolerance: cfg.SimplifyTolerance,
		Cache:     memo.New[*hydrofabric.Layer]("layers", cacheOpts),
		OnLoad:    func(_ string, took time.Duration) { metrics.ObserveLoad("layer", took) },
	}
	if cfg.FlowpathsDatabaseURL != "" {
		store, err := db.New(ctx, cfg.FlowpathsDatabaseURL)
		if err != nil {
			logger.Error("db connection error", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		readerOpts.Database = hydrofabric.NewPostGIS(store)
		logger.Info("postgis flowpath source enabled", "layer", cfg.FlowpathsLayer)
	}

	svc := dashboard.New(locator, loader, hydrofabric.NewReader(readerOpts), dashboard.Options{
		Join:       cfg.MergeJoin,
		FitPadding: cfg.FitPadding,
		Logger:     logger,
		Metrics:    metrics,
	})
	sessions := session.NewStore(session.Defaults{
		Datasets:  cfg.DatasetRoots,
		LayerPath: cfg.FlowpathsPath,
	}, cfg.SessionTTL, clock)

	srv := httpserver.New(cfg, sessions, svc, metrics, logger)
	logger.Info("dashboard API listening",
		"addr", cfg.ListenAddr(),
		"datasets", len(cfg.DatasetRoots),
		"join", cfg.MergeJoin,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

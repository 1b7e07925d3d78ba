package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jonjones-gis/lidar-picker/internal/core/config"
	"github.com/jonjones-gis/lidar-picker/internal/core/httpclient"
	"github.com/jonjones-gis/lidar-picker/internal/core/observability"
	"github.com/jonjones-gis/lidar-picker/internal/footprint"
	"github.com/jonjones-gis/lidar-picker/internal/invalidation"
	"github.com/jonjones-gis/lidar-picker/internal/job"
	"github.com/jonjones-gis/lidar-picker/internal/logger"
	"github.com/jonjones-gis/lidar-picker/internal/mapview"
	"github.com/jonjones-gis/lidar-picker/internal/ranking"
	"github.com/jonjones-gis/lidar-picker/internal/selection"
	"github.com/jonjones-gis/lidar-picker/internal/server"
	"github.com/jonjones-gis/lidar-picker/internal/session"
	"github.com/jonjones-gis/lidar-picker/internal/spatial"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "lidar-picker",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting",
		"addr", cfg.Addr,
		"version", Version,
		"footprint_service", cfg.FootprintServiceURL,
		"job_endpoint", cfg.JobEndpointURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := httpclient.NewOutbound()

	// Footprint cache is best-effort: without Redis we just fetch the
	// service every time.
	var cache *footprint.Cache
	if cfg.RedisAddr != "" {
		c, err := footprint.NewCache(ctx, cfg.RedisAddr, cfg.CacheTTL)
		if err != nil {
			appLog.Warn("footprint cache unavailable", "err", err)
		} else {
			cache = c
			defer func() { _ = cache.Close() }()
		}
	}

	source := footprint.NewSource(appLog, httpClient, cfg.FootprintServiceURL, cache)
	surface := mapview.NewRecorder()

	sess := session.New(appLog, surface, spatial.Planar{},
		session.WithPrefilter(spatial.NewPrefilter(cfg.PrefilterRes)),
		session.WithViewportPadding(cfg.ViewportPadding),
		session.WithFilterMemo(cfg.FilterMemoSize),
	)

	sel := selection.NewManager(appLog, sess, surface, selection.ViewportPolicy{
		MaxFitZoom:  cfg.MaxFitZoom,
		MinSpotZoom: cfg.MinSpotZoom,
	})
	// highlight recompute reacts to the selection-changed signal
	sel.Subscribe(sel.Refresh)

	ranker := ranking.NewController()
	builder := job.NewBuilder(appLog, httpClient, cfg.JobEndpointURL)

	if cfg.Invalidation.Enabled && cache != nil {
		consumer := invalidation.New(
			invalidation.DefaultConfig(cfg.Invalidation.Brokers, cfg.Invalidation.Topic, cfg.Invalidation.GroupID),
			appLog, cache)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				appLog.Error("invalidation consumer exited", "err", err)
			}
		}()
	}

	srv := server.New(cfg, appLog, source, sess, sel, ranker, builder)
	if err := server.Run(ctx, cfg, appLog, srv.Routes()); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

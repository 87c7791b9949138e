// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZSC714725/ffrunner/internal/api"
	"github.com/ZSC714725/ffrunner/internal/job"
	"github.com/ZSC714725/ffrunner/internal/logger"
	"github.com/ZSC714725/ffrunner/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var flagBind string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the job API",
	RunE:  doServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagBind, "bind", "", "Bind address (overrides config)")
}

func doServe(cmd *cobra.Command, _ []string) error {
	bindAddr := cfg.Server.Bind
	if flagBind != "" {
		bindAddr = flagBind
	}

	log := logger.New("")

	ff, err := newFFmpeg(log)
	if err != nil {
		return err
	}

	var collector *metrics.Collector
	registry := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		collector = metrics.NewCollectorWithRegistry(registry)
	}

	store := job.NewStore(job.StoreConfig{
		FFmpeg:   ff,
		Logger:   log,
		Metrics:  collector,
		LogLines: cfg.FFmpeg.HistoryLines,
	})
	handler := api.NewHandler(store, log, cfg.Server.AllowOrigins)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if m := api.CORS(cfg.Server.AllowOrigins); m != nil {
		r.Use(m)
	}

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler(registry)))
	}
	handler.Register(r.Group("/api/v3"))

	server := &http.Server{
		Addr:              bindAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("ffrunner listening on %s using %s", bindAddr, ff.Binary())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		return errors.Join(err, store.Close())
	})

	return g.Wait()
}

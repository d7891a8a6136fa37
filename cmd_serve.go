// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/quickly-predict/cliparse"
	"github.com/danielhkuo/quickly-predict/db"
	"github.com/danielhkuo/quickly-predict/forms"
	"github.com/danielhkuo/quickly-predict/handlers"
	"github.com/danielhkuo/quickly-predict/logging"
	"github.com/danielhkuo/quickly-predict/metrics"
	"github.com/danielhkuo/quickly-predict/router"
	"github.com/danielhkuo/quickly-predict/sheet"
	"github.com/danielhkuo/quickly-predict/sonar"
	"github.com/danielhkuo/quickly-predict/upstream"
)

const shutdownTimeout = 10 * time.Second

var serveCfg cliparse.Config

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Starts the API server. Every flag falls back to an environment variable
(see --help), and a .env file in the working directory is loaded first.

Example:
  PREDICT_API_URL=http://ml:5000 quickly-predict serve --sheet trends.xlsx --watch-sheet`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	cliparse.BindFlags(serveCmd.Flags(), &serveCfg)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cliparse.LoadDotEnv(); err != nil {
		return err
	}
	if err := cliparse.Resolve(cmd.Flags(), &serveCfg); err != nil {
		return err
	}
	cfg := serveCfg

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// Connect to the dataset store
	dbConn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		return err
	}
	logger.Info("database schema ready", zap.String("driver", cfg.DatabaseType))

	registry, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	seed := cfg.SonarSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	deps := handlers.Deps{
		Registry:   registry,
		Upstream:   upstream.New(cfg.UpstreamTimeout, logger, upstream.WithMetrics(m)),
		Classifier: sonar.NewSeeded(seed),
		Metrics:    m,
		Logger:     logger,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if cfg.SheetPath != "" {
		store, err := sheet.Open(cfg.SheetPath, sheet.Options{
			KeyColumn: cfg.SheetKeyColumn,
			Logger:    logger,
			Metrics:   m,
		})
		if err != nil {
			return err
		}
		deps.Sheet = store
		logger.Info("workbook loaded", zap.String("path", store.Path()), zap.Int("rows", store.Len()))

		if cfg.WatchSheet {
			g.Go(func() error { return store.Watch(ctx) })
		}
	}

	server := &http.Server{
		Handler:           router.NewRouter(dbConn, cfg, deps),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("listening", zap.Int("port", cfg.Port), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("server closed", zap.Error(err))
	return err
}

// loadRegistry reads the app registry and points it at the prediction
// services
func loadRegistry(cfg cliparse.Config) (*forms.Registry, error) {
	var (
		reg *forms.Registry
		err error
	)
	if cfg.AppsFile != "" {
		reg, err = forms.LoadFile(cfg.AppsFile)
	} else {
		reg, err = forms.Default()
	}
	if err != nil {
		return nil, err
	}
	for name := range cfg.UpstreamOverrides {
		if _, ok := reg.Get(name); !ok {
			return nil, fmt.Errorf("upstream override for unknown app %q", name)
		}
	}
	reg.ApplyUpstreams(cfg.UpstreamURL, cfg.UpstreamOverrides)
	return reg, nil
}

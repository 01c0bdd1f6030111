package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"quizbench/internal/config"
	"quizbench/internal/httpapi"
	"quizbench/internal/modelconf"
	"quizbench/internal/report"
	"quizbench/internal/runner"
	"quizbench/internal/storage/selector"
)

func main() {
	cfg := config.Load()

	addr := pflag.String("addr", cfg.Addr, "HTTP listen address")
	dataDir := pflag.String("data-dir", cfg.DataDir, "runtime data directory")
	modelsPath := pflag.String("models", cfg.ModelsPath, "path to models.yaml")
	pflag.Parse()

	cfg.Addr = *addr
	cfg.DataDir = *dataDir
	cfg.ModelsPath = *modelsPath

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	paths := config.NewPaths(cfg.DataDir)
	if err := paths.Ensure(); err != nil {
		log.WithError(err).Fatal("could not create data directories")
	}

	ctx := context.Background()
	store, err := selector.Open(ctx, cfg, paths, log)
	if err != nil {
		log.WithError(err).Fatal("storage initialization failed")
	}
	defer store.Close()

	// Reconcile anything a previous process left behind before taking work.
	if _, err := runner.RecoverStaleRuns(ctx, store, paths.LogsDir, log); err != nil {
		log.WithError(err).Fatal("stale run recovery failed")
	}

	models, err := modelconf.Load(cfg.ModelsPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Fatal("could not load model config")
		}
		log.WithField("path", cfg.ModelsPath).Warn("model config not found, starting with an empty catalogue")
		models = &modelconf.Config{}
	}

	orch := runner.New(store, paths.LogsDir, log)
	reporter := report.New(store, paths.AssetsDir)
	api := httpapi.NewAPI(store, orch, reporter, models, cfg, paths, log)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewRouter(api),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.WithField("addr", cfg.Addr).Info("quizbench server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server failed")
	}
}

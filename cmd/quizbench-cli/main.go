package main

import (
	"context"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"quizbench/internal/config"
	"quizbench/internal/modelconf"
	"quizbench/internal/report"
	"quizbench/internal/runner"
	"quizbench/internal/storage/selector"
)

func main() {
	cfg := config.Load()

	quizPath := pflag.String("quiz", "", "path to a JSON quiz file (required)")
	modelIDs := pflag.StringSlice("models", nil, "model ids to benchmark")
	group := pflag.String("group", "", "named model group from models.yaml")
	withReport := pflag.Bool("report", true, "generate a report when the run finishes")
	runID := pflag.String("run-id", "", "run id (defaults to a fresh uuid)")
	dataDir := pflag.String("data-dir", cfg.DataDir, "runtime data directory")
	modelsPath := pflag.String("models-config", cfg.ModelsPath, "path to models.yaml")
	pflag.Parse()

	cfg.DataDir = *dataDir
	cfg.ModelsPath = *modelsPath

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if *quizPath == "" {
		log.Fatal("--quiz is required")
	}
	if len(*modelIDs) == 0 && *group == "" {
		log.Fatal("select models with --models or --group")
	}
	if !cfg.MockAdapters && cfg.OpenRouterKey == "" {
		log.Fatal("OPENROUTER_API_KEY is required (or set QUIZBENCH_ENV=mock)")
	}

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

	if _, err := runner.RecoverStaleRuns(ctx, store, paths.LogsDir, log); err != nil {
		log.WithError(err).Fatal("stale run recovery failed")
	}

	models, err := modelconf.Load(cfg.ModelsPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Fatal("could not load model config")
		}
		models = &modelconf.Config{}
	}

	ids := *modelIDs
	if len(ids) == 0 {
		ids, err = models.GroupModels(*group)
		if err != nil {
			log.WithError(err).Fatal("could not resolve model group")
		}
	}
	adapters := models.Adapters(ids, cfg.MockAdapters, cfg.OpenRouterKey)

	id := *runID
	if id == "" {
		id = strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	orch := runner.New(store, paths.LogsDir, log)
	var reporter runner.Reporter
	if *withReport {
		reporter = report.New(store, paths.AssetsDir)
	}

	if err := orch.RunAndReport(ctx, *quizPath, adapters, id, reporter); err != nil {
		log.WithError(err).WithField("run_id", id).Fatal("run failed")
	}
	log.WithField("run_id", id).Info("run finished")
	log.WithField("log", paths.RunLogPath(id)).Info("run log written")
}

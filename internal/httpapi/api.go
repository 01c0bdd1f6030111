// Package httpapi is the thin HTTP surface over the core. It validates
// requests and translates between JSON and the storage contract; all
// orchestration and consistency logic lives below it.
package httpapi

import (
	"github.com/sirupsen/logrus"

	"quizbench/internal/config"
	"quizbench/internal/modelconf"
	"quizbench/internal/runner"
	"quizbench/internal/storage"
)

type API struct {
	store  storage.Store
	orch   *runner.Orchestrator
	rep    runner.Reporter
	models *modelconf.Config
	cfg    config.Config
	paths  config.Paths
	log    *logrus.Logger
}

func NewAPI(store storage.Store, orch *runner.Orchestrator, rep runner.Reporter, models *modelconf.Config, cfg config.Config, paths config.Paths, log *logrus.Logger) *API {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &API{
		store:  store,
		orch:   orch,
		rep:    rep,
		models: models,
		cfg:    cfg,
		paths:  paths,
		log:    log,
	}
}

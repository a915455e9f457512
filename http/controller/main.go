package controller

import (
	"github.com/tnqbao/gau-kv-orchestrator/config"
	"github.com/tnqbao/gau-kv-orchestrator/infra"
	"github.com/tnqbao/gau-kv-orchestrator/orchestrator"
	"github.com/tnqbao/gau-kv-orchestrator/repository"
)

type Controller struct {
	Config       *config.Config
	Infra        *infra.Infra
	Repository   *repository.Repository
	Orchestrator *orchestrator.Orchestrator
}

func NewController(config *config.Config, infra *infra.Infra, repo *repository.Repository, engine *orchestrator.Orchestrator) *Controller {
	if repo == nil {
		panic("Failed to initialize Repository")
	}
	if engine == nil {
		panic("Failed to initialize Orchestrator")
	}
	return &Controller{
		Config:       config,
		Infra:        infra,
		Repository:   repo,
		Orchestrator: engine,
	}
}

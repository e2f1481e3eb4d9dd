package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodmatch/matchd/internal/assess"
	"github.com/foodmatch/matchd/internal/auth"
	"github.com/foodmatch/matchd/internal/matcher"
	"github.com/foodmatch/matchd/internal/portal"
	"github.com/foodmatch/matchd/internal/predict"
	"github.com/foodmatch/matchd/internal/rfq"
	"github.com/foodmatch/matchd/internal/server"
	"github.com/foodmatch/matchd/internal/store"
	"github.com/foodmatch/matchd/pkg/anthropic"
)

// env holds the wired services shared by the commands.
type env struct {
	Store   store.Store
	Auth    *auth.Service
	Matcher *matcher.Matcher
	Portal  *portal.Portal
	RFQ     *rfq.Estimator
	Predict *predict.Model
}

// initEnv opens the configured store backend and wires the services.
func initEnv(ctx context.Context) (*env, error) {
	var st store.Store
	var err error
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		err = eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	fallback := assess.NewFallback(cfg.Match.ProximityNormMiles)
	var assessor assess.Assessor = fallback
	if cfg.Anthropic.Key != "" {
		client := anthropic.NewClient(cfg.Anthropic.Key)
		assessor = assess.NewLLM(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens, fallback)
		zap.L().Info("env: llm assessor enabled", zap.String("model", cfg.Anthropic.Model))
	}

	return &env{
		Store:   st,
		Auth:    auth.New(st, cfg.Auth),
		Matcher: matcher.New(st, assessor, cfg.Match),
		Portal:  portal.New(st, cfg.Portal),
		RFQ:     rfq.New(st, cfg.RFQ),
		Predict: predict.New(st),
	}, nil
}

// Server builds the HTTP layer over the env.
func (e *env) Server() *server.Server {
	return server.New(e.Store, e.Auth, e.Matcher, e.Portal, e.RFQ, e.Predict, cfg.Server)
}

func (e *env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("env: close store", zap.Error(err))
	}
}

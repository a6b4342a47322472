package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/introhq/introhq/internal/importer"
	"github.com/introhq/introhq/internal/jobs"
	"github.com/introhq/introhq/internal/mailer"
	"github.com/introhq/introhq/internal/referral"
	"github.com/introhq/introhq/internal/store"
	"github.com/introhq/introhq/internal/sweep"
	"github.com/introhq/introhq/pkg/geocode"
)

// appEnv holds the wired application graph shared by the commands.
type appEnv struct {
	Store     *store.PostgresStore
	Resolver  *geocode.Resolver
	Sweeper   *sweep.Sweeper
	Runner    *jobs.Runner
	Pipeline  *importer.Pipeline
	Referrals *referral.Service
	Queries   *referral.Queries
}

// initEnv connects the store and wires the services. The job runner is
// created but not started; commands that need background sweeps call
// Runner.Start themselves.
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := store.NewPostgres(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}

	provider := geocode.NewGoogleProvider(cfg.Geocode.GoogleAPIKey,
		geocode.WithRateLimit(cfg.Geocode.RateLimit),
	)
	if !provider.Available() {
		zap.L().Warn("google api key not configured, geocoding limited to the cities cache")
	}

	resolver := geocode.NewResolver(st, provider)
	sweeper := sweep.New(st, resolver, cfg.Sweep.CallDelay())

	runner := jobs.NewRunner(
		func(ctx context.Context, userID string) error {
			_, err := sweeper.Sweep(ctx, userID)
			return err
		},
		jobs.Options{
			QueueCapacity: cfg.Sweep.QueueCapacity,
			JobTimeout:    cfg.Sweep.Timeout(),
			MaxAttempts:   cfg.Sweep.MaxAttempts,
		},
	)

	pipeline := importer.New(st, resolver, runner, cfg.Import.ChunkSize)
	referrals := referral.NewService(st, st, mailer.NewLogMailer())
	queries := referral.NewQueries(st.Pool())

	return &appEnv{
		Store:     st,
		Resolver:  resolver,
		Sweeper:   sweeper,
		Runner:    runner,
		Pipeline:  pipeline,
		Referrals: referrals,
		Queries:   queries,
	}, nil
}

// Close stops background work and releases the store.
func (e *appEnv) Close() {
	e.Runner.Stop()
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close", zap.Error(err))
	}
}

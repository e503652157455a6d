// Package app assembles the process from configuration: the limiter, the
// TTL store, the action registry, the dispatcher, the commands, the
// janitor and the metrics server.
package app

import (
	"context"
	"fmt"

	"laxenta/internal/bot"
	"laxenta/internal/commands"
	"laxenta/internal/config"
	"laxenta/internal/dispatch"
	"laxenta/internal/janitor"
	"laxenta/internal/metrics"
	"laxenta/internal/registry"
	"laxenta/pkg/clock"
	"laxenta/pkg/cmd"
	"laxenta/pkg/ratelimit"
	"laxenta/pkg/ttlstore"

	"github.com/rs/zerolog"
)

type App struct {
	cfg    *config.Config
	logger zerolog.Logger

	Limiter    *ratelimit.Limiter
	Burst      *ratelimit.BurstGuard
	Store      *ttlstore.Store
	Registry   *registry.Registry
	Dispatcher *dispatch.Dispatcher
	Commands   *cmd.Registry
	Metrics    *metrics.Metrics
	Janitor    *janitor.Scheduler
}

type Option func(*settings)

type settings struct {
	clock clock.Clock
}

// WithClock drives every expiry decision from c.
func WithClock(c clock.Clock) Option {
	return func(s *settings) { s.clock = c }
}

func New(cfg *config.Config, logger zerolog.Logger, opts ...Option) (*App, error) {
	st := settings{clock: clock.Real{}}
	for _, opt := range opts {
		opt(&st)
	}

	policies, err := cfg.Policies()
	if err != nil {
		return nil, err
	}
	limiter, err := ratelimit.New(policies, ratelimit.WithClock(st.clock))
	if err != nil {
		return nil, fmt.Errorf("cooldowns: %w", err)
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		Limiter: limiter,
		Metrics: metrics.New(nil),
		Store:   ttlstore.New(ttlstore.Options{CleanupInterval: cfg.TTLCleanupInterval, Clock: st.clock}),
		Janitor: janitor.New(logger),
	}
	if cfg.BurstRPS > 0 && cfg.BurstSize > 0 {
		a.Burst = ratelimit.NewBurstGuard(cfg.BurstRPS, cfg.BurstSize, cfg.DedupTTL, st.clock)
	}
	a.Registry = registry.New(limiter,
		registry.WithClock(st.clock),
		registry.WithLogger(logger),
		registry.WithObserver(a.Metrics),
	)

	a.Dispatcher, err = dispatch.New(a.Registry, dispatch.Options{
		Seen:     a.Store,
		DedupTTL: cfg.DedupTTL,
		Burst:    a.Burst,
		Logger:   logger,
		Drops:    a.Metrics,
	})
	if err != nil {
		return nil, err
	}

	a.Commands, err = commands.Build(commands.Deps{
		Registry:    a.Registry,
		Store:       a.Store,
		Limiter:     limiter,
		ConfirmTTL:  cfg.ConfirmTTL,
		ProposalTTL: cfg.ProposalTTL,
		MenuTTL:     cfg.MenuTTL,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	if err := a.registerJobs(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) registerJobs() error {
	jobs := []janitor.Job{
		janitor.SweepJob("registry", a.Registry, a.Metrics.ObserveSweep),
		janitor.SweepJob("limiter", a.Limiter, a.Metrics.ObserveSweep),
	}
	if a.Burst != nil {
		jobs = append(jobs, janitor.SweepJob("burst", a.Burst, a.Metrics.ObserveSweep))
	}
	for _, job := range jobs {
		if _, err := a.Janitor.Register(a.cfg.SweepSchedule, job); err != nil {
			return err
		}
	}
	return nil
}

// Run connects the bot and blocks until ctx is cancelled or the bot fails.
func (a *App) Run(ctx context.Context) error {
	b, err := bot.New(bot.Options{
		Token:        a.cfg.DiscordToken,
		GuildID:      a.cfg.GuildID,
		SyncCommands: a.cfg.InitCommands,
		Commands:     a.Commands,
		Dispatcher:   a.Dispatcher,
		Logger:       a.logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.Janitor.Start()
	defer func() { <-a.Janitor.Stop().Done() }()

	if a.cfg.MetricsAddr != "" {
		go func() {
			if err := a.Metrics.Serve(ctx, a.cfg.MetricsAddr, a.logger); err != nil {
				a.logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	return b.Run(ctx)
}

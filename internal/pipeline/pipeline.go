// Package pipeline drives deposits through the preservation stages.
//
// Each run selects deposits sitting in a stage's precondition state,
// invokes the stage handler on each, and records the outcome through a
// batching writer so a crash loses at most the uncommitted tail of a
// batch. Failures are isolated per deposit; one bad deposit never stops
// a run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bindery/internal/cleanup"
	"bindery/internal/config"
	"bindery/internal/deposit"
	"bindery/internal/depositor"
	"bindery/internal/harvest"
	"bindery/internal/journal"
	"bindery/internal/logging"
	"bindery/internal/network"
	"bindery/internal/notifications"
	"bindery/internal/reserialize"
	"bindery/internal/scan"
	"bindery/internal/services"
	"bindery/internal/stage"
	"bindery/internal/store"
	"bindery/internal/validate"
)

// attemptCapper lets a handler override the pipeline's retry cap.
type attemptCapper interface {
	MaxAttempts() int
}

// Options adjust how a pipeline is assembled.
type Options struct {
	// ForceClean arms the cleanup stage to actually delete content.
	ForceClean bool
}

// Pipeline holds the ordered stage handlers and their shared services.
// The cleanup sweeper sits outside the run-all chain; it only runs when
// its stage is invoked by name.
type Pipeline struct {
	cfg      *config.Config
	store    *store.Store
	notifier notifications.Service
	logger   *slog.Logger
	handlers []stage.Handler
	cleaner  stage.Handler
}

// New assembles the full stage chain.
func New(cfg *config.Config, st *store.Store, notifier notifications.Service, logger *slog.Logger, opts Options) *Pipeline {
	client := network.NewClient(cfg)
	handlers := []stage.Handler{
		harvest.New(cfg, logger),
		validate.NewPayloadValidator(cfg, logger),
		validate.NewBagValidator(cfg, logger),
		validate.NewXMLValidator(cfg, logger),
		scan.New(cfg, logger),
		reserialize.New(cfg, st, logger),
		depositor.New(cfg, client, logger),
		depositor.NewStatusPoller(client, logger),
	}
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		notifier: notifier,
		logger:   logger,
		handlers: handlers,
		cleaner:  cleanup.New(cfg, opts.ForceClean, logger),
	}
}

// Handlers returns every stage, the sweep chain first and cleanup last.
func (p *Pipeline) Handlers() []stage.Handler {
	all := make([]stage.Handler, 0, len(p.handlers)+1)
	all = append(all, p.handlers...)
	return append(all, p.cleaner)
}

// Handler returns the stage with the given name.
func (p *Pipeline) Handler(name string) (stage.Handler, error) {
	for _, h := range p.Handlers() {
		if h.Name() == name {
			return h, nil
		}
	}
	return nil, services.Wrap(services.ErrConfiguration, "pipeline", "lookup",
		fmt.Sprintf("unknown stage %q", name), nil)
}

// StageNames lists the stages in execution order.
func (p *Pipeline) StageNames() []string {
	handlers := p.Handlers()
	names := make([]string, 0, len(handlers))
	for _, h := range handlers {
		names = append(names, h.Name())
	}
	return names
}

// Preflight runs every stage's health check and returns the reports.
// Stages without a health check report ready.
func (p *Pipeline) Preflight(ctx context.Context) []stage.Health {
	handlers := p.Handlers()
	reports := make([]stage.Health, 0, len(handlers))
	for _, h := range handlers {
		if checker, ok := h.(stage.Checker); ok {
			reports = append(reports, checker.HealthCheck(ctx))
			continue
		}
		reports = append(reports, stage.Healthy(h.Name()))
	}
	return reports
}

// attemptCap returns the retry budget for a handler.
func (p *Pipeline) attemptCap(h stage.Handler) int {
	if capper, ok := h.(attemptCapper); ok {
		if limit := capper.MaxAttempts(); limit > 0 {
			return limit
		}
	}
	if p.cfg.Pipeline.MaxAttempts > 0 {
		return p.cfg.Pipeline.MaxAttempts
	}
	return 1
}

// RetryFailed restores failed deposits to the state they failed in so the
// next run picks them up. With uuids empty every failed deposit resets.
func (p *Pipeline) RetryFailed(ctx context.Context, uuids ...string) ([]*deposit.Deposit, error) {
	var candidates []*deposit.Deposit
	if len(uuids) == 0 {
		all, err := p.store.DepositsByState(ctx, deposit.StateFailed, 0)
		if err != nil {
			return nil, err
		}
		candidates = all
	} else {
		for _, raw := range uuids {
			normalized, err := deposit.NormalizeUUID(raw)
			if err != nil {
				return nil, services.Wrap(services.ErrValidation, "pipeline", "retry", "deposit uuid", err)
			}
			dep, err := p.store.DepositByUUID(ctx, normalized)
			if err != nil {
				return nil, err
			}
			if dep == nil {
				return nil, services.Wrap(services.ErrNotFound, "pipeline", "retry",
					fmt.Sprintf("deposit %s not found", normalized), nil)
			}
			candidates = append(candidates, dep)
		}
	}

	reset := make([]*deposit.Deposit, 0, len(candidates))
	for _, dep := range candidates {
		if err := dep.ResetFailed(); err != nil {
			return nil, err
		}
		if err := p.store.UpdateDeposit(ctx, dep); err != nil {
			return nil, err
		}
		reset = append(reset, dep)
	}
	if p.logger != nil {
		p.logger.Info("failed deposits reset", logging.Int("count", len(reset)))
	}
	return reset, nil
}

// notifyRun publishes the run summary when a notifier is configured.
func (p *Pipeline) notifyRun(ctx context.Context, processed, failed int, duration time.Duration) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.NotifyRunCompleted(ctx, processed, failed, duration); err != nil && p.logger != nil {
		p.logger.Warn("run summary notification failed", logging.Error(err))
	}
}

// notifyFailure publishes a permanent-failure alert.
func (p *Pipeline) notifyFailure(ctx context.Context, stageName string, err error) {
	if p.notifier == nil {
		return
	}
	if notifyErr := p.notifier.NotifyError(ctx, err, stageName); notifyErr != nil && p.logger != nil {
		p.logger.Warn("error notification failed", logging.Error(notifyErr))
	}
}

// HealthCheckJournals runs the silent-journal report with the pipeline's
// notifier attached.
func (p *Pipeline) HealthCheckJournals(ctx context.Context) ([]journal.Journal, error) {
	check := journal.NewHealthCheck(p.cfg, p.store, p.notifier, p.logger)
	return check.Run(ctx)
}

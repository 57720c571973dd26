// Package cleanup removes the on-disk footprint of deposits the network
// has agreed to preserve. By default it only reports what a forced run
// would delete; destruction requires an explicit opt-in.
package cleanup

import (
	"context"
	"log/slog"

	"bindery/internal/config"
	"bindery/internal/deposit"
	"bindery/internal/fileutil"
	"bindery/internal/logging"
	"bindery/internal/pathing"
	"bindery/internal/services"
	"bindery/internal/stage"
)

const stageName = "clean"

// Sweeper deletes harvest files, processing workspaces and staging bags
// for deposits in agreement.
type Sweeper struct {
	resolver pathing.Resolver
	force    bool
	logger   *slog.Logger
}

// New constructs the cleanup stage handler. With force false the sweeper
// runs dry: it logs every path a forced run would remove and holds the
// deposit in agreement.
func New(cfg *config.Config, force bool, logger *slog.Logger) *Sweeper {
	if logger != nil {
		logger = logger.With(logging.String(logging.FieldComponent, stageName))
	}
	return &Sweeper{
		resolver: pathing.NewResolver(cfg),
		force:    force,
		logger:   logger,
	}
}

func (s *Sweeper) Name() string { return stageName }

func (s *Sweeper) Precondition() deposit.State { return deposit.StateAgreement }

func (s *Sweeper) Postcondition() deposit.State { return deposit.StateCleaned }

func (s *Sweeper) Process(ctx context.Context, dep *deposit.Deposit) (stage.Outcome, error) {
	logger := logging.WithContext(ctx, s.logger)

	targets := []string{
		s.resolver.HarvestFile(dep),
		s.resolver.ProcessingBag(dep),
		s.resolver.StagingBag(dep),
	}

	if !s.force {
		for _, target := range targets {
			paths, err := fileutil.ListTreeDepthFirst(target)
			if err != nil {
				return stage.Advance, services.Wrap(services.ErrTransient, stageName, "list", "enumerate "+target, err)
			}
			for _, path := range paths {
				logger.Info("would remove", logging.String("path", path))
			}
		}
		return stage.Hold, nil
	}

	for _, target := range targets {
		if !fileutil.PathExists(target) {
			// Already gone, likely from a partial earlier sweep.
			continue
		}
		if err := fileutil.RemoveTree(target); err != nil {
			return stage.Advance, services.Wrap(services.ErrTransient, stageName, "remove", "remove "+target, err)
		}
		logger.Info("removed", logging.String("path", target))
	}
	return stage.Advance, nil
}

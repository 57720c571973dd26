// Package depositor submits staging bags to the preservation network
// and polls the network's statement endpoint until content reaches
// agreement.
package depositor

import (
	"context"
	"log/slog"
	"time"

	"bindery/internal/config"
	"bindery/internal/deposit"
	"bindery/internal/logging"
	"bindery/internal/network"
	"bindery/internal/pathing"
	"bindery/internal/services"
	"bindery/internal/stage"
)

const depositStage = "deposit"

// Submitter is the network operation the deposit stage needs.
type Submitter interface {
	Submit(ctx context.Context, req network.SubmitRequest) (string, error)
}

// Depositor transmits reserialized bags to the network.
type Depositor struct {
	resolver pathing.Resolver
	client   Submitter
	logger   *slog.Logger
}

// New constructs the deposit stage handler.
func New(cfg *config.Config, client Submitter, logger *slog.Logger) *Depositor {
	if logger != nil {
		logger = logger.With(logging.String(logging.FieldComponent, depositStage))
	}
	return &Depositor{
		resolver: pathing.NewResolver(cfg),
		client:   client,
		logger:   logger,
	}
}

func (d *Depositor) Name() string { return depositStage }

func (d *Depositor) Precondition() deposit.State { return deposit.StateReserialized }

func (d *Depositor) Postcondition() deposit.State { return deposit.StateDeposited }

func (d *Depositor) Process(ctx context.Context, dep *deposit.Deposit) (stage.Outcome, error) {
	logger := logging.WithContext(ctx, d.logger)

	if !dep.HasContainer() {
		return stage.Advance, services.Wrap(services.ErrValidation, depositStage, "submit",
			"deposit has no AU container assignment", nil)
	}

	// A receipt from an earlier run means the bag already landed; a
	// crash between submit and save must not resubmit.
	if dep.DepositReceipt == "" {
		receipt, err := d.client.Submit(ctx, network.SubmitRequest{
			DepositUUID:   dep.UUID,
			ContainerID:   dep.ContainerID,
			BagPath:       d.resolver.StagingBag(dep),
			Size:          dep.PackageSize,
			ChecksumType:  dep.PackageChecksumType,
			ChecksumValue: dep.PackageChecksumValue,
		})
		if err != nil {
			return stage.Advance, err
		}
		dep.DepositReceipt = receipt
	} else {
		logger.Info("reusing existing deposit receipt", logging.String("receipt", dep.DepositReceipt))
	}

	now := time.Now().UTC()
	dep.DepositDate = &now
	dep.PLNState = string(network.StatusInProgress)
	logger.Info("bag deposited", logging.String("receipt", dep.DepositReceipt))
	return stage.Advance, nil
}

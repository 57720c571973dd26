package depositor

import (
	"context"
	"log/slog"

	"bindery/internal/deposit"
	"bindery/internal/logging"
	"bindery/internal/network"
	"bindery/internal/services"
	"bindery/internal/stage"
)

const pollStage = "status-poll"

// StatementReader is the network operation the status stage needs.
type StatementReader interface {
	Statement(ctx context.Context, receiptURL string) (network.AgreementStatus, error)
}

// StatusPoller checks deposited content for preservation agreement.
// Absence of agreement holds the deposit in place for the next run.
type StatusPoller struct {
	client StatementReader
	logger *slog.Logger
}

// NewStatusPoller constructs the status stage handler.
func NewStatusPoller(client StatementReader, logger *slog.Logger) *StatusPoller {
	if logger != nil {
		logger = logger.With(logging.String(logging.FieldComponent, pollStage))
	}
	return &StatusPoller{client: client, logger: logger}
}

func (p *StatusPoller) Name() string { return pollStage }

func (p *StatusPoller) Precondition() deposit.State { return deposit.StateDeposited }

func (p *StatusPoller) Postcondition() deposit.State { return deposit.StateAgreement }

func (p *StatusPoller) Process(ctx context.Context, dep *deposit.Deposit) (stage.Outcome, error) {
	logger := logging.WithContext(ctx, p.logger)

	if dep.DepositReceipt == "" {
		return stage.Advance, services.Wrap(services.ErrValidation, pollStage, "statement",
			"deposit carries no receipt URL", nil)
	}

	status, err := p.client.Statement(ctx, dep.DepositReceipt)
	if err != nil {
		return stage.Advance, err
	}
	dep.PLNState = string(status)

	switch status {
	case network.StatusAgreement:
		logger.Info("network reached agreement")
		return stage.Advance, nil
	case network.StatusRejected:
		return stage.Advance, services.Wrap(services.ErrValidation, pollStage, "statement",
			"network rejected the deposit", nil)
	default:
		logger.Info("agreement pending", logging.String("pln_state", dep.PLNState))
		return stage.Hold, nil
	}
}

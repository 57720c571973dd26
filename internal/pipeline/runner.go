package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bindery/internal/deposit"
	"bindery/internal/logging"
	"bindery/internal/services"
	"bindery/internal/stage"
)

// RunOptions select which deposits a stage run picks up.
type RunOptions struct {
	// Limit caps how many deposits one run processes; zero means all.
	Limit int
	// ForceUUID runs the stage for a single deposit regardless of its
	// current state or attempt count, for operator-triggered
	// reprocessing.
	ForceUUID string
}

// Summary reports what one stage run did.
type Summary struct {
	Stage     string
	Processed int
	Advanced  int
	Held      int
	Retried   int
	Failed    int
	Duration  time.Duration
}

// RunStage processes every eligible deposit through the named stage.
func (p *Pipeline) RunStage(ctx context.Context, name string, opts RunOptions) (Summary, error) {
	handler, err := p.Handler(name)
	if err != nil {
		return Summary{}, err
	}
	return p.run(services.WithRunID(ctx, uuid.NewString()), handler, opts)
}

// RunAll executes the sweep chain, harvest through status-poll, in order.
// Deposits advanced by an earlier stage become eligible for the next one
// within the same run. Cleanup runs only through its own stage invocation.
func (p *Pipeline) RunAll(ctx context.Context, opts RunOptions) ([]Summary, error) {
	ctx = services.WithRunID(ctx, uuid.NewString())
	started := time.Now()
	var processed, failed int

	summaries := make([]Summary, 0, len(p.handlers))
	for _, handler := range p.handlers {
		summary, err := p.run(ctx, handler, opts)
		if err != nil {
			return summaries, err
		}
		summaries = append(summaries, summary)
		processed += summary.Processed
		failed += summary.Failed
	}

	p.notifyRun(ctx, processed, failed, time.Since(started))
	return summaries, nil
}

func (p *Pipeline) run(ctx context.Context, handler stage.Handler, opts RunOptions) (Summary, error) {
	started := time.Now()
	summary := Summary{Stage: handler.Name()}
	logger := logging.WithContext(ctx, p.stageLogger(handler))

	deposits, err := p.selectDeposits(ctx, handler, opts)
	if err != nil {
		return summary, err
	}
	if len(deposits) == 0 {
		summary.Duration = time.Since(started)
		return summary, nil
	}

	writer := p.store.NewBatchWriter(p.cfg.Pipeline.BatchSize)
	defer writer.Close()

	attemptCap := p.attemptCap(handler)
	for _, dep := range deposits {
		if err := ctx.Err(); err != nil {
			if flushErr := writer.Flush(ctx); flushErr != nil {
				return summary, flushErr
			}
			return summary, err
		}

		depCtx := services.WithDepositUUID(services.WithStage(ctx, handler.Name()), dep.UUID)
		summary.Processed++

		outcome, procErr := p.process(depCtx, handler, dep)
		switch {
		case procErr == nil && outcome == stage.Hold:
			summary.Held++
			if err := writer.Save(depCtx, dep); err != nil {
				return summary, err
			}
		case procErr == nil:
			if opts.ForceUUID != "" && !deposit.CanTransition(dep.State, handler.Postcondition()) {
				dep.ForceState(handler.Postcondition(), "")
			} else if err := dep.Advance(handler.Postcondition(), ""); err != nil {
				return summary, err
			}
			summary.Advanced++
			if err := writer.Save(depCtx, dep); err != nil {
				return summary, err
			}
		case services.Retryable(procErr) && dep.Attempts+1 < attemptCap:
			dep.Attempts++
			dep.AppendError(procErr.Error())
			dep.AppendLog(fmt.Sprintf("Attempt %d of %d failed: %s", dep.Attempts, attemptCap, procErr))
			summary.Retried++
			logger.Warn("stage attempt failed",
				logging.String(logging.FieldEventType, "stage_retry"),
				logging.String(logging.FieldDepositUUID, dep.UUID),
				logging.Int("attempt", dep.Attempts),
				logging.Error(procErr))
			if err := writer.Save(depCtx, dep); err != nil {
				return summary, err
			}
		default:
			if opts.ForceUUID != "" && !deposit.CanTransition(dep.State, deposit.StateFailed) {
				from := dep.State
				dep.ForceState(deposit.StateFailed, "")
				dep.FailedState = from
				dep.AppendError(procErr.Error())
			} else if err := dep.Fail(procErr.Error()); err != nil {
				return summary, err
			}
			summary.Failed++
			logger.Error("deposit failed",
				logging.String(logging.FieldEventType, "stage_failure"),
				logging.String(logging.FieldDepositUUID, dep.UUID),
				logging.Error(procErr))
			p.notifyFailure(depCtx, handler.Name(), procErr)
			if err := writer.Save(depCtx, dep); err != nil {
				return summary, err
			}
		}
	}

	if err := writer.Flush(ctx); err != nil {
		return summary, err
	}

	summary.Duration = time.Since(started)
	logger.Info("stage run complete",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("processed", summary.Processed),
		logging.Int("advanced", summary.Advanced),
		logging.Int("held", summary.Held),
		logging.Int("retried", summary.Retried),
		logging.Int("failed", summary.Failed),
		logging.Duration("duration", summary.Duration))
	return summary, nil
}

// process invokes the handler with panic isolation so one corrupt
// deposit cannot take down a whole run.
func (p *Pipeline) process(ctx context.Context, handler stage.Handler, dep *deposit.Deposit) (outcome stage.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = stage.Advance
			err = services.Wrap(services.ErrValidation, handler.Name(), "process",
				fmt.Sprintf("panic: %v", r), nil)
		}
	}()
	return handler.Process(ctx, dep)
}

func (p *Pipeline) selectDeposits(ctx context.Context, handler stage.Handler, opts RunOptions) ([]*deposit.Deposit, error) {
	if opts.ForceUUID != "" {
		normalized, err := deposit.NormalizeUUID(opts.ForceUUID)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, handler.Name(), "select", "deposit uuid", err)
		}
		dep, err := p.store.DepositByUUID(ctx, normalized)
		if err != nil {
			return nil, err
		}
		if dep == nil {
			return nil, services.Wrap(services.ErrNotFound, handler.Name(), "select",
				fmt.Sprintf("deposit %s not found", normalized), nil)
		}
		return []*deposit.Deposit{dep}, nil
	}
	return p.store.DepositsByState(ctx, handler.Precondition(), opts.Limit)
}

func (p *Pipeline) stageLogger(handler stage.Handler) *slog.Logger {
	if p.logger == nil {
		return logging.NewNop()
	}
	return p.logger.With(logging.String(logging.FieldStage, handler.Name()))
}

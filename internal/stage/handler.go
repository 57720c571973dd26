package stage

import (
	"context"

	"bindery/internal/deposit"
)

// Outcome is a handler's transition decision for one deposit.
type Outcome int

const (
	// Advance moves the deposit to the stage's postcondition state.
	Advance Outcome = iota
	// Hold leaves the deposit unchanged without recording a failure;
	// used by the status poller while the network has not confirmed yet.
	Hold
)

// Handler is the contract every stage processor satisfies. Process must
// be idempotent under re-invocation on a deposit still in the
// precondition state, and must confine side effects to resolver-derived
// paths using write-to-temp-then-move discipline.
//
// Errors returned from Process are classified by the pipeline via
// services.Retryable: retryable failures leave the deposit in place and
// count an attempt, everything else fails the deposit permanently.
type Handler interface {
	Name() string
	Precondition() deposit.State
	Postcondition() deposit.State
	Process(ctx context.Context, dep *deposit.Deposit) (Outcome, error)
}
